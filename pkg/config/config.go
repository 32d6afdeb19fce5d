package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Environment   string
	LogLevel      string
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Typesense     TypesenseConfig
	OpenAI        OpenAIConfig
	OTEL          OTELConfig
	Storage       StorageConfig
	Enrichment    EnrichmentConfig
	Notifications NotificationConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host              string
	Port              int
	AllowedOrigins    []string
	CacheWarmInterval time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// OpenAIConfig holds language model API configuration
type OpenAIConfig struct {
	APIKey         string
	Model          string
	BaseURL        string
	RateLimitRPM   int
	RateLimitBurst int
	RequestTimeout time.Duration
	MaxRetries     int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// StorageConfig points at the JSON documents backing the bill dataset.
type StorageConfig struct {
	DataDir    string
	BillsFile  string
	ScrapeFile string
}

// EnrichmentConfig controls the enrichment pipeline.
type EnrichmentConfig struct {
	MinContentLength      int
	ConcurrencyMultiplier int
	SkipEnriched          bool
	CallTimeout           time.Duration
}

// NotificationConfig holds delivery provider settings.
type NotificationConfig struct {
	SMTPHost              string
	SMTPPort              int
	SMTPUser              string
	SMTPPassword          string
	SMTPFrom              string
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	MaxRetries            int
	RetryDelay            time.Duration
	AppBaseURL            string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:              getEnv("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins:    getEnvAsSlice("ALLOWED_ORIGINS", []string{"*"}),
			CacheWarmInterval: getEnvAsDuration("CACHE_WARM_INTERVAL", 5*time.Minute),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "billtracker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: getEnv("TYPESENSE_API_KEY", "xyz"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			RateLimitRPM:   getEnvAsInt("OPENAI_RATE_LIMIT_RPM", 60),
			RateLimitBurst: getEnvAsInt("OPENAI_RATE_LIMIT_BURST", 5),
			RequestTimeout: getEnvAsDuration("OPENAI_REQUEST_TIMEOUT", 20*time.Second),
			MaxRetries:     getEnvAsInt("OPENAI_MAX_RETRIES", 3),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "billtracker"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
		Storage: StorageConfig{
			DataDir:    getEnv("STORAGE_DIR", "storage"),
			BillsFile:  getEnv("BILLS_FILE", "CanadaBills.json"),
			ScrapeFile: getEnv("SCRAPE_FILE", "ScrapedBills.json"),
		},
		Enrichment: EnrichmentConfig{
			MinContentLength:      getEnvAsInt("ENRICHMENT_MIN_CONTENT_LENGTH", 500),
			ConcurrencyMultiplier: getEnvAsInt("ENRICHMENT_CONCURRENCY_MULTIPLIER", 2),
			SkipEnriched:          getEnvAsBool("ENRICHMENT_SKIP_ENRICHED", true),
			CallTimeout:           getEnvAsDuration("ENRICHMENT_CALL_TIMEOUT", 90*time.Second),
		},
		Notifications: NotificationConfig{
			SMTPHost:              getEnv("SMTP_HOST", ""),
			SMTPPort:              getEnvAsInt("SMTP_PORT", 587),
			SMTPUser:              getEnv("SMTP_USER", ""),
			SMTPPassword:          getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:              getEnv("SMTP_FROM", "noreply@billtracker.local"),
			WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
			WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
			MaxRetries:            getEnvAsInt("NOTIFICATION_MAX_RETRIES", 3),
			RetryDelay:            getEnvAsDuration("NOTIFICATION_RETRY_DELAY", 5*time.Second),
			AppBaseURL:            getEnv("APP_BASE_URL", "http://localhost:8080"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Enrichment.ConcurrencyMultiplier <= 0 {
		return fmt.Errorf("ENRICHMENT_CONCURRENCY_MULTIPLIER must be positive, got %d", c.Enrichment.ConcurrencyMultiplier)
	}
	if c.Enrichment.MinContentLength < 0 {
		return fmt.Errorf("ENRICHMENT_MIN_CONTENT_LENGTH must not be negative, got %d", c.Enrichment.MinContentLength)
	}
	if c.Enrichment.CallTimeout <= 0 {
		return fmt.Errorf("ENRICHMENT_CALL_TIMEOUT must be positive")
	}
	if c.Server.CacheWarmInterval <= 0 {
		return fmt.Errorf("CACHE_WARM_INTERVAL must be positive")
	}
	if c.Notifications.MaxRetries < 1 {
		return fmt.Errorf("NOTIFICATION_MAX_RETRIES must be at least 1, got %d", c.Notifications.MaxRetries)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BillsPath returns the location of the bill dataset document.
func (c *StorageConfig) BillsPath() string {
	return filepath.Join(c.DataDir, c.BillsFile)
}

// ScrapePath returns the default location of raw scraper output.
func (c *StorageConfig) ScrapePath() string {
	return filepath.Join(c.DataDir, c.ScrapeFile)
}

// SMTPAddr returns host:port of the mail relay.
func (c *NotificationConfig) SMTPAddr() string {
	return fmt.Sprintf("%s:%d", c.SMTPHost, c.SMTPPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
