package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ManagedKeys are the environment variables the services read credentials from.
var ManagedKeys = []string{
	"OPENAI_API_KEY",
	"DB_PASSWORD",
	"REDIS_PASSWORD",
	"TYPESENSE_API_KEY",
	"SMTP_PASSWORD",
	"WHATSAPP_ACCESS_TOKEN",
}

// VaultConfig describes where the KV secret for this deployment lives.
type VaultConfig struct {
	Enabled   bool
	Addr      string
	Token     string
	Namespace string
	Mount     string
	Path      string
	KVVersion int
	Timeout   time.Duration
	Overwrite bool
	// AllowedKeys limits which secret entries are exported. Empty means ManagedKeys.
	AllowedKeys []string
}

// VaultResult summarises one load.
type VaultResult struct {
	Enabled bool
	Path    string
	Loaded  []string
	Skipped []string
	Ignored int
}

// LoadVaultConfigFromEnv builds a VaultConfig from VAULT_* variables.
func LoadVaultConfigFromEnv() VaultConfig {
	cfg := VaultConfig{
		Enabled:   strings.EqualFold(os.Getenv("VAULT_ENABLED"), "true"),
		Addr:      os.Getenv("VAULT_ADDR"),
		Token:     os.Getenv("VAULT_TOKEN"),
		Namespace: os.Getenv("VAULT_NAMESPACE"),
		Mount:     "secret",
		Path:      os.Getenv("VAULT_PATH"),
		KVVersion: 2,
		Timeout:   5 * time.Second,
		Overwrite: strings.EqualFold(os.Getenv("VAULT_OVERWRITE"), "true"),
	}
	if mount := os.Getenv("VAULT_MOUNT"); mount != "" {
		cfg.Mount = mount
	}
	if val := os.Getenv("VAULT_KV_VERSION"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.KVVersion = parsed
		}
	}
	if val := os.Getenv("VAULT_TIMEOUT_MS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			cfg.Timeout = time.Duration(parsed) * time.Millisecond
		}
	}
	return cfg
}

// Loader exports Vault KV entries into the process environment so config.Load sees them.
type Loader struct {
	cfg        VaultConfig
	httpClient *http.Client
	setenv     func(key, value string) error
	getenv     func(key string) string
}

// NewLoader creates a Loader for cfg.
func NewLoader(cfg VaultConfig) *Loader {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Loader{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		setenv:     os.Setenv,
		getenv:     os.Getenv,
	}
}

// Apply fetches the secret and exports the allowed keys.
func (l *Loader) Apply(ctx context.Context) (VaultResult, error) {
	result := VaultResult{Enabled: l.cfg.Enabled, Path: l.cfg.Path}
	if !l.cfg.Enabled {
		return result, nil
	}
	if l.cfg.Addr == "" || l.cfg.Token == "" || l.cfg.Path == "" {
		return result, errors.New("vault configuration incomplete (VAULT_ADDR, VAULT_TOKEN, VAULT_PATH)")
	}

	data, err := l.fetch(ctx)
	if err != nil {
		return result, err
	}

	allowed := l.cfg.AllowedKeys
	if len(allowed) == 0 {
		allowed = ManagedKeys
	}
	allowSet := make(map[string]struct{}, len(allowed))
	for _, k := range allowed {
		allowSet[k] = struct{}{}
	}

	for key, value := range data {
		if _, ok := allowSet[key]; !ok {
			result.Ignored++
			continue
		}
		if !l.cfg.Overwrite && l.getenv(key) != "" {
			result.Skipped = append(result.Skipped, key)
			continue
		}
		if err := l.setenv(key, stringify(value)); err != nil {
			return result, fmt.Errorf("export %s: %w", key, err)
		}
		result.Loaded = append(result.Loaded, key)
	}

	log.Info().
		Str("path", l.cfg.Path).
		Strs("loaded", result.Loaded).
		Int("skipped", len(result.Skipped)).
		Int("ignored", result.Ignored).
		Msg("vault secrets applied")

	return result, nil
}

func (l *Loader) fetch(ctx context.Context) (map[string]interface{}, error) {
	url, err := buildURL(l.cfg.Addr, l.cfg.Mount, l.cfg.Path, l.cfg.KVVersion)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", l.cfg.Token)
	if l.cfg.Namespace != "" {
		req.Header.Set("X-Vault-Namespace", l.cfg.Namespace)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vault request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("vault fetch failed: %s %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode vault response: %w", err)
	}

	outer, ok := payload["data"].(map[string]interface{})
	if !ok {
		return nil, errors.New("vault response missing data")
	}
	if l.cfg.KVVersion == 1 {
		return outer, nil
	}
	inner, ok := outer["data"].(map[string]interface{})
	if !ok {
		return nil, errors.New("vault response missing data for KV v2")
	}
	return inner, nil
}

func buildURL(addr, mount, path string, kvVersion int) (string, error) {
	addr = strings.TrimRight(addr, "/")
	mount = strings.Trim(mount, "/")
	path = strings.TrimLeft(path, "/")
	if addr == "" || mount == "" || path == "" {
		return "", errors.New("vault address, mount, and path must be set")
	}
	if kvVersion == 1 {
		return fmt.Sprintf("%s/v1/%s/%s", addr, mount, path), nil
	}
	return fmt.Sprintf("%s/v1/%s/data/%s", addr, mount, path), nil
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	}
}
