package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mytegroup/billtracker/pkg/config"
	"github.com/mytegroup/billtracker/pkg/retry"
)

// Client represents a PostgreSQL database client
type Client struct {
	db *sql.DB
}

// NewClient creates a new PostgreSQL client with exponential backoff retry
func NewClient(ctx context.Context, cfg *config.DatabaseConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	err = retry.DoWithLog(
		ctx,
		retry.DefaultConfig(),
		"PostgreSQL",
		func() error {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return db.PingContext(pingCtx)
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("PostgreSQL connection attempt failed")
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to PostgreSQL after retries: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("database", cfg.Database).Msg("Successfully connected to PostgreSQL")
	return &Client{db: db}, nil
}

// NewClientFromDB wraps an already opened connection.
func NewClientFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

// DB returns the underlying database connection
func (c *Client) DB() *sql.DB {
	return c.db
}

// Goqu returns a postgres-dialect query builder over the connection
func (c *Client) Goqu() *goqu.Database {
	return goqu.New("postgres", c.db)
}

// SQLX returns the connection wrapped for struct scanning
func (c *Client) SQLX() *sqlx.DB {
	return sqlx.NewDb(c.db, "postgres")
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// Ping verifies the connection to the database
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// EnsureSchema creates the subscription, notification and discussion tables
func (c *Client) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS bill_subscriptions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		bill_href TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (user_id, bill_href)
	)`,
	`CREATE TABLE IF NOT EXISTS notification_preferences (
		user_id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT '',
		email TEXT,
		phone TEXT,
		email_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		sms_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		in_app_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notification_deliveries (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		bill_href TEXT NOT NULL,
		channel TEXT NOT NULL,
		recipient TEXT NOT NULL,
		status TEXT NOT NULL,
		attempts INT NOT NULL,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS discussion_threads (
		id TEXT PRIMARY KEY,
		bill_href TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS discussion_comments (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL REFERENCES discussion_threads(id),
		parent_id TEXT REFERENCES discussion_comments(id),
		user_id TEXT NOT NULL,
		content VARCHAR(500) NOT NULL,
		likes INT NOT NULL DEFAULT 0,
		dislikes INT NOT NULL DEFAULT 0,
		reported BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS comment_reactions (
		comment_id TEXT NOT NULL REFERENCES discussion_comments(id),
		user_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		PRIMARY KEY (comment_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS comment_reports (
		id TEXT PRIMARY KEY,
		comment_id TEXT NOT NULL REFERENCES discussion_comments(id),
		user_id TEXT NOT NULL,
		reason TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS thread_summaries (
		thread_id TEXT PRIMARY KEY REFERENCES discussion_threads(id),
		summary TEXT NOT NULL,
		sentiment TEXT NOT NULL,
		fact_checks JSONB NOT NULL DEFAULT '[]',
		generated_at TIMESTAMPTZ NOT NULL
	)`,
}
