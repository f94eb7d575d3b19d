// Package postgres implements the repository interfaces on PostgreSQL.
// Records are stored as JSONB documents with a few promoted columns for
// filtering and ordering, which keeps the adapter behavior aligned with
// the in-memory document model.
package postgres

import (
	"context"
	stdsql "database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql

	"github.com/typedai/typedai/pkg/store"
)

//go:embed migrations
var migrationsFS embed.FS

// Config holds database connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Validate checks the config for values that would fail at connect time.
func (c Config) Validate() error {
	if c.Password == "" {
		return fmt.Errorf("database password is required")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("max open conns must be positive, got %d", c.MaxOpenConns)
	}
	if c.MaxIdleConns < 0 || c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max idle conns %d must be between 0 and max open conns %d", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

// Client owns the database connection shared by the four stores.
type Client struct {
	db *stdsql.DB
}

// DB returns the underlying connection for health checks and direct
// queries.
func (c *Client) DB() *stdsql.DB { return c.db }

// Close closes the connection pool.
func (c *Client) Close() error { return c.db.Close() }

// Stores returns the repository bundle backed by this client.
func (c *Client) Stores() *store.Stores {
	return &store.Stores{
		Agents:        &AgentStore{db: c.db},
		LlmCalls:      &LlmCallStore{db: c.db},
		ReviewConfigs: &ReviewConfigStore{db: c.db},
		ReviewCaches:  &ReviewCacheStore{db: c.db},
	}
}

// NewClient opens a pooled connection, verifies it, and applies any
// pending embedded migrations.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database config: %w", err)
	}

	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)
	db, err := stdsql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db, cfg.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Client{db: db}, nil
}

// NewClientFromDB wraps an existing connection and applies migrations.
// Used by tests that manage the connection themselves.
func NewClientFromDB(db *stdsql.DB, database string) (*Client, error) {
	if err := runMigrations(db, database); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &Client{db: db}, nil
}

// runMigrations applies the embedded SQL migrations with golang-migrate.
// Migration files are compiled into the binary via go:embed so deploys
// never depend on external files.
func runMigrations(db *stdsql.DB, database string) error {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, database, driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	// Close only the source driver. m.Close() would also close the
	// database driver, which closes the shared *sql.DB.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("failed to close migration source: %w", err)
	}
	return nil
}
