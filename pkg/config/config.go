// Package config loads the typedai.yaml configuration file, expands
// environment variables inside it, overlays built-in defaults, and
// applies environment overrides for the deployment-level switches.
package config

import (
	"fmt"
	"time"
)

// Config is the resolved runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  string          `yaml:"database"` // memory | postgres
	Auth      string          `yaml:"auth"`     // single_user
	User      UserConfig      `yaml:"user"`
	Queue     QueueConfig     `yaml:"queue"`
	Review    ReviewConfig    `yaml:"review"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// UserConfig describes the single-user-mode identity.
type UserConfig struct {
	ID    string `yaml:"id"`
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

// QueueConfig contains worker pool configuration.
type QueueConfig struct {
	// WorkerCount is the number of concurrent agent executions.
	WorkerCount int `yaml:"worker_count"`

	// QueueDepth bounds the submission backlog.
	QueueDepth int `yaml:"queue_depth"`

	// ExecutionTimeout caps a single execution's wall time.
	ExecutionTimeout time.Duration `yaml:"execution_timeout"`

	// HeartbeatInterval is how often running executions bump lastUpdate.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// OrphanThreshold is how long an executing agent can go without a
	// heartbeat before it is considered orphaned.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`

	// OrphanScanInterval is how often the orphan scan runs.
	OrphanScanInterval time.Duration `yaml:"orphan_scan_interval"`
}

// ReviewConfig contains code-review engine settings.
type ReviewConfig struct {
	// MaxParallel bounds concurrent review LLM calls.
	MaxParallel int `yaml:"max_parallel"`

	// RulesFile optionally seeds review rules from YAML at boot.
	RulesFile string `yaml:"rules_file"`
}

// RetentionConfig controls pruning of expired terminal agents.
type RetentionConfig struct {
	// AgentRetention is how long terminal agents are kept after their
	// last update. Zero disables pruning.
	AgentRetention time.Duration `yaml:"agent_retention"`

	// Interval is the time between prune passes.
	Interval time.Duration `yaml:"interval"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: "memory",
		Auth:     "single_user",
		User: UserConfig{
			ID:   "local",
			Name: "Local User",
		},
		Queue: QueueConfig{
			WorkerCount:        5,
			QueueDepth:         100,
			ExecutionTimeout:   30 * time.Minute,
			HeartbeatInterval:  30 * time.Second,
			OrphanThreshold:    5 * time.Minute,
			OrphanScanInterval: time.Minute,
		},
		Review: ReviewConfig{
			MaxParallel: 5,
		},
		Retention: RetentionConfig{
			Interval: time.Hour,
		},
	}
}

// Validate checks invariants that would otherwise surface as runtime
// failures.
func (c *Config) Validate() error {
	switch c.Database {
	case "memory", "postgres":
	default:
		return fmt.Errorf("invalid database %q (expected memory or postgres)", c.Database)
	}
	if c.Auth != "single_user" {
		return fmt.Errorf("unsupported auth mode %q", c.Auth)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Queue.WorkerCount <= 0 {
		return fmt.Errorf("queue worker_count must be positive")
	}
	if c.Queue.OrphanThreshold <= c.Queue.HeartbeatInterval {
		return fmt.Errorf("orphan_threshold must exceed heartbeat_interval")
	}
	if c.User.ID == "" {
		return fmt.Errorf("user id must not be empty in single-user mode")
	}
	return nil
}
