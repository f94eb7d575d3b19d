// Package queue runs agent executions on a bounded worker pool with
// single-writer claims per agent, heartbeat updates for crash
// detection, and orphan recovery that returns stale executions to a
// resumable state.
package queue

import (
	"errors"
	"time"
)

// Queue errors.
var (
	// ErrQueueFull is returned by Submit when the backlog is at capacity.
	ErrQueueFull = errors.New("execution queue is full")

	// ErrAgentBusy is returned when the agent already has a queued or
	// running execution on this pod.
	ErrAgentBusy = errors.New("agent already has an active execution")

	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("worker pool is stopped")
)

// Config controls pool sizing and crash-detection timing.
type Config struct {
	// WorkerCount is the number of concurrent executions.
	WorkerCount int

	// QueueDepth bounds the submission backlog.
	QueueDepth int

	// ExecutionTimeout caps a single execution's wall time.
	ExecutionTimeout time.Duration

	// HeartbeatInterval is how often a running execution bumps the
	// agent's lastUpdate.
	HeartbeatInterval time.Duration

	// OrphanThreshold is how stale an executing agent's lastUpdate must
	// be before the orphan scan recovers it.
	OrphanThreshold time.Duration

	// OrphanScanInterval is how often the background scan runs.
	OrphanScanInterval time.Duration
}

// withDefaults fills zero fields with production defaults.
func (c Config) withDefaults() Config {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 5
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = 100
	}
	if c.ExecutionTimeout <= 0 {
		c.ExecutionTimeout = 30 * time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.OrphanThreshold <= 0 {
		c.OrphanThreshold = 5 * time.Minute
	}
	if c.OrphanScanInterval <= 0 {
		c.OrphanScanInterval = time.Minute
	}
	return c
}

// WorkerStatus represents the current state of a worker.
type WorkerStatus string

// Worker status constants.
const (
	WorkerStatusIdle    WorkerStatus = "idle"
	WorkerStatusWorking WorkerStatus = "working"
)

// WorkerHealth is one worker's health snapshot.
type WorkerHealth struct {
	ID             string       `json:"id"`
	Status         WorkerStatus `json:"status"`
	CurrentAgentID string       `json:"currentAgentId,omitempty"`
	TasksProcessed int          `json:"tasksProcessed"`
	LastActivity   time.Time    `json:"lastActivity"`
}

// PoolHealth is the pool-level health snapshot served by the API.
type PoolHealth struct {
	IsHealthy        bool           `json:"isHealthy"`
	PodID            string         `json:"podId"`
	ActiveWorkers    int            `json:"activeWorkers"`
	TotalWorkers     int            `json:"totalWorkers"`
	QueueDepth       int            `json:"queueDepth"`
	ActiveAgents     int            `json:"activeAgents"`
	WorkerStats      []WorkerHealth `json:"workerStats"`
	LastOrphanScan   time.Time      `json:"lastOrphanScan"`
	OrphansRecovered int            `json:"orphansRecovered"`
}
