package domain

import (
	"math"
	"strings"
	"time"
)

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusProcessing TaskStatus = "processing"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transition may leave this status.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// ExpiryNever marks addresses that never expire.
const ExpiryNever = time.Duration(0)

// BatchTask is the working copy of a batch provisioning job. It lives in the
// ephemeral store under batch_task:<id> and is mutated exclusively by the
// chunk processor via load-modify-save.
type BatchTask struct {
	ID             string        `json:"id"`
	OwnerID        string        `json:"owner_id"`
	Domain         string        `json:"domain"`
	ExpiresIn      time.Duration `json:"expires_in"` // ExpiryNever = addresses never expire
	TotalCount     int           `json:"total_count"`
	ProcessedCount int           `json:"processed_count"`
	CreatedCount   int           `json:"created_count"`
	Status         TaskStatus    `json:"status"`
	Error          string        `json:"error,omitempty"`
	Addresses      []string      `json:"addresses,omitempty"`
	// Version increases on every save so a future store can do
	// compare-and-swap writes. Reads never depend on it.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Remaining returns how many generation attempts the task still has budget for.
func (t *BatchTask) Remaining() int {
	r := t.TotalCount - t.ProcessedCount
	if r < 0 {
		return 0
	}
	return r
}

// ProgressSnapshot is what a single trigger invocation reports back.
type ProgressSnapshot struct {
	Status          TaskStatus `json:"status"`
	TotalCount      int        `json:"total_count"`
	ProcessedCount  int        `json:"processed_count"`
	CreatedCount    int        `json:"created_count"`
	ProgressPercent int        `json:"progress_percent"`
	HasMore         bool       `json:"has_more"`
	Error           string     `json:"error,omitempty"`
}

// Snapshot derives the client-facing progress view from the task.
func (t *BatchTask) Snapshot() ProgressSnapshot {
	pct := 0
	if t.TotalCount > 0 {
		pct = int(math.Round(float64(t.ProcessedCount) / float64(t.TotalCount) * 100))
	}
	return ProgressSnapshot{
		Status:          t.Status,
		TotalCount:      t.TotalCount,
		ProcessedCount:  t.ProcessedCount,
		CreatedCount:    t.CreatedCount,
		ProgressPercent: pct,
		HasMore:         !t.Status.Terminal() && t.ProcessedCount < t.TotalCount,
		Error:           t.Error,
	}
}

// TaskRecord is the permanent history projection, written once a task reaches
// a terminal status. It does not carry the address list.
type TaskRecord struct {
	TaskID       string     `json:"task_id"`
	OwnerID      string     `json:"owner_id"`
	Domain       string     `json:"domain"`
	TotalCount   int        `json:"total_count"`
	CreatedCount int        `json:"created_count"`
	Status       TaskStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  time.Time  `json:"completed_at"`
}

// RecordFromTask reduces a terminal task to its permanent record.
func RecordFromTask(t *BatchTask, completedAt time.Time) TaskRecord {
	return TaskRecord{
		TaskID:       t.ID,
		OwnerID:      t.OwnerID,
		Domain:       t.Domain,
		TotalCount:   t.TotalCount,
		CreatedCount: t.CreatedCount,
		Status:       t.Status,
		Error:        t.Error,
		CreatedAt:    t.CreatedAt,
		CompletedAt:  completedAt,
	}
}

// Trigger is one delivery on the trigger queue asking a worker to advance a
// task by a single chunk. Delivery is at least once.
type Trigger struct {
	TaskID      string `json:"task_id"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
}

// Address is one issued disposable address. Records are never mutated.
type Address struct {
	ID        string    `json:"id"`
	Address   string    `json:"address"`
	OwnerID   string    `json:"owner_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // zero = never expires
}

// NormalizeAddress folds an address to its canonical form. Uniqueness is
// case-insensitive, so storage keys on the normalized string.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// User is the acting identity resolved by the upstream auth layer.
type User struct {
	ID   string
	Role string
}
