package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Document is an ingested piece of course material. Its text is chunked,
// embedded, and indexed asynchronously by the ingest worker.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Content   string    `json:"content"`
	Status    string    `json:"status"` // "queued", "indexed", "failed"
	CreatedAt time.Time `json:"created_at"`
}

// Interaction records a single answered query.
type Interaction struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UserID        string    `json:"user_id"`
	Query         string    `json:"query"`
	Answer        string    `json:"answer"`
	Status        string    `json:"status"` // "clean", "flagged"
	Tokens        int       `json:"tokens"`
	DurationMs    int64     `json:"duration_ms"`
	QualityIssues string    `json:"quality_issues"` // JSON array stored as text
}

// Job is a unit of background work in the SQLite-backed queue.
type Job struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	PayloadJSON string    `json:"payload_json"`
	Status      string    `json:"status"` // "pending", "running", "completed", "failed"
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
	RunAfter    time.Time `json:"run_after"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	LastError   string    `json:"last_error,omitempty"`
}
