package store

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Store wraps the Postgres connection with org-scoped queries. Every read
// and write is filtered by organization; callers never see rows from
// another org.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Account is a connected ad platform account. ExternalID is the
// platform-side customer id used on connector calls.
type Account struct {
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	Platform   string    `json:"platform"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	Currency   string    `json:"currency"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Campaign is a campaign under a connected account.
type Campaign struct {
	ID         string  `json:"id"`
	AccountID  string  `json:"account_id"`
	ExternalID string  `json:"external_id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	Budget     float64 `json:"budget"`
	Platform   string  `json:"platform"`
}

// Thread is one assistant conversation. ExternalRef is the model-side
// thread id; it is written once at creation and never rewritten.
type Thread struct {
	ID            string       `json:"id"`
	OrgID         string       `json:"org_id"`
	UserID        string       `json:"user_id"`
	ExternalRef   string       `json:"external_ref"`
	Title         string       `json:"title"`
	MessageCount  int          `json:"message_count"`
	LastMessageAt sql.NullTime `json:"last_message_at"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
}

// ThreadMessage is one persisted chat turn record. ToolCalls holds the
// per-turn tool audit log as JSON.
type ThreadMessage struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	ToolCalls json.RawMessage `json:"tool_calls,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Insight is a persisted narrative produced by the insight job.
type Insight struct {
	ID               string    `json:"id"`
	OrgID            string    `json:"org_id"`
	Type             string    `json:"type"`
	Priority         string    `json:"priority"`
	Title            string    `json:"title"`
	Summary          string    `json:"summary"`
	DetailedAnalysis string    `json:"detailed_analysis"`
	CreatedAt        time.Time `json:"created_at"`
}

// Action is a recommended follow-up attached to an insight. Its lifecycle
// is independent of the insight's source snapshot.
type Action struct {
	ID          string `json:"id"`
	InsightID   string `json:"insight_id"`
	OrgID       string `json:"org_id"`
	Description string `json:"description"`
	Status      string `json:"status"`
}
