// Package history is the operational log of outbound fetch attempts. It
// exists for breaker tuning and abuse-pattern forensics, not as a store of
// lookup results.
package history

import (
	"context"
	"time"
)

// FetchRecord captures one outbound request to a marketplace search page.
type FetchRecord struct {
	ID         string        `json:"id"`
	URL        string        `json:"url"`
	Host       string        `json:"host"`
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	BotGate    bool          `json:"bot_gate"`
	GateMarker string        `json:"gate_marker,omitempty"`
	Error      string        `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// Filter selects fetch records for querying.
type Filter struct {
	Host    string
	BotGate *bool
	Since   *time.Time
	Limit   int
	Offset  int
}

// Backend stores and queries fetch records. Query returns records ordered
// newest first.
type Backend interface {
	Record(ctx context.Context, rec *FetchRecord) error
	Query(ctx context.Context, filter Filter) ([]*FetchRecord, error)
	Close() error
}
