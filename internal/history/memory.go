package history

import (
	"context"
	"sync"
)

// DefaultMemoryCap bounds the in-memory backend so a long-running process
// does not grow without limit.
const DefaultMemoryCap = 1000

type memoryBackend struct {
	mu      sync.Mutex
	records []*FetchRecord
	cap     int
}

// NewMemory creates a bounded in-memory backend. Non-positive caps use
// DefaultMemoryCap. It is the default backend when no DSN is configured.
func NewMemory(capacity int) Backend {
	if capacity <= 0 {
		capacity = DefaultMemoryCap
	}
	return &memoryBackend{cap: capacity}
}

func (b *memoryBackend) Record(_ context.Context, rec *FetchRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	copied := *rec
	b.records = append(b.records, &copied)
	if len(b.records) > b.cap {
		b.records = b.records[len(b.records)-b.cap:]
	}
	return nil
}

func (b *memoryBackend) Query(_ context.Context, filter Filter) ([]*FetchRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Newest first.
	var out []*FetchRecord
	for i := len(b.records) - 1; i >= 0; i-- {
		r := b.records[i]
		if filter.Host != "" && r.Host != filter.Host {
			continue
		}
		if filter.BotGate != nil && r.BotGate != *filter.BotGate {
			continue
		}
		if filter.Since != nil && r.CreatedAt.Before(*filter.Since) {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (b *memoryBackend) Close() error {
	return nil
}
