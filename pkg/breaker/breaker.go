package breaker

import (
	"sync"
	"time"
)

// Config defines the failure policy for a breaker key.
type Config struct {
	// MaxFailures within FailureWindow before the breaker opens.
	MaxFailures int
	// FailureWindow is how long a recorded failure counts against the key.
	FailureWindow time.Duration
	// Cooldown is how long requests are rejected once the breaker opens.
	Cooldown time.Duration
}

// DefaultConfig returns conservative defaults tuned for scrape targets that
// block by IP: a handful of challenges in a short window means we back off
// for a while rather than burn the address.
func DefaultConfig() Config {
	return Config{
		MaxFailures:   3,
		FailureWindow: 10 * time.Minute,
		Cooldown:      30 * time.Minute,
	}
}

type state struct {
	failures      []time.Time
	cooldownUntil time.Time
}

// Breaker tracks recent failures per logical resource key and rejects
// requests for a key while its cooldown is active. State is process-local;
// a restart closes the breaker early, which we accept because the cooldown
// would have expired on its own anyway.
//
// A single Breaker is shared by every caller hitting the same upstream. It is
// safe for concurrent use.
type Breaker struct {
	cfg Config
	now func() time.Time

	mu   sync.Mutex
	keys map[string]*state
}

// New creates a breaker. now may be nil, in which case time.Now is used;
// tests inject a fake clock.
func New(cfg Config, now func() time.Time) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = DefaultConfig().MaxFailures
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = DefaultConfig().FailureWindow
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultConfig().Cooldown
	}
	if now == nil {
		now = time.Now
	}
	return &Breaker{
		cfg:  cfg,
		now:  now,
		keys: make(map[string]*state),
	}
}

// IsBlocked reports whether the key is currently cooling down. As a side
// effect it prunes failures that have aged out of the window.
func (b *Breaker) IsBlocked(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.keys[key]
	if st == nil {
		return false
	}

	now := b.now()
	if now.Before(st.cooldownUntil) {
		return true
	}

	st.failures = prune(st.failures, now.Add(-b.cfg.FailureWindow))
	return false
}

// RecordFailure registers a failure for the key. Once the number of failures
// inside the window reaches MaxFailures the breaker opens: cooldownUntil is
// set and the failure list is cleared so a fresh count starts after the
// cooldown expires.
func (b *Breaker) RecordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.keys[key]
	if st == nil {
		st = &state{}
		b.keys[key] = st
	}

	now := b.now()
	st.failures = prune(st.failures, now.Add(-b.cfg.FailureWindow))
	st.failures = append(st.failures, now)

	if len(st.failures) >= b.cfg.MaxFailures {
		st.cooldownUntil = now.Add(b.cfg.Cooldown)
		st.failures = nil
	}
}

// RemainingCooldown returns how long the key stays blocked, or zero when the
// breaker is closed.
func (b *Breaker) RemainingCooldown(key string) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.keys[key]
	if st == nil {
		return 0
	}

	remaining := st.cooldownUntil.Sub(b.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset clears all state for the key.
func (b *Breaker) Reset(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.keys, key)
}

// prune drops timestamps older than cutoff. The slice is append-ordered, so
// the first retained index marks the boundary.
func prune(failures []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(failures) && failures[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return failures
	}
	return append(failures[:0], failures[i:]...)
}
