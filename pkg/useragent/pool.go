package useragent

import (
	"math/rand"
	"sync/atomic"
)

// defaults covers current desktop browser identities. Marketplace search
// pages serve a different (mobile) layout to phone user agents, so the pool
// is desktop-only on purpose.
var defaults = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.6 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

// Pool hands out browser User-Agent strings. Safe for concurrent use.
type Pool struct {
	agents  []string
	counter atomic.Uint64
}

// NewPool creates a pool from the given agents, falling back to the built-in
// set when the slice is empty.
func NewPool(agents []string) *Pool {
	if len(agents) == 0 {
		agents = defaults
	}
	copied := make([]string, len(agents))
	copy(copied, agents)
	return &Pool{agents: copied}
}

// Next returns agents in round-robin order.
func (p *Pool) Next() string {
	idx := p.counter.Add(1) - 1
	return p.agents[idx%uint64(len(p.agents))]
}

// Random returns a uniformly chosen agent.
func (p *Pool) Random() string {
	return p.agents[rand.Intn(len(p.agents))]
}

// Len reports the number of agents in the pool.
func (p *Pool) Len() int {
	return len(p.agents)
}
