package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	denied          uint64
	totalDurationMs uint64

	mu          sync.Mutex
	transitions map[string]uint64
}

func New() *Collector {
	return &Collector{transitions: make(map[string]uint64)}
}

func (c *Collector) Record(status int, duration time.Duration) {
	if c == nil {
		return
	}
	atomic.AddUint64(&c.totalRequests, 1)
	switch {
	case status >= 500:
		atomic.AddUint64(&c.errorRequests, 1)
	case status == 429:
		atomic.AddUint64(&c.rateLimited, 1)
	case status == 401 || status == 403:
		atomic.AddUint64(&c.denied, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordTransition counts decided requests per "<kind>.<status>" key.
func (c *Collector) RecordTransition(kind, status string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.transitions[kind+"."+status]++
	c.mu.Unlock()
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	denied := atomic.LoadUint64(&c.denied)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.Lock()
	transitions := make(map[string]uint64, len(c.transitions))
	for key, value := range c.transitions {
		transitions[key] = value
	}
	c.mu.Unlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"deniedTotal":      denied,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"transitions":      transitions,
	}
}
