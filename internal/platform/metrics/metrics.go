package metrics

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	PayrollRecalculations   = "payroll.recalculations"
	PayrollDetailsWritten   = "payroll.details_written"
	PayrollEmployeesSkipped = "payroll.employees_skipped"
	PayrollIrregularities   = "payroll.irregularities_flagged"
	PayrollTransitions      = "payroll.transitions"
	PayrollPayslipsIssued   = "payroll.payslips_issued"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	mu       sync.RWMutex
	counters map[string]*atomic.Uint64
}

func New() *Collector {
	return &Collector{counters: make(map[string]*atomic.Uint64)}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// Add increments a named domain counter.
func (c *Collector) Add(name string, delta uint64) {
	if c == nil || delta == 0 {
		return
	}
	c.mu.RLock()
	counter, ok := c.counters[name]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		counter, ok = c.counters[name]
		if !ok {
			counter = &atomic.Uint64{}
			c.counters[name] = counter
		}
		c.mu.Unlock()
	}
	counter.Add(delta)
}

func (c *Collector) Count(name string) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if counter, ok := c.counters[name]; ok {
		return counter.Load()
	}
	return 0
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}

	c.mu.RLock()
	names := make([]string, 0, len(c.counters))
	for name := range c.counters {
		names = append(names, name)
	}
	sort.Strings(names)
	domain := make(map[string]uint64, len(names))
	for _, name := range names {
		domain[name] = c.counters[name].Load()
	}
	c.mu.RUnlock()

	return map[string]any{
		"requestsTotal":    total,
		"errorsTotal":      errs,
		"rateLimitedTotal": limited,
		"avgDurationMs":    avg,
		"totalDurationMs":  totalMs,
		"payroll":          domain,
	}
}
