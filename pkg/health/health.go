// Package health serves /livez and /readyz probes for the store server.
//
// Checks run on a ticker in the background and the endpoints only report the
// last known state. A check flips to failing after FailureThreshold
// consecutive errors and back after SuccessThreshold consecutive passes.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
)

// Probe selects which endpoint a check contributes to.
type Probe int

const (
	Liveness Probe = iota
	Readiness
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Config tunes how checks are scheduled and debounced.
type Config struct {
	Interval         time.Duration `default:"5s"`
	Timeout          time.Duration `default:"2s"`
	FailureThreshold int           `default:"3"`
	SuccessThreshold int           `default:"1"`
}

func (c *Config) setDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
}

type check struct {
	name  string
	probe Probe
	fn    CheckFunc

	failing atomic.Bool
	lastErr atomic.Pointer[string]

	// Only touched by the goroutine running the check.
	fails int
	oks   int
}

func (c *check) observe(err error, cfg Config) {
	if err != nil {
		msg := err.Error()
		c.lastErr.Store(&msg)
		c.oks = 0
		c.fails++
		if c.fails >= cfg.FailureThreshold {
			c.failing.Store(true)
		}
		return
	}
	c.lastErr.Store(nil)
	c.fails = 0
	c.oks++
	if c.oks >= cfg.SuccessThreshold {
		c.failing.Store(false)
	}
}

func (c *check) reason() string {
	if p := c.lastErr.Load(); p != nil {
		return *p
	}
	return "failing"
}

// Checker owns the registered checks and the manual ready flag.
type Checker struct {
	cfg   Config
	ready atomic.Bool

	mu     sync.Mutex
	checks []*check
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New returns a Checker that is not ready until SetReady(true).
func New(cfg Config) *Checker {
	cfg.setDefaults()
	return &Checker{cfg: cfg}
}

// Register adds a check. Checks start passing until proven otherwise.
func (h *Checker) Register(probe Probe, name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks = append(h.checks, &check{name: name, probe: probe, fn: fn})
}

// Start runs every registered check once immediately and then on each tick
// until Stop or ctx cancellation.
func (h *Checker) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
	}
	h.cancel = cancel
	checks := append([]*check(nil), h.checks...)
	h.mu.Unlock()

	for _, c := range checks {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			h.loop(ctx, c)
		}()
	}
}

func (h *Checker) loop(ctx context.Context, c *check) {
	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()
	for {
		h.runOnce(ctx, c)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Checker) runOnce(ctx context.Context, c *check) {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()
	c.observe(c.fn(ctx), h.cfg)
}

// Stop cancels the check goroutines and waits for them to exit.
func (h *Checker) Stop() {
	h.mu.Lock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.mu.Unlock()
	h.wg.Wait()
}

// SetReady flips the manual readiness flag, typically true after startup and
// false when shutdown begins.
func (h *Checker) SetReady(ready bool) {
	h.ready.Store(ready)
}

// failures returns failing checks of the probe keyed by name.
func (h *Checker) failures(probe Probe) map[string]string {
	h.mu.Lock()
	checks := append([]*check(nil), h.checks...)
	h.mu.Unlock()

	out := make(map[string]string)
	for _, c := range checks {
		if c.probe == probe && c.failing.Load() {
			out[c.name] = c.reason()
		}
	}
	return out
}

// Ready reports whether the server is marked ready and every readiness check
// passes.
func (h *Checker) Ready() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

// Handler returns the endpoint for a probe. It responds 200 {"status":"ok"}
// or 503 {"status":"unhealthy","checks":{...}}.
func (h *Checker) Handler(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		failures := h.failures(probe)
		if probe == Readiness && !h.ready.Load() {
			failures["ready"] = "not ready"
		}
		writeStatus(w, failures)
	}
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	names := make([]string, 0, len(failures))
	for name := range failures {
		names = append(names, name)
	}
	sort.Strings(names)

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	e.Obj(func(e *jx.Encoder) {
		if len(names) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	if len(names) == 0 {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(e.Bytes())
}
