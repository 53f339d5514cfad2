// Package health backs the order server's /livez and /readyz endpoints.
//
// Probes run on their own tickers in the background; the HTTP endpoints only
// report the last observed state and never block on a slow dependency. To
// keep a flaky postgres or redis ping from flapping the pod, a probe must
// fail failAfter times in a row before it reports unhealthy and recovers on
// the first subsequent pass.
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

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

const (
	failAfter    = 3
	recoverAfter = 1
)

// probe is one registered check plus its observed state. exec runs on a
// single goroutine per probe; status is read from HTTP handler goroutines,
// so the observed state sits behind a mutex.
type probe struct {
	name    string
	timeout time.Duration
	fn      CheckFunc

	mu      sync.Mutex
	healthy bool
	lastErr error
	fails   int
	passes  int
}

func newProbe(name string, timeout time.Duration, fn CheckFunc) *probe {
	// Healthy until observed otherwise, so a slow first probe does not
	// bounce the pod out of the load balancer at startup.
	return &probe{name: name, timeout: timeout, fn: fn, healthy: true}
}

// exec runs the check once with its timeout and folds the result into the
// consecutive-failure bookkeeping.
func (p *probe) exec(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.fn(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		p.passes = 0
		p.fails++
		if p.fails >= failAfter {
			p.healthy = false
		}
		return
	}
	p.fails = 0
	p.passes++
	if p.passes >= recoverAfter {
		p.healthy = true
	}
}

// status returns the probe's current verdict and the last observed error.
func (p *probe) status() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.healthy, p.lastErr
}

// Health aggregates the order server's liveness and readiness probes.
// Readiness additionally gates on an accepting flag: the server flips it on
// after migrations and wiring finish, and off again when shutdown starts so
// the gateway drains traffic before the listener closes.
type Health struct {
	accepting atomic.Bool

	mu    sync.Mutex
	live  []*probe
	ready []*probe
	stop  context.CancelFunc
}

// New returns a Health with no probes, not yet accepting traffic.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a process-level probe (goroutine leaks, GC
// stalls). A failing liveness probe gets the pod restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live = append(h.live, newProbe(name, timeout, fn))
}

// AddReadinessCheck registers a dependency probe (postgres, redis). A failing
// readiness probe takes the pod out of rotation without restarting it.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ready = append(h.ready, newProbe(name, timeout, fn))
}

// Start launches one goroutine per registered probe, each running the check
// immediately and then on every interval tick until Stop or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.stop = cancel
	probes := append(append([]*probe(nil), h.live...), h.ready...)
	h.mu.Unlock()

	for _, p := range probes {
		go func(p *probe) {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			p.exec(ctx)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					p.exec(ctx)
				}
			}
		}(p)
	}
}

// Stop cancels the probe goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
}

// SetReady flips the accepting flag. True after startup completes, false at
// the beginning of graceful shutdown.
func (h *Health) SetReady(accepting bool) {
	h.accepting.Store(accepting)
}

// IsReady reports whether the server is accepting traffic and every
// readiness probe is passing.
func (h *Health) IsReady() bool {
	if !h.accepting.Load() {
		return false
	}
	for _, p := range h.snapshot(&h.ready) {
		if ok, _ := p.status(); !ok {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez: 200 while every liveness probe passes, 503
// with the failing probes otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeProbeReport(w, failures(h.snapshot(&h.live)))
}

// ReadyEndpoint serves /readyz: 200 while the server accepts traffic and
// every readiness probe passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failed := failures(h.snapshot(&h.ready))
	if !h.accepting.Load() {
		failed["server"] = "not accepting traffic"
	}
	writeProbeReport(w, failed)
}

// snapshot copies a probe slice under the lock so endpoints never hold it
// while reading probe state.
func (h *Health) snapshot(probes *[]*probe) []*probe {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*probe(nil), *probes...)
}

// failures maps probe name to failure message for every unhealthy probe.
func failures(probes []*probe) map[string]string {
	failed := make(map[string]string)
	for _, p := range probes {
		ok, err := p.status()
		if ok {
			continue
		}
		if err != nil {
			failed[p.name] = err.Error()
		} else {
			failed[p.name] = "probe is unhealthy"
		}
	}
	return failed
}

// writeProbeReport renders {"status":"ok"} or a 503 with the failing probes
// keyed by name, in stable order.
func writeProbeReport(w http.ResponseWriter, failed map[string]string) {
	w.Header().Set("Content-Type", "application/json")

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("status")
	if len(failed) == 0 {
		e.Str("ok")
	} else {
		e.Str("unhealthy")
		names := make([]string, 0, len(failed))
		for name := range failed {
			names = append(names, name)
		}
		sort.Strings(names)

		e.FieldStart("checks")
		e.ObjStart()
		for _, name := range names {
			e.FieldStart(name)
			e.Str(failed[name])
		}
		e.ObjEnd()
	}
	e.ObjEnd()

	if len(failed) > 0 {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write(e.Bytes())
}
