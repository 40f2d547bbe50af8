// Package poller keeps one view's snapshot fresh. A view is loaded once in
// initial mode, then re-fetched on a fixed ticker in background mode until
// its Handle is cancelled.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/session"
	"github.com/nshruti113/netguard-dashboard/internal/telemetry"
)

// DefaultInterval is the background refresh period
const DefaultInterval = 5 * time.Second

// ErrNoCredential is reported when a cycle starts without a session token
var ErrNoCredential = errors.New("no credential")

// FetchFunc loads one snapshot of a view
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Listener receives a copy of the view state after every transition.
// It runs on the poller goroutine and must not call Cancel.
type Listener[T any] func(Snapshot[T])

// Options tunes a Poller. Zero values select the defaults.
type Options struct {
	Interval time.Duration
	// Session is consulted before every cycle. Nil skips the check.
	Session session.Session
	// OnRedirect runs once when the view becomes Unauthenticated
	OnRedirect func(view string)
	Logger     *logrus.Logger
}

// Poller describes how to load a view. Start it to begin polling.
type Poller[T any] struct {
	name  string
	fetch FetchFunc[T]
	opts  Options
	log   *logrus.Entry

	mu        sync.Mutex
	listeners []Listener[T]
	seed      Snapshot[T]
}

// authFailure is implemented by errors that mean the credential is unusable
type authFailure interface {
	AuthFailure() bool
}

func New[T any](name string, fetch FetchFunc[T], opts Options) *Poller[T] {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger()
	}
	return &Poller[T]{
		name:  name,
		fetch: fetch,
		opts:  opts,
		log:   logger.WithField("view", name),
		seed:  Snapshot[T]{View: name, State: StateIdle},
	}
}

// Name returns the view name
func (p *Poller[T]) Name() string { return p.name }

// Subscribe registers l for every transition of handles started afterwards
func (p *Poller[T]) Subscribe(l Listener[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Seed primes the snapshot a handle starts from, e.g. with a cached value.
// The state stays Idle until the first cycle.
func (p *Poller[T]) Seed(data T, at time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seed.Data = data
	p.seed.HasData = true
	p.seed.UpdatedAt = at
}

func (p *Poller[T]) snapshotListeners() []Listener[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Listener[T](nil), p.listeners...)
}

func (p *Poller[T]) hasCredential() bool {
	return p.opts.Session == nil || p.opts.Session.Token() != ""
}

// Start mounts the view: the initial load runs immediately on a new
// goroutine and the ticker starts once it settles.
func (p *Poller[T]) Start(ctx context.Context) *Handle[T] {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	seed := p.seed
	p.mu.Unlock()

	h := &Handle[T]{
		p:       p,
		cancel:  cancel,
		refresh: make(chan struct{}, 1),
		done:    make(chan struct{}),
		snap:    seed,
	}
	go h.run(ctx)
	return h
}

// Handle controls one running view
type Handle[T any] struct {
	p       *Poller[T]
	cancel  context.CancelFunc
	refresh chan struct{}
	done    chan struct{}

	// emitMu serializes transitions with Cancel
	emitMu    sync.Mutex
	cancelled bool

	stateMu sync.RWMutex
	snap    Snapshot[T]
}

// Snapshot returns a copy of the current view state
func (h *Handle[T]) Snapshot() Snapshot[T] {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.snap
}

// Refresh queues a manual reload in initial mode. It never blocks; a
// reload already queued absorbs the request.
func (h *Handle[T]) Refresh() {
	select {
	case h.refresh <- struct{}{}:
	default:
	}
}

// Cancel unmounts the view. When it returns no further transition will be
// applied or delivered, even for a fetch that resolves later.
func (h *Handle[T]) Cancel() {
	h.cancel()
	h.emitMu.Lock()
	h.cancelled = true
	h.emitMu.Unlock()
}

// Done is closed when the polling goroutine exits
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

func (h *Handle[T]) run(ctx context.Context) {
	defer close(h.done)

	if !h.cycle(ctx, true) {
		return
	}

	ticker := time.NewTicker(h.p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.cycle(ctx, false) {
				return
			}
		case <-h.refresh:
			if !h.cycle(ctx, true) {
				return
			}
		}
	}
}

// cycle runs one fetch and applies its result. It returns false when the
// loop must stop.
func (h *Handle[T]) cycle(ctx context.Context, initial bool) bool {
	mode := "background"
	if initial {
		mode = "initial"
	}

	if !h.p.hasCredential() {
		h.p.log.Warn("No credential, redirecting to login")
		h.observe(mode, telemetry.OutcomeAuth)
		h.redirect(ErrNoCredential)
		return false
	}

	var applied bool
	if initial {
		applied = h.transition(func(s *Snapshot[T]) {
			s.State = StateLoading
			s.Initial = true
		})
	} else {
		applied = h.transition(func(s *Snapshot[T]) {
			if s.State == StateReady {
				s.State = StateRefreshing
			}
			s.Initial = false
		})
	}
	if !applied {
		return false
	}

	data, err := h.p.fetch(ctx)
	if ctx.Err() != nil {
		return false
	}

	if err != nil {
		var af authFailure
		isAuth := errors.As(err, &af) && af.AuthFailure()
		if isAuth {
			h.observe(mode, telemetry.OutcomeAuth)
		} else {
			h.observe(mode, telemetry.OutcomeTransport)
		}

		if !initial {
			h.p.log.WithError(err).Warn("Background refresh failed, keeping last snapshot")
			return h.transition(func(s *Snapshot[T]) {
				if s.State == StateRefreshing {
					s.State = StateReady
				}
			})
		}
		if isAuth {
			h.p.log.WithError(err).Warn("Credential rejected, redirecting to login")
			h.redirect(err)
			return false
		}
		h.p.log.WithError(err).Error("Initial load failed")
		return h.transition(func(s *Snapshot[T]) {
			s.State = StateError
			s.Err = err
		})
	}

	h.observe(mode, telemetry.OutcomeOK)
	return h.transition(func(s *Snapshot[T]) {
		s.State = StateReady
		s.Data = data
		s.HasData = true
		s.Err = nil
		s.UpdatedAt = time.Now()
	})
}

// transition applies fn and notifies listeners unless the handle has been
// cancelled. It reports whether the update was applied.
func (h *Handle[T]) transition(fn func(*Snapshot[T])) bool {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	if h.cancelled {
		return false
	}

	h.stateMu.Lock()
	fn(&h.snap)
	snap := h.snap
	h.stateMu.Unlock()

	for _, l := range h.p.snapshotListeners() {
		l(snap)
	}
	return true
}

func (h *Handle[T]) redirect(err error) {
	applied := h.transition(func(s *Snapshot[T]) {
		s.State = StateUnauthenticated
		s.Err = err
	})
	if applied && h.p.opts.OnRedirect != nil {
		h.p.opts.OnRedirect(h.p.name)
	}
}

func (h *Handle[T]) observe(mode, outcome string) {
	telemetry.PollCycles.WithLabelValues(h.p.name, mode, outcome).Inc()
}
