package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nshruti113/netguard-dashboard/internal/api"
	"github.com/nshruti113/netguard-dashboard/internal/dashboard"
	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/models"
	"github.com/nshruti113/netguard-dashboard/internal/poller"
	"github.com/nshruti113/netguard-dashboard/internal/storage"
)

// View names, used in routes, cache keys and WebSocket events
const (
	ViewDashboard = "dashboard"
	ViewFlows     = "flows"
	ViewAlerts    = "alerts"
)

const (
	loginPath      = "/login"
	persistTimeout = 3 * time.Second
)

var ErrUnknownView = errors.New("unknown view")

// viewState is the JSON rendering of a poller snapshot
type viewState struct {
	View      string       `json:"view"`
	State     poller.State `json:"state"`
	Loading   bool         `json:"loading"`
	HasData   bool         `json:"has_data"`
	UpdatedAt time.Time    `json:"updated_at,omitzero"`
	Error     string       `json:"error,omitempty"`
	Data      any          `json:"data,omitempty"`
}

func stateOf[T any](s poller.Snapshot[T]) viewState {
	vs := viewState{
		View:      s.View,
		State:     s.State,
		Loading:   s.Loading(),
		HasData:   s.HasData,
		UpdatedAt: s.UpdatedAt,
	}
	if s.Err != nil {
		vs.Error = s.Err.Error()
	}
	if s.HasData {
		vs.Data = s.Data
	}
	return vs
}

// mount owns the running handle of one poller. A view that stopped, after
// a redirect for instance, is started again by refresh.
type mount[T any] struct {
	poller *poller.Poller[T]

	mu     sync.Mutex
	handle *poller.Handle[T]
}

func (m *mount[T]) start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil {
		m.handle.Cancel()
	}
	m.handle = m.poller.Start(ctx)
}

func (m *mount[T]) refresh(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle != nil && !closed(m.handle.Done()) {
		m.handle.Refresh()
		return
	}
	m.handle = m.poller.Start(ctx)
}

func (m *mount[T]) stop() {
	m.mu.Lock()
	h := m.handle
	m.handle = nil
	m.mu.Unlock()
	if h != nil {
		h.Cancel()
		<-h.Done()
	}
}

func (m *mount[T]) snapshot() poller.Snapshot[T] {
	m.mu.Lock()
	h := m.handle
	m.mu.Unlock()
	if h == nil {
		return poller.Snapshot[T]{View: m.poller.Name()}
	}
	return h.Snapshot()
}

func closed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Views runs the dashboard, flows and alerts pollers. Every transition is
// pushed to the hub and every fresh result is written to the cache.
type Views struct {
	cache storage.Cache
	hub   *Hub
	agg   *dashboard.Aggregator
	log   *logrus.Entry

	dashboard *mount[dashboard.Snapshot]
	flows     *mount[[]models.NetworkFlow]
	alerts    *mount[[]models.Alert]

	mu        sync.Mutex
	ctx       context.Context
	persisted map[string]time.Time
}

func NewViews(client *api.Client, cache storage.Cache, hub *Hub, interval time.Duration) *Views {
	if cache == nil {
		cache = storage.Nop{}
	}
	v := &Views{
		cache:     cache,
		hub:       hub,
		agg:       dashboard.NewAggregator(client),
		log:       logging.GetLogger().WithField("component", "views"),
		ctx:       context.Background(),
		persisted: make(map[string]time.Time),
	}
	opts := poller.Options{
		Interval:   interval,
		Session:    client.Session(),
		OnRedirect: v.redirect,
	}

	v.dashboard = &mount[dashboard.Snapshot]{poller: poller.New(ViewDashboard, v.agg.Fetch, opts)}
	v.flows = &mount[[]models.NetworkFlow]{poller: poller.New(ViewFlows, client.Flows, opts)}
	v.alerts = &mount[[]models.Alert]{poller: poller.New(ViewAlerts, client.Alerts, opts)}

	v.dashboard.poller.Subscribe(v.onDashboard)
	v.flows.poller.Subscribe(v.onFlows)
	v.alerts.poller.Subscribe(v.onAlerts)
	return v
}

// Start warms every view from the cache and mounts it. The pollers live
// until ctx is done or Stop is called.
func (v *Views) Start(ctx context.Context) {
	v.mu.Lock()
	v.ctx = ctx
	v.mu.Unlock()

	if snap, ok := seedFromCache(ctx, v.cache, v.dashboard.poller); ok {
		v.agg.Seed(snap)
	}
	seedFromCache(ctx, v.cache, v.flows.poller)
	seedFromCache(ctx, v.cache, v.alerts.poller)

	v.dashboard.start(ctx)
	v.flows.start(ctx)
	v.alerts.start(ctx)
}

// Remount restarts every view, e.g. after a new credential was stored
func (v *Views) Remount() {
	ctx := v.baseContext()
	v.dashboard.start(ctx)
	v.flows.start(ctx)
	v.alerts.start(ctx)
}

// Stop cancels every view and waits for its goroutine to exit
func (v *Views) Stop() {
	v.dashboard.stop()
	v.flows.stop()
	v.alerts.stop()
}

// Refresh queues a manual reload of the named view
func (v *Views) Refresh(name string) error {
	ctx := v.baseContext()
	switch name {
	case ViewDashboard:
		v.dashboard.refresh(ctx)
	case ViewFlows:
		v.flows.refresh(ctx)
	case ViewAlerts:
		v.alerts.refresh(ctx)
	default:
		return ErrUnknownView
	}
	return nil
}

func (v *Views) Dashboard() poller.Snapshot[dashboard.Snapshot] { return v.dashboard.snapshot() }
func (v *Views) Flows() poller.Snapshot[[]models.NetworkFlow] { return v.flows.snapshot() }
func (v *Views) Alerts() poller.Snapshot[[]models.Alert] { return v.alerts.snapshot() }

// States returns the lifecycle state of every view
func (v *Views) States() map[string]string {
	return map[string]string{
		ViewDashboard: v.dashboard.snapshot().State.String(),
		ViewFlows:     v.flows.snapshot().State.String(),
		ViewAlerts:    v.alerts.snapshot().State.String(),
	}
}

// events renders the current state of every view as hub events
func (v *Views) events() []Event {
	return []Event{
		{Type: EventView, View: ViewDashboard, Payload: stateOf(v.Dashboard())},
		{Type: EventView, View: ViewFlows, Payload: stateOf(v.Flows())},
		{Type: EventView, View: ViewAlerts, Payload: stateOf(v.Alerts())},
	}
}

func (v *Views) baseContext() context.Context {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ctx
}

func (v *Views) redirect(view string) {
	v.log.WithField("view", view).Warn("View needs a new credential")
	v.hub.Broadcast(Event{
		Type:    EventRedirect,
		View:    view,
		Payload: map[string]string{"to": loginPath},
	})
}

// fresh reports whether a Ready snapshot carries data not yet persisted.
// A background failure also settles in Ready but keeps the old UpdatedAt.
func (v *Views) fresh(view string, at time.Time) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.persisted[view].Equal(at) {
		return false
	}
	v.persisted[view] = at
	return true
}

func (v *Views) store(ctx context.Context, view string, data any) {
	if err := v.cache.StoreSnapshot(ctx, view, data); err != nil {
		v.log.WithError(err).WithField("view", view).Warn("Failed to cache snapshot")
	}
}

func (v *Views) onDashboard(s poller.Snapshot[dashboard.Snapshot]) {
	v.hub.Broadcast(Event{Type: EventView, View: s.View, Payload: stateOf(s)})
	if s.State != poller.StateReady || !v.fresh(s.View, s.UpdatedAt) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	v.store(ctx, s.View, s.Data)
}

func (v *Views) onFlows(s poller.Snapshot[[]models.NetworkFlow]) {
	v.hub.Broadcast(Event{Type: EventView, View: s.View, Payload: stateOf(s)})
	if s.State != poller.StateReady || !v.fresh(s.View, s.UpdatedAt) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	v.store(ctx, s.View, s.Data)

	added, err := v.cache.StoreFlows(ctx, s.Data)
	if err != nil {
		v.log.WithError(err).Warn("Failed to record flow history")
		return
	}
	if added > 0 {
		v.log.WithField("new_flows", added).Debug("Recorded flow history")
	}
}

func (v *Views) onAlerts(s poller.Snapshot[[]models.Alert]) {
	v.hub.Broadcast(Event{Type: EventView, View: s.View, Payload: stateOf(s)})
	if s.State != poller.StateReady || !v.fresh(s.View, s.UpdatedAt) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	v.store(ctx, s.View, s.Data)

	published, err := v.cache.PublishNewAlerts(ctx, s.Data)
	if err != nil {
		v.log.WithError(err).Warn("Failed to publish alerts")
		return
	}
	if published > 0 {
		v.log.WithField("new_alerts", published).Info("Published new alerts")
		v.hub.Broadcast(Event{Type: EventAlerts, Payload: map[string]int{"new": published}})
	}
}

// seedFromCache primes p with the snapshot cached under its name
func seedFromCache[T any](ctx context.Context, cache storage.Cache, p *poller.Poller[T]) (T, bool) {
	var data T
	at, ok, err := cache.LoadSnapshot(ctx, p.Name(), &data)
	if err != nil {
		logging.Logger.WithError(err).WithField("view", p.Name()).Warn("Failed to load cached snapshot")
		return data, false
	}
	if !ok {
		return data, false
	}
	p.Seed(data, at)
	logging.Logger.WithFields(logrus.Fields{
		"view":     p.Name(),
		"saved_at": at,
	}).Info("Warm start from cached snapshot")
	return data, true
}
