package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshruti113/netguard-dashboard/internal/session"
)

const (
	tick    = 10 * time.Millisecond
	waitFor = 2 * time.Second
)

type authErr struct{}

func (authErr) Error() string     { return "credential rejected" }
func (authErr) AuthFailure() bool { return true }

// recorder collects every snapshot delivered to a listener
type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot[int]
}

func (r *recorder) listen(s Snapshot[int]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

func (r *recorder) states() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]State, len(r.snaps))
	for i, s := range r.snaps {
		out[i] = s.State
	}
	return out
}

func (r *recorder) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snaps)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func newTestPoller(fetch FetchFunc[int], sess session.Session, redirects *atomic.Int32) (*Poller[int], *recorder) {
	p := New("test", fetch, Options{
		Interval: tick,
		Session:  sess,
		OnRedirect: func(string) {
			if redirects != nil {
				redirects.Add(1)
			}
		},
		Logger: quietLogger(),
	})
	rec := &recorder{}
	p.Subscribe(rec.listen)
	return p, rec
}

func TestNoCredentialRedirectsWithoutFetching(t *testing.T) {
	var fetches, redirects atomic.Int32
	p, rec := newTestPoller(func(context.Context) (int, error) {
		fetches.Add(1)
		return 1, nil
	}, session.NewMemory(""), &redirects)

	h := p.Start(context.Background())
	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatal("poller did not stop")
	}

	assert.Zero(t, fetches.Load())
	assert.EqualValues(t, 1, redirects.Load())
	assert.Equal(t, []State{StateUnauthenticated}, rec.states())
	assert.ErrorIs(t, h.Snapshot().Err, ErrNoCredential)
}

func TestInitialLoadThenBackgroundRefresh(t *testing.T) {
	var n atomic.Int32
	p, rec := newTestPoller(func(context.Context) (int, error) {
		return int(n.Add(1)), nil
	}, session.NewMemory("tok"), nil)

	h := p.Start(context.Background())
	defer h.Cancel()

	require.Eventually(t, func() bool { return h.Snapshot().Data >= 3 }, waitFor, tick)

	states := rec.states()
	require.GreaterOrEqual(t, len(states), 4)
	assert.Equal(t, []State{StateLoading, StateReady, StateRefreshing, StateReady}, states[:4])

	snap := h.Snapshot()
	assert.True(t, snap.HasData)
	assert.NoError(t, snap.Err)
	assert.False(t, snap.UpdatedAt.IsZero())
}

func TestBackgroundFailureKeepsData(t *testing.T) {
	var n atomic.Int32
	p, rec := newTestPoller(func(context.Context) (int, error) {
		if n.Add(1) == 1 {
			return 42, nil
		}
		return 0, errors.New("connection refused")
	}, session.NewMemory("tok"), nil)

	h := p.Start(context.Background())
	defer h.Cancel()

	require.Eventually(t, func() bool { return n.Load() >= 4 }, waitFor, tick)

	snap := h.Snapshot()
	assert.Equal(t, 42, snap.Data)
	assert.NoError(t, snap.Err)
	assert.NotContains(t, rec.states(), StateError)
}

func TestBackgroundAuthFailureIsSwallowed(t *testing.T) {
	var n, redirects atomic.Int32
	p, rec := newTestPoller(func(context.Context) (int, error) {
		if n.Add(1) == 1 {
			return 7, nil
		}
		return 0, authErr{}
	}, session.NewMemory("tok"), &redirects)

	h := p.Start(context.Background())
	defer h.Cancel()

	require.Eventually(t, func() bool { return n.Load() >= 3 }, waitFor, tick)
	assert.Zero(t, redirects.Load())
	assert.NotContains(t, rec.states(), StateUnauthenticated)
	assert.Equal(t, 7, h.Snapshot().Data)
}

func TestInitialFailureSurfacesErrorThenRecovers(t *testing.T) {
	var n atomic.Int32
	boom := errors.New("status 500")
	p, _ := newTestPoller(func(context.Context) (int, error) {
		if n.Add(1) == 1 {
			return 0, boom
		}
		return 9, nil
	}, session.NewMemory("tok"), nil)

	var errSeen atomic.Bool
	p.Subscribe(func(s Snapshot[int]) {
		if s.State == StateError && errors.Is(s.Err, boom) {
			errSeen.Store(true)
		}
	})

	h := p.Start(context.Background())
	defer h.Cancel()

	require.Eventually(t, func() bool { return h.Snapshot().State == StateReady }, waitFor, tick)
	assert.True(t, errSeen.Load())
	assert.Equal(t, 9, h.Snapshot().Data)
	assert.NoError(t, h.Snapshot().Err)
}

func TestInitialAuthFailureRedirects(t *testing.T) {
	var fetches, redirects atomic.Int32
	p, rec := newTestPoller(func(context.Context) (int, error) {
		fetches.Add(1)
		return 0, authErr{}
	}, session.NewMemory("stale"), &redirects)

	h := p.Start(context.Background())
	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatal("poller did not stop")
	}

	assert.EqualValues(t, 1, fetches.Load())
	assert.EqualValues(t, 1, redirects.Load())
	assert.Equal(t, []State{StateLoading, StateUnauthenticated}, rec.states())
}

func TestManualRefreshRunsInInitialMode(t *testing.T) {
	var n atomic.Int32
	p, rec := newTestPoller(func(context.Context) (int, error) {
		return int(n.Add(1)), nil
	}, session.NewMemory("tok"), nil)
	p.opts.Interval = time.Hour

	h := p.Start(context.Background())
	defer h.Cancel()

	require.Eventually(t, func() bool { return h.Snapshot().State == StateReady }, waitFor, tick)
	h.Refresh()
	require.Eventually(t, func() bool { return h.Snapshot().Data == 2 }, waitFor, tick)

	assert.Equal(t, []State{StateLoading, StateReady, StateLoading, StateReady}, rec.states())
	assert.True(t, h.Snapshot().Initial)
}

func TestCancelSuppressesLateResult(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	p, rec := newTestPoller(func(ctx context.Context) (int, error) {
		close(started)
		<-release
		return 1, nil
	}, session.NewMemory("tok"), nil)

	h := p.Start(context.Background())
	<-started
	before := rec.len()

	h.Cancel()
	close(release)

	select {
	case <-h.Done():
	case <-time.After(waitFor):
		t.Fatal("poller did not stop")
	}
	assert.Equal(t, before, rec.len())
	assert.Equal(t, StateLoading, h.Snapshot().State)
	assert.False(t, h.Snapshot().HasData)

	h.Cancel()
}

func TestSeedIsVisibleBeforeFirstCycle(t *testing.T) {
	block := make(chan struct{})
	p, _ := newTestPoller(func(ctx context.Context) (int, error) {
		select {
		case <-block:
		case <-ctx.Done():
		}
		return 0, ctx.Err()
	}, session.NewMemory("tok"), nil)
	at := time.Now().Add(-time.Minute)
	p.Seed(5, at)

	h := p.Start(context.Background())
	defer close(block)
	defer h.Cancel()

	snap := h.Snapshot()
	assert.Equal(t, 5, snap.Data)
	assert.True(t, snap.HasData)
	assert.Equal(t, at, snap.UpdatedAt)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "refreshing", StateRefreshing.String())
	assert.Equal(t, "unknown", State(99).String())
}
