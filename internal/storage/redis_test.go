package storage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nshruti113/netguard-dashboard/internal/models"
)

func newTestRedis(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := NewRedisClient(context.Background(), Options{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, mr
}

func TestNewRedisClientUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisClient(context.Background(), Options{Addr: addr})
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	r, mr := newTestRedis(t)
	ctx := context.Background()

	var missing []models.Alert
	_, ok, err := r.LoadSnapshot(ctx, "alerts", &missing)
	require.NoError(t, err)
	assert.False(t, ok)

	in := []models.Alert{{ID: "a1", AttackType: "DDoS", Severity: models.SeverityCritical, FlowID: "f1"}}
	require.NoError(t, r.StoreSnapshot(ctx, "alerts", in))

	var out []models.Alert
	savedAt, ok, err := r.LoadSnapshot(ctx, "alerts", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
	assert.WithinDuration(t, time.Now(), savedAt, time.Minute)

	mr.FastForward(DefaultSnapshotTTL + time.Second)
	_, ok, err = r.LoadSnapshot(ctx, "alerts", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreFlowsCountsOnlyNewFlows(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 30, 15, 0, time.UTC)
	r.now = func() time.Time { return now }

	flows := []models.NetworkFlow{
		{ID: "f1", Source: "10.0.0.1", TotalSourceBytes: 100, TotalDestinationBytes: 50, TotalSourcePackets: 3, StartDateTime: now.Add(-2 * time.Minute)},
		{ID: "f2", Source: "10.0.0.1", TotalSourceBytes: 10, StartDateTime: now.Add(-time.Minute)},
		{ID: "f3", Source: "10.0.0.2", TotalDestinationPackets: 4},
	}

	n, err := r.StoreFlows(ctx, flows)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = r.StoreFlows(ctx, flows)
	require.NoError(t, err)
	assert.Zero(t, n, "second poll of the same collection adds nothing")

	history, err := r.RecentFlowHistory(ctx, 5*time.Minute)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "f1", history[0].ID)
	assert.Equal(t, "f3", history[2].ID)

	w, err := r.TrafficWindow(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 3, w.Flows)
	assert.EqualValues(t, 160, w.Bytes)
	assert.EqualValues(t, 7, w.Packets)
	assert.Equal(t, 2, w.UniqueSources)
	require.NotEmpty(t, w.TopSources)
	assert.Equal(t, "10.0.0.1", w.TopSources[0].Address)
	assert.Equal(t, 2, w.TopSources[0].Flows)
	assert.InDelta(t, 66.67, w.TopSources[0].Percentage, 0.01)

	empty, err := r.TrafficWindow(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestStoreFlowsTrimsHistory(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()
	now := time.Now()
	r.now = func() time.Time { return now }

	_, err := r.StoreFlows(ctx, []models.NetworkFlow{
		{ID: "old", StartDateTime: now.Add(-2 * DefaultRetention)},
		{ID: "new", StartDateTime: now.Add(-time.Minute)},
	})
	require.NoError(t, err)

	history, err := r.RecentFlowHistory(ctx, 3*DefaultRetention)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "new", history[0].ID)
}

func TestPublishNewAlerts(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := r.SubscribeAlerts(ctx)
	require.NoError(t, err)

	alerts := []models.Alert{
		{ID: "a1", AttackType: "Port Scanning", Severity: models.SeverityMedium},
		{ID: "a2", AttackType: "DDoS", Severity: models.SeverityCritical},
	}
	n, err := r.PublishNewAlerts(ctx, alerts)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = r.PublishNewAlerts(ctx, alerts)
	require.NoError(t, err)
	assert.Zero(t, n)

	var got []string
	for len(got) < 2 {
		select {
		case a := <-sub:
			got = append(got, a.ID)
			if a.ID == "a2" {
				assert.Equal(t, models.SeverityCritical, a.Severity)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("received %v before timeout", got)
		}
	}
	assert.Equal(t, []string{"a1", "a2"}, got)

	cancel()
	for range sub {
	}
}

var errReset = errors.New("connection reset")

// failingHook fails the named command once passes successful calls of it
// have gone through, while armed.
type failingHook struct {
	cmd    string
	armed  atomic.Bool
	passes atomic.Int32
}

func (h *failingHook) hit(name string) bool {
	return h.armed.Load() && name == h.cmd && h.passes.Add(-1) < 0
}

func (h *failingHook) DialHook(next redis.DialHook) redis.DialHook { return next }

func (h *failingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if h.hit(cmd.Name()) {
			cmd.SetErr(errReset)
			return errReset
		}
		return next(ctx, cmd)
	}
}

func (h *failingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		for _, cmd := range cmds {
			if h.hit(cmd.Name()) {
				for _, c := range cmds {
					c.SetErr(errReset)
				}
				return errReset
			}
		}
		return next(ctx, cmds)
	}
}

func TestPublishFailureReleasesUndelivered(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()
	hook := &failingHook{cmd: "publish"}
	r.client.AddHook(hook)

	alerts := []models.Alert{
		{ID: "a1", AttackType: "DDoS"},
		{ID: "a2", AttackType: "Port Scanning"},
		{ID: "a3", AttackType: "Brute Force"},
	}

	hook.passes.Store(1)
	hook.armed.Store(true)
	n, err := r.PublishNewAlerts(ctx, alerts)
	require.ErrorIs(t, err, errReset)
	assert.Equal(t, 1, n, "a1 went out before the failure")

	hook.armed.Store(false)
	n, err = r.PublishNewAlerts(ctx, alerts)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "a2 and a3 are published on retry")

	n, err = r.PublishNewAlerts(ctx, alerts)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoreFlowsFailureReleasesClaims(t *testing.T) {
	r, _ := newTestRedis(t)
	ctx := context.Background()
	now := time.Now()
	r.now = func() time.Time { return now }
	hook := &failingHook{cmd: "zadd"}
	r.client.AddHook(hook)

	flows := []models.NetworkFlow{
		{ID: "f1", StartDateTime: now.Add(-time.Minute)},
		{ID: "f2", StartDateTime: now.Add(-30 * time.Second)},
	}

	hook.armed.Store(true)
	n, err := r.StoreFlows(ctx, flows)
	require.ErrorIs(t, err, errReset)
	assert.Zero(t, n)

	hook.armed.Store(false)
	n, err = r.StoreFlows(ctx, flows)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	history, err := r.RecentFlowHistory(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestNopCache(t *testing.T) {
	var c Cache = Nop{}
	ctx := context.Background()

	require.NoError(t, c.StoreSnapshot(ctx, "x", 1))
	var v int
	_, ok, err := c.LoadSnapshot(ctx, "x", &v)
	require.NoError(t, err)
	assert.False(t, ok)
	n, err := c.PublishNewAlerts(ctx, []models.Alert{{ID: "a"}})
	require.NoError(t, err)
	assert.Zero(t, n)
}
