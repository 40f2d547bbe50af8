package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/models"
)

const (
	AlertsChannel = "netguard:alerts"

	snapshotPrefix  = "netguard:snapshot:"
	flowHistoryKey  = "netguard:flows:history"
	seenFlowPrefix  = "netguard:seen:flow:"
	seenAlertPrefix = "netguard:seen:alert:"
	windowPrefix    = "netguard:window:"

	DefaultSnapshotTTL = 24 * time.Hour
	DefaultRetention   = time.Hour
)

// Cache persists what the bridge has seen so it can warm start and share
// new alerts with other processes.
type Cache interface {
	StoreSnapshot(ctx context.Context, view string, v any) error
	LoadSnapshot(ctx context.Context, view string, dst any) (time.Time, bool, error)
	StoreFlows(ctx context.Context, flows []models.NetworkFlow) (int, error)
	RecentFlowHistory(ctx context.Context, since time.Duration) ([]models.NetworkFlow, error)
	TrafficWindow(ctx context.Context, at time.Time) (*models.TrafficWindow, error)
	PublishNewAlerts(ctx context.Context, alerts []models.Alert) (int, error)
	Close() error
}

type Options struct {
	Addr        string
	Password    string
	DB          int
	SnapshotTTL time.Duration
	Retention   time.Duration
}

type RedisClient struct {
	client      *redis.Client
	snapshotTTL time.Duration
	retention   time.Duration
	now         func() time.Time
}

var _ Cache = (*RedisClient)(nil)

func NewRedisClient(ctx context.Context, opts Options) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	r := &RedisClient{
		client:      client,
		snapshotTTL: opts.SnapshotTTL,
		retention:   opts.Retention,
		now:         time.Now,
	}
	if r.snapshotTTL <= 0 {
		r.snapshotTTL = DefaultSnapshotTTL
	}
	if r.retention <= 0 {
		r.retention = DefaultRetention
	}
	return r, nil
}

type envelope struct {
	SavedAt time.Time       `json:"saved_at"`
	Data    json.RawMessage `json:"data"`
}

// StoreSnapshot saves the last good value of a view
func (r *RedisClient) StoreSnapshot(ctx context.Context, view string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", view, err)
	}
	blob, err := json.Marshal(envelope{SavedAt: r.now().UTC(), Data: data})
	if err != nil {
		return err
	}
	return r.client.Set(ctx, snapshotPrefix+view, blob, r.snapshotTTL).Err()
}

// LoadSnapshot decodes the saved value of a view into dst. ok is false when
// nothing was saved or the entry expired.
func (r *RedisClient) LoadSnapshot(ctx context.Context, view string, dst any) (time.Time, bool, error) {
	blob, err := r.client.Get(ctx, snapshotPrefix+view).Bytes()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return time.Time{}, false, fmt.Errorf("decode %s snapshot: %w", view, err)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		return time.Time{}, false, fmt.Errorf("decode %s snapshot: %w", view, err)
	}
	return env.SavedAt, true, nil
}

// StoreFlows adds flows not seen before to the time-ordered history and
// the per-minute counters. It returns how many were new. When the write
// fails the flows are unclaimed so the next poll records them.
func (r *RedisClient) StoreFlows(ctx context.Context, flows []models.NetworkFlow) (int, error) {
	id := func(i int) string { return flows[i].ID }
	fresh, err := r.claim(ctx, seenFlowPrefix, len(flows), id)
	if err != nil {
		return 0, err
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	now := r.now()
	pipe := r.client.Pipeline()
	for _, i := range fresh {
		f := flows[i]
		data, err := json.Marshal(f)
		if err != nil {
			r.release(ctx, seenFlowPrefix, fresh, id)
			return 0, err
		}
		at := f.StartDateTime
		if at.IsZero() {
			at = now
		}
		pipe.ZAdd(ctx, flowHistoryKey, redis.Z{
			Score:  float64(at.Unix()),
			Member: string(data),
		})
		r.updateCounters(ctx, pipe, f, now)
	}

	cutoff := now.Add(-r.retention).Unix()
	pipe.ZRemRangeByScore(ctx, flowHistoryKey, "-inf", "("+strconv.FormatInt(cutoff, 10))

	if _, err := pipe.Exec(ctx); err != nil {
		r.release(ctx, seenFlowPrefix, fresh, id)
		return 0, fmt.Errorf("store flows: %w", err)
	}
	return len(fresh), nil
}

// updateCounters queues the per-minute aggregates for one new flow
func (r *RedisClient) updateCounters(ctx context.Context, pipe redis.Pipeliner, f models.NetworkFlow, now time.Time) {
	key := windowKey(now)

	pipe.HIncrBy(ctx, key, "flows", 1)
	pipe.HIncrBy(ctx, key, "bytes", f.TotalSourceBytes+f.TotalDestinationBytes)
	pipe.HIncrBy(ctx, key, "packets", f.TotalSourcePackets+f.TotalDestinationPackets)
	if f.Source != "" {
		pipe.PFAdd(ctx, key+":sources", f.Source)
		pipe.ZIncrBy(ctx, key+":source_counts", 1, f.Source)
	}

	pipe.Expire(ctx, key, r.retention)
	pipe.Expire(ctx, key+":sources", r.retention)
	pipe.Expire(ctx, key+":source_counts", r.retention)
}

func windowKey(t time.Time) string {
	return windowPrefix + strconv.FormatInt(t.Truncate(time.Minute).Unix(), 10)
}

// RecentFlowHistory returns flows that started within the last since,
// oldest first.
func (r *RedisClient) RecentFlowHistory(ctx context.Context, since time.Duration) ([]models.NetworkFlow, error) {
	from := r.now().Add(-since).Unix()

	results, err := r.client.ZRangeByScore(ctx, flowHistoryKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(from, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, err
	}

	flows := make([]models.NetworkFlow, 0, len(results))
	for _, result := range results {
		var f models.NetworkFlow
		if err := json.Unmarshal([]byte(result), &f); err != nil {
			continue
		}
		flows = append(flows, f)
	}
	return flows, nil
}

// TrafficWindow returns the counters of the minute containing at, or nil
// when nothing was recorded then.
func (r *RedisClient) TrafficWindow(ctx context.Context, at time.Time) (*models.TrafficWindow, error) {
	key := windowKey(at)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}

	unique, err := r.client.PFCount(ctx, key+":sources").Result()
	if err != nil {
		unique = 0
	}

	top, err := r.client.ZRevRangeWithScores(ctx, key+":source_counts", 0, 9).Result()
	if err != nil {
		return nil, err
	}

	w := &models.TrafficWindow{
		Start:         at.Truncate(time.Minute),
		UniqueSources: int(unique),
		TopSources:    make([]models.SourceCount, 0, len(top)),
	}
	w.Flows, _ = strconv.Atoi(fields["flows"])
	w.Bytes, _ = strconv.ParseInt(fields["bytes"], 10, 64)
	w.Packets, _ = strconv.ParseInt(fields["packets"], 10, 64)

	for _, z := range top {
		addr, _ := z.Member.(string)
		sc := models.SourceCount{Address: addr, Flows: int(z.Score)}
		if w.Flows > 0 {
			sc.Percentage = z.Score / float64(w.Flows) * 100
		}
		w.TopSources = append(w.TopSources, sc)
	}
	return w, nil
}

// PublishNewAlerts publishes alerts not seen before on AlertsChannel and
// returns how many were published. On a failed publish the alerts not yet
// delivered are unclaimed and the count so far is returned with the error.
func (r *RedisClient) PublishNewAlerts(ctx context.Context, alerts []models.Alert) (int, error) {
	id := func(i int) string { return alerts[i].ID }
	fresh, err := r.claim(ctx, seenAlertPrefix, len(alerts), id)
	if err != nil {
		return 0, err
	}

	for n, i := range fresh {
		data, err := json.Marshal(alerts[i])
		if err == nil {
			err = r.client.Publish(ctx, AlertsChannel, data).Err()
		}
		if err != nil {
			r.release(ctx, seenAlertPrefix, fresh[n:], id)
			return n, fmt.Errorf("publish alert %s: %w", alerts[i].ID, err)
		}
	}
	return len(fresh), nil
}

// claim marks ids as seen for the retention period and returns the indexes
// of those that were not seen before.
func (r *RedisClient) claim(ctx context.Context, prefix string, n int, id func(int) string) ([]int, error) {
	if n == 0 {
		return nil, nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.BoolCmd, n)
	for i := 0; i < n; i++ {
		cmds[i] = pipe.SetNX(ctx, prefix+id(i), 1, r.retention)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("mark seen: %w", err)
	}

	fresh := make([]int, 0, n)
	for i, cmd := range cmds {
		if cmd.Val() {
			fresh = append(fresh, i)
		}
	}
	return fresh, nil
}

// release drops the seen markers of the given indexes. It runs after a
// failed write, possibly with ctx already cancelled.
func (r *RedisClient) release(ctx context.Context, prefix string, idx []int, id func(int) string) {
	if len(idx) == 0 {
		return
	}
	keys := make([]string, len(idx))
	for k, i := range idx {
		keys[k] = prefix + id(i)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		logging.Logger.WithError(err).WithField("keys", len(keys)).Warn("Failed to release seen markers")
	}
}

// SubscribeAlerts streams alerts published on AlertsChannel until ctx is
// done. The subscription is confirmed before it returns.
func (r *RedisClient) SubscribeAlerts(ctx context.Context) (<-chan models.Alert, error) {
	ps := r.client.Subscribe(ctx, AlertsChannel)
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", AlertsChannel, err)
	}

	out := make(chan models.Alert)
	go func() {
		defer close(out)
		defer ps.Close()

		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var a models.Alert
				if err := json.Unmarshal([]byte(msg.Payload), &a); err != nil {
					logging.Logger.WithError(err).Warn("Dropping undecodable alert message")
					continue
				}
				select {
				case out <- a:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}
