package cli

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/nshruti113/netguard-dashboard/internal/api"
	"github.com/nshruti113/netguard-dashboard/internal/dashboard"
	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/poller"
	"github.com/nshruti113/netguard-dashboard/internal/storage"
)

func (a *app) watchCommand() *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the dashboard and print every new snapshot",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Poll.Interval
			}
			if interval <= 0 {
				return usageError("--interval must be positive")
			}
			client, err := a.requireCredential()
			if err != nil {
				return err
			}

			var (
				last     time.Time
				final    error
				settled  = make(chan struct{})
				markDone sync.Once
			)
			p := poller.New("dashboard", dashboard.NewAggregator(client).Fetch, poller.Options{
				Interval: interval,
				Session:  client.Session(),
				Logger:   logging.GetLogger(),
			})
			p.Subscribe(func(s poller.Snapshot[dashboard.Snapshot]) {
				switch s.State {
				case poller.StateReady:
					if s.UpdatedAt.Equal(last) {
						return
					}
					last = s.UpdatedAt
					printSeparator(a.out)
					printDashboard(a.out, s.Data)
				case poller.StateError:
					colorRed.Fprintf(a.out, "Dashboard unavailable: %v\n", s.Err)
					final = s.Err
				case poller.StateUnauthenticated:
					final = s.Err
					if errors.Is(final, poller.ErrNoCredential) {
						final = &api.AuthError{Resource: "session", Reason: "no credential"}
					}
				default:
					return
				}
				if once || s.State == poller.StateUnauthenticated {
					markDone.Do(func() { close(settled) })
				}
			})

			h := p.Start(cmd.Context())
			select {
			case <-settled:
			case <-h.Done():
			}
			h.Cancel()
			<-h.Done()

			var ae *api.AuthError
			if errors.As(final, &ae) || (once && final != nil) {
				return final
			}
			return nil
		},
	}
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "refresh period (default poll.interval)")
	cmd.Flags().BoolVar(&once, "once", false, "print the first snapshot and exit")
	return cmd
}

func (a *app) tailCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tail",
		Short: "Stream new alerts published by a running bridge",
		Long: `Subscribe to the Redis channel the dashboard bridge publishes new alerts
on and print them as they arrive. Requires redis.addr.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Redis.Addr == "" {
				return newError("REDIS_REQUIRED", ExitConfig, "tail needs a Redis server").
					WithHint("set redis.addr or NETGUARD_REDIS_ADDR to the bridge's Redis")
			}
			ctx := cmd.Context()
			r, err := storage.NewRedisClient(ctx, storage.Options{
				Addr:     a.cfg.Redis.Addr,
				Password: a.cfg.Redis.Password,
				DB:       a.cfg.Redis.DB,
			})
			if err != nil {
				return wrap("REDIS_UNREACHABLE", ExitExternal, "cannot connect to Redis", err)
			}
			defer r.Close()

			alerts, err := r.SubscribeAlerts(ctx)
			if err != nil {
				if canceled(err) {
					return nil
				}
				return wrap("REDIS_UNREACHABLE", ExitExternal, "cannot subscribe to alerts", err)
			}
			fmt.Fprintf(a.errOut, "Waiting for alerts on %s (Ctrl+C to stop)\n", storage.AlertsChannel)
			for alert := range alerts {
				printAlertLine(a.out, alert)
			}
			return nil
		},
	}
}
