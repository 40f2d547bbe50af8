package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/mockapi"
	"github.com/nshruti113/netguard-dashboard/internal/server"
	"github.com/nshruti113/netguard-dashboard/internal/storage"
)

// openCache connects to Redis when it is configured, Nop otherwise
func (a *app) openCache(ctx context.Context) (storage.Cache, error) {
	if a.cfg.Redis.Addr == "" {
		return storage.Nop{}, nil
	}
	r, err := storage.NewRedisClient(ctx, storage.Options{
		Addr:        a.cfg.Redis.Addr,
		Password:    a.cfg.Redis.Password,
		DB:          a.cfg.Redis.DB,
		SnapshotTTL: a.cfg.Redis.SnapshotTTL,
		Retention:   a.cfg.Redis.Retention,
	})
	if err != nil {
		return nil, wrap("REDIS_UNREACHABLE", ExitExternal, "cannot connect to Redis", err).
			WithHint("check redis.addr or leave it empty to run without the cache")
	}
	return r, nil
}

func (a *app) serveCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard bridge",
		Long: `Poll the dashboard, flows and alerts views of the NetGuard API and serve
them as JSON under /api/view, with live updates on /ws.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			gin.SetMode(a.cfg.Server.Mode)

			client, err := a.apiClient()
			if err != nil {
				return err
			}
			cache, err := a.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer cache.Close()

			srv := server.New(client, cache, server.Options{
				Addr:            a.cfg.Server.Addr,
				StaticDir:       a.cfg.Server.StaticDir,
				ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
				PollInterval:    a.cfg.Poll.Interval,
			})
			if err := srv.Run(cmd.Context()); err != nil {
				return wrap("SERVE_FAILED", ExitRuntime, "dashboard bridge stopped", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

func (a *app) mockCommand() *cobra.Command {
	var (
		addr          string
		attackPercent int
		flowsPerTick  int
		tick          time.Duration
		seed          int64
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a mock NetGuard API with simulated traffic",
		Long: `Serve the NetGuard REST API from memory. A simulator adds normal traffic
on every tick and, now and then, one of the attack scenarios; the detector
raises alerts for the attacks it recognises. The configured simulator
account is created on start.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sim := a.cfg.Simulator
			flags := cmd.Flags()
			if flags.Changed("addr") {
				sim.Addr = addr
			}
			if flags.Changed("attack-percent") {
				sim.AttackPercent = attackPercent
			}
			if flags.Changed("flows-per-tick") {
				sim.FlowsPerTick = flowsPerTick
			}
			if flags.Changed("tick") {
				sim.TickInterval = tick
			}
			if sim.AttackPercent < 0 || sim.AttackPercent > 100 {
				return usageError("--attack-percent must be within 0..100")
			}
			if sim.FlowsPerTick < 0 {
				return usageError("--flows-per-tick must not be negative")
			}
			if sim.TickInterval <= 0 {
				return usageError("--tick must be positive")
			}
			gin.SetMode(a.cfg.Server.Mode)
			return a.runMock(cmd.Context(), sim.Addr, sim.TickInterval, mockapi.SimulatorOptions{
				FlowsPerTick:  sim.FlowsPerTick,
				AttackPercent: sim.AttackPercent,
				Seed:          seed,
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "listen address, overrides simulator.addr")
	f.IntVar(&attackPercent, "attack-percent", 0, "chance in percent that a tick carries an attack")
	f.IntVar(&flowsPerTick, "flows-per-tick", 0, "normal flows generated per tick")
	f.DurationVar(&tick, "tick", 0, "simulator tick interval")
	f.Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}

func (a *app) runMock(ctx context.Context, addr string, tick time.Duration, opts mockapi.SimulatorOptions) error {
	log := logging.GetLogger().WithField("component", "mockapi")

	store := mockapi.NewStore(mockapi.StoreOptions{MaxItems: a.cfg.Simulator.MaxFlows})
	if email := a.cfg.Simulator.Email; email != "" {
		if _, _, err := store.Register("admin", email, a.cfg.Simulator.Password); err != nil {
			return wrap("CONFIG_INVALID", ExitConfig, "cannot create the simulator account", err).
				WithHint("check simulator.email and simulator.password")
		}
		opts.Owner, _ = store.UserID(email)
		log.WithField("email", email).Info("Simulator account ready")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	simDone := make(chan struct{})
	go func() {
		defer close(simDone)
		mockapi.NewSimulator(store, opts).Run(ctx, tick)
	}()

	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(mockapi.NewServer(store).Handler(), "netguard-mock"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "base_url": "http://" + listenHost(addr) + "/api"}).
			Info("Mock NetGuard API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		log.Info("Mock NetGuard API shutting down")
		shutdownCtx, stop := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = err
		} else {
			serveErr = <-errCh
		}
	}
	cancel()
	<-simDone

	if serveErr != nil {
		return wrap("SERVE_FAILED", ExitRuntime, "mock API stopped", serveErr)
	}
	return nil
}

// listenHost turns a listen address like ":8000" into a dialable host
func listenHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "127.0.0.1" + addr
	}
	return addr
}
