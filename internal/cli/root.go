// Package cli implements the netguard command: the dashboard bridge, the
// mock API and a terminal client for the NetGuard REST API.
package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nshruti113/netguard-dashboard/internal/api"
	"github.com/nshruti113/netguard-dashboard/internal/config"
	"github.com/nshruti113/netguard-dashboard/internal/logging"
	"github.com/nshruti113/netguard-dashboard/internal/session"
	"github.com/nshruti113/netguard-dashboard/internal/telemetry"
)

var version = "0.1.0"

// app carries the settings shared by every command
type app struct {
	out    io.Writer
	errOut io.Writer
	in     io.Reader
	lines  *bufio.Reader

	cfgPath  string
	baseURL  string
	logLevel string
	noColor  bool

	cfg         *config.Config
	sess        session.Session
	client      *api.Client
	stopTracing func(context.Context) error
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{in: in, out: out, errOut: errOut}
}

// Execute runs the command line and returns the process exit code
func Execute(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newApp(os.Stdin, os.Stdout, os.Stderr).run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) int {
	root := a.rootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	a.close()
	if err == nil {
		return ExitOK
	}
	ce := classify(err)
	printError(a.errOut, ce)
	return ce.ExitCode
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "netguard",
		Short: "NetGuard dashboard bridge and API client",
		Long: `netguard keeps the views of a NetGuard API polled and serves them to the
dashboard over JSON and WebSocket. It also talks to the API directly from
the terminal and can run a self-contained mock API with simulated traffic.

Examples:
  # Log in and show the network status
  netguard login --email admin@netguard.local
  netguard status

  # Serve the dashboard bridge on :8888
  netguard serve

  # Run the mock API with generated attacks
  netguard mock --attack-percent 25`,
		Version:           version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "config file (default: ./config.yaml or <user config dir>/netguard/config.yaml)")
	pf.StringVar(&a.baseURL, "base-url", "", "NetGuard API base URL, overrides api.base_url")
	pf.StringVar(&a.logLevel, "log-level", "", "log level, overrides log.level")
	pf.BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		a.serveCommand(),
		a.mockCommand(),
		a.loginCommand(),
		a.registerCommand(),
		a.logoutCommand(),
		a.statusCommand(),
		a.flowsCommand(),
		a.flowCommand(),
		a.alertsCommand(),
		a.watchCommand(),
		a.tailCommand(),
		a.apiKeyCommand(),
		a.configCommand(),
	)
	return root
}

// setup loads the configuration, applies flag overrides and configures
// logging and tracing before any command runs.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.noColor {
		color.NoColor = true
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return wrap("CONFIG_INVALID", ExitConfig, "cannot load configuration", err).
			WithHint("check the config file and NETGUARD_* environment variables")
	}
	if a.baseURL != "" {
		cfg.API.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return wrap("CONFIG_INVALID", ExitConfig, "invalid configuration", err)
	}
	a.cfg = cfg

	if err := logging.Setup(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		Output:     a.errOut,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		JSON:       cfg.Log.JSON,
	}); err != nil {
		return wrap("LOG_SETUP", ExitIO, "cannot set up logging", err)
	}

	if cfg.Tracing.Enabled {
		stop, err := telemetry.InitTracer(cfg.Tracing.ServiceName, a.errOut)
		if err != nil {
			return wrap("TRACING_SETUP", ExitRuntime, "cannot set up tracing", err)
		}
		a.stopTracing = stop
	}
	return nil
}

func (a *app) close() {
	if a.stopTracing != nil {
		if err := a.stopTracing(context.Background()); err != nil {
			logging.Logger.WithError(err).Warn("Failed to flush traces")
		}
	}
}

// session opens the credential store: the configured token when one is
// set, the session file otherwise.
func (a *app) session() (session.Session, error) {
	if a.sess != nil {
		return a.sess, nil
	}
	if a.cfg.API.Token != "" {
		a.sess = session.NewMemory(a.cfg.API.Token)
		return a.sess, nil
	}

	path := a.cfg.Session.File
	if path == "" {
		p, err := session.DefaultPath()
		if err != nil {
			return nil, wrap("SESSION_PATH", ExitIO, "cannot locate the session file", err).
				WithHint("set session.file in the config")
		}
		path = p
	}
	f, err := session.NewFile(path)
	if err != nil {
		return nil, wrap("SESSION_READ", ExitIO, "cannot read the session file", err)
	}
	a.sess = f
	return a.sess, nil
}

func (a *app) apiClient() (*api.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	sess, err := a.session()
	if err != nil {
		return nil, err
	}
	client, err := api.NewClient(sess, api.Options{BaseURL: a.cfg.API.BaseURL})
	if err != nil {
		return nil, wrap("CONFIG_INVALID", ExitConfig, "invalid API base URL", err)
	}
	a.client = client
	return client, nil
}

// requireCredential fails early, without a request, when nobody logged in
func (a *app) requireCredential() (*api.Client, error) {
	client, err := a.apiClient()
	if err != nil {
		return nil, err
	}
	if client.Session().Token() == "" {
		return nil, classify(&api.AuthError{Resource: "session", Reason: "no credential"})
	}
	return client, nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return usageError("%s expects %d argument(s), got %d", cmd.CommandPath(), n, len(args))
		}
		return nil
	}
}

// canceled reports whether err only says the command was interrupted
func canceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
