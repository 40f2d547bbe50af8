package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nshruti113/netguard-dashboard/internal/models"
	"github.com/nshruti113/netguard-dashboard/internal/view"
)

// prompt asks for a value on stderr. Secrets are read without echo when
// stdin is a terminal.
func (a *app) prompt(label string, secret bool) (string, error) {
	fmt.Fprintf(a.errOut, "%s: ", label)
	if f, ok := a.in.(*os.File); ok && secret && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.errOut)
		if err != nil {
			return "", wrap("PROMPT_FAIL", ExitIO, "cannot read password", err)
		}
		return string(b), nil
	}

	if a.lines == nil {
		a.lines = bufio.NewReader(a.in)
	}
	line, err := a.lines.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && line == "" {
		return "", wrap("PROMPT_FAIL", ExitIO, "cannot read "+strings.ToLower(label), err)
	}
	return line, nil
}

func (a *app) promptMissing(value *string, label string, secret bool) error {
	if *value != "" {
		return nil
	}
	v, err := a.prompt(label, secret)
	if err != nil {
		return err
	}
	if v == "" {
		return usageError("%s is required", strings.ToLower(label))
	}
	*value = v
	return nil
}

func (a *app) loginCommand() *cobra.Command {
	var req models.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.promptMissing(&req.Email, "Email", false); err != nil {
				return err
			}
			if err := a.promptMissing(&req.Password, "Password", true); err != nil {
				return err
			}
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			cred, err := client.Login(cmd.Context(), req)
			if err != nil {
				return err
			}
			colorGreen.Fprintf(a.out, "Logged in as %s\n", orUnknown(cred.Email))
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func (a *app) registerCommand() *cobra.Command {
	var req models.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in with it",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.promptMissing(&req.Email, "Email", false); err != nil {
				return err
			}
			if err := a.promptMissing(&req.Password, "Password", true); err != nil {
				return err
			}
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			cred, err := client.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			colorGreen.Fprintf(a.out, "Registered and logged in as %s\n", orUnknown(cred.Email))
			return nil
		},
	}
	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "display name")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "account email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "account password (prompted when omitted)")
	return cmd
}

func (a *app) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session token",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.apiClient()
			if err != nil {
				return err
			}
			if err := client.Logout(); err != nil {
				return wrap("SESSION_WRITE", ExitIO, "cannot remove the session", err)
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the network status",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.requireCredential()
			if err != nil {
				return err
			}
			st, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(a.out, st)
			}
			printStatus(a.out, st)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) flowsCommand() *cobra.Command {
	var (
		filter view.FlowFilter
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "flows",
		Short: "List network flows, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit < 0 {
				return usageError("--limit must not be negative")
			}
			client, err := a.requireCredential()
			if err != nil {
				return err
			}

			var flows []models.NetworkFlow
			if filter.Search == "" && limit > 0 {
				flows, err = client.RecentFlows(cmd.Context(), limit)
			} else {
				flows, err = client.Flows(cmd.Context())
			}
			if err != nil {
				return err
			}
			flows = view.FilterFlows(flows, filter)
			if limit > 0 {
				flows = view.Recent(flows, limit)
			}

			if asJSON {
				return printJSON(a.out, flows)
			}
			if len(flows) == 0 {
				colorYellow.Fprintln(a.out, "No flows")
				return nil
			}
			printFlows(a.out, flows)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "match address, protocol or application")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most n flows (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) flowCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "flow <id>",
		Short: "Show one flow",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.requireCredential()
			if err != nil {
				return err
			}
			f, err := client.Flow(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(a.out, f)
			}
			printFlow(a.out, f)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) alertsCommand() *cobra.Command {
	var (
		filter view.AlertFilter
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "List security alerts, newest first",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			sev := strings.TrimSpace(filter.Severity)
			if sev != "" && !strings.EqualFold(sev, view.AllSeverities) {
				if _, ok := models.ParseSeverity(sev); !ok {
					return usageError("unknown severity %q, want low, medium, high, critical or all", sev)
				}
			}
			if limit < 0 {
				return usageError("--limit must not be negative")
			}
			client, err := a.requireCredential()
			if err != nil {
				return err
			}
			alerts, err := client.Alerts(cmd.Context())
			if err != nil {
				return err
			}
			alerts = view.FilterAlerts(alerts, filter)
			if limit > 0 {
				alerts = view.Recent(alerts, limit)
			}

			if asJSON {
				return printJSON(a.out, alerts)
			}
			if len(alerts) == 0 {
				colorGreen.Fprintln(a.out, "No alerts")
				return nil
			}
			printAlerts(a.out, alerts)
			return nil
		},
	}
	cmd.Flags().StringVarP(&filter.Search, "search", "s", "", "match the attack type")
	cmd.Flags().StringVar(&filter.Severity, "severity", view.AllSeverities, "low, medium, high, critical or all")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "show at most n alerts (0 for all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (a *app) apiKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey",
		Short: "Show the account's API key",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := a.requireCredential()
			if err != nil {
				return err
			}
			key, err := client.APIKey(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "API key: %s\n", key.Key)
			fmt.Fprintf(a.out, "Created: %s\n", view.DisplayTime(key.CreatedAt))
			return nil
		},
	}
}

func (a *app) configCommand() *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the effective configuration as YAML, secrets masked.
With --remote the server-side configuration document is printed instead.`,
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !remote {
				return a.cfg.Dump(a.out)
			}
			client, err := a.requireCredential()
			if err != nil {
				return err
			}
			doc, err := client.Config(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(a.out, doc)
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "fetch the API's configuration document")
	return cmd
}
