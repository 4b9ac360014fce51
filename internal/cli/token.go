package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shieldvault/pkg/domain"
	audit "shieldvault/pkg/platform/audit"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for --caller with the configured signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.caller == "" {
				return errCallerRequired
			}
			caller, err := domain.ParseIdentity(strings.TrimSpace(opts.caller))
			if err != nil {
				return err
			}
			cfg, _, sync, err := loadConfig(opts)
			if err != nil {
				return err
			}
			defer func() { _ = sync() }()
			if ttl > 0 {
				cfg.Server.TokenTTL = ttl
			}
			token, err := mintToken(cfg, caller)
			if err != nil {
				return err
			}
			return render(cmd, opts, map[string]string{"access_token": token, "token_type": "Bearer"}, token)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default server.token_ttl)")
	return cmd
}

func newAuditCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read the audit trail",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list [identity]",
		Short: "List audit events raised by identity (default --caller)",
		Long: "Reads events back from the configured audit sink. Only the\n" +
			"postgres and memory sinks support reading.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := opts.caller
			if len(args) == 1 {
				raw = args[0]
			}
			if raw == "" {
				return errCallerRequired
			}
			id, err := domain.ParseIdentity(strings.TrimSpace(raw))
			if err != nil {
				return err
			}

			a, err := openLocalApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			events, err := a.publisher.List(cmd.Context(), id.String())
			if err != nil {
				return err
			}
			return render(cmd, opts, events, auditLines(events)...)
		},
	})
	return cmd
}

func auditLines(events []audit.Event) []string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		line := fmt.Sprintf("%s %-20s %s", e.Timestamp.Format(time.RFC3339), e.Action, e.Decision)
		if e.Subject != "" {
			line += " " + e.Subject
		}
		if e.Reason != "" {
			line += " (" + e.Reason + ")"
		}
		lines = append(lines, line)
	}
	return lines
}
