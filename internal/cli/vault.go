package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"shieldvault/internal/vault/models"
	"shieldvault/pkg/domain"
)

func withBackend(cmd *cobra.Command, opts *rootOptions, needCaller bool, fn func(ctx context.Context, b vaultBackend) error) error {
	ctx := cmd.Context()
	b, err := openBackend(ctx, opts, needCaller)
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(ctx, b)
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the vault with --caller as admin",
		Long: "Records the caller as the vault admin. Succeeds once per vault;\n" +
			"remote initialization also needs the operator token.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, true, func(ctx context.Context, b vaultBackend) error {
				return b.Initialize(ctx)
			})
		},
	}
}

func newAdminCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "admin",
		Short: "Print the vault admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, false, func(ctx context.Context, b vaultBackend) error {
				id, err := b.Admin(ctx)
				if err != nil {
					return err
				}
				return render(cmd, opts, models.AdminResponse{Admin: id.String()}, id.String())
			})
		},
	}
}

func newModeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Read or change safety modes",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get [identity]",
		Short: "Print the safety mode of identity (default --caller)",
		Args:  cobra.MaximumNArgs(1),
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
			return withBackend(cmd, opts, false, func(ctx context.Context, b vaultBackend) error {
				mode, err := b.GetMode(ctx, id)
				if err != nil {
					return err
				}
				return render(cmd, opts, models.NewModeResponse(id, mode), fmt.Sprintf("%d %s", mode, mode))
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <mode>",
		Short: "Set the caller's safety mode (0|safe, 1|balanced, 2|degenerate)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := models.ParseSafetyMode(args[0])
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, true, func(ctx context.Context, b vaultBackend) error {
				return b.SetMode(ctx, mode)
			})
		},
	})
	return cmd
}

func parseAction(args []string) (domain.Identity, error) {
	return domain.ParseIdentity(strings.TrimSpace(args[0]))
}

func newExecCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <target> <amount>",
		Short: "Execute a guarded action as --caller",
		Long: "Evaluates the action under the caller's safety mode. A denial is\n" +
			"reported as an error and exits with 10 plus its vault code.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseAction(args)
			if err != nil {
				return err
			}
			amount, err := models.ParseAmount("amount", args[1])
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, true, func(ctx context.Context, b vaultBackend) error {
				d, err := b.ExecuteAction(ctx, target, amount)
				if err != nil {
					return err
				}
				return renderDecision(cmd, opts, d)
			})
		},
	}
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <target> <amount>",
		Short: "Evaluate an action without executing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := parseAction(args)
			if err != nil {
				return err
			}
			amount, err := models.ParseAmount("amount", args[1])
			if err != nil {
				return err
			}
			return withBackend(cmd, opts, true, func(ctx context.Context, b vaultBackend) error {
				d, err := b.CheckAction(ctx, target, amount)
				if err != nil {
					return err
				}
				return renderDecision(cmd, opts, d)
			})
		},
	}
}

func renderDecision(cmd *cobra.Command, opts *rootOptions, d *models.Decision) error {
	lines := []string{fmt.Sprintf("%s (mode %d %s)", d.Outcome, d.Mode, d.Mode)}
	if !d.Allowed() {
		lines[0] = fmt.Sprintf("%s: %s (vault code %d): %s", d.Outcome, d.Kind, d.Kind, d.Reason)
	}
	for _, w := range d.Warnings {
		lines = append(lines, fmt.Sprintf("warning: %s: %s", w.Code, w.Message))
	}
	return render(cmd, opts, models.NewDecisionResponse(d), lines...)
}

func newAllowlistCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allowlist",
		Short: "Manage the contract allowlist",
	}

	type targetRun func(ctx context.Context, cmd *cobra.Command, b vaultBackend, target domain.Identity) error
	// targetCmd parses <target> after the admin gate when op is set, so a
	// non-admin is refused before its input is looked at.
	targetCmd := func(use, short string, op models.AdminOperation, run targetRun) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <target>",
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withBackend(cmd, opts, op != "", func(ctx context.Context, b vaultBackend) error {
					if op != "" {
						if err := b.AuthorizeAdmin(ctx, op); err != nil {
							return err
						}
					}
					target, err := parseAction(args)
					if err != nil {
						return err
					}
					return run(ctx, cmd, b, target)
				})
			},
		}
	}

	cmd.AddCommand(
		targetCmd("add", "Allowlist a contract (admin only)", models.OpAddAllowedContract,
			func(ctx context.Context, _ *cobra.Command, b vaultBackend, target domain.Identity) error {
				return b.AddAllowedContract(ctx, target)
			}),
		targetCmd("remove", "Remove a contract from the allowlist (admin only)", models.OpRemoveAllowedContract,
			func(ctx context.Context, _ *cobra.Command, b vaultBackend, target domain.Identity) error {
				return b.RemoveAllowedContract(ctx, target)
			}),
		targetCmd("has", "Report whether a contract is allowlisted", "",
			func(ctx context.Context, cmd *cobra.Command, b vaultBackend, target domain.Identity) error {
				allowed, err := b.IsAllowed(ctx, target)
				if err != nil {
					return err
				}
				return render(cmd, opts, models.AllowedResponse{Target: target.String(), Allowed: allowed}, fmt.Sprint(allowed))
			}),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List allowlisted contracts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, false, func(ctx context.Context, b vaultBackend) error {
				ids, err := b.ListAllowedContracts(ctx)
				if err != nil {
					return err
				}
				resp := models.NewAllowlistResponse(ids)
				return render(cmd, opts, resp, resp.Contracts...)
			})
		},
	})
	return cmd
}

func newLimitsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Read or update per-mode amount limits",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the Safe and Balanced limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBackend(cmd, opts, false, func(ctx context.Context, b vaultBackend) error {
				l, err := b.Limits(ctx)
				if err != nil {
					return err
				}
				return render(cmd, opts, models.NewLimitsResponse(l),
					"safe "+l.Safe.String(),
					"balanced "+l.Balanced.String(),
				)
			})
		},
	})

	var safe, balanced string
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Update limits (admin only); omitted flags are unchanged",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := models.UpdateLimitsRequest{}
			if cmd.Flags().Changed("safe") {
				req.Safe = json.Number(safe)
			}
			if cmd.Flags().Changed("balanced") {
				req.Balanced = json.Number(balanced)
			}
			return withBackend(cmd, opts, true, func(ctx context.Context, b vaultBackend) error {
				if err := b.AuthorizeAdmin(ctx, models.OpUpdateLimits); err != nil {
					return err
				}
				req.Normalize()
				if err := req.Validate(); err != nil {
					return err
				}
				return b.UpdateLimits(ctx, req.Update())
			})
		},
	}
	setCmd.Flags().StringVar(&safe, "safe", "", "Safe mode limit")
	setCmd.Flags().StringVar(&balanced, "balanced", "", "Balanced mode limit")
	cmd.AddCommand(setCmd)
	return cmd
}
