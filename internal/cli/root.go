// Package cli implements the shieldvault command: the server and an operator
// client that talks to a running server over gRPC or directly to the
// configured store.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	dErrors "shieldvault/pkg/domain-errors"
)

type rootOptions struct {
	configPath    string
	caller        string
	remote        string
	token         string
	operatorToken string
	output        string
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "shieldvault",
		Short: "Per-identity transaction authorization vault",
		Long: "Gates value-moving actions behind a per-caller safety mode, an\n" +
			"admin-managed contract allowlist and per-mode amount limits.\n\n" +
			"Client commands run against the configured store directly, or\n" +
			"against a running server when --remote is set.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", os.Getenv("SHIELDVAULT_CONFIG"), "Path to config YAML")
	flags.StringVar(&opts.caller, "caller", os.Getenv("SHIELDVAULT_CALLER"), "Identity acting on the vault (account-hash-... or hash-...)")
	flags.StringVar(&opts.remote, "remote", "", "gRPC address of a running server")
	flags.StringVar(&opts.token, "token", "", "Bearer token for --remote; minted for --caller when empty")
	flags.StringVar(&opts.operatorToken, "operator-token", os.Getenv("SHIELDVAULT_OPERATOR_TOKEN"), "Operator token required by remote initialize")
	flags.StringVarP(&opts.output, "output", "o", "text", "Output format (text|json)")

	cmd.AddCommand(
		newServeCmd(opts),
		newInitCmd(opts),
		newAdminCmd(opts),
		newModeCmd(opts),
		newExecCmd(opts),
		newCheckCmd(opts),
		newAllowlistCmd(opts),
		newLimitsCmd(opts),
		newTokenCmd(opts),
		newAuditCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the root command and exits non-zero on failure. Vault policy
// errors exit with 10 plus their numeric vault code.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var de *dErrors.Error
	if errors.As(err, &de) {
		if n, ok := dErrors.VaultCode(de.Code); ok {
			return 10 + int(n)
		}
	}
	return 1
}
