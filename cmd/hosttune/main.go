package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nnversace/hosttune"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := buildRoot()
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// GlobalFlags holds persistent flags shared by all commands.
type GlobalFlags struct {
	ConfigPath string
	JSON       bool
}

// RunFlags holds flags for apply/status/revert style commands.
type RunFlags struct {
	Modules []string
}

// HistoryFlags holds flags for the history command.
type HistoryFlags struct {
	Limit int
}

func buildRoot() *cobra.Command {
	globalFlags := &GlobalFlags{}
	historyFlags := &HistoryFlags{}

	ht := command{flags: globalFlags}

	root := createRootCommand(ht, globalFlags)
	root.AddCommand(
		createApplyCommand(ht),
		createStatusCommand(ht),
		createRevertCommand(ht),
		createListCommand(ht),
		createHistoryCommand(ht, historyFlags),
		createServeCommand(ht),
		createVersionCommand(),
	)
	return root
}

func createRootCommand(ht command, flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "hosttune [module|all] [apply|status|revert]",
		Short: "Idempotent Linux host tuning reconciler",
		Long: `Hosttune reconciles a fixed set of host tuning modules (network, SSH
hardening, ZRAM swap, DNS forwarder, time sync) against declared desired
state, with backups of every file it overwrites and full revert support.

Examples:
  hosttune                      # interactive per-module confirmation
  hosttune all apply            # apply everything
  hosttune network status       # read-only status of one module
  hosttune ssh-security revert  # restore pre-change state`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return ht.Interactive(cmd.Context())
			}
			verb := "apply"
			if len(args) == 2 {
				verb = args[1]
			}
			switch verb {
			case "apply":
				return ht.Apply(cmd.Context(), RunFlags{Modules: []string{args[0]}})
			case "status":
				return ht.Status(cmd.Context(), RunFlags{Modules: []string{args[0]}})
			case "revert":
				return ht.Revert(cmd.Context(), RunFlags{Modules: []string{args[0]}})
			default:
				return fmt.Errorf("unknown operation %q (want apply, status, or revert)", verb)
			}
		},
	}

	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	root.PersistentFlags().BoolVar(&flags.JSON, "json", false, "emit machine-readable JSON instead of text")
	return root
}

func createApplyCommand(ht command) *cobra.Command {
	runFlags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "apply [module ...]",
		Short: "Apply desired state to the selected modules",
		Long: `Apply reconciles each selected module: probe capabilities, back up the
managed files, write the configuration block, activate it, and verify the
host actually adopted the change. No module selection means all modules.

Examples:
  hosttune apply
  hosttune apply network zram`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runFlags.Modules = args
			return ht.Apply(cmd.Context(), *runFlags)
		},
	}
	return cmd
}

func createStatusCommand(ht command) *cobra.Command {
	runFlags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "status [module ...]",
		Short: "Report probe results without changing anything",
		RunE: func(cmd *cobra.Command, args []string) error {
			runFlags.Modules = args
			return ht.Status(cmd.Context(), *runFlags)
		},
	}
	return cmd
}

func createRevertCommand(ht command) *cobra.Command {
	runFlags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "revert [module ...]",
		Short: "Restore the selected modules to their pre-change state",
		Long: `Revert copies each managed file's first-ever backup over the live file
(removing files that did not exist before the first apply) and restores
service enablement. Installed packages are left in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runFlags.Modules = args
			return ht.Revert(cmd.Context(), *runFlags)
		},
	}
	return cmd
}

func createListCommand(ht command) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered modules in execution order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ht.List(cmd.Context())
		},
	}
}

func createHistoryCommand(ht command, flags *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent reconciliation runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ht.History(cmd.Context(), *flags)
		},
	}
	cmd.Flags().IntVar(&flags.Limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

func createServeCommand(ht command) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP status API and metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ht.Serve(cmd.Context())
		},
	}
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tool version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("hosttune " + hosttune.Version)
		},
	}
}
