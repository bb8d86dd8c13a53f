// Package cli provides the cobra command tree for bdagent.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// GlobalOpts holds global options parsed before subcommand dispatch.
type GlobalOpts struct {
	Dir     string
	Profile string
	Verbose bool
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &GlobalOpts{}
	rootCmd := &cobra.Command{
		Use:   "bdagent",
		Short: "Evidence-gated lead research agent",
		Long: `bdagent - evidence-gated lead research agent

bdagent turns a workflow (ICP, signals, constraints, deliverable) into research
tasks, runs tool calls until each task's evidence satisfies its completion
policy, and reports only sourced values.`,
		SilenceErrors: true, // main prints errors
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "state directory (default .bdagent)")
	rootCmd.PersistentFlags().StringVar(&opts.Profile, "profile", "", "business profile path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(
		newRunCmd(opts),
		newValidateCmd(),
		newPlanCmd(opts),
		newInitCmd(opts),
		newDailyCmd(opts),
		newToolsCmd(opts),
		newRunsCmd(opts),
		newServeCmd(opts),
		newInspectCmd(opts),
	)
	return rootCmd
}

// Execute runs the root command with the given output writers. An interrupt
// cancels the running command.
func Execute(stdout, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd := NewRootCmd()
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	return rootCmd.ExecuteContext(ctx)
}
