package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/internal/config"
)

func newToolsCmd(opts *GlobalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the research tools and why any are unavailable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TOOL\tSTATUS\tDESCRIPTION")
			for _, t := range e.registry.List() {
				fmt.Fprintf(tw, "%s\tready\t%s\n", t.Name(), t.Description())
			}
			names := make([]string, 0, len(e.skipped))
			for name := range e.skipped {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(tw, "%s\tunavailable\t%s\n", name, e.skipped[name])
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if e.model == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "\nModel-backed planning and judging off: %s not set\n", config.EnvAnthropic)
			}
			return nil
		},
	}
}
