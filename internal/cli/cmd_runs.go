package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/pkg/agent"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
)

func newRunsCmd(opts *GlobalOpts) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect archived runs",
	}
	cmd.AddCommand(newRunsListCmd(opts), newRunsShowCmd(opts))
	return cmd
}

func newRunsListCmd(opts *GlobalOpts) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List archived runs, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()
			a, err := e.agent()
			if err != nil {
				return err
			}
			runs, err := a.Runs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs yet.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tGOAL\tDONE\tFAILED\tWORKFLOW")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Goal, r.Done, r.Failed, r.Workflow)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func newRunsShowCmd(opts *GlobalOpts) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id|latest>",
		Short: "Re-render the report of an archived run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()
			a, err := e.agent()
			if err != nil {
				return err
			}
			archive, report, err := a.Archived(args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			data, err := agent.Render(report, format)
			if err != nil {
				return err
			}
			if archive.Scratchpad != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Run log: %s\n", archive.Scratchpad)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", synth.FormatMarkdown, "report format: csv, markdown or json")
	return cmd
}
