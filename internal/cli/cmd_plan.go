package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/pkg/task"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

func newPlanCmd(opts *GlobalOpts) *cobra.Command {
	var params []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "plan <workflow>",
		Short: "Show the research tasks a workflow would run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadWorkflow(args[0], params)
			if err != nil {
				return err
			}
			e, err := loadEnv(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()
			a, err := e.agent()
			if err != nil {
				return err
			}
			tasks, err := a.Plan(cmd.Context(), spec)
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(workflow.Preview(tasks))
			}
			displayPlan(cmd.OutOrStdout(), spec, tasks)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "workflow parameter as key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

// displayPlan prints a human-readable representation of the plan.
func displayPlan(w io.Writer, spec workflow.Spec, tasks []*task.Task) {
	fmt.Fprintf(w, "Workflow: %s (%s)\n", spec.Name, spec.Goal)
	fmt.Fprintf(w, "Tasks:\n")
	for i, step := range workflow.Preview(tasks) {
		fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, step.Kind, step.Goal)
		tools := strings.Join(step.Tools, ", ")
		if tools == "" {
			tools = "(no tools available)"
		}
		fmt.Fprintf(w, "     Tools: %s\n", tools)
		if len(step.Requires) > 0 {
			fmt.Fprintf(w, "     Requires: %s\n", strings.Join(step.Requires, ", "))
		}
	}
}
