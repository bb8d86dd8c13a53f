package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

func newValidateCmd() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Check a workflow file without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := loadWorkflow(args[0], params)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			vr := workflow.Validate(spec)
			if vr.Valid() {
				fmt.Fprintf(out, "Workflow %q is valid (%s).\n", spec.Name, spec.Goal)
				return nil
			}
			fmt.Fprintf(out, "Workflow %q has %d error(s):\n", args[0], len(vr.Errors))
			for _, e := range vr.Errors {
				fmt.Fprintf(out, "  - %s: %s\n", e.Field, e.Message)
			}
			return fmt.Errorf("validation failed")
		},
	}
	cmd.Flags().StringArrayVar(&params, "param", nil, "workflow parameter as key=value (repeatable)")
	return cmd
}

func loadWorkflow(path string, pairs []string) (workflow.Spec, error) {
	params, err := workflow.ParseParams(pairs)
	if err != nil {
		return workflow.Spec{}, err
	}
	return workflow.Load(path, params)
}
