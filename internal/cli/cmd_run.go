package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/internal/inspector"
	"github.com/abdazzam00/biz-dev-agent/pkg/agent"
	"github.com/abdazzam00/biz-dev-agent/pkg/events"
	"github.com/abdazzam00/biz-dev-agent/pkg/export"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

type runOpts struct {
	params  []string
	format  string
	output  string
	toS3    bool
	toSlack bool
	yes     bool
	inspect string
}

func newRunCmd(opts *GlobalOpts) *cobra.Command {
	ro := &runOpts{}

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Plan and run a workflow, then report the sourced results",
		Long: `Plan and run a workflow, then report the sourced results.
The plan is shown for approval first; --yes or a non-interactive stdin skips
the prompt. The report goes to stdout unless --output is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorkflow(cmd, *opts, ro, args[0])
		},
	}
	cmd.Flags().StringArrayVar(&ro.params, "param", nil, "workflow parameter as key=value (repeatable)")
	cmd.Flags().StringVar(&ro.format, "format", "", "report format: csv, markdown or json (default: the workflow's deliverable format)")
	cmd.Flags().StringVarP(&ro.output, "output", "o", "", "write the report to this file")
	cmd.Flags().BoolVar(&ro.toS3, "s3", false, "upload the report to the configured S3 bucket")
	cmd.Flags().BoolVar(&ro.toSlack, "slack", false, "post a summary to the configured Slack channel")
	cmd.Flags().BoolVarP(&ro.yes, "yes", "y", false, "skip the approval prompt")
	cmd.Flags().StringVar(&ro.inspect, "inspect", "", "serve the inspector on this address (e.g. :8080); the plan is then approved there")
	return cmd
}

func runWorkflow(cmd *cobra.Command, opts GlobalOpts, ro *runOpts, path string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	spec, err := loadWorkflow(path, ro.params)
	if err != nil {
		return err
	}
	if vr := workflow.Validate(spec); !vr.Valid() {
		return fmt.Errorf("invalid workflow: %s", vr.Error())
	}
	format := ro.format
	if format == "" {
		format = spec.Deliverable.OutputFormat()
	}

	e, err := loadEnv(opts, stderr)
	if err != nil {
		return err
	}
	defer e.close()

	// Build destinations before running so misconfiguration fails fast.
	dests, err := destinations(ctx, e, ro)
	if err != nil {
		return err
	}

	a, err := e.agent()
	if err != nil {
		return err
	}
	tasks, err := a.Plan(ctx, spec)
	if err != nil {
		return err
	}

	var insp *inspector.Server
	if ro.inspect != "" {
		ictx, stop := context.WithCancel(ctx)
		defer stop()
		if insp, err = startInspector(ictx, e, a, ro.inspect, stderr); err != nil {
			return err
		}
	}

	fmt.Fprintf(stderr, "\n=== Plan ===\n")
	displayPlan(stderr, spec, tasks)
	if !ro.yes {
		ok, err := awaitApproval(ctx, cmd.InOrStdin(), stderr, insp)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stderr, "Run cancelled.")
			return nil
		}
	}

	fmt.Fprintf(stderr, "\n=== Running ===\n")
	progress := a.Bus.Subscribe(events.EventToolCall, events.EventStatus)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range progress {
			fmt.Fprintf(stderr, "  %s %s: %s\n", ev.Type, ev.TaskID, ev.Summary)
		}
	}()
	res, runErr := a.Execute(ctx, path, spec, tasks)
	a.Bus.Unsubscribe(progress)
	<-done
	if res == nil {
		return runErr
	}

	fmt.Fprintf(stderr, "\n=== Result ===\n%s\n", res.Report.Summary())
	if res.Scratchpad != "" {
		fmt.Fprintf(stderr, "Run log: %s\n", res.Scratchpad)
	}

	data, err := agent.Render(res.Report, format)
	if err != nil {
		return err
	}
	if ro.output == "" {
		if _, err := stdout.Write(data); err != nil {
			return err
		}
	}

	art := export.Artifact{
		Name:        artifactName(spec, res.Report.RunID, format),
		ContentType: export.ContentType(format),
		Data:        data,
		Summary:     export.Summarize(res.Report, 10),
	}
	results, exportErr := export.All(context.WithoutCancel(ctx), art, dests...)
	for _, r := range results {
		if r.Error == "" {
			fmt.Fprintf(stderr, "Exported (%s): %s\n", r.Destination, r.Location)
		}
	}
	return errors.Join(runErr, exportErr)
}

func destinations(ctx context.Context, e *env, ro *runOpts) ([]export.Destination, error) {
	var dests []export.Destination
	if ro.output != "" {
		dests = append(dests, &export.File{Path: ro.output, Sandbox: e.sandbox})
	}
	if ro.toS3 {
		s3, err := export.NewS3(ctx, e.platform.S3.Bucket, e.platform.S3.Prefix, e.platform.S3.Region)
		if err != nil {
			return nil, err
		}
		dests = append(dests, s3)
	}
	if ro.toSlack {
		sl, err := export.NewSlack(e.platform.Slack.Token, e.platform.Slack.Channel)
		if err != nil {
			return nil, err
		}
		dests = append(dests, sl)
	}
	return dests, nil
}

func artifactName(spec workflow.Spec, runID, format string) string {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		name = string(spec.Goal)
	}
	name = strings.ReplaceAll(strings.ToLower(name), " ", "-")
	if len(runID) > 8 {
		runID = runID[:8]
	}
	return filepath.Base(name) + "-" + runID + synth.Extension(format)
}

// awaitApproval takes the decision from the inspector when one is serving,
// else from stdin.
func awaitApproval(ctx context.Context, in io.Reader, w io.Writer, insp *inspector.Server) (bool, error) {
	if insp == nil {
		return approve(in, w), nil
	}
	fmt.Fprintln(w, "\nWaiting for approval from the inspector (POST /api/approve or /api/reject)...")
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-insp.Approvals():
		if !a.Approved() && a.Feedback != "" {
			fmt.Fprintf(w, "Rejected: %s\n", a.Feedback)
		}
		return a.Approved(), nil
	}
}

// approve asks for confirmation on an interactive stdin. Piped input is
// treated as approval.
func approve(in io.Reader, w io.Writer) bool {
	if f, ok := in.(*os.File); ok {
		fi, err := f.Stat()
		if err != nil || fi.Mode()&os.ModeCharDevice == 0 {
			return true
		}
	}
	fmt.Fprintf(w, "\nProceed with run? [Y/n] ")
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return answer == "" || answer == "y" || answer == "yes"
}
