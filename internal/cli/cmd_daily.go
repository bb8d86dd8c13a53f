package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdazzam00/biz-dev-agent/pkg/llm"
	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
)

// dailyView is the JSON form of the daily command.
type dailyView struct {
	Date string              `json:"date"`
	Plan profile.DailyPlan   `json:"plan"`
	Due  []profile.DailyTask `json:"due"`
}

func newDailyCmd(opts *GlobalOpts) *cobra.Command {
	var regenerate, jsonOutput bool
	var date string

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Show the recurring BD plan for the business profile",
		Long: "Show the recurring BD plan for the business profile. The plan is generated on\n" +
			"first use, by the model when one is configured, and saved next to the profile.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				var err error
				if day, err = time.ParseInLocation(time.DateOnly, date, time.Local); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}
			e, err := loadEnv(*opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.close()
			if e.profile == nil {
				return errors.New("no business profile; create one with 'bdagent init --write-profile'")
			}

			plan, err := profile.LoadDailyPlan(e.cfg.DailyPlan)
			if err != nil {
				return err
			}
			if plan == nil || regenerate {
				fresh := profile.DefaultDailyPlan(e.profile)
				if e.model != nil && e.cfg.LLM.Planner {
					planner := &llm.DailyPlanner{Model: e.model, Logger: e.logger}
					if fresh, err = planner.Plan(cmd.Context(), e.profile); err != nil {
						return err
					}
				}
				if err := profile.SaveDailyPlan(e.cfg.DailyPlan, fresh); err != nil {
					return err
				}
				e.logger.Info("daily plan saved", "path", e.cfg.DailyPlan, "tasks", len(fresh.Tasks))
				plan = &fresh
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(dailyView{Date: day.Format(time.DateOnly), Plan: *plan, Due: plan.Due(day)})
			}
			displayDaily(out, *plan, day)
			return nil
		},
	}
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "replace the saved plan")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&date, "date", "", "day to list due tasks for, as YYYY-MM-DD (default today)")
	return cmd
}

func displayDaily(w io.Writer, plan profile.DailyPlan, day time.Time) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTASK\tSCHEDULE\tSTATUS")
	for i, t := range plan.Tasks {
		status := "on"
		if !t.Enabled {
			status = "off"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, t.Name, t.Schedule, status)
	}
	tw.Flush()
	if plan.Reasoning != "" {
		fmt.Fprintf(w, "\nStrategy: %s\n", plan.Reasoning)
	}

	due := plan.Due(day)
	fmt.Fprintf(w, "\nDue %s (%s):\n", day.Format(time.DateOnly), day.Weekday())
	if len(due) == 0 {
		fmt.Fprintln(w, "  nothing scheduled")
	}
	for _, t := range due {
		fmt.Fprintf(w, "  - %s\n    %s\n", t.Name, t.Description)
	}
}
