package llm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
)

// DailyPlanner asks the model for a recurring BD plan tailored to a
// profile. A failed or empty reply falls back to profile.DefaultDailyPlan.
type DailyPlanner struct {
	Model  Completer
	Logger *slog.Logger
}

type dailyReply struct {
	Tasks []struct {
		Type        profile.DailyTaskType `json:"type"`
		Name        string                `json:"name"`
		Description string                `json:"description"`
		Enabled     *bool                 `json:"enabled"`
		Schedule    profile.Schedule      `json:"schedule"`
	} `json:"tasks"`
	Reasoning string `json:"reasoning"`
}

// Plan returns the daily plan. Only a cancelled context is an error.
func (d *DailyPlanner) Plan(ctx context.Context, p *profile.Profile) (profile.DailyPlan, error) {
	plan, err := d.ask(ctx, p)
	if err == nil && len(plan.Tasks) > 0 {
		return plan, nil
	}
	if ctx.Err() != nil {
		return profile.DailyPlan{}, ctx.Err()
	}
	if err == nil {
		err = fmt.Errorf("model returned no usable tasks")
	}
	d.logger().Warn("model daily plan rejected, using defaults", "error", err)
	return profile.DefaultDailyPlan(p), nil
}

func (d *DailyPlanner) ask(ctx context.Context, p *profile.Profile) (profile.DailyPlan, error) {
	if d.Model == nil {
		return profile.DailyPlan{}, fmt.Errorf("no model configured")
	}
	var reply dailyReply
	if err := completeJSON(ctx, d.Model, fmt.Sprintf(dailySystem, p.Summary()), dailyPrompt(p), &reply); err != nil {
		return profile.DailyPlan{}, err
	}
	plan := profile.DailyPlan{Reasoning: reply.Reasoning}
	for _, t := range reply.Tasks {
		plan.Tasks = append(plan.Tasks, profile.DailyTask{
			Type: t.Type, Name: t.Name, Description: t.Description,
			Enabled: t.Enabled == nil || *t.Enabled, Schedule: t.Schedule,
		})
	}
	return plan.Normalize(), nil
}

func dailyPrompt(p *profile.Profile) string {
	orNone := func(items []string, none string) string {
		if len(items) == 0 {
			return none
		}
		return strings.Join(items, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Create a daily BD task plan for %s.\n\nBusiness context:\n", p.CompanyName)
	fmt.Fprintf(&b, "- Industry: %s\n- Product: %s\n- Target: %s\n", p.Industry, p.ProductDescription, p.TargetCustomer)
	fmt.Fprintf(&b, "- Competitors: %s\n", orNone(p.Competitors, "Unknown"))
	fmt.Fprintf(&b, "- Target industries: %s\n", orNone(p.TargetIndustries, p.Industry))
	fmt.Fprintf(&b, "- Target regions: %s\n", strings.Join(p.Regions(), ", "))
	fmt.Fprintf(&b, "- Pain points: %s\n\n", orNone(p.PainPoints, "Not specified"))
	b.WriteString("Generate specific, actionable daily tasks.")
	return b.String()
}

func (d *DailyPlanner) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return d.Logger
}
