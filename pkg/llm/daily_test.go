package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
)

func TestDailyPlannerUsesModel(t *testing.T) {
	var system, prompt string
	model := CompleterFunc(func(_ context.Context, s, p string) (string, error) {
		system, prompt = s, p
		return "```json\n" + `{"tasks": [
			{"type": "prospect_discovery", "name": "Find Series B fintechs", "description": "Search NYC", "schedule": "daily"},
			{"type": "competitor_watch", "name": "Watch Clari", "description": "News", "enabled": false, "schedule": "weekly"},
			{"type": "cold_calling", "name": "Call everyone", "description": "No"},
			{"type": "outreach_prep", "name": "Prep", "description": "Talking points", "schedule": "fortnightly"}
		], "reasoning": "Focus on fintech."}` + "\n```", nil
	})
	d := &DailyPlanner{Model: model}
	plan, err := d.Plan(context.Background(), profile.Example())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		typ      profile.DailyTaskType
		enabled  bool
		schedule profile.Schedule
	}{
		{"enabled defaults on", profile.TaskProspectDiscovery, true, profile.ScheduleDaily},
		{"explicit off", profile.TaskCompetitorWatch, false, profile.ScheduleWeekly},
		{"bad schedule", profile.TaskOutreachPrep, true, profile.ScheduleDaily},
	}
	if len(plan.Tasks) != len(tests) {
		t.Fatalf("tasks = %+v", plan.Tasks)
	}
	for i, tt := range tests {
		got := plan.Tasks[i]
		if got.Type != tt.typ || got.Enabled != tt.enabled || got.Schedule != tt.schedule {
			t.Errorf("%s: task = %+v", tt.name, got)
		}
	}
	if plan.Reasoning != "Focus on fintech." {
		t.Errorf("reasoning = %q", plan.Reasoning)
	}
	if !strings.Contains(system, "Acme Analytics is a B2B SaaS company.") {
		t.Errorf("system prompt lacks profile summary: %s", system)
	}
	for _, want := range []string{"plan for Acme Analytics", "Competitors: Clari, Gong", "Pain points: Not specified"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestDailyPlannerFallback(t *testing.T) {
	want := profile.DefaultDailyPlan(profile.Example())
	tests := []struct {
		name  string
		model Completer
	}{
		{"model error", failing(errors.New("rate limited"))},
		{"not json", reply("I would suggest prospecting.")},
		{"no usable tasks", reply(`{"tasks": [{"type": "golf", "name": "Play golf"}]}`)},
		{"no model", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := (&DailyPlanner{Model: tt.model}).Plan(context.Background(), profile.Example())
			if err != nil {
				t.Fatal(err)
			}
			if len(plan.Tasks) != len(want.Tasks) || plan.Reasoning != want.Reasoning {
				t.Errorf("plan = %+v, want defaults", plan)
			}
		})
	}
}

func TestDailyPlannerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &DailyPlanner{Model: failing(context.Canceled)}
	if _, err := d.Plan(ctx, profile.Example()); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v", err)
	}
}
