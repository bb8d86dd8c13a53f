package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DailyTaskType is a recurring BD activity.
type DailyTaskType string

const (
	TaskProspectDiscovery   DailyTaskType = "prospect_discovery"
	TaskCompetitorWatch     DailyTaskType = "competitor_watch"
	TaskProductInsights     DailyTaskType = "product_insights"
	TaskMarketSignals       DailyTaskType = "market_signals"
	TaskPartnershipScouting DailyTaskType = "partnership_scouting"
	TaskOutreachPrep        DailyTaskType = "outreach_prep"
)

// DailyTaskTypes lists the known types in plan order.
var DailyTaskTypes = []DailyTaskType{
	TaskProspectDiscovery, TaskCompetitorWatch, TaskProductInsights,
	TaskMarketSignals, TaskPartnershipScouting, TaskOutreachPrep,
}

// Valid reports whether t is a known type.
func (t DailyTaskType) Valid() bool {
	for _, k := range DailyTaskTypes {
		if t == k {
			return true
		}
	}
	return false
}

// Schedule says on which days a daily task runs.
type Schedule string

const (
	ScheduleDaily    Schedule = "daily"
	ScheduleWeekdays Schedule = "weekdays"
	// ScheduleWeekly runs on Mondays.
	ScheduleWeekly Schedule = "weekly"
)

// Due reports whether the schedule includes day.
func (s Schedule) Due(day time.Time) bool {
	switch s {
	case ScheduleWeekdays:
		wd := day.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	case ScheduleWeekly:
		return day.Weekday() == time.Monday
	default:
		return true
	}
}

// DailyTask is one recurring activity in a daily plan.
type DailyTask struct {
	Type        DailyTaskType `yaml:"type" json:"type"`
	Name        string        `yaml:"name" json:"name"`
	Description string        `yaml:"description" json:"description"`
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Schedule    Schedule      `yaml:"schedule" json:"schedule"`
	LastRun     *time.Time    `yaml:"last_run,omitempty" json:"last_run,omitempty"`
}

// DailyPlan is the set of recurring tasks the agent proposes for a business.
type DailyPlan struct {
	Tasks     []DailyTask `yaml:"tasks" json:"tasks"`
	Reasoning string      `yaml:"reasoning,omitempty" json:"reasoning,omitempty"`
}

// Normalize drops tasks with an unknown type or no name and fills in a
// daily schedule where the schedule is missing or unrecognized.
func (d DailyPlan) Normalize() DailyPlan {
	out := DailyPlan{Reasoning: strings.TrimSpace(d.Reasoning)}
	for _, t := range d.Tasks {
		t.Name = strings.TrimSpace(t.Name)
		if !t.Type.Valid() || t.Name == "" {
			continue
		}
		switch t.Schedule {
		case ScheduleDaily, ScheduleWeekdays, ScheduleWeekly:
		default:
			t.Schedule = ScheduleDaily
		}
		out.Tasks = append(out.Tasks, t)
	}
	return out
}

// Due returns the enabled tasks scheduled for day.
func (d DailyPlan) Due(day time.Time) []DailyTask {
	var out []DailyTask
	for _, t := range d.Tasks {
		if t.Enabled && t.Schedule.Due(day) {
			out = append(out, t)
		}
	}
	return out
}

// DefaultDailyPlan builds a plan from the profile alone.
func DefaultDailyPlan(p *Profile) DailyPlan {
	watch := "key players in " + p.Industry
	if len(p.Competitors) > 0 {
		watch = strings.Join(p.Competitors, ", ")
	}
	industries := strings.Join(p.TargetIndustries, ", ")
	if industries == "" {
		industries = p.Industry
	}
	return DailyPlan{
		Tasks: []DailyTask{
			{
				Type: TaskProspectDiscovery,
				Name: fmt.Sprintf("Find new %s prospects", p.TargetCustomer),
				Description: fmt.Sprintf("Search for %s companies in %s that match the ICP. "+
					"Look for companies showing buying signals like hiring, funding, or expansion.",
					industries, strings.Join(p.Regions(), ", ")),
			},
			{
				Type: TaskCompetitorWatch,
				Name: "Monitor competitor activity",
				Description: fmt.Sprintf("Check for news, funding, product launches, and hiring moves from: %s. "+
					"Surface anything that affects our positioning or creates urgency.", watch),
			},
			{
				Type: TaskProductInsights,
				Name: fmt.Sprintf("Gather %s market insights", p.Industry),
				Description: fmt.Sprintf("Find emerging trends, customer pain points, and product opportunities in %s. "+
					"Focus on problems that %s could address.", p.Industry, p.CompanyName),
			},
			{
				Type: TaskMarketSignals,
				Name: "Track market signals and triggers",
				Description: fmt.Sprintf("Monitor funding rounds, M&A activity, leadership changes, and regulatory "+
					"shifts in %s. These are buying triggers for outreach timing.", industries),
			},
			{
				Type: TaskPartnershipScouting,
				Name: "Scout partnership opportunities",
				Description: fmt.Sprintf("Identify companies with complementary products or shared customers "+
					"that could be integration, reseller, or co-marketing partners for %s.", p.CompanyName),
				Schedule: ScheduleWeekly,
			},
			{
				Type: TaskOutreachPrep,
				Name: "Prepare outreach for top prospects",
				Description: fmt.Sprintf("For the top 5 prospects found this week, research their pain points "+
					"and prepare talking points referencing recent signals. Target titles: %s.",
					strings.Join(p.Titles(), ", ")),
				Schedule: ScheduleWeekdays,
			},
		},
		Reasoning: fmt.Sprintf("Daily plan for %s's BD in %s. Prospect discovery and competitor monitoring "+
			"run daily, partnership scouting weekly and outreach prep on weekdays.", p.CompanyName, p.Industry),
	}.enableAll()
}

func (d DailyPlan) enableAll() DailyPlan {
	for i := range d.Tasks {
		d.Tasks[i].Enabled = true
		if d.Tasks[i].Schedule == "" {
			d.Tasks[i].Schedule = ScheduleDaily
		}
	}
	return d
}

// LoadDailyPlan reads a saved plan. A missing file yields (nil, nil).
func LoadDailyPlan(path string) (*DailyPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read daily plan %s: %w", path, err)
	}
	var d DailyPlan
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse daily plan %s: %w", path, err)
	}
	d = d.Normalize()
	return &d, nil
}

// SaveDailyPlan writes the plan as YAML, creating parent directories.
func SaveDailyPlan(path string, d DailyPlan) error {
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal daily plan: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create daily plan dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
