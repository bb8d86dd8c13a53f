// Package profile holds the business profile that tells the agent who it is
// prospecting for. The profile is passed explicitly into planning and runs.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes the user's own business.
type Profile struct {
	CompanyName        string    `yaml:"company_name" json:"company_name"`
	Website            string    `yaml:"website,omitempty" json:"website,omitempty"`
	Industry           string    `yaml:"industry" json:"industry"`
	ProductDescription string    `yaml:"product_description" json:"product_description"`
	TargetCustomer     string    `yaml:"target_customer" json:"target_customer"`
	ValueProposition   string    `yaml:"value_proposition" json:"value_proposition"`
	Competitors        []string  `yaml:"competitors,omitempty" json:"competitors,omitempty"`
	TargetTitles       []string  `yaml:"target_titles,omitempty" json:"target_titles,omitempty"`
	TargetIndustries   []string  `yaml:"target_industries,omitempty" json:"target_industries,omitempty"`
	TargetRegions      []string  `yaml:"target_regions,omitempty" json:"target_regions,omitempty"`
	PainPoints         []string  `yaml:"pain_points,omitempty" json:"pain_points,omitempty"`
	Differentiators    []string  `yaml:"differentiators,omitempty" json:"differentiators,omitempty"`
	CurrentClients     []string  `yaml:"current_clients,omitempty" json:"current_clients,omitempty"`
	Notes              string    `yaml:"notes,omitempty" json:"notes,omitempty"`
	OnboardedAt        time.Time `yaml:"onboarded_at,omitempty" json:"onboarded_at,omitempty"`
}

// DefaultTargetTitles are the decision-maker titles used when a profile names none.
var DefaultTargetTitles = []string{"VP Sales", "Head of Growth", "CRO", "CEO"}

// DefaultTargetRegions is the geographic focus used when a profile names none.
var DefaultTargetRegions = []string{"US"}

// Titles returns the profile's target titles or the defaults.
func (p *Profile) Titles() []string {
	if p == nil || len(p.TargetTitles) == 0 {
		return DefaultTargetTitles
	}
	return p.TargetTitles
}

// Regions returns the profile's target regions or the defaults.
func (p *Profile) Regions() []string {
	if p == nil || len(p.TargetRegions) == 0 {
		return DefaultTargetRegions
	}
	return p.TargetRegions
}

// Summary renders a one-paragraph description for LLM prompts.
func (p *Profile) Summary() string {
	if p == nil {
		return ""
	}
	competitors := "Not specified"
	if len(p.Competitors) > 0 {
		competitors = strings.Join(p.Competitors, ", ")
	}
	return fmt.Sprintf("%s is a %s company. Product: %s. Target: %s. Value prop: %s. Competitors: %s.",
		p.CompanyName, p.Industry, p.ProductDescription, p.TargetCustomer, p.ValueProposition, competitors)
}

// Validate reports missing required fields.
func (p *Profile) Validate() error {
	var missing []string
	if strings.TrimSpace(p.CompanyName) == "" {
		missing = append(missing, "company_name")
	}
	if strings.TrimSpace(p.Industry) == "" {
		missing = append(missing, "industry")
	}
	if strings.TrimSpace(p.ProductDescription) == "" {
		missing = append(missing, "product_description")
	}
	if len(missing) > 0 {
		return fmt.Errorf("profile missing required fields: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Load reads a YAML or JSON profile. A missing file yields (nil, nil) so runs
// can proceed without one.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profile %s: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return &p, nil
}

// Save writes the profile as YAML, creating parent directories.
func Save(path string, p *Profile) error {
	if p.OnboardedAt.IsZero() {
		p.OnboardedAt = time.Now().UTC()
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Example returns a filled-in sample profile for bdagent init.
func Example() *Profile {
	return &Profile{
		CompanyName:        "Acme Analytics",
		Website:            "https://acme-analytics.example.com",
		Industry:           "B2B SaaS",
		ProductDescription: "Revenue analytics for sales teams",
		TargetCustomer:     "Series A-C SaaS companies with 20+ reps",
		ValueProposition:   "Forecast pipeline accurately without spreadsheets",
		Competitors:        []string{"Clari", "Gong"},
		TargetTitles:       DefaultTargetTitles,
		TargetRegions:      DefaultTargetRegions,
	}
}
