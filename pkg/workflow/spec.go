// Package workflow loads business-development workflow specifications and
// plans them into research tasks.
package workflow

// Goal is the kind of deliverable a workflow produces.
type Goal string

const (
	GoalLeadList        Goal = "lead_list"
	GoalAccountBriefs   Goal = "account_briefs"
	GoalCompetitorMoves Goal = "competitor_moves"
	GoalOutreach        Goal = "outreach"
)

// SignalType is a kind of buying signal.
type SignalType string

const (
	SignalHiring        SignalType = "hiring"
	SignalFunding       SignalType = "funding"
	SignalProductLaunch SignalType = "product_launch"
	SignalTechStack     SignalType = "tech_stack"
	SignalNews          SignalType = "news"
	SignalJobChange     SignalType = "job_change"
	SignalExpansion     SignalType = "expansion"
)

// Spec is a workflow specification.
type Spec struct {
	Name        string      `yaml:"name" json:"name"`
	Description string      `yaml:"description,omitempty" json:"description,omitempty"`
	Goal        Goal        `yaml:"goal" json:"goal"`
	ICP         ICP         `yaml:"icp" json:"icp"`
	Signals     []Signal    `yaml:"signals,omitempty" json:"signals,omitempty"`
	Constraints Constraints `yaml:"constraints,omitempty" json:"constraints,omitempty"`
	Deliverable Deliverable `yaml:"deliverable,omitempty" json:"deliverable,omitempty"`

	// Accounts optionally names target companies; signal, contact and
	// enrichment tasks are then planned per company.
	Accounts []string `yaml:"accounts,omitempty" json:"accounts,omitempty"`
	// Competitors overrides the profile's competitor list for competitor_moves.
	Competitors []string   `yaml:"competitors,omitempty" json:"competitors,omitempty"`
	Params      []ParamDef `yaml:"params,omitempty" json:"params,omitempty"`
}

// ICP is the ideal customer profile.
type ICP struct {
	Industries  []string     `yaml:"industries" json:"industries"`
	Geo         []string     `yaml:"geo" json:"geo"`
	Stage       []string     `yaml:"stage,omitempty" json:"stage,omitempty"`
	CompanySize *CompanySize `yaml:"company_size,omitempty" json:"company_size,omitempty"`
	TechStack   []string     `yaml:"tech_stack,omitempty" json:"tech_stack,omitempty"`
}

// CompanySize bounds employee count. Zero means unbounded.
type CompanySize struct {
	Min int `yaml:"min,omitempty" json:"min,omitempty"`
	Max int `yaml:"max,omitempty" json:"max,omitempty"`
}

// Signal is a time-bounded event used to target accounts.
type Signal struct {
	Type       SignalType `yaml:"type" json:"type"`
	Query      string     `yaml:"query,omitempty" json:"query,omitempty"`
	WithinDays int        `yaml:"within_days,omitempty" json:"within_days,omitempty"`
}

// Constraints limit what the workflow returns.
type Constraints struct {
	MaxAccounts           int      `yaml:"max_accounts,omitempty" json:"max_accounts,omitempty"`
	MustHaveVerifiedEmail *bool    `yaml:"must_have_verified_email,omitempty" json:"must_have_verified_email,omitempty"`
	ExcludeKeywords       []string `yaml:"exclude_keywords,omitempty" json:"exclude_keywords,omitempty"`
	MinSignalConfidence   *float64 `yaml:"min_signal_confidence,omitempty" json:"min_signal_confidence,omitempty"`
}

// Constraint defaults.
const (
	DefaultMaxAccounts         = 50
	DefaultMinSignalConfidence = 0.5
)

// Accounts returns the account cap.
func (c Constraints) Accounts() int {
	if c.MaxAccounts <= 0 {
		return DefaultMaxAccounts
	}
	return c.MaxAccounts
}

// VerifiedEmail reports whether contacts need a verified email. Defaults to true.
func (c Constraints) VerifiedEmail() bool {
	return c.MustHaveVerifiedEmail == nil || *c.MustHaveVerifiedEmail
}

// SignalConfidence returns the minimum signal confidence.
func (c Constraints) SignalConfidence() float64 {
	if c.MinSignalConfidence == nil {
		return DefaultMinSignalConfidence
	}
	return *c.MinSignalConfidence
}

// Deliverable describes the output format.
type Deliverable struct {
	Format  string   `yaml:"format,omitempty" json:"format,omitempty"`
	Columns []string `yaml:"columns,omitempty" json:"columns,omitempty"`
}

// OutputFormat returns the format, defaulting to csv.
func (d Deliverable) OutputFormat() string {
	if d.Format == "" {
		return "csv"
	}
	return d.Format
}

// ParamDef defines a runtime parameter the user may override.
type ParamDef struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type,omitempty" json:"type,omitempty"`
	Default     any    `yaml:"default,omitempty" json:"default,omitempty"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}
