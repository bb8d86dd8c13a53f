package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/abdazzam00/biz-dev-agent/pkg/task"
)

// Dir is the project-local state directory.
const Dir = ".bdagent"

// Config represents the runtime configuration from .bdagent/config.yaml.
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	LogFormat  string           `yaml:"log_format"` // "text" or "json"
	Profile    string           `yaml:"profile"`
	DailyPlan  string           `yaml:"daily_plan"`
	Limits     LimitsConfig     `yaml:"limits"`
	Policy     task.Policy      `yaml:"policy"`
	Tools      ToolsConfig      `yaml:"tools"`
	LLM        LLMConfig        `yaml:"llm"`
	Scratchpad ScratchpadConfig `yaml:"scratchpad"`
	Store      StoreConfig      `yaml:"store"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
}

// LimitsConfig bounds a run.
type LimitsConfig struct {
	MaxSteps        int `yaml:"max_steps"`
	MaxStepsPerTask int `yaml:"max_steps_per_task"`
	Concurrency     int `yaml:"concurrency"`
}

// TaskLimits converts to the run limits type.
func (l LimitsConfig) TaskLimits() task.Limits {
	return task.Limits{MaxSteps: l.MaxSteps, MaxStepsPerTask: l.MaxStepsPerTask}
}

// ToolsConfig controls tool invocation.
type ToolsConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
	Backoff     time.Duration `yaml:"backoff"`
	MaxPageSize string        `yaml:"max_page_size"`
	Disabled    []string      `yaml:"disabled"`
}

// LLMConfig toggles the model-backed planner, selector, judge and report summary.
type LLMConfig struct {
	Model     string `yaml:"model"`
	MaxTokens int64  `yaml:"max_tokens"`
	Planner   bool   `yaml:"planner"`
	Selector  bool   `yaml:"selector"`
	Judge     bool   `yaml:"judge"`
	Summary   bool   `yaml:"summary"`
}

// ScratchpadConfig sets where JSONL run logs go.
type ScratchpadConfig struct {
	Dir     string `yaml:"dir"`
	Enabled bool   `yaml:"enabled"`
}

// StoreConfig sets the run archive location.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SandboxConfig restricts where reports may be written.
type SandboxConfig struct {
	AllowedPaths []string `yaml:"allowed_paths"`
	DeniedPaths  []string `yaml:"denied_paths"`
	MaxFileSize  string   `yaml:"max_file_size"`
}

// PlatformConfig represents credentials from .bdagent/platforms.yaml.
type PlatformConfig struct {
	Serper     APIKeyConfig `yaml:"serper"`
	Perplexity APIKeyConfig `yaml:"perplexity"`
	GitHub     GitHubConfig `yaml:"github"`
	Anthropic  APIKeyConfig `yaml:"anthropic"`
	Slack      SlackConfig  `yaml:"slack"`
	S3         S3Config     `yaml:"s3"`
	HTTP       HTTPConfig   `yaml:"http"`
}

// APIKeyConfig holds a single API key and an optional endpoint override.
type APIKeyConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// GitHubConfig holds GitHub platform settings.
type GitHubConfig struct {
	Token   string `yaml:"token"`
	BaseURL string `yaml:"base_url"`
}

// SlackConfig holds the bot token and the channel summaries go to.
type SlackConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// S3Config names the bucket reports are uploaded to.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// HTTPConfig holds page-fetch settings.
type HTTPConfig struct {
	AllowedDomains []string `yaml:"allowed_domains"`
}

// Credential environment variables.
const (
	EnvSerper     = "SERPER_API_KEY"
	EnvPerplexity = "PERPLEXITY_API_KEY"
	EnvGitHub     = "GITHUB_TOKEN"
	EnvAnthropic  = "ANTHROPIC_API_KEY"
	EnvSlack      = "SLACK_BOT_TOKEN"
	EnvSlackChan  = "SLACK_CHANNEL"
	EnvS3Bucket   = "BDAGENT_S3_BUCKET"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	limits := task.DefaultLimits()
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Profile:   filepath.Join(Dir, "profile.yaml"),
		DailyPlan: filepath.Join(Dir, "daily_plan.yaml"),
		Limits: LimitsConfig{
			MaxSteps:        limits.MaxSteps,
			MaxStepsPerTask: limits.MaxStepsPerTask,
			Concurrency:     1,
		},
		Policy: task.Policy{MinEvidence: 1, MinConfidence: 0.3},
		Tools: ToolsConfig{
			Timeout:     30 * time.Second,
			Retries:     2,
			Backoff:     500 * time.Millisecond,
			MaxPageSize: "2MB",
		},
		LLM: LLMConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 1024,
		},
		Scratchpad: ScratchpadConfig{
			Dir:     filepath.Join(Dir, "scratchpad"),
			Enabled: true,
		},
		Store: StoreConfig{
			Path: filepath.Join(Dir, "runs.db"),
		},
		Sandbox: SandboxConfig{
			DeniedPaths: []string{"/etc", "/usr"},
			MaxFileSize: "50MB",
		},
	}
}

// LoadConfig reads and parses a runtime config YAML file.
// Returns default config if the file doesn't exist.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal([]byte(interpolateEnvVars(string(data))), &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// InDir moves state paths under the default Dir into dir, so an alternate
// state directory keeps its profile, scratchpads and archive together.
func (c Config) InDir(dir string) Config {
	if dir == "" || filepath.Clean(dir) == Dir {
		return c
	}
	move := func(p string) string {
		if p == Dir || strings.HasPrefix(p, Dir+string(filepath.Separator)) {
			return filepath.Join(dir, strings.TrimPrefix(p, Dir))
		}
		return p
	}
	c.Profile = move(c.Profile)
	c.DailyPlan = move(c.DailyPlan)
	c.Scratchpad.Dir = move(c.Scratchpad.Dir)
	c.Store.Path = move(c.Store.Path)
	return c
}

// LoadPlatformConfig reads and parses a platform credentials YAML file.
// Performs environment variable interpolation on string values, then fills
// empty credentials from the standard environment variables.
func LoadPlatformConfig(path string) (PlatformConfig, error) {
	var cfg PlatformConfig

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read platform config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal([]byte(interpolateEnvVars(string(data))), &cfg); err != nil {
			return cfg, fmt.Errorf("parse platform config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv fills unset credentials from the environment.
func (p *PlatformConfig) ApplyEnv() {
	fill := func(dst *string, env string) {
		if *dst == "" || envVarPattern.MatchString(*dst) {
			*dst = os.Getenv(env)
		}
	}
	fill(&p.Serper.APIKey, EnvSerper)
	fill(&p.Perplexity.APIKey, EnvPerplexity)
	fill(&p.GitHub.Token, EnvGitHub)
	fill(&p.Anthropic.APIKey, EnvAnthropic)
	fill(&p.Slack.Token, EnvSlack)
	fill(&p.Slack.Channel, EnvSlackChan)
	fill(&p.S3.Bucket, EnvS3Bucket)
}

// Credentials maps credential names, as tools declare them, to values.
// Only set credentials are included.
func (p PlatformConfig) Credentials() map[string]string {
	all := map[string]string{
		EnvSerper:     p.Serper.APIKey,
		EnvPerplexity: p.Perplexity.APIKey,
		EnvGitHub:     p.GitHub.Token,
		EnvAnthropic:  p.Anthropic.APIKey,
		EnvSlack:      p.Slack.Token,
	}
	out := make(map[string]string, len(all))
	for k, v := range all {
		if v != "" {
			out[k] = v
		}
	}
	return out
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// NewLogger builds the process logger from the configured level and format.
func NewLogger(cfg Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// envVarPattern matches ${VAR_NAME} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolateEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func interpolateEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimPrefix(strings.TrimSuffix(match, "}"), "${")
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match // Leave unresolved if not set.
	})
}
