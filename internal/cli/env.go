package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/abdazzam00/biz-dev-agent/internal/config"
	"github.com/abdazzam00/biz-dev-agent/internal/sandbox"
	"github.com/abdazzam00/biz-dev-agent/pkg/agent"
	"github.com/abdazzam00/biz-dev-agent/pkg/events"
	"github.com/abdazzam00/biz-dev-agent/pkg/executor"
	"github.com/abdazzam00/biz-dev-agent/pkg/llm"
	"github.com/abdazzam00/biz-dev-agent/pkg/profile"
	"github.com/abdazzam00/biz-dev-agent/pkg/store"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools/email"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools/github"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools/perplexity"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools/search"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools/web"
	"github.com/abdazzam00/biz-dev-agent/pkg/verify"
	"github.com/abdazzam00/biz-dev-agent/pkg/workflow"
)

// env is everything a command needs, loaded from the state directory.
type env struct {
	dir      string
	cfg      config.Config
	platform config.PlatformConfig
	logger   *slog.Logger
	sandbox  *sandbox.Sandbox
	profile  *profile.Profile
	registry *tools.Registry
	// skipped maps tools that were not registered to the reason.
	skipped map[string]string
	model   llm.Completer
	store   *store.BoltStore
}

func loadEnv(opts GlobalOpts, stderr io.Writer) (*env, error) {
	dir := opts.Dir
	if dir == "" {
		dir = config.Dir
	}
	if err := config.LoadDotEnv(".env", filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(filepath.Join(dir, "config.yaml"))
	if err != nil {
		return nil, err
	}
	cfg = cfg.InDir(dir)
	if opts.Verbose {
		cfg.LogLevel = "debug"
	}
	plat, err := config.LoadPlatformConfig(filepath.Join(dir, "platforms.yaml"))
	if err != nil {
		return nil, err
	}

	e := &env{dir: dir, cfg: cfg, platform: plat, logger: config.NewLogger(cfg, stderr)}

	e.sandbox, err = sandbox.New(sandbox.Config{
		AllowedPaths: cfg.Sandbox.AllowedPaths,
		DeniedPaths:  cfg.Sandbox.DeniedPaths,
		MaxFileSize:  cfg.Sandbox.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	profilePath := cfg.Profile
	if opts.Profile != "" {
		profilePath = opts.Profile
	}
	if e.profile, err = profile.Load(profilePath); err != nil {
		return nil, err
	}
	if e.profile == nil {
		e.logger.Debug("no business profile; using default titles and regions", "path", profilePath)
	}

	if key := plat.Anthropic.APIKey; key != "" {
		e.model = llm.NewAnthropic(key, cfg.LLM.Model, cfg.LLM.MaxTokens)
	}
	e.registry, e.skipped = buildRegistry(cfg, plat)
	return e, nil
}

// candidates returns every tool the agent knows how to build.
func candidates(cfg config.Config, plat config.PlatformConfig) ([]tools.Tool, error) {
	serper := search.NewClient(plat.Serper.APIKey)
	if plat.Serper.BaseURL != "" {
		serper.BaseURL = plat.Serper.BaseURL
	}
	out := search.New(serper).All()

	px := perplexity.New(plat.Perplexity.APIKey)
	if plat.Perplexity.BaseURL != "" {
		px.BaseURL = plat.Perplexity.BaseURL
	}
	out = append(out, px)

	maxPage, err := sandbox.ParseSize(cfg.Tools.MaxPageSize)
	if err != nil && cfg.Tools.MaxPageSize != "" {
		return nil, fmt.Errorf("tools.max_page_size: %w", err)
	}
	out = append(out, web.NewFetchTool(plat.HTTP.AllowedDomains, maxPage))

	gh := github.NewClient(plat.GitHub.Token)
	if plat.GitHub.BaseURL != "" {
		if gh, err = github.NewClientWithBaseURL(plat.GitHub.Token, plat.GitHub.BaseURL); err != nil {
			return nil, err
		}
	}
	out = append(out, github.NewOrgProfileTool(gh), email.Tool{})
	return out, nil
}

// buildRegistry registers the tools whose credentials are present and that
// are not disabled in config.
func buildRegistry(cfg config.Config, plat config.PlatformConfig) (*tools.Registry, map[string]string) {
	reg := tools.NewRegistry()
	skipped := make(map[string]string)

	all, err := candidates(cfg, plat)
	if err != nil {
		skipped["*"] = err.Error()
		return reg, skipped
	}
	disabled := make(map[string]bool, len(cfg.Tools.Disabled))
	for _, name := range cfg.Tools.Disabled {
		disabled[name] = true
	}
	creds := plat.Credentials()

	for _, t := range all {
		if disabled[t.Name()] {
			skipped[t.Name()] = "disabled in config"
			continue
		}
		missing := ""
		for _, c := range t.RequiredCredentials() {
			if creds[c] == "" {
				missing = c
				break
			}
		}
		if missing != "" {
			skipped[t.Name()] = "missing " + missing
			continue
		}
		reg.MustRegister(t)
	}
	return reg, skipped
}

// openStore opens the run archive on first use.
func (e *env) openStore() (*store.BoltStore, error) {
	if e.store != nil {
		return e.store, nil
	}
	st, err := store.Open(e.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	e.store = st
	return st, nil
}

func (e *env) close() {
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			e.logger.Warn("close run store", "error", err)
		}
	}
}

// agent assembles the run pipeline from config. Model-backed stages are
// used only when enabled and an Anthropic key is configured.
func (e *env) agent() (*agent.Agent, error) {
	st, err := e.openStore()
	if err != nil {
		return nil, err
	}

	static := workflow.StaticPlanner{Tools: e.registry, Policy: e.cfg.Policy}
	var planner workflow.Planner = static
	validator := verify.NewValidator()
	opts := []executor.Option{
		executor.WithTimeout(e.cfg.Tools.Timeout),
		executor.WithRetries(e.cfg.Tools.Retries, e.cfg.Tools.Backoff),
		executor.WithConcurrency(e.cfg.Limits.Concurrency),
	}
	var summarizer agent.Summarizer

	if e.model != nil {
		if e.cfg.LLM.Planner {
			planner = &llm.Planner{Model: e.model, Tools: e.registry, Fallback: static, Logger: e.logger}
		}
		if e.cfg.LLM.Selector {
			opts = append(opts, executor.WithSelector(&llm.Selector{Model: e.model, Tools: e.registry, Logger: e.logger}))
		}
		if e.cfg.LLM.Judge {
			validator = verify.NewValidator(verify.WithJudge(&llm.Judge{Model: e.model}))
		}
		if e.cfg.LLM.Summary {
			summarizer = &llm.Summarizer{Model: e.model}
		}
	}
	opts = append(opts, executor.WithValidator(validator))

	a := &agent.Agent{
		Tools:       e.registry,
		Planner:     planner,
		Limits:      e.cfg.Limits.TaskLimits(),
		Profile:     e.profile,
		ExecOptions: opts,
		Store:       st,
		Bus:         events.NewMemoryBus(),
		Summarizer:  summarizer,
		Logger:      e.logger,
	}
	if e.cfg.Scratchpad.Enabled {
		a.ScratchpadDir = e.cfg.Scratchpad.Dir
	}
	return a, nil
}
