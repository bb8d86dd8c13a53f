package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v60/github"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
)

const name = "github_org_profile"

// maxRepos bounds how many recently pushed repositories are sampled.
const maxRepos = 50

// OrgProfileTool implements github_org_profile.
type OrgProfileTool struct {
	client *Client
}

// NewOrgProfileTool creates the tool.
func NewOrgProfileTool(client *Client) *OrgProfileTool {
	return &OrgProfileTool{client: client}
}

func (c *OrgProfileTool) Name() string                  { return name }
func (c *OrgProfileTool) RequiredCredentials() []string { return nil }

func (c *OrgProfileTool) Description() string {
	return "Read a company's GitHub organization: website, location and the languages it builds with"
}

func (c *OrgProfileTool) InputSchema() tools.Schema {
	return tools.Schema{
		Type: "object",
		Properties: map[string]tools.SchemaField{
			"org":    {Type: "string", Description: "GitHub organization login, e.g. stripe"},
			"entity": {Type: "string", Description: "Company name the records are about (default: org display name)"},
		},
		Required: []string{"org"},
	}
}

// Invoke fetches the organization and its public repositories.
func (c *OrgProfileTool) Invoke(ctx context.Context, args map[string]any) (tools.Result, error) {
	login := tools.String(args, "org")
	org, _, err := c.client.inner.Organizations.Get(ctx, login)
	if err != nil {
		if isNotFound(err) {
			return tools.Found(), nil
		}
		return tools.Result{}, classify(err)
	}

	repos, _, err := c.client.inner.Repositories.ListByOrg(ctx, login, &gh.RepositoryListByOrgOptions{
		Type:        "public",
		Sort:        "pushed",
		ListOptions: gh.ListOptions{PerPage: maxRepos},
	})
	if err != nil {
		return tools.Result{}, classify(err)
	}

	entity := tools.String(args, "entity")
	if entity == "" {
		entity = org.GetName()
	}
	if entity == "" {
		entity = org.GetLogin()
	}
	src := org.GetHTMLURL()
	if src == "" {
		src = "https://github.com/" + login
	}

	var out []evidence.Evidence
	add := func(p evidence.Params) {
		p.Entity = entity
		if p.SourceURL == "" {
			p.SourceURL = src
		}
		if e, err := evidence.New(p); err == nil {
			out = append(out, e)
		}
	}

	add(evidence.Params{
		Claim: fmt.Sprintf("%s has a GitHub organization with %d public repositories", entity, org.GetPublicRepos()),
		Field: "company", Value: entity, Snippet: org.GetDescription(), Confidence: 0.8,
	})
	if d := blogDomain(org.GetBlog()); d != "" {
		add(evidence.Params{Claim: entity + " website is " + d, Field: "domain", Value: d, Confidence: 0.85})
	}
	if loc := org.GetLocation(); loc != "" {
		add(evidence.Params{Claim: entity + " is based in " + loc, Field: "location", Value: loc, Confidence: 0.7})
	}

	if langs := languages(repos); len(langs) > 0 {
		var parts, names []string
		for _, l := range langs {
			names = append(names, l.name)
			parts = append(parts, fmt.Sprintf("%s (%d repos)", l.name, l.count))
		}
		if len(names) > 5 {
			names, parts = names[:5], parts[:5]
		}
		add(evidence.Params{
			Claim:       fmt.Sprintf("%s builds with %s", entity, strings.Join(parts, ", ")),
			Field:       "signal.tech_stack",
			Value:       strings.Join(names, ", "),
			SourceURL:   src + "?tab=repositories",
			Snippet:     fmt.Sprintf("sampled %d recently pushed public repositories", len(repos)),
			Confidence:  0.85,
			PublishedAt: latestPush(repos),
		})
	}
	return tools.Found(out...), nil
}

type langCount struct {
	name  string
	count int
}

// languages tallies primary languages, most used first.
func languages(repos []*gh.Repository) []langCount {
	counts := make(map[string]int)
	for _, r := range repos {
		if r.GetFork() || r.GetArchived() || r.GetLanguage() == "" {
			continue
		}
		counts[r.GetLanguage()]++
	}
	out := make([]langCount, 0, len(counts))
	for n, c := range counts {
		out = append(out, langCount{name: n, count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func latestPush(repos []*gh.Repository) *time.Time {
	var latest *time.Time
	for _, r := range repos {
		if r.PushedAt == nil {
			continue
		}
		t := r.GetPushedAt().Time
		if latest == nil || t.After(*latest) {
			latest = &t
		}
	}
	return latest
}

func blogDomain(blog string) string {
	blog = strings.TrimSpace(blog)
	if blog == "" {
		return ""
	}
	if !strings.Contains(blog, "://") {
		blog = "https://" + blog
	}
	u, err := url.Parse(blog)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

func isNotFound(err error) bool {
	var er *gh.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound
}

// classify maps go-github errors onto tool error kinds.
func classify(err error) error {
	var rl *gh.RateLimitError
	var abuse *gh.AbuseRateLimitError
	var er *gh.ErrorResponse
	switch {
	case errors.As(err, &rl), errors.As(err, &abuse):
		return tools.Unavailable(name, err)
	case errors.As(err, &er) && er.Response != nil:
		return tools.HTTPStatus(name, er.Response.StatusCode, er.Message)
	}
	return tools.Unavailable(name, err)
}
