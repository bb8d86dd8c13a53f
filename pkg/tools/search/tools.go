package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
)

// Credential is the environment variable the search tools need.
const Credential = "SERPER_API_KEY"

// Tools builds the search-backed tools on one Serper client.
type Tools struct {
	client *Client
	now    func() time.Time
}

// New creates the search tool set.
func New(c *Client) *Tools {
	return &Tools{client: c, now: time.Now}
}

// All returns every search tool.
func (s *Tools) All() []tools.Tool {
	return []tools.Tool{
		s.WebSearch(),
		s.SearchCompanies(),
		s.HiringSignals(),
		s.FundingSignals(),
		s.CompanyContacts(),
		s.SearchNews(),
		s.EnrichCompany(),
	}
}

func schema(required []string, props map[string]tools.SchemaField) tools.Schema {
	return tools.Schema{Type: "object", Properties: props, Required: required}
}

var (
	companyArg  = tools.SchemaField{Type: "string", Description: "Company name"}
	industryArg = tools.SchemaField{Type: "string", Description: "Industry, used when no company is given"}
	locationArg = tools.SchemaField{Type: "string", Description: "Geographic focus"}
	daysArg     = tools.SchemaField{Type: "integer", Description: "Look back this many days"}
	numArg      = tools.SchemaField{Type: "integer", Description: "Number of results"}
)

func (s *Tools) tool(name, desc string, sch tools.Schema, fn func(ctx context.Context, args map[string]any) ([]evidence.Evidence, error)) tools.Tool {
	return &tools.Func{
		ToolName:    name,
		Desc:        desc,
		Schema:      sch,
		Credentials: []string{Credential},
		Fn: func(ctx context.Context, args map[string]any) (tools.Result, error) {
			records, err := fn(ctx, args)
			if err != nil {
				return tools.Result{}, classify(name, err)
			}
			return tools.Found(records...), nil
		},
	}
}

func classify(tool string, err error) error {
	var se *StatusError
	var te *tools.Error
	switch {
	case errors.As(err, &te):
		return err
	case errors.As(err, &se):
		return tools.HTTPStatus(tool, se.Code, se.Body)
	case errors.Is(err, ErrMissingKey):
		return tools.Fatal(tool, err)
	}
	return tools.Unavailable(tool, err)
}

// subject returns the company, or the industry when no company is given.
func subject(tool string, args map[string]any) (name string, isCompany bool, err error) {
	if c := tools.String(args, "company"); c != "" {
		return c, true, nil
	}
	if i := tools.String(args, "industry"); i != "" {
		return i, false, nil
	}
	return "", false, tools.InvalidArgs(tool, "one of %q or %q is required", "company", "industry")
}

func (s *Tools) after(days int) string {
	return "after:" + s.now().AddDate(0, 0, -days).Format("2006-01-02")
}

func record(p evidence.Params) (evidence.Evidence, bool) {
	e, err := evidence.New(p)
	return e, err == nil
}

func joinQuery(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// WebSearch is the general web search tool. An optional field tags every
// hit; field "domain" records the hit's company host instead of its title.
func (s *Tools) WebSearch() tools.Tool {
	return s.tool("web_search", "Search the web. Every result carries its source URL.",
		schema([]string{"query"}, map[string]tools.SchemaField{
			"query":       {Type: "string", Description: "Search query"},
			"num_results": numArg,
			"field":       {Type: "string", Description: "Field the results populate, e.g. signal.tech_stack or domain"},
			"entity":      {Type: "string", Description: "Company or person the results are about"},
		}),
		func(ctx context.Context, args map[string]any) ([]evidence.Evidence, error) {
			hits, err := s.client.Search(ctx, tools.String(args, "query"), tools.Int(args, "num_results", 10))
			if err != nil {
				return nil, err
			}
			field, entity := tools.String(args, "field"), tools.String(args, "entity")
			var out []evidence.Evidence
			for i, h := range hits {
				value := h.Title
				ent := entity
				if field == "domain" {
					value = companyDomain(h.Link)
					if value == "" {
						continue
					}
					if ent == "" {
						ent = companyFromTitle(h.Title)
					}
				}
				if e, ok := record(evidence.Params{
					Claim: h.Title, Field: field, Entity: ent, Value: value,
					SourceURL: h.Link, Snippet: h.Snippet, Confidence: rankConfidence(0.7, i),
					PublishedAt: parseDate(h.Date, s.now()),
				}); ok {
					out = append(out, e)
				}
			}
			return out, nil
		})
}

// SearchCompanies finds companies matching ICP criteria.
func (s *Tools) SearchCompanies() tools.Tool {
	return s.tool("search_companies_by_criteria", "Find companies by industry, location, stage and size.",
		schema([]string{"industry"}, map[string]tools.SchemaField{
			"industry":      {Type: "string", Description: "Industry or vertical, e.g. fintech"},
			"location":      locationArg,
			"stage":         {Type: "string", Description: "Funding stage, e.g. seed, series A"},
			"min_employees": {Type: "integer", Description: "Minimum employee count"},
			"max_employees": {Type: "integer", Description: "Maximum employee count"},
			"keywords":      {Type: "string", Description: "Extra keywords, e.g. tech stack"},
			"num_results":   numArg,
		}),
		func(ctx context.Context, args map[string]any) ([]evidence.Evidence, error) {
			industry, location := tools.String(args, "industry"), tools.String(args, "location")
			var stage, size string
			if st := tools.String(args, "stage"); st != "" {
				stage = st + " funding"
			}
			if lo, hi := tools.Int(args, "min_employees", 0), tools.Int(args, "max_employees", 0); lo > 0 || hi > 0 {
				if hi <= 0 {
					hi = 10000
				}
				size = fmt.Sprintf("%d-%d employees", lo, hi)
			}
			q := joinQuery(industry, stage, location, size, tools.String(args, "keywords"), "companies")

			hits, err := s.client.Search(ctx, q, tools.Int(args, "num_results", 15))
			if err != nil {
				return nil, err
			}
			seen := make(map[string]bool)
			var out []evidence.Evidence
			for i, h := range hits {
				name := companyFromTitle(h.Title)
				if name == "" || seen[strings.ToLower(name)] {
					continue
				}
				seen[strings.ToLower(name)] = true
				conf := rankConfidence(0.7, i)
				claim := fmt.Sprintf("%s is a %s company", name, industry)
				if location != "" {
					claim += " in " + location
				}
				if e, ok := record(evidence.Params{
					Claim: claim, Field: "company", Entity: name, Value: name,
					SourceURL: h.Link, Snippet: h.Snippet, Confidence: conf,
				}); ok {
					out = append(out, e)
				}
				if d := companyDomain(h.Link); d != "" {
					if e, ok := record(evidence.Params{
						Claim: name + " website is " + d, Field: "domain", Entity: name, Value: d,
						SourceURL: h.Link, Snippet: h.Snippet, Confidence: conf,
					}); ok {
						out = append(out, e)
					}
				}
			}
			return out, nil
		})
}

// HiringSignals finds job postings on LinkedIn and applicant-tracking sites.
func (s *Tools) HiringSignals() tools.Tool {
	return s.tool("find_hiring_signals", "Find open roles that signal buying intent.",
		schema(nil, map[string]tools.SchemaField{
			"company":  companyArg,
			"industry": industryArg,
			"role":     {Type: "string", Description: "Role keywords, e.g. SDR,sales,growth"},
			"location": locationArg,
		}),
		func(ctx context.Context, args map[string]any) ([]evidence.Evidence, error) {
			subj, isCompany, err := subject("find_hiring_signals", args)
			if err != nil {
				return nil, err
			}
			role := tools.String(args, "role")
			if role == "" {
				role = "SDR,sales,growth"
			}
			q := joinQuery(subj, "hiring", role, tools.String(args, "location"),
				"site:linkedin.com OR site:greenhouse.io OR site:lever.co")
			return s.signals(ctx, q, "signal.hiring", "is hiring", subj, isCompany)
		})
}

// FundingSignals finds recent funding announcements.
func (s *Tools) FundingSignals() tools.Tool {
	return s.tool("find_funding_signals", "Find funding announcements within a time window.",
		schema(nil, map[string]tools.SchemaField{
			"company":  companyArg,
			"industry": industryArg,
			"days":     daysArg,
		}),
		func(ctx context.Context, args map[string]any) ([]evidence.Evidence, error) {
			subj, isCompany, err := subject("find_funding_signals", args)
			if err != nil {
				return nil, err
			}
			q := joinQuery(subj, "funding OR investment OR raised", s.after(tools.Int(args, "days", 365)))
			return s.signals(ctx, q, "signal.funding", "funding news", subj, isCompany)
		})
}

// SearchNews finds recent news, tagged with the signal it evidences.
func (s *Tools) SearchNews() tools.Tool {
	return s.tool("search_news", "Find recent news about a company or industry.",
		schema(nil, map[string]tools.SchemaField{
			"company":  companyArg,
			"industry": industryArg,
			"topic":    {Type: "string", Description: "Topic, e.g. product launch, partnership"},
			"signal":   {Type: "string", Description: "Signal type the news evidences (default news)"},
			"days":     daysArg,
		}),
		func(ctx context.Context, args map[string]any) ([]evidence.Evidence, error) {
			subj, isCompany, err := subject("search_news", args)
			if err != nil {
				return nil, err
			}
			sig := strings.ToLower(tools.String(args, "signal"))
			if sig == "" {
				sig = "news"
			}
			topic := tools.String(args, "topic")
			q := joinQuery(subj, topic, s.after(tools.Int(args, "days", 90)))
			verb := strings.ReplaceAll(sig, "_", " ")
			return s.signals(ctx, q, "signal."+sig, verb, subj, isCompany)
		})
}

func (s *Tools) signals(ctx context.Context, q, field, verb, subj string, isCompany bool) ([]evidence.Evidence, error) {
	hits, err := s.client.Search(ctx, q, 10)
	if err != nil {
		return nil, err
	}
	base := 0.8
	if !isCompany {
		base = 0.65
	}
	now := s.now()
	var out []evidence.Evidence
	for i, h := range hits {
		entity := subj
		if !isCompany {
			entity = companyFromTitle(h.Title)
		}
		if e, ok := record(evidence.Params{
			Claim: fmt.Sprintf("%s %s: %s", entity, verb, h.Title), Field: field, Entity: entity, Value: h.Title,
			SourceURL: h.Link, Snippet: h.Snippet, Confidence: rankConfidence(base, i),
			PublishedAt: parseDate(h.Date, now),
		}); ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// CompanyContacts finds decision makers via LinkedIn profile results.
func (s *Tools) CompanyContacts() tools.Tool {
	return s.tool("find_company_contacts", "Find people with a given title at a company.",
		schema([]string{"title"}, map[string]tools.SchemaField{
			"title":    {Type: "string", Description: "Job title, e.g. VP Sales"},
			"company":  companyArg,
			"industry": industryArg,
			"location": locationArg,
		}),
		func(ctx context.Context, args map[string]any) ([]evidence.Evidence, error) {
			subj, isCompany, err := subject("find_company_contacts", args)
			if err != nil {
				return nil, err
			}
			title := tools.String(args, "title")
			q := joinQuery(fmt.Sprintf("%q at %s", title, subj), tools.String(args, "location"), "site:linkedin.com/in")
			if !isCompany {
				q = joinQuery(fmt.Sprintf("%q %s", title, subj), tools.String(args, "location"), "site:linkedin.com/in")
			}
			hits, err := s.client.Search(ctx, q, 10)
			if err != nil {
				return nil, err
			}

			var out []evidence.Evidence
			for i, h := range hits {
				c, ok := parseLinkedInTitle(h.Title)
				if !ok {
					continue
				}
				conf := rankConfidence(0.75, i)
				if isCompany {
					if c.Company != "" && !strings.Contains(strings.ToLower(c.Company), strings.ToLower(subj)) {
						conf = 0.3
					}
					c.Company = subj
				}
				add := func(field, value, claim string) {
					if value == "" {
						return
					}
					if e, ok := record(evidence.Params{
						Claim: claim, Field: field, Entity: c.Name, Value: value,
						SourceURL: h.Link, Snippet: h.Snippet, Confidence: conf,
					}); ok {
						out = append(out, e)
					}
				}
				add("contact_name", c.Name, c.Name+" works at "+orUnknown(c.Company))
				add("title", c.Title, c.Name+" is "+c.Title)
				add("company", c.Company, c.Name+" works at "+c.Company)
				if em := extractEmail(h.Snippet); em != "" {
					add("email", em, c.Name+" email is "+em)
				}
			}
			return out, nil
		})
}

// EnrichCompany gathers a company's website and overview.
func (s *Tools) EnrichCompany() tools.Tool {
	return s.tool("enrich_company", "Look up a company's website and overview by domain or name.",
		schema(nil, map[string]tools.SchemaField{
			"domain":  {Type: "string", Description: "Company domain, e.g. stripe.com"},
			"company": companyArg,
		}),
		func(ctx context.Context, args map[string]any) ([]evidence.Evidence, error) {
			domain, company := strings.ToLower(tools.String(args, "domain")), tools.String(args, "company")
			var q string
			switch {
			case domain != "":
				q = fmt.Sprintf("site:%s OR %s company information employees funding", domain, domain)
			case company != "":
				q = company + " official website company information employees funding"
			default:
				return nil, tools.InvalidArgs("enrich_company", "one of %q or %q is required", "domain", "company")
			}
			hits, err := s.client.Search(ctx, q, 5)
			if err != nil {
				return nil, err
			}

			entity := company
			if entity == "" {
				entity = domain
			}
			var out []evidence.Evidence
			foundDomain := false
			for i, h := range hits {
				conf := rankConfidence(0.7, i)
				host := companyDomain(h.Link)
				if !foundDomain && host != "" && (domain == "" || host == domain || strings.HasSuffix(host, "."+domain)) {
					foundDomain = true
					d := host
					if domain != "" {
						d = domain
					}
					if e, ok := record(evidence.Params{
						Claim: entity + " website is " + d, Field: "domain", Entity: entity, Value: d,
						SourceURL: h.Link, Snippet: h.Snippet, Confidence: conf,
					}); ok {
						out = append(out, e)
					}
				}
				if h.Snippet == "" {
					continue
				}
				if e, ok := record(evidence.Params{
					Claim: h.Title, Field: "overview", Entity: entity, Value: h.Snippet,
					SourceURL: h.Link, Snippet: h.Snippet, Confidence: rankConfidence(0.6, i),
				}); ok {
					out = append(out, e)
				}
			}
			if company != "" {
				if e, ok := firstCompanyRecord(out, company); ok {
					out = append([]evidence.Evidence{e}, out...)
				}
			}
			return out, nil
		})
}

// firstCompanyRecord names the company from the first sourced record so the
// entity shows up as an account row.
func firstCompanyRecord(records []evidence.Evidence, company string) (evidence.Evidence, bool) {
	if len(records) == 0 {
		return evidence.Evidence{}, false
	}
	src := records[0]
	return record(evidence.Params{
		Claim: company + " is a company", Field: "company", Entity: company, Value: company,
		SourceURL: src.SourceURL, Snippet: src.Snippet, Confidence: src.Confidence,
	})
}

func orUnknown(s string) string {
	if s == "" {
		return "an unknown company"
	}
	return s
}
