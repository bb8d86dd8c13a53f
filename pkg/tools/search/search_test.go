package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
)

type serperRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num"`
}

// fakeSerper serves canned organic results and records the last query.
func fakeSerper(t *testing.T, hits []Hit, lastQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-API-KEY") != "test-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var req serperRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if lastQuery != nil {
			*lastQuery = req.Q
		}
		json.NewEncoder(w).Encode(map[string]any{"organic": hits})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTools(srv *httptest.Server) *Tools {
	c := NewClient("test-key")
	c.BaseURL = srv.URL
	c.backoff = time.Millisecond
	s := New(c)
	s.now = func() time.Time { return time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s
}

func invoke(t *testing.T, tool tools.Tool, args map[string]any) []evidence.Evidence {
	t.Helper()
	reg := tools.NewRegistry()
	reg.MustRegister(tool)
	res, err := reg.Invoke(context.Background(), tool.Name(), args)
	if err != nil {
		t.Fatalf("%s: %v", tool.Name(), err)
	}
	return res.Evidence
}

func byField(records []evidence.Evidence, field string) []evidence.Evidence {
	var out []evidence.Evidence
	for _, e := range records {
		if e.Field == field {
			out = append(out, e)
		}
	}
	return out
}

func TestClientSearch(t *testing.T) {
	hits := []Hit{{Title: "a", Link: "https://a.com"}, {Title: "b", Link: "https://b.com"}, {Title: "c", Link: "https://c.com"}}
	var q string
	srv := fakeSerper(t, hits, &q)
	c := NewClient("test-key")
	c.BaseURL = srv.URL

	got, err := c.Search(context.Background(), "fintech", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || q != "fintech" {
		t.Errorf("got %d hits for %q", len(got), q)
	}
}

func TestClientMissingKey(t *testing.T) {
	if _, err := NewClient("").Search(context.Background(), "x", 1); !errors.Is(err, ErrMissingKey) {
		t.Fatalf("err = %v", err)
	}
}

func TestClientRateLimitBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"organic":[{"title":"ok","link":"https://ok.com"}]}`))
	}))
	defer srv.Close()

	c := NewClient("k")
	c.BaseURL = srv.URL
	c.backoff = time.Millisecond
	got, err := c.Search(context.Background(), "q", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || calls.Load() != 3 {
		t.Errorf("hits=%d calls=%d", len(got), calls.Load())
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   tools.Kind
	}{
		{http.StatusTooManyRequests, tools.KindUnavailable},
		{http.StatusBadGateway, tools.KindUnavailable},
		{http.StatusUnauthorized, tools.KindFatal},
		{http.StatusBadRequest, tools.KindFatal},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
		}))
		c := NewClient("k")
		c.BaseURL = srv.URL
		c.MaxRateLimitRetries = 0
		reg := tools.NewRegistry()
		reg.MustRegister(New(c).WebSearch())
		_, err := reg.Invoke(context.Background(), "web_search", map[string]any{"query": "x"})
		if got := tools.KindOf(err); got != tt.want {
			t.Errorf("status %d: kind = %s, want %s", tt.status, got, tt.want)
		}
		srv.Close()
	}

	reg := tools.NewRegistry()
	reg.MustRegister(New(NewClient("")).WebSearch())
	if _, err := reg.Invoke(context.Background(), "web_search", map[string]any{"query": "x"}); !errors.Is(err, tools.ErrToolFatal) {
		t.Errorf("missing key err = %v, want fatal", err)
	}
}

func TestWebSearchDomainField(t *testing.T) {
	srv := fakeSerper(t, []Hit{
		{Title: "Acme Pay | Payments for startups", Link: "https://www.acmepay.com/", Snippet: "s"},
		{Title: "Acme Pay - Crunchbase", Link: "https://www.crunchbase.com/organization/acme"},
	}, nil)
	got := invoke(t, newTools(srv).WebSearch(), map[string]any{"query": "acme", "field": "domain"})
	if len(got) != 1 {
		t.Fatalf("got %d records, want 1 (aggregator skipped)", len(got))
	}
	if got[0].Value != "acmepay.com" || got[0].Entity != "Acme Pay" || got[0].Tool != "web_search" {
		t.Errorf("record = %+v", got[0])
	}
}

func TestSearchCompanies(t *testing.T) {
	var q string
	srv := fakeSerper(t, []Hit{
		{Title: "Ledgerly - Seed-stage fintech", Link: "https://ledgerly.io/about", Snippet: "NYC"},
		{Title: "Ledgerly | Crunchbase", Link: "https://www.crunchbase.com/organization/ledgerly"},
		{Title: "Paywise | Startup payments", Link: "https://techcrunch.com/paywise"},
	}, &q)
	got := invoke(t, newTools(srv).SearchCompanies(), map[string]any{
		"industry": "fintech", "location": "NYC", "stage": "seed", "max_employees": 200,
	})
	if q != "fintech seed funding NYC 0-200 employees companies" {
		t.Errorf("query = %q", q)
	}
	companies := byField(got, "company")
	if len(companies) != 2 || companies[0].Value != "Ledgerly" || companies[1].Value != "Paywise" {
		t.Fatalf("companies = %+v", companies)
	}
	domains := byField(got, "domain")
	if len(domains) != 1 || domains[0].Value != "ledgerly.io" || domains[0].Entity != "Ledgerly" {
		t.Errorf("domains = %+v", domains)
	}
	if companies[0].Confidence <= companies[1].Confidence {
		t.Error("confidence should decay with rank")
	}
}

func TestHiringSignals(t *testing.T) {
	var q string
	srv := fakeSerper(t, []Hit{
		{Title: "Sales Development Rep at Acme", Link: "https://boards.greenhouse.io/acme/1", Date: "3 days ago"},
	}, &q)
	got := invoke(t, newTools(srv).HiringSignals(), map[string]any{"company": "Acme", "role": "SDR"})
	if !strings.Contains(q, "Acme hiring SDR") || !strings.Contains(q, "site:greenhouse.io") {
		t.Errorf("query = %q", q)
	}
	if len(got) != 1 || got[0].Field != "signal.hiring" || got[0].Entity != "Acme" {
		t.Fatalf("got %+v", got)
	}
	if got[0].PublishedAt == nil || got[0].PublishedAt.Day() != 29 {
		t.Errorf("PublishedAt = %v", got[0].PublishedAt)
	}
}

func TestSubjectRequired(t *testing.T) {
	srv := fakeSerper(t, nil, nil)
	reg := tools.NewRegistry()
	reg.MustRegister(newTools(srv).FundingSignals())
	_, err := reg.Invoke(context.Background(), "find_funding_signals", map[string]any{"days": 30})
	if !errors.Is(err, tools.ErrInvalidArguments) {
		t.Fatalf("err = %v, want invalid arguments", err)
	}
}

func TestFundingSignalsWindow(t *testing.T) {
	var q string
	srv := fakeSerper(t, []Hit{{Title: "Acme raises $10M Series A", Link: "https://news.example.com/acme"}}, &q)
	got := invoke(t, newTools(srv).FundingSignals(), map[string]any{"company": "Acme", "days": 30})
	if !strings.HasSuffix(q, "after:2026-05-02") {
		t.Errorf("query = %q", q)
	}
	if len(got) != 1 || got[0].Field != "signal.funding" {
		t.Errorf("got %+v", got)
	}
}

func TestSearchNewsIndustry(t *testing.T) {
	srv := fakeSerper(t, []Hit{{Title: "Paywise launches card API - TechNews", Link: "https://technews.example.com/p"}}, nil)
	got := invoke(t, newTools(srv).SearchNews(), map[string]any{
		"industry": "fintech", "topic": "launch", "signal": "product_launch",
	})
	if len(got) != 1 || got[0].Field != "signal.product_launch" || got[0].Entity != "Paywise launches card API" {
		t.Fatalf("got %+v", got)
	}
	if got[0].Confidence >= 0.8 {
		t.Errorf("industry-wide results should be less confident, got %v", got[0].Confidence)
	}
}

func TestCompanyContacts(t *testing.T) {
	var q string
	srv := fakeSerper(t, []Hit{
		{Title: "Jane Doe - VP Sales - Acme | LinkedIn", Link: "https://www.linkedin.com/in/janedoe", Snippet: "Reach me at jane@acme.com"},
		{Title: "John Roe - Head of Growth at Other Inc | LinkedIn", Link: "https://www.linkedin.com/in/johnroe"},
		{Title: "Acme | LinkedIn", Link: "https://www.linkedin.com/company/acme"},
	}, &q)
	got := invoke(t, newTools(srv).CompanyContacts(), map[string]any{"company": "Acme", "title": "VP Sales"})
	if q != `"VP Sales" at Acme site:linkedin.com/in` {
		t.Errorf("query = %q", q)
	}

	names := byField(got, "contact_name")
	if len(names) != 2 || names[0].Value != "Jane Doe" {
		t.Fatalf("contact names = %+v", names)
	}
	emails := byField(got, "email")
	if len(emails) != 1 || emails[0].Value != "jane@acme.com" || emails[0].Entity != "Jane Doe" {
		t.Errorf("emails = %+v", emails)
	}
	for _, e := range byField(got, "company") {
		if e.Value != "Acme" {
			t.Errorf("company = %q, want search subject", e.Value)
		}
		if e.Entity == "John Roe" && e.Confidence != 0.3 {
			t.Errorf("mismatched company should get low confidence, got %v", e.Confidence)
		}
	}
}

func TestEnrichCompany(t *testing.T) {
	srv := fakeSerper(t, []Hit{
		{Title: "Stripe on Crunchbase", Link: "https://www.crunchbase.com/organization/stripe", Snippet: "Founded 2010"},
		{Title: "Stripe | Financial Infrastructure", Link: "https://stripe.com/", Snippet: "Millions of businesses"},
	}, nil)
	got := invoke(t, newTools(srv).EnrichCompany(), map[string]any{"company": "Stripe"})

	if got[0].Field != "company" || got[0].Value != "Stripe" {
		t.Errorf("first record = %+v", got[0])
	}
	domains := byField(got, "domain")
	if len(domains) != 1 || domains[0].Value != "stripe.com" {
		t.Errorf("domains = %+v", domains)
	}
	if n := len(byField(got, "overview")); n != 2 {
		t.Errorf("overview records = %d", n)
	}
}

func TestParseLinkedInTitle(t *testing.T) {
	tests := []struct {
		in   string
		want Contact
		ok   bool
	}{
		{"Jane Doe - VP Sales - Acme | LinkedIn", Contact{"Jane Doe", "VP Sales", "Acme"}, true},
		{"John Roe – Head of Growth at Beta Labs | LinkedIn", Contact{"John Roe", "Head of Growth", "Beta Labs"}, true},
		{"Sam Poe - CRO | LinkedIn", Contact{"Sam Poe", "CRO", ""}, true},
		{"Acme | LinkedIn", Contact{}, false},
	}
	for _, tt := range tests {
		got, ok := parseLinkedInTitle(tt.in)
		if ok != tt.ok || (ok && got != tt.want) {
			t.Errorf("parseLinkedInTitle(%q) = %+v, %v", tt.in, got, ok)
		}
	}
}

func TestParseDate(t *testing.T) {
	now := time.Date(2026, 6, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		in   string
		want string
	}{
		{"2 days ago", "2026-06-08"},
		{"1 week ago", "2026-06-03"},
		{"3 months ago", "2026-03-10"},
		{"Jan 5, 2026", "2026-01-05"},
		{"2025-11-30", "2025-11-30"},
	}
	for _, tt := range tests {
		got := parseDate(tt.in, now)
		if got == nil || got.Format("2006-01-02") != tt.want {
			t.Errorf("parseDate(%q) = %v, want %s", tt.in, got, tt.want)
		}
	}
	if parseDate("sometime", now) != nil || parseDate("", now) != nil {
		t.Error("unparseable dates should be nil")
	}
}

func TestCompanyFromTitle(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Ledgerly - Seed-stage fintech", "Ledgerly"},
		{"Paywise Raises $5M", "Paywise Raises $5M"},
		{"Acme Careers | Jobs at Acme", "Acme"},
		{"Beta: the payments API", "Beta"},
	}
	for _, tt := range tests {
		if got := companyFromTitle(tt.in); got != tt.want {
			t.Errorf("companyFromTitle(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAll(t *testing.T) {
	all := New(NewClient("k")).All()
	if len(all) != 7 {
		t.Fatalf("All() = %d tools", len(all))
	}
	for _, tl := range all {
		if creds := tl.RequiredCredentials(); len(creds) != 1 || creds[0] != Credential {
			t.Errorf("%s credentials = %v", tl.Name(), creds)
		}
	}
}
