package search

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Aggregator hosts whose pages describe other companies.
var aggregators = []string{
	"linkedin.com", "crunchbase.com", "pitchbook.com", "techcrunch.com", "wikipedia.org",
	"glassdoor.com", "indeed.com", "greenhouse.io", "lever.co", "builtin.com",
	"forbes.com", "bloomberg.com", "ycombinator.com", "wellfound.com", "angel.co",
	"g2.com", "capterra.com", "medium.com", "reddit.com", "youtube.com", "twitter.com", "x.com",
}

// companyDomain returns the host of link unless it is an aggregator.
func companyDomain(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	for _, a := range aggregators {
		if host == a || strings.HasSuffix(host, "."+a) {
			return ""
		}
	}
	return host
}

var titleSeparators = []string{" | ", " - ", " – ", " — ", ": "}

// companyFromTitle guesses the company a result title is about: the first
// segment before a separator, with trailing noise words removed.
func companyFromTitle(title string) string {
	s := strings.TrimSpace(title)
	for _, sep := range titleSeparators {
		if i := strings.Index(s, sep); i > 0 {
			s = s[:i]
		}
	}
	for _, suffix := range []string{" Careers", " Jobs", " Funding", " Raises", " raises", " Overview", " Profile"} {
		s = strings.TrimSuffix(s, suffix)
	}
	return strings.TrimSpace(s)
}

// Contact is a person parsed from a LinkedIn result title.
type Contact struct {
	Name    string
	Title   string
	Company string
}

// parseLinkedInTitle handles "Jane Doe - VP Sales - Acme | LinkedIn" and
// "Jane Doe - VP Sales at Acme | LinkedIn".
func parseLinkedInTitle(title string) (Contact, bool) {
	s := strings.TrimSpace(title)
	if i := strings.LastIndex(s, "|"); i > 0 && strings.Contains(strings.ToLower(s[i:]), "linkedin") {
		s = strings.TrimSpace(s[:i])
	}
	parts := splitDashes(s)
	if len(parts) < 2 || parts[0] == "" {
		return Contact{}, false
	}
	c := Contact{Name: parts[0], Title: parts[1]}
	if len(parts) >= 3 {
		c.Company = parts[2]
	}
	if c.Company == "" {
		if i := strings.LastIndex(c.Title, " at "); i > 0 {
			c.Company = strings.TrimSpace(c.Title[i+4:])
			c.Title = strings.TrimSpace(c.Title[:i])
		}
	}
	return c, c.Title != ""
}

func splitDashes(s string) []string {
	for _, sep := range []string{" – ", " — "} {
		s = strings.ReplaceAll(s, sep, " - ")
	}
	raw := strings.Split(s, " - ")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

var emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

// extractEmail returns the first email address in s.
func extractEmail(s string) string {
	return emailPattern.FindString(s)
}

var relativeDate = regexp.MustCompile(`^(\d+)\s+(minute|hour|day|week|month|year)s?\s+ago$`)

var dateLayouts = []string{"Jan 2, 2006", "2 Jan 2006", "January 2, 2006", "2006-01-02", "Jan 2006"}

// parseDate reads Serper's date strings, absolute or relative to now.
func parseDate(s string, now time.Time) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if m := relativeDate.FindStringSubmatch(strings.ToLower(s)); m != nil {
		n, _ := strconv.Atoi(m[1])
		var t time.Time
		switch m[2] {
		case "minute":
			t = now.Add(-time.Duration(n) * time.Minute)
		case "hour":
			t = now.Add(-time.Duration(n) * time.Hour)
		case "day":
			t = now.AddDate(0, 0, -n)
		case "week":
			t = now.AddDate(0, 0, -7*n)
		case "month":
			t = now.AddDate(0, -n, 0)
		case "year":
			t = now.AddDate(-n, 0, 0)
		}
		return &t
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// rankConfidence decays base by result position, floored at 0.3.
func rankConfidence(base float64, i int) float64 {
	c := base - 0.05*float64(i)
	if c < 0.3 {
		return 0.3
	}
	return c
}
