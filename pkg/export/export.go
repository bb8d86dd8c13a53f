// Package export delivers rendered reports: to a local file inside the
// sandbox, to an S3 bucket, or as a summary message in a Slack channel.
package export

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
)

// Artifact is a rendered report ready for delivery.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
	// Summary is the short text used by message destinations.
	Summary string
}

// Destination delivers an artifact and returns where it ended up.
type Destination interface {
	Name() string
	Export(ctx context.Context, a Artifact) (string, error)
}

// ContentType returns the MIME type for a report format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case synth.FormatJSON:
		return "application/json"
	case synth.FormatMarkdown, "md":
		return "text/markdown; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Result is the outcome of delivering an artifact to one destination.
type Result struct {
	Destination string `json:"destination"`
	Location    string `json:"location,omitempty"`
	Error       string `json:"error,omitempty"`
}

// All exports to every destination in order. Message destinations see the
// locations of the ones before them appended to the summary. A failure at
// one destination does not stop the rest.
func All(ctx context.Context, a Artifact, dests ...Destination) ([]Result, error) {
	var (
		results   []Result
		locations []string
		failed    []string
	)
	for _, d := range dests {
		art := a
		if len(locations) > 0 {
			art.Summary = strings.TrimRight(a.Summary, "\n") + "\n" + strings.Join(locations, "\n")
		}
		loc, err := d.Export(ctx, art)
		r := Result{Destination: d.Name(), Location: loc}
		if err != nil {
			r.Error = err.Error()
			failed = append(failed, d.Name())
		} else if loc != "" {
			locations = append(locations, loc)
		}
		results = append(results, r)
	}
	if len(failed) > 0 {
		return results, fmt.Errorf("export failed: %s", strings.Join(failed, ", "))
	}
	return results, nil
}

// Summarize builds the message text for a report: the headline, then the
// top leads with their signal and source.
func Summarize(r synth.Report, maxLeads int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* run `%s`: %d done, %d failed, %d leads\n", r.Goal, r.RunID, r.Done, r.Failed, len(r.Leads))
	for i, l := range r.Leads {
		if maxLeads > 0 && i == maxLeads {
			fmt.Fprintf(&b, "...and %d more\n", len(r.Leads)-maxLeads)
			break
		}
		company := orUnknown(l.Values["company"], l.Entity)
		fmt.Fprintf(&b, "- %s", company)
		if s := l.Values["signal"]; s != "" && s != synth.Unknown {
			fmt.Fprintf(&b, ": %s", s)
		}
		if u := l.Values["source_url"]; u != "" && u != synth.Unknown {
			fmt.Fprintf(&b, " <%s>", u)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func orUnknown(v, alt string) string {
	if v == "" || v == synth.Unknown {
		return alt
	}
	return v
}
