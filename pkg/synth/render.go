package synth

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/verify"
)

// Supported output formats.
const (
	FormatCSV      = "csv"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// Render writes the report in the given format.
func Render(w io.Writer, r Report, format string) error {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		return RenderCSV(w, r)
	case FormatJSON:
		return RenderJSON(w, r)
	case FormatMarkdown, "md":
		return RenderMarkdown(w, r)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// Extension returns the file extension for a format.
func Extension(format string) string {
	switch strings.ToLower(format) {
	case FormatJSON:
		return ".json"
	case FormatMarkdown, "md":
		return ".md"
	default:
		return ".csv"
	}
}

// RenderCSV writes the lead table, a blank row, then one status row per
// task under a task_id,status,reason,detail header. The run verdict is the
// last row. Readers must allow a variable field count.
func RenderCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	rows := [][]string{r.Columns}
	for _, l := range r.Leads {
		row := make([]string, len(r.Columns))
		for i, c := range r.Columns {
			row[i] = l.Values[c]
		}
		rows = append(rows, row)
	}
	rows = append(rows, nil, []string{"task_id", "status", "reason", "detail"})
	for _, t := range r.Tasks {
		rows = append(rows, []string{t.ID, string(t.Status), string(t.Reason), t.Detail})
	}
	rows = append(rows, []string{"overall", overallStatus(r.Overall), "", r.Overall.Reason})
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func overallStatus(o verify.Overall) string {
	if o.Sufficient {
		return "sufficient"
	}
	return "insufficient"
}

// RenderJSON writes the full report as indented JSON.
func RenderJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// RenderMarkdown writes a human-readable report.
func RenderMarkdown(w io.Writer, r Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s report\n\n", r.Goal)
	fmt.Fprintf(&b, "Run `%s`: %d done, %d failed, %d steps.\n\n", r.RunID, r.Done, r.Failed, r.Steps)
	fmt.Fprintf(&b, "Overall: **%s** (%d evidence records across done tasks)", overallStatus(r.Overall), r.Overall.Evidence)
	if r.Overall.Reason != "" {
		fmt.Fprintf(&b, ": %s", r.Overall.Reason)
	}
	b.WriteString("\n\n")
	if r.Narrative != "" {
		b.WriteString(r.Narrative + "\n\n")
	}

	b.WriteString("## Tasks\n\n| Task | Status | Reason |\n|---|---|---|\n")
	for _, t := range r.Tasks {
		reason := string(t.Reason)
		if t.Detail != "" {
			reason = strings.TrimSpace(reason + ": " + t.Detail)
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", cell(t.Goal), t.Status, cell(reason))
	}

	if len(r.Leads) > 0 {
		b.WriteString("\n## Leads\n\n|")
		for _, c := range r.Columns {
			fmt.Fprintf(&b, " %s |", c)
		}
		b.WriteString("\n|" + strings.Repeat("---|", len(r.Columns)) + "\n")
		for _, l := range r.Leads {
			b.WriteString("|")
			for _, c := range r.Columns {
				fmt.Fprintf(&b, " %s |", cell(l.Values[c]))
			}
			b.WriteString("\n")
		}
	}

	for _, t := range r.Tasks {
		fmt.Fprintf(&b, "\n## %s\n\n", t.Goal)
		fmt.Fprintf(&b, "Status: **%s**", t.Status)
		if t.Reason != "" {
			fmt.Fprintf(&b, " (%s)", t.Reason)
		}
		b.WriteString("\n")
		if len(t.Fields) > 0 {
			b.WriteString("\n")
			for _, f := range t.Fields {
				if f.Known {
					fmt.Fprintf(&b, "- %s: %s ([source](%s), %.2f)\n", f.Name, f.Value, f.SourceURL, f.Confidence)
				} else {
					fmt.Fprintf(&b, "- %s: %s\n", f.Name, Unknown)
				}
			}
		}
		if t.Latest != nil {
			fmt.Fprintf(&b, "\nLatest: %s ([source](%s))\n", t.Latest.Claim, t.Latest.SourceURL)
		}
		for _, c := range t.Conflicts {
			fmt.Fprintf(&b, "\nConflict on %s: %s (reported %s)\n", c.Field, strings.Join(c.Values, " vs "), c.Chosen)
		}
		if len(t.Citations) > 0 {
			b.WriteString("\nSources:\n\n")
			for i, c := range t.Citations {
				fmt.Fprintf(&b, "%d. %s: %s\n", i+1, c.Claim, c.SourceURL)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func cell(s string) string {
	return strings.NewReplacer("|", "\\|", "\n", " ").Replace(s)
}
