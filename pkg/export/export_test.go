package export

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/slack-go/slack"

	"github.com/abdazzam00/biz-dev-agent/internal/sandbox"
	"github.com/abdazzam00/biz-dev-agent/pkg/synth"
)

func artifact() Artifact {
	return Artifact{
		Name:        "run-1.csv",
		ContentType: ContentType(synth.FormatCSV),
		Data:        []byte("company\nAcme\n"),
		Summary:     "*lead_list* run `run-1`: 1 done",
	}
}

func TestFileExport(t *testing.T) {
	dir := t.TempDir()
	sb, err := sandbox.New(sandbox.Config{AllowedPaths: []string{dir}})
	if err != nil {
		t.Fatal(err)
	}
	loc, err := (&File{Dir: filepath.Join(dir, "reports"), Sandbox: sb}).Export(context.Background(), artifact())
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(loc)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "company\nAcme\n" {
		t.Errorf("data = %q", data)
	}
}

func TestFileExportDenied(t *testing.T) {
	dir := t.TempDir()
	sb, _ := sandbox.New(sandbox.Config{AllowedPaths: []string{filepath.Join(dir, "ok")}})
	_, err := (&File{Path: filepath.Join(dir, "elsewhere", "r.csv"), Sandbox: sb}).Export(context.Background(), artifact())
	if err == nil {
		t.Fatal("expected sandbox error")
	}
}

type stubPutter struct {
	in   *s3.PutObjectInput
	body string
	err  error
}

func (s *stubPutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	s.in = in
	data, _ := io.ReadAll(in.Body)
	s.body = string(data)
	return &s3.PutObjectOutput{}, s.err
}

func TestS3Export(t *testing.T) {
	put := &stubPutter{}
	d := &S3{Client: put, Bucket: "leads", Prefix: "/bdagent/runs/"}
	loc, err := d.Export(context.Background(), artifact())
	if err != nil {
		t.Fatal(err)
	}
	if loc != "s3://leads/bdagent/runs/run-1.csv" {
		t.Errorf("location = %s", loc)
	}
	if *put.in.Bucket != "leads" || *put.in.Key != "bdagent/runs/run-1.csv" || *put.in.ContentType != "text/csv; charset=utf-8" {
		t.Errorf("input = %+v", put.in)
	}
	if put.body != "company\nAcme\n" {
		t.Errorf("body = %q", put.body)
	}
}

func TestS3ExportError(t *testing.T) {
	d := &S3{Client: &stubPutter{err: errors.New("access denied")}, Bucket: "leads"}
	if _, err := d.Export(context.Background(), artifact()); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("err = %v", err)
	}
}

func slackServer(t *testing.T, texts *[]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat.postMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		r.ParseForm()
		*texts = append(*texts, r.FormValue("text"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "channel": "C123", "ts": "1700000000.0001"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSlackExport(t *testing.T) {
	var texts []string
	srv := slackServer(t, &texts)
	d := &Slack{Client: slack.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/")), Channel: "#leads"}

	loc, err := d.Export(context.Background(), artifact())
	if err != nil {
		t.Fatal(err)
	}
	if loc != "slack:C123/1700000000.0001" {
		t.Errorf("location = %s", loc)
	}
	if len(texts) != 1 || texts[0] != "*lead_list* run `run-1`: 1 done" {
		t.Errorf("texts = %q", texts)
	}
}

func TestSlackExportClipsOnRuneBoundary(t *testing.T) {
	var texts []string
	srv := slackServer(t, &texts)
	d := &Slack{Client: slack.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/")), Channel: "#leads"}

	a := artifact()
	a.Summary = strings.Repeat("€", 1200)
	if _, err := d.Export(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	if len(texts) != 1 {
		t.Fatalf("texts = %d", len(texts))
	}
	got := texts[0]
	if !utf8.ValidString(got) || !strings.HasSuffix(got, "€\n...") || len(got) > maxSlackText+4 {
		t.Errorf("clipped text invalid: len=%d tail=%q", len(got), got[len(got)-8:])
	}
}

func TestNewSlackRequiresChannel(t *testing.T) {
	if _, err := NewSlack("xoxb", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestAllAppendsLocations(t *testing.T) {
	var texts []string
	srv := slackServer(t, &texts)
	dests := []Destination{
		&S3{Client: &stubPutter{}, Bucket: "leads"},
		&S3{Client: &stubPutter{err: errors.New("boom")}, Bucket: "broken"},
		&Slack{Client: slack.New("xoxb-test", slack.OptionAPIURL(srv.URL+"/")), Channel: "#leads"},
	}
	results, err := All(context.Background(), artifact(), dests...)
	if err == nil || !strings.Contains(err.Error(), "s3") {
		t.Errorf("err = %v", err)
	}
	if len(results) != 3 || results[1].Error == "" || results[2].Error != "" {
		t.Fatalf("results = %+v", results)
	}
	if len(texts) != 1 || !strings.HasSuffix(texts[0], "\ns3://leads/run-1.csv") {
		t.Errorf("slack text = %q", texts)
	}
}

func TestSummarize(t *testing.T) {
	r := synth.Report{
		RunID: "run-1", Goal: "lead_list", Done: 3, Failed: 1,
		Leads: []synth.Lead{
			{Entity: "Acme", Values: map[string]string{"company": "Acme", "signal": "Hiring 3 SDRs", "source_url": "https://acme.com/jobs"}},
			{Entity: "Beta", Values: map[string]string{"company": synth.Unknown, "signal": synth.Unknown}},
			{Entity: "Gamma", Values: map[string]string{"company": "Gamma"}},
		},
	}
	got := Summarize(r, 2)
	want := "*lead_list* run `run-1`: 3 done, 1 failed, 3 leads\n" +
		"- Acme: Hiring 3 SDRs <https://acme.com/jobs>\n" +
		"- Beta\n" +
		"...and 1 more\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
