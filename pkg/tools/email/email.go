// Package email provides verify_email, a format and disposable-domain check.
package email

import (
	"context"
	"regexp"
	"strings"

	"github.com/abdazzam00/biz-dev-agent/pkg/evidence"
	"github.com/abdazzam00/biz-dev-agent/pkg/tools"
)

// Status is the outcome of a check.
type Status string

const (
	StatusInvalid    Status = "invalid"
	StatusDisposable Status = "disposable"
	// StatusUnverified means the format is valid but deliverability is not
	// known without a verification provider.
	StatusUnverified Status = "unverified"
)

var pattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// DisposableDomains are throwaway mail providers.
var DisposableDomains = map[string]bool{
	"tempmail.com":      true,
	"throwaway.email":   true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
}

// Check classifies an address.
func Check(addr string) (Status, string) {
	addr = strings.TrimSpace(addr)
	if addr == "" || !pattern.MatchString(addr) {
		return StatusInvalid, "invalid email format"
	}
	domain := strings.ToLower(addr[strings.LastIndex(addr, "@")+1:])
	if DisposableDomains[domain] {
		return StatusDisposable, "disposable email domain"
	}
	return StatusUnverified, "format is valid; deliverability not verified"
}

// Tool is verify_email. It needs the URL the address was found on so the
// result stays sourced.
type Tool struct{}

func (Tool) Name() string                  { return "verify_email" }
func (Tool) Description() string           { return "Check an email address's format and reject disposable domains" }
func (Tool) RequiredCredentials() []string { return nil }

func (Tool) InputSchema() tools.Schema {
	return tools.Schema{
		Type: "object",
		Properties: map[string]tools.SchemaField{
			"email":      {Type: "string", Description: "Address to check"},
			"source_url": {Type: "string", Description: "Page the address was found on"},
			"entity":     {Type: "string", Description: "Person the address belongs to"},
		},
		Required: []string{"email", "source_url"},
	}
}

// Invoke returns an email record for usable addresses and an email_status
// record, with the address as its snippet, for every checked address.
func (Tool) Invoke(_ context.Context, args map[string]any) (tools.Result, error) {
	addr := strings.ToLower(tools.String(args, "email"))
	src := tools.String(args, "source_url")
	if err := evidence.ValidateURL(src); err != nil {
		return tools.Result{}, tools.InvalidArgs("verify_email", "source_url: %v", err)
	}
	entity := tools.String(args, "entity")

	status, reason := Check(addr)
	var records []evidence.Evidence
	if e, err := evidence.New(evidence.Params{
		Claim: addr + " is " + string(status) + ": " + reason, Field: "email_status", Entity: entity,
		Value: string(status), Snippet: addr, SourceURL: src, Confidence: 0.9,
	}); err == nil {
		records = append(records, e)
	}
	if status == StatusUnverified {
		if e, err := evidence.New(evidence.Params{
			Claim: entity + " email is " + addr, Field: "email", Entity: entity,
			Value: addr, SourceURL: src, Confidence: 0.5,
		}); err == nil {
			records = append(records, e)
		}
	}
	return tools.Found(records...), nil
}
