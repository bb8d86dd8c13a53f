// Package evidence defines the sourced claim records that research tasks
// accumulate. A record without a valid http(s) source URL cannot be built.
package evidence

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrInvalidURL is returned when a record's source URL is empty or malformed.
	ErrInvalidURL = errors.New("invalid source url")
	// ErrInvalidConfidence is returned when a confidence falls outside [0,1].
	ErrInvalidConfidence = errors.New("confidence out of range")
)

// Evidence is one claim backed by a source. Values are copied, never shared.
type Evidence struct {
	Claim       string     `json:"claim"`
	Field       string     `json:"field,omitempty"`
	Entity      string     `json:"entity,omitempty"`
	Value       string     `json:"value,omitempty"`
	SourceURL   string     `json:"source_url"`
	Snippet     string     `json:"snippet,omitempty"`
	Confidence  float64    `json:"confidence"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Tool        string     `json:"tool,omitempty"`
	CollectedAt time.Time  `json:"collected_at"`
}

// Params holds the inputs for New.
type Params struct {
	Claim       string
	Field       string
	Entity      string
	Value       string
	SourceURL   string
	Snippet     string
	Confidence  float64
	PublishedAt *time.Time
	Tool        string
}

// New builds a validated Evidence record.
func New(p Params) (Evidence, error) {
	e := Evidence{
		Claim:       strings.TrimSpace(p.Claim),
		Field:       p.Field,
		Entity:      strings.TrimSpace(p.Entity),
		Value:       strings.TrimSpace(p.Value),
		SourceURL:   strings.TrimSpace(p.SourceURL),
		Snippet:     p.Snippet,
		Confidence:  p.Confidence,
		PublishedAt: p.PublishedAt,
		Tool:        p.Tool,
	}
	if err := e.Validate(); err != nil {
		return Evidence{}, err
	}
	return e, nil
}

// Validate checks the source URL and confidence invariants.
func (e Evidence) Validate() error {
	if err := ValidateURL(e.SourceURL); err != nil {
		return err
	}
	if e.Confidence < 0 || e.Confidence > 1 || e.Confidence != e.Confidence {
		return fmt.Errorf("%w: %v", ErrInvalidConfidence, e.Confidence)
	}
	return nil
}

// ValidateURL reports whether raw is an absolute http or https URL with a host.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host in %q", ErrInvalidURL, raw)
	}
	return nil
}

// Key identifies exact duplicates: same source, entity, field, value and claim.
func (e Evidence) Key() string {
	return e.SourceURL + "\x00" + e.Entity + "\x00" + e.Field + "\x00" + e.Value + "\x00" + e.Claim
}

// Domain returns the host of the source URL without a leading "www.".
func (e Evidence) Domain() string {
	u, err := url.Parse(e.SourceURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
