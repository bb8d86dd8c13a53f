// Package sandbox restricts where the agent may write reports and run logs.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Sandbox checks output paths against allowed/denied prefixes and caps the
// size of what is written.
type Sandbox struct {
	allowedPaths []string
	deniedPaths  []string
	maxFileSize  int64 // bytes, 0 means unlimited
}

// Config holds the sandbox configuration.
type Config struct {
	AllowedPaths []string
	DeniedPaths  []string
	MaxFileSize  string // e.g. "10MB", "1GB", "500KB"
}

// New creates a Sandbox. Paths are resolved to absolute paths.
func New(cfg Config) (*Sandbox, error) {
	s := &Sandbox{}

	var err error
	if s.allowedPaths, err = absAll(cfg.AllowedPaths); err != nil {
		return nil, fmt.Errorf("sandbox: allowed path: %w", err)
	}
	if s.deniedPaths, err = absAll(cfg.DeniedPaths); err != nil {
		return nil, fmt.Errorf("sandbox: denied path: %w", err)
	}

	if cfg.MaxFileSize != "" {
		size, err := ParseSize(cfg.MaxFileSize)
		if err != nil {
			return nil, fmt.Errorf("sandbox: parse max_file_size %q: %w", cfg.MaxFileSize, err)
		}
		s.maxFileSize = size
	}
	return s, nil
}

func absAll(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %q: %w", p, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

// CheckPath returns nil if path may be written. Denied paths take
// precedence; with no allowed paths every non-denied path is allowed.
func (s *Sandbox) CheckPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("sandbox: resolve path %q: %w", path, err)
	}

	for _, denied := range s.deniedPaths {
		if under(abs, denied) {
			return fmt.Errorf("sandbox: path %q is under denied path %q", abs, denied)
		}
	}
	if len(s.allowedPaths) == 0 {
		return nil
	}
	for _, allowed := range s.allowedPaths {
		if under(abs, allowed) {
			return nil
		}
	}
	return fmt.Errorf("sandbox: path %q is not under any allowed path %v", abs, s.allowedPaths)
}

func under(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+string(filepath.Separator))
}

// CheckFileSize returns an error if size exceeds the configured maximum.
func (s *Sandbox) CheckFileSize(size int64) error {
	if s.maxFileSize <= 0 || size <= s.maxFileSize {
		return nil
	}
	return fmt.Errorf("sandbox: file size %d bytes exceeds maximum %d bytes (%s)",
		size, s.maxFileSize, FormatSize(s.maxFileSize))
}

// WriteFile checks path and size, creates parent directories and writes
// data through a temporary file so readers never see a partial report.
func (s *Sandbox) WriteFile(path string, data []byte) error {
	if err := s.CheckPath(path); err != nil {
		return err
	}
	if err := s.CheckFileSize(int64(len(data))); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sandbox: create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("sandbox: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("sandbox: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("sandbox: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("sandbox: rename into %s: %w", path, err)
	}
	return nil
}

// ParseSize parses a human-readable size into bytes.
// Supported suffixes: B, KB, MB, GB, TB (case-insensitive).
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	suffixes := []struct {
		suffix     string
		multiplier int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	}
	for _, sf := range suffixes {
		if strings.HasSuffix(s, sf.suffix) {
			numStr := strings.TrimSpace(strings.TrimSuffix(s, sf.suffix))
			n, err := strconv.ParseFloat(numStr, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid number %q", numStr)
			}
			return int64(n * float64(sf.multiplier)), nil
		}
	}

	// No suffix, assume bytes.
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid file size %q", s)
	}
	return n, nil
}

// FormatSize formats bytes into a human-readable string.
func FormatSize(bytes int64) string {
	units := []struct {
		name string
		size int64
	}{
		{"TB", 1 << 40},
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
	}
	for _, u := range units {
		if bytes >= u.size {
			return fmt.Sprintf("%.1f%s", float64(bytes)/float64(u.size), u.name)
		}
	}
	return fmt.Sprintf("%dB", bytes)
}
