package export

import (
	"context"
	"path/filepath"

	"github.com/abdazzam00/biz-dev-agent/internal/sandbox"
)

// File writes artifacts under Dir, subject to the sandbox path and size
// rules. A nil Sandbox allows any path.
type File struct {
	Dir     string
	Sandbox *sandbox.Sandbox
	// Path, when set, is used verbatim instead of Dir/Name.
	Path string
}

func (f *File) Name() string { return "file" }

func (f *File) Export(_ context.Context, a Artifact) (string, error) {
	path := f.Path
	if path == "" {
		path = filepath.Join(f.Dir, a.Name)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	sb := f.Sandbox
	if sb == nil {
		sb = &sandbox.Sandbox{}
	}
	if err := sb.WriteFile(abs, a.Data); err != nil {
		return "", err
	}
	return abs, nil
}
