// Package publish holds the tool execution targets a resolved pending
// action can invoke: a local workspace file write and a GitHub
// contents-API publish. Both are opaque to the rest of the core, which
// only decides which one to call and with what payload.
package publish

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Local writes generated content into a workspace directory. Paths are
// confined to the workspace root.
type Local struct {
	base string
}

// NewLocal creates the workspace directory if needed.
func NewLocal(workspace string) (*Local, error) {
	base, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Local{base: base}, nil
}

// Write stores content at the given workspace-relative path and returns
// the absolute path written. A path that escapes the workspace is
// rejected.
func (l *Local) Write(relPath, content string) (string, error) {
	target := filepath.Join(l.base, relPath)
	if target != l.base && !strings.HasPrefix(target, l.base+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes workspace", relPath)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create parent directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", relPath, err)
	}
	return target, nil
}
