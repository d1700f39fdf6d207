// Package workspace manages the single-use directories executions run in.
//
// LIFECYCLE:
//
//	ws, err := mgr.Stage(source, "Hello.java", profile)
//	if err != nil { ... }          // nothing left on disk
//	defer mgr.Release(ws)          // runs on every exit path, panics included
//
// Uniqueness is structural: each Stage creates a fresh directory through
// os.MkdirTemp with an xid in its prefix, so concurrent executions never share
// a directory and no lock is needed.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/xid"

	"github.com/sakif/coderunner/internal/apperror"
	"github.com/sakif/coderunner/internal/language"
)

const dirPrefix = "exec-"

// Workspace is one execution's private directory.
type Workspace struct {
	// ID identifies the execution in logs and user-visible error references.
	ID string
	// Dir is the absolute, symlink-resolved root. It is never shown to users.
	Dir string
	// SourceFile is the staged source file name, relative to Dir.
	SourceFile string

	release sync.Once
}

// Path resolves name inside the workspace and rejects anything that would
// land outside it (absolute paths, "..", symlinked parents).
func (w *Workspace) Path(name string) (string, error) {
	return contain(w.Dir, name)
}

// Manager creates and removes workspaces under a root directory.
type Manager struct {
	root   string
	logger *slog.Logger
}

// NewManager returns a Manager rooted at root. An empty root means the OS
// temp directory. The root is created if missing.
func NewManager(root string, logger *slog.Logger) (*Manager, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("workspace: creating root: %w", err)
	}
	// Resolve symlinks once so containment checks compare canonical paths
	// (on macOS /tmp is a symlink to /private/tmp).
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolving root: %w", err)
	}
	abs, err := filepath.Abs(resolved)
	if err != nil {
		return nil, fmt.Errorf("workspace: resolving root: %w", err)
	}
	return &Manager{root: abs, logger: logger}, nil
}

// Root returns the directory workspaces are created in.
func (m *Manager) Root() string {
	return m.root
}

// Stage allocates a fresh workspace and writes source into it under the name
// the profile requires. On error nothing is left behind.
func (m *Manager) Stage(source, declaredName string, profile language.Profile) (*Workspace, error) {
	id := xid.New().String()

	dir, err := os.MkdirTemp(m.root, dirPrefix+id+"-")
	if err != nil {
		return nil, fmt.Errorf("workspace: creating directory: %w", err)
	}

	ws := &Workspace{
		ID:         id,
		Dir:        dir,
		SourceFile: profile.SourceName(declaredName),
	}

	path, err := ws.Path(ws.SourceFile)
	if err != nil {
		m.Release(ws)
		return nil, err
	}
	if err := os.WriteFile(path, []byte(source), 0o600); err != nil {
		m.Release(ws)
		return nil, fmt.Errorf("workspace: writing source: %w", err)
	}

	m.logger.Debug("workspace staged",
		slog.String("id", ws.ID),
		slog.String("language", profile.ID),
		slog.String("file", ws.SourceFile),
	)
	return ws, nil
}

// Release removes the workspace recursively. It is safe to call more than
// once and on nil; failures are logged and never returned so they cannot mask
// the execution's real outcome.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil {
		return
	}
	ws.release.Do(func() {
		if err := os.RemoveAll(ws.Dir); err != nil {
			m.logger.Error("failed to remove workspace",
				slog.String("id", ws.ID),
				slog.String("error", err.Error()),
			)
			return
		}
		m.logger.Debug("workspace released", slog.String("id", ws.ID))
	})
}

// contain joins name onto root and verifies the result stays within root.
// Existing path components are resolved through symlinks before the check.
func contain(root, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.ContainsRune(name, 0) {
		return "", apperror.PathEscape(name)
	}

	joined := filepath.Join(root, name)
	if !within(root, joined) {
		return "", apperror.PathEscape(name)
	}

	// The file itself may not exist yet; canonicalise its parent.
	parent, err := filepath.EvalSymlinks(filepath.Dir(joined))
	if err != nil {
		return "", apperror.PathEscape(name)
	}
	resolved := filepath.Join(parent, filepath.Base(joined))
	if !within(root, resolved) {
		return "", apperror.PathEscape(name)
	}
	if info, err := os.Lstat(resolved); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return "", apperror.PathEscape(name)
	}
	return resolved, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
