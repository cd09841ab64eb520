package workspace

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/isdmx/coderoom/config"
)

// Permissions are world-readable because the sandbox user is not the host user.
const (
	DirPermission  os.FileMode = 0o755
	FilePermission os.FileMode = 0o644
)

// ErrUnsafePath is returned for file names that would escape the workspace root
var ErrUnsafePath = errors.New("unsafe file name")

// Workspace is one request's private directory and the files written into it
type Workspace struct {
	ID   string
	Root string
	// Files maps slash-separated names relative to Root to their content.
	Files map[string]string

	releaseOnce sync.Once
}

// Names returns the materialized file names in sorted order
func (w *Workspace) Names() []string {
	names := make([]string, 0, len(w.Files))
	for name := range w.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Manager creates, populates and removes workspaces
type Manager struct {
	logger    *zap.Logger
	fs        FileSystem
	baseDir   string
	onFailure func(error)
}

// Option configures a Manager
type Option func(*Manager)

// WithFileSystem sets the FileSystem used by the Manager
func WithFileSystem(fs FileSystem) Option {
	return func(m *Manager) {
		m.fs = fs
	}
}

// WithBaseDir sets the parent directory for workspaces; empty means the OS temp dir
func WithBaseDir(dir string) Option {
	return func(m *Manager) {
		m.baseDir = dir
	}
}

// WithCleanupErrorHook registers f to be called when a workspace cannot be removed
func WithCleanupErrorHook(f func(error)) Option {
	return func(m *Manager) {
		m.onFailure = f
	}
}

// NewManager creates a Manager with the real file system
func NewManager(logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		logger: logger,
		fs:     RealFileSystem{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewManagerFromConfig creates a Manager rooted at sandbox.workspace_root
func NewManagerFromConfig(logger *zap.Logger, cfg *config.Config, opts ...Option) *Manager {
	return NewManager(logger, append([]Option{WithBaseDir(cfg.Sandbox.WorkspaceRoot)}, opts...)...)
}

// Acquire creates a uniquely named empty directory for requestID
func (m *Manager) Acquire(requestID string) (*Workspace, error) {
	root, err := m.fs.MkdirTemp(m.baseDir, "coderoom-"+sanitizeID(requestID)+"-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	ws := &Workspace{ID: requestID, Root: root, Files: make(map[string]string)}

	if err := m.fs.Chmod(root, DirPermission); err != nil {
		m.Release(ws)
		return nil, fmt.Errorf("failed to set workspace permissions: %w", err)
	}

	m.logger.Debug("workspace acquired", zap.String("request_id", requestID), zap.String("path", root))
	return ws, nil
}

// Materialize writes files under the workspace root, creating parent directories.
// All names are checked before the first write.
func (m *Manager) Materialize(ws *Workspace, files map[string]string) error {
	resolved := make(map[string]string, len(files))
	for name := range files {
		clean, err := CheckName(name)
		if err != nil {
			return err
		}
		resolved[name] = clean
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		clean := resolved[name]
		target := filepath.Join(ws.Root, filepath.FromSlash(clean))

		if err := m.fs.MkdirAll(filepath.Dir(target), DirPermission); err != nil {
			return fmt.Errorf("failed to create parent directories for %s: %w", clean, err)
		}
		if err := m.fs.WriteFile(target, []byte(files[name]), FilePermission); err != nil {
			return fmt.Errorf("failed to write %s: %w", clean, err)
		}
		ws.Files[clean] = files[name]
	}

	return nil
}

// Release removes the workspace tree. Failures are logged, never returned:
// a dangling temp directory must not turn a finished execution into an error.
func (m *Manager) Release(ws *Workspace) {
	if ws == nil {
		return
	}
	ws.releaseOnce.Do(func() {
		if err := m.fs.RemoveAll(ws.Root); err != nil {
			m.logger.Error("failed to remove workspace",
				zap.String("request_id", ws.ID),
				zap.String("path", ws.Root),
				zap.Error(err))
			if m.onFailure != nil {
				m.onFailure(err)
			}
			return
		}
		m.logger.Debug("workspace released", zap.String("request_id", ws.ID), zap.String("path", ws.Root))
	})
}

// CheckName validates a submitted file name and returns its cleaned, slash-separated form.
func CheckName(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnsafePath)
	}
	if strings.ContainsRune(name, 0) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	slashed := strings.ReplaceAll(name, `\`, "/")
	if path.IsAbs(slashed) || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%w: absolute path not allowed: %s", ErrUnsafePath, name)
	}
	for _, part := range strings.Split(slashed, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: parent reference not allowed: %s", ErrUnsafePath, name)
		}
	}

	clean := path.Clean(slashed)
	if clean == "." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return clean, nil
}

func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' {
			b.WriteRune(r)
		}
		if b.Len() >= 36 {
			break
		}
	}
	if b.Len() == 0 {
		return "req"
	}
	return b.String()
}
