package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Provisioner hands out isolated scratch directories, one per execution.
type Provisioner interface {
	Create() (*Workspace, error)
}

// TempProvisioner creates workspaces under Root (os.TempDir() when empty).
type TempProvisioner struct {
	Root   string
	Prefix string
}

// NewTempProvisioner creates a provisioner rooted at root.
func NewTempProvisioner(root string) *TempProvisioner {
	return &TempProvisioner{Root: root, Prefix: "runbox-*"}
}

func (p *TempProvisioner) Create() (*Workspace, error) {
	if p.Root != "" {
		if err := os.MkdirAll(p.Root, 0o755); err != nil {
			return nil, fmt.Errorf("creating workspace root: %w", err)
		}
	}
	prefix := p.Prefix
	if prefix == "" {
		prefix = "runbox-*"
	}
	dir, err := os.MkdirTemp(p.Root, prefix)
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	// Programs run inside the workspace, so its paths must be absolute.
	abs, err := filepath.Abs(dir)
	if err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("resolving workspace path: %w", err)
	}
	return &Workspace{Dir: abs}, nil
}

// Workspace is a scratch directory owned by a single execution.
type Workspace struct {
	Dir string

	once sync.Once
	err  error
}

// Path returns the absolute path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// WriteFile writes content to name inside the workspace and returns its path.
func (w *Workspace) WriteFile(name, content string) (string, error) {
	path := w.Path(name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path, nil
}

// Release removes the workspace and everything in it. Safe to call more than once.
func (w *Workspace) Release() error {
	w.once.Do(func() {
		if err := os.RemoveAll(w.Dir); err != nil {
			w.err = fmt.Errorf("removing workspace %s: %w", w.Dir, err)
		}
	})
	return w.err
}
