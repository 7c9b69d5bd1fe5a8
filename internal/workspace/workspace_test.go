package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateWriteRelease(t *testing.T) {
	p := NewTempProvisioner(t.TempDir())

	ws, err := p.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	path, err := ws.WriteFile("code.py", "print('hi')\n")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if filepath.Dir(path) != ws.Dir {
		t.Errorf("file %s not inside %s", path, ws.Dir)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "print('hi')\n" {
		t.Errorf("content = %q", data)
	}

	if err := ws.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(ws.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after release: %v", err)
	}

	// Second release is a no-op.
	if err := ws.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
}

func TestCreateIsolated(t *testing.T) {
	p := NewTempProvisioner(filepath.Join(t.TempDir(), "nested", "root"))

	a, err := p.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer a.Release()
	b, err := p.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer b.Release()

	if a.Dir == b.Dir {
		t.Fatalf("workspaces share a directory: %s", a.Dir)
	}
}

func TestCreateRelativeRootIsAbsolute(t *testing.T) {
	t.Chdir(t.TempDir())
	p := NewTempProvisioner("scratch")

	ws, err := p.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer ws.Release()

	if !filepath.IsAbs(ws.Dir) {
		t.Errorf("Dir = %q, want an absolute path", ws.Dir)
	}
	path, err := ws.WriteFile("code.sh", "echo hi\n")
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Errorf("WriteFile path = %q, want an absolute path", path)
	}
	if _, err := os.Stat(filepath.Join("scratch", filepath.Base(ws.Dir))); err != nil {
		t.Errorf("workspace not under the relative root: %v", err)
	}
}
