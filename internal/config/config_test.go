package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelbrown/runbox/internal/runner"
)

func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("port = %d, want 5000", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if !cfg.Storage.Enabled {
		t.Error("storage should be enabled by default")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level = %q", cfg.Log.Level)
	}
	if got, want := cfg.Execution.Timing(), runner.DefaultTiming(); got != want {
		t.Errorf("timing = %+v, want %+v", got, want)
	}
}

func TestLoadFile(t *testing.T) {
	isolate(t)

	dir := t.TempDir()
	tcPath := filepath.Join(dir, "toolchains.yaml")
	if err := os.WriteFile(tcPath, []byte("bash:\n  extension: .sh\n  run: [bash, \"{source}\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(dir, "runbox.yaml")
	content := `server:
  port: 7000
log:
  level: debug
execution:
  stop_grace: 5s
  start_window: 250ms
  output_buffer: 16
toolchains_file: ` + tcPath + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	timing := cfg.Execution.Timing()
	if timing.StopGrace != 5*time.Second || timing.StartWindow != 250*time.Millisecond {
		t.Errorf("timing = %+v", timing)
	}
	if timing.OutputBuffer != 16 {
		t.Errorf("output buffer = %d", timing.OutputBuffer)
	}
	if timing.InputWindow != time.Second {
		t.Errorf("unset key lost its default: input window = %v", timing.InputWindow)
	}

	table, err := cfg.Toolchains()
	if err != nil {
		t.Fatalf("Toolchains: %v", err)
	}
	if _, ok := table.Lookup("bash"); !ok {
		t.Error("toolchains file not merged")
	}
	if _, ok := table.Lookup("python"); !ok {
		t.Error("built-in toolchains lost after merge")
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		t.Fatalf("Logger: %v", err)
	}
	_ = logger.Sync()
}

func TestLoadExplicitMissingFile(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for an explicit missing config file")
	}
}

func TestEnvOverride(t *testing.T) {
	isolate(t)
	t.Setenv("RUNBOX_SERVER_PORT", "6001")
	t.Setenv("RUNBOX_EXECUTION_STOP_GRACE", "3s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 6001 {
		t.Errorf("port = %d, want 6001", cfg.Server.Port)
	}
	if cfg.Execution.StopGrace != 3*time.Second {
		t.Errorf("stop grace = %v", cfg.Execution.StopGrace)
	}
}

func TestBadLogLevel(t *testing.T) {
	if _, err := (LogConfig{Level: "loud"}).Logger(); err == nil {
		t.Error("expected error for unknown log level")
	}
}
