package service

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderPlist(t *testing.T) {
	out, err := launchd{}.render(unit{
		Label:     label,
		BinPath:   binDest,
		WorkDir:   "/srv/dashbridge",
		StdoutLog: "/tmp/out.log",
		StderrLog: "/tmp/err.log",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{
		"<string>com.dashbridge.server</string>",
		"<string>/usr/local/bin/dashbridge</string>\n\t\t<string>serve</string>",
		"<string>/srv/dashbridge</string>",
		"<string>/tmp/err.log</string>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected plist to contain %q", want)
		}
	}
}

func TestRenderSystemdUnit(t *testing.T) {
	out, err := systemd{}.render(unit{BinPath: binDest, WorkDir: "/srv/dashbridge"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "ExecStart=/usr/local/bin/dashbridge serve") {
		t.Errorf("missing ExecStart in %s", out)
	}
	if !strings.Contains(out, "WorkingDirectory=/srv/dashbridge") {
		t.Errorf("missing WorkingDirectory in %s", out)
	}
}

func TestSeedConfig(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	cfg := filepath.Join(dir, "home", ".dashbridge", "config")
	os.WriteFile(env, []byte("GRAFANA_API_KEY=g\n"), 0600)

	seeded, err := seedConfig(env, cfg)
	if err != nil || !seeded {
		t.Fatalf("expected seeded config, got %v %v", seeded, err)
	}
	data, _ := os.ReadFile(cfg)
	if string(data) != "GRAFANA_API_KEY=g\n" {
		t.Errorf("unexpected config %q", data)
	}

	os.WriteFile(env, []byte("GRAFANA_API_KEY=other\n"), 0600)
	if seeded, _ := seedConfig(env, cfg); seeded {
		t.Error("existing config must not be overwritten")
	}
}

func TestSeedConfig_NoEnv(t *testing.T) {
	dir := t.TempDir()
	seeded, err := seedConfig(filepath.Join(dir, "missing"), filepath.Join(dir, "config"))
	if err != nil || seeded {
		t.Errorf("expected no-op, got %v %v", seeded, err)
	}
}

func TestResolveWorkDir(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config")

	if got := resolveWorkDir(cfg); got != dir {
		t.Errorf("expected config dir without a config file, got %q", got)
	}

	os.WriteFile(cfg, []byte("DATABASE_PATH=/var/lib/dashbridge.db\n"), 0600)
	if got := resolveWorkDir(cfg); got != dir {
		t.Errorf("expected config dir for absolute db path, got %q", got)
	}

	os.WriteFile(cfg, []byte("DATABASE_PATH=./dashbridge.db\n"), 0600)
	wd, _ := os.Getwd()
	if got := resolveWorkDir(cfg); got != wd {
		t.Errorf("expected cwd for relative db path, got %q", got)
	}
}
