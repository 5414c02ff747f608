package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoader_Layers(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	nested := filepath.Join(project, "docs", "specs")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	writeFile(t, filepath.Join(home, UserConfigDir, UserConfigFile), `
identifier:
  prefix: USER
server:
  addr: "127.0.0.1:9999"
`)
	writeFile(t, filepath.Join(project, ProjectConfigFile), `
identifier:
  prefix: PROJ
source:
  root: docs
`)

	l := NewLoader(nil)
	l.home = home
	l.cwd = nested

	cfg, err := l.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Identifier.Prefix != "PROJ" {
		t.Errorf("project config should win over user config, got %s", cfg.Identifier.Prefix)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("expected user server addr, got %s", cfg.Server.Addr)
	}
	if want := filepath.Join(project, "docs"); cfg.Source.Root != want {
		t.Errorf("expected root %s, got %s", want, cfg.Source.Root)
	}

	explicit := filepath.Join(t.TempDir(), "ci.yaml")
	writeFile(t, explicit, "identifier:\n  prefix: CI\n")
	cfg, err = l.Load(explicit)
	if err != nil {
		t.Fatalf("Load(explicit) error = %v", err)
	}
	if cfg.Identifier.Prefix != "CI" {
		t.Errorf("explicit config should win, got %s", cfg.Identifier.Prefix)
	}
}

func TestLoader_NoConfigUsesWorkingDir(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(nil)
	l.home = t.TempDir()
	l.cwd = dir

	cfg, err := l.Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Source.Root != dir {
		t.Errorf("expected root %s, got %s", dir, cfg.Source.Root)
	}
}

func TestLoader_InvalidProjectConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectConfigFile), "identifier:\n  scope: tree\n")

	l := NewLoader(nil)
	l.home = t.TempDir()
	l.cwd = dir
	if _, err := l.Load(""); err == nil {
		t.Error("expected validation error")
	}
}

func TestLoader_WriteProjectConfig(t *testing.T) {
	dir := t.TempDir()
	l := NewLoader(nil)

	path, err := l.WriteProjectConfig(dir)
	if err != nil {
		t.Fatalf("WriteProjectConfig() error = %v", err)
	}
	if path != filepath.Join(dir, ProjectConfigFile) {
		t.Errorf("unexpected path %s", path)
	}
	if _, err := LoadFromFile(path); err != nil {
		t.Errorf("written config should load: %v", err)
	}
	if _, err := l.WriteProjectConfig(dir); err == nil {
		t.Error("expected error when config exists")
	}
}
