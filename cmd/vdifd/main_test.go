package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vdifd.yaml")
	if err := os.WriteFile(path, []byte("outDir: "+filepath.Join(dir, "rec")+"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != ":7890" {
		t.Fatalf("Listen = %q, want %q", cfg.Listen, ":7890")
	}
	if cfg.StatusAddr != ":8080" {
		t.Fatalf("StatusAddr = %q, want %q", cfg.StatusAddr, ":8080")
	}
	if cfg.Stem != "live" {
		t.Fatalf("Stem = %q, want %q", cfg.Stem, "live")
	}
	if want := filepath.Join(dir, "rec", "process.jsonl"); cfg.ProcessLog != want {
		t.Fatalf("ProcessLog = %q, want %q", cfg.ProcessLog, want)
	}
	if want := filepath.Join(dir, "rec", "logs"); cfg.Logs.Directory != want {
		t.Fatalf("Logs.Directory = %q, want %q", cfg.Logs.Directory, want)
	}
	if cfg.Logs.MaxSizeMB != 25 || cfg.Logs.MaxAgeDays != 7 || cfg.Logs.MaxBackups != 5 {
		t.Fatalf("log rotation defaults = %+v", cfg.Logs)
	}
}

func TestLoadConfigExplicit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vdifd.yaml")
	doc := `listen: 127.0.0.1:9001
statusAddr: 127.0.0.1:9002
outDir: /srv/vdif
stem: dbe2
processLog: /srv/vdif/ops.jsonl
logs:
  directory: /var/log/vdifd
  maxSizeMB: 100
  maxAgeDays: 30
  maxBackups: 10
  compress: true
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Listen != "127.0.0.1:9001" || cfg.StatusAddr != "127.0.0.1:9002" {
		t.Fatalf("addresses = %q and %q, want the configured ones", cfg.Listen, cfg.StatusAddr)
	}
	if cfg.OutDir != "/srv/vdif" || cfg.Stem != "dbe2" {
		t.Fatalf("output = %q with stem %q, want the configured ones", cfg.OutDir, cfg.Stem)
	}
	if cfg.ProcessLog != "/srv/vdif/ops.jsonl" {
		t.Fatalf("ProcessLog = %q, want %q", cfg.ProcessLog, "/srv/vdif/ops.jsonl")
	}
	if cfg.Logs.Directory != "/var/log/vdifd" || cfg.Logs.MaxSizeMB != 100 || !cfg.Logs.Compress {
		t.Fatalf("logs = %+v, want the configured rotation", cfg.Logs)
	}
}

func TestLoadConfigMissing(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("loadConfig succeeded on a missing file")
	}
}
