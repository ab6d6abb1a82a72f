package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDriversDefaults(t *testing.T) {
	df, err := LoadDrivers("")
	if err != nil {
		t.Fatalf("LoadDrivers: %v", err)
	}
	for _, name := range []string{"Landsat8", "EarthSearch", "ElevationTiles"} {
		d, ok := df.Drivers[name]
		if !ok {
			t.Fatalf("default driver %s missing", name)
		}
		if !d.Enabled {
			t.Fatalf("default driver %s disabled", name)
		}
	}
}

func TestLoadDriversFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drivers.toml")
	content := `
[drivers.Landsat8]
enabled = true
endpoint = "https://example.test/search"

[drivers.ElevationTiles]
enabled = false
zoom = 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	df, err := LoadDrivers(path)
	if err != nil {
		t.Fatalf("LoadDrivers: %v", err)
	}
	ls, ok := df.Drivers["Landsat8"]
	if !ok || !ls.Enabled || ls.Endpoint != "https://example.test/search" {
		t.Fatalf("Landsat8=%+v", ls)
	}
	et := df.Drivers["ElevationTiles"]
	if et.Enabled || et.Zoom != 10 {
		t.Fatalf("ElevationTiles=%+v", et)
	}
}

func TestLoadDriversErrors(t *testing.T) {
	if _, err := LoadDrivers("/does/not/exist.toml"); err == nil {
		t.Fatal("missing file should error")
	}

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.toml")
	if err := os.WriteFile(empty, []byte("# nothing here\n"), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	if _, err := LoadDrivers(empty); err == nil {
		t.Fatal("file without drivers should error")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.ExecMaxWorkers != 8 {
		t.Fatalf("ExecMaxWorkers=%d", cfg.ExecMaxWorkers)
	}
	if cfg.Coverage.Resolution != 5 {
		t.Fatalf("Resolution=%d", cfg.Coverage.Resolution)
	}
}

func TestFromEnvClampsResolution(t *testing.T) {
	t.Setenv("COVERAGE_H3_RES", "99")
	if got := FromEnv().Coverage.Resolution; got != 15 {
		t.Fatalf("Resolution=%d want 15", got)
	}
	t.Setenv("COVERAGE_H3_RES", "-3")
	if got := FromEnv().Coverage.Resolution; got != 0 {
		t.Fatalf("Resolution=%d want 0", got)
	}
}
