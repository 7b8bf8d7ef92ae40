package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestPort_Default(t *testing.T) {
	os.Unsetenv(EnvPort)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port() != DefaultPort {
		t.Errorf("default Port = %d, want %d", cfg.Port(), DefaultPort)
	}
}

func TestPort_Invalid(t *testing.T) {
	os.Setenv(EnvPort, "not-a-port")
	defer os.Unsetenv(EnvPort)

	if _, err := New(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}

	os.Setenv(EnvPort, "70000")
	if _, err := New(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestDataDir_FromEnv(t *testing.T) {
	os.Setenv(EnvDataDir, "/tmp/vidforge-test")
	defer os.Unsetenv(EnvDataDir)

	cfg, err := New()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DataDir() != "/tmp/vidforge-test" {
		t.Errorf("DataDir = %q, want %q", cfg.DataDir(), "/tmp/vidforge-test")
	}
	if cfg.SessionsDir() != "/tmp/vidforge-test/sessions" {
		t.Errorf("SessionsDir = %q, want sessions under data dir", cfg.SessionsDir())
	}
	if cfg.DBPath() != "/tmp/vidforge-test/"+DBFilename {
		t.Errorf("DBPath = %q, want db under data dir", cfg.DBPath())
	}
}

func TestLoadPresets_MissingFileUsesDefaults(t *testing.T) {
	p, err := LoadPresets(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(p.Quality) == 0 || p.Default == "" {
		t.Fatalf("defaults not populated: %+v", p)
	}
}

func TestLoadPresets_FileOverridesAndBackfills(t *testing.T) {
	path := filepath.Join(t.TempDir(), "presets.yaml")
	content := []byte(`
default: custom
quality:
  - name: custom
    width: 720
    height: 1280
    frame_rate: 24
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPresets(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Default != "custom" {
		t.Errorf("Default = %q, want custom", p.Default)
	}
	q := p.QualityByName("custom")
	if q.Width != 720 || q.FrameRate != 24 {
		t.Errorf("QualityByName returned %+v", q)
	}
	if len(p.Themes) == 0 {
		t.Error("themes not backfilled from defaults")
	}
	if p.Language != "en" {
		t.Errorf("Language = %q, want backfilled en", p.Language)
	}
}

func TestQualityByName_FallsBackToDefault(t *testing.T) {
	p := DefaultPresets()
	q := p.QualityByName("does-not-exist")
	if q.Name != p.Default {
		t.Errorf("fallback preset = %q, want %q", q.Name, p.Default)
	}
}

func TestLoadPresets_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("quality: {not a list"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPresets(path); err == nil {
		t.Fatal("expected parse error")
	}
}
