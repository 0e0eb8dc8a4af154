package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("missing config must not error: %v", err)
	}
	if cfg != nil {
		t.Fatalf("missing config returned %+v, want nil", cfg)
	}
}

func TestLoadConfigPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"river_threshold": 500, "sea_level": 9000}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RiverThreshold != 500 || cfg.SeaLevel != 9000 {
		t.Errorf("got threshold %d, sea %d", cfg.RiverThreshold, cfg.SeaLevel)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Resolution != DefaultConfig().Resolution {
		t.Errorf("resolution = %d, want default %d", cfg.Resolution, DefaultConfig().Resolution)
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{not json`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed config accepted")
	}
}

func TestMergeRespectsExplicitFlags(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RiverThreshold = 123 // set via -t
	cfg.SeaLevel = 456       // set via --sea-level

	fromFile := DefaultConfig()
	fromFile.RiverThreshold = 999
	fromFile.SeaLevel = 888
	fromFile.MinBasinArea = 777

	Merge(cfg, fromFile, map[string]bool{"t": true, "sea-level": true})

	if cfg.RiverThreshold != 123 {
		t.Errorf("explicit -t overwritten: %d", cfg.RiverThreshold)
	}
	if cfg.SeaLevel != 456 {
		t.Errorf("explicit --sea-level overwritten: %d", cfg.SeaLevel)
	}
	if cfg.MinBasinArea != 777 {
		t.Errorf("file value not applied: %d", cfg.MinBasinArea)
	}
}

func TestValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	bad := DefaultConfig()
	bad.SeaLevel = 70000
	if err := bad.Validate(); err == nil {
		t.Error("sea level beyond 16 bits accepted")
	}

	bad = DefaultConfig()
	bad.TerrainSize = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero terrain size accepted")
	}

	bad = DefaultConfig()
	bad.MaxAltitude = bad.MinAltitude
	if err := bad.Validate(); err == nil {
		t.Error("flat altitude range accepted")
	}

	bad = DefaultConfig()
	bad.MetricsResolution = 0
	if err := bad.Validate(); err == nil {
		t.Error("zero metrics resolution accepted")
	}
}
