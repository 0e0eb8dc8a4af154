package pipeline

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/openterra/watershed/pkg/dem"
)

// rampGrid slopes monotonically toward the east so every cell drains
// without depression resolution doing any work.
func rampGrid(t *testing.T, w, h int) *dem.Grid {
	t.Helper()
	data := make([]uint16, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			data[y*w+x] = uint16((w - x) * 1000)
		}
	}
	g, err := dem.NewGrid(w, h, data)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

func runCfg() *Config {
	cfg := DefaultConfig()
	cfg.RiverThreshold = 5
	cfg.MetricsResolution = 32
	return cfg
}

func TestRunProducesOutputs(t *testing.T) {
	g := rampGrid(t, 16, 12)
	outDir := filepath.Join(t.TempDir(), "out")

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	res, err := New(runCfg(), log).Run(g, outDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Watershed.Count < 1 {
		t.Errorf("basin count = %d, want >= 1", res.Watershed.Count)
	}
	if len(res.Rivers) == 0 {
		t.Error("no rivers traced on a draining ramp")
	}
	if res.Metrics == nil || res.Metrics.BasinCount < 1 {
		t.Fatal("metrics stage produced no basin labelling")
	}
	if len(res.Metrics.TWI) != 32*32 {
		t.Errorf("TWI raster has %d cells, want %d", len(res.Metrics.TWI), 32*32)
	}

	for _, name := range []string{
		"accumulation.png", "rivers.png", "terrain_rivers.png", "watersheds.png",
		"flow_accumulation.bin", "flow_direction.bin", "watershed_labels.bin",
		"rivers.svg", "rivers.geojson", "hydrology.json",
		"twi.png", "stream_order.png",
	} {
		if _, err := os.Stat(filepath.Join(outDir, name)); err != nil {
			t.Errorf("output %s missing: %v", name, err)
		}
	}
}

func TestMetricsFallsBackOnBadLabelRaster(t *testing.T) {
	g := rampGrid(t, 16, 12)
	outDir := filepath.Join(t.TempDir(), "out")

	cfg := runCfg()
	var logged bytes.Buffer
	log := slog.New(slog.NewTextHandler(&logged, &slog.HandlerOptions{Level: slog.LevelWarn}))

	p := New(cfg, log)
	res, err := p.Run(g, outDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Corrupt the serialized labels and rerun the metrics stage: the run
	// degrades to the in-memory labelling instead of failing.
	labelPath := filepath.Join(outDir, "watershed_labels.bin")
	if err := os.WriteFile(labelPath, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	alt := dem.AltitudeMap{
		MinAltitude: cfg.MinAltitude,
		MaxAltitude: cfg.MaxAltitude,
		TerrainSize: cfg.TerrainSize,
	}
	m := p.metrics(res.Grid, res.Flow, res.Watershed, alt, uint16(cfg.SeaLevel), res.Threshold, outDir)

	if m.BasinCount != res.Watershed.Count {
		t.Errorf("fallback basin count = %d, want %d", m.BasinCount, res.Watershed.Count)
	}
	labelled := 0
	for _, l := range m.BasinLabels {
		if l != 0 {
			labelled++
		}
	}
	if labelled == 0 {
		t.Error("fallback produced no labelled cells")
	}
	if !bytes.Contains(logged.Bytes(), []byte("label raster unreadable")) {
		t.Error("degraded metrics run did not log a warning")
	}
}
