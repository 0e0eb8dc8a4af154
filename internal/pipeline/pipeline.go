// Package pipeline orchestrates a full hydrology run: decode, downsample,
// D8 analysis, depression resolution, watershed delineation, river
// extraction, metrics, and export.
package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/openterra/watershed/internal/export"
	"github.com/openterra/watershed/pkg/dem"
	"github.com/openterra/watershed/pkg/hydro"
)

// Pipeline runs the hydrology toolchain over one elevation grid.
type Pipeline struct {
	cfg *Config
	log *slog.Logger
}

// New creates a Pipeline with the given config and logger.
func New(cfg *Config, log *slog.Logger) *Pipeline {
	return &Pipeline{cfg: cfg, log: log}
}

// Result collects everything a run computed, at processing resolution.
type Result struct {
	Grid      *dem.Grid
	Scale     float64 // processing dim / original dim
	Threshold uint32  // river threshold after scale² adjustment
	Flow      *hydro.FlowField
	Watershed *hydro.Watershed
	RiverMask []uint32
	Rivers    []hydro.River
	Metrics   *hydro.Metrics
}

// Run executes the full pipeline on grid and writes all outputs to outDir.
func (p *Pipeline) Run(grid *dem.Grid, outDir string) (*Result, error) {
	if err := p.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outDir, err)
	}

	origDim := maxDim(grid.Width, grid.Height)
	working := grid.Downsample(p.cfg.Resolution)
	scale := float64(maxDim(working.Width, working.Height)) / float64(origDim)

	// Downsampling shrinks every contributing area by scale in each axis;
	// rescale the threshold by scale² to keep the same real-world
	// sensitivity.
	threshold := uint32(float64(p.cfg.RiverThreshold) * scale * scale)
	if threshold < 1 {
		threshold = 1
	}
	if scale != 1 {
		p.log.Info("downsampled input",
			"original", fmt.Sprintf("%dx%d", grid.Width, grid.Height),
			"working", fmt.Sprintf("%dx%d", working.Width, working.Height),
			"threshold", threshold,
		)
	}

	seaLevel := uint16(p.cfg.SeaLevel)
	alt := dem.AltitudeMap{
		MinAltitude: p.cfg.MinAltitude,
		MaxAltitude: p.cfg.MaxAltitude,
		TerrainSize: p.cfg.TerrainSize,
	}

	start := time.Now()
	flow, err := hydro.ComputeD8(working)
	if err != nil {
		return nil, fmt.Errorf("compute flow directions: %w", err)
	}
	p.log.Info("computed D8 flow field", "cells", len(flow.Dir), "elapsed", time.Since(start))

	start = time.Now()
	if err := hydro.Resolve(working, flow, seaLevel); err != nil {
		return nil, fmt.Errorf("resolve depressions: %w", err)
	}
	p.log.Info("resolved depressions", "elapsed", time.Since(start))

	start = time.Now()
	ws := hydro.Delineate(working, flow, seaLevel)
	p.log.Info("delineated watersheds", "basins", ws.Count, "elapsed", time.Since(start))

	if p.cfg.MinBasinArea > 0 {
		before := ws.Count
		ws = hydro.MergeBasins(ws, working, int(p.cfg.MinBasinArea))
		p.log.Info("merged small basins", "before", before, "after", ws.Count)
	}

	start = time.Now()
	mask := hydro.TraceRivers(working, flow, threshold, seaLevel)
	rivers := hydro.ExtractRivers(mask, flow)
	p.log.Info("traced rivers", "rivers", len(rivers), "elapsed", time.Since(start))

	res := &Result{
		Grid:      working,
		Scale:     scale,
		Threshold: threshold,
		Flow:      flow,
		Watershed: ws,
		RiverMask: mask,
		Rivers:    rivers,
	}

	if err := p.export(res, outDir); err != nil {
		return nil, err
	}

	res.Metrics = p.metrics(working, flow, ws, alt, seaLevel, threshold, outDir)
	if err := p.exportMetrics(res.Metrics, outDir); err != nil {
		return nil, err
	}

	return res, nil
}

// metrics runs the TWI / stream-order pass. Basin labels are read back
// from the serialized label raster; when that fails the in-memory
// labelling carries the run rather than failing it.
func (p *Pipeline) metrics(g *dem.Grid, f *hydro.FlowField, ws *hydro.Watershed, alt dem.AltitudeMap, seaLevel uint16, threshold uint32, outDir string) *hydro.Metrics {
	labels, err := export.ReadLabelRaster(filepath.Join(outDir, "watershed_labels.bin"))
	if err != nil {
		p.log.Warn("label raster unreadable, using in-memory basins", "error", err)
		labels = ws
	}

	mcfg := hydro.DefaultMetricsConfig()
	mcfg.Width = p.cfg.MetricsResolution
	mcfg.Height = p.cfg.MetricsResolution
	mcfg.Altitude = alt
	mcfg.SeaLevel = seaLevel
	mcfg.FlowThreshold = threshold

	start := time.Now()
	m := hydro.ComputeMetrics(g, f, labels, mcfg)
	p.log.Info("computed watershed metrics",
		"resolution", mcfg.Width,
		"basins", m.BasinCount,
		"elapsed", time.Since(start),
	)
	return m
}

func (p *Pipeline) export(res *Result, outDir string) error {
	alt := dem.AltitudeMap{
		MinAltitude: p.cfg.MinAltitude,
		MaxAltitude: p.cfg.MaxAltitude,
		TerrainSize: p.cfg.TerrainSize,
	}

	steps := []struct {
		name string
		fn   func() error
	}{
		{"accumulation.png", func() error {
			return export.WriteAccumulationPNG(filepath.Join(outDir, "accumulation.png"), res.Flow)
		}},
		{"rivers.png", func() error {
			return export.WriteRiversPNG(filepath.Join(outDir, "rivers.png"), res.RiverMask, res.Grid.Width, res.Grid.Height)
		}},
		{"terrain_rivers.png", func() error {
			return export.WriteTerrainRiversPNG(filepath.Join(outDir, "terrain_rivers.png"), res.Grid, res.RiverMask)
		}},
		{"watersheds.png", func() error {
			return export.WriteWatershedPNG(filepath.Join(outDir, "watersheds.png"), res.Watershed)
		}},
		{"flow_accumulation.bin", func() error {
			return export.WriteAccumulationRaster(filepath.Join(outDir, "flow_accumulation.bin"), res.Flow)
		}},
		{"flow_direction.bin", func() error {
			return export.WriteDirectionRaster(filepath.Join(outDir, "flow_direction.bin"), res.Flow)
		}},
		{"watershed_labels.bin", func() error {
			return export.WriteLabelRaster(filepath.Join(outDir, "watershed_labels.bin"), res.Watershed)
		}},
		{"rivers.svg", func() error {
			return export.WriteRiversSVG(filepath.Join(outDir, "rivers.svg"), res.Rivers, res.Grid.Width, res.Grid.Height, 1/res.Scale)
		}},
		{"rivers.geojson", func() error {
			return export.WriteRiversGeoJSON(filepath.Join(outDir, "rivers.geojson"), res.Rivers, res.Grid, alt)
		}},
		{"hydrology.json", func() error {
			return export.WriteHydrologyJSON(filepath.Join(outDir, "hydrology.json"), res.Rivers, res.Grid, alt)
		}},
	}

	for _, s := range steps {
		if err := s.fn(); err != nil {
			return fmt.Errorf("export %s: %w", s.name, err)
		}
	}
	p.log.Info("wrote outputs", "dir", outDir, "files", len(steps))
	return nil
}

func (p *Pipeline) exportMetrics(m *hydro.Metrics, outDir string) error {
	if err := export.WriteTWIPNG(filepath.Join(outDir, "twi.png"), m); err != nil {
		return fmt.Errorf("export twi.png: %w", err)
	}
	if err := export.WriteStreamOrderPNG(filepath.Join(outDir, "stream_order.png"), m); err != nil {
		return fmt.Errorf("export stream_order.png: %w", err)
	}
	return nil
}

func maxDim(w, h int) int {
	if h > w {
		return h
	}
	return w
}
