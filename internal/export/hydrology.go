package export

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/openterra/watershed/pkg/dem"
	"github.com/openterra/watershed/pkg/hydro"
)

// HydrologyData is the engine-facing description of a run's water bodies,
// keyed to world-space meters.
type HydrologyData struct {
	TerrainSize float64     `json:"terrain_size"`
	Rivers      []RiverData `json:"rivers"`
	Lakes       []LakeData  `json:"lakes"`
}

// RiverData is one river polyline with per-point world positions and
// channel widths.
type RiverData struct {
	Points []RiverPoint `json:"points"`
}

// RiverPoint is a river vertex: world position (X east, Y up, Z south)
// and channel width, all in meters.
type RiverPoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Width float64 `json:"width"`
}

// LakeData is a placeholder; lake extraction is not produced by this
// pipeline yet, but consumers expect the key to exist.
type LakeData struct {
	Points []RiverPoint `json:"points"`
}

// WriteHydrologyJSON writes the engine-facing river description. The lakes
// list is always present and currently always empty.
func WriteHydrologyJSON(path string, rivers []hydro.River, g *dem.Grid, alt dem.AltitudeMap) error {
	maxDim := g.Width
	if g.Height > maxDim {
		maxDim = g.Height
	}
	cellSize := alt.CellSize(maxDim)

	hd := HydrologyData{
		TerrainSize: alt.TerrainSize,
		Rivers:      make([]RiverData, 0, len(rivers)),
		Lakes:       []LakeData{},
	}

	for _, r := range rivers {
		rd := RiverData{Points: make([]RiverPoint, len(r.Points))}
		for i, p := range r.Points {
			cx, cy := int(p.X), int(p.Y)
			if cx >= g.Width {
				cx = g.Width - 1
			}
			if cy >= g.Height {
				cy = g.Height - 1
			}
			rd.Points[i] = RiverPoint{
				X:     p.X * cellSize,
				Y:     alt.Altitude(g.At(cx, cy)),
				Z:     p.Y * cellSize,
				Width: riverWidth(r.Acc[i], cellSize),
			}
		}
		hd.Rivers = append(hd.Rivers, rd)
	}

	return atomicWriteJSON(path, &hd)
}

// atomicWriteJSON marshals v to JSON and writes it atomically using a temp
// file + rename.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
