package hydro

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/openterra/watershed/pkg/dem"
)

// MetricsConfig controls the watershed-metrics pass. The output raster has
// its own resolution; samples are fetched from the flow and elevation
// grids by world-space UV resampling, never by index arithmetic, so the
// resolutions are free to differ.
type MetricsConfig struct {
	Width  int
	Height int

	Altitude dem.AltitudeMap
	SeaLevel uint16

	FlowThreshold uint32 // min accumulation for stream-order candidates

	MinSlope float64 // slope floor, avoids division by zero
	Epsilon  float64 // accumulation floor, avoids log(0)
}

// DefaultMetricsConfig returns the floors used when the caller does not
// care to tune them.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		MinSlope: 0.001,
		Epsilon:  0.001,
	}
}

// Metrics holds the derived terrain-analysis rasters consumed by biome
// classification: topographic wetness, Strahler stream order and basin
// labels, all at the configured output resolution.
type Metrics struct {
	Width       int
	Height      int
	TWI         []float32
	StreamOrder []uint8
	BasinLabels []uint32
	BasinCount  int
}

// ComputeMetrics derives TWI and Strahler stream order from the flow field
// and fuses them with the given basin labelling. ws may come from a
// serialized label raster or a fresh delineation; only its world-space
// footprint has to match.
func ComputeMetrics(g *dem.Grid, f *FlowField, ws *Watershed, cfg MetricsConfig) *Metrics {
	m := &Metrics{
		Width:       cfg.Width,
		Height:      cfg.Height,
		TWI:         make([]float32, cfg.Width*cfg.Height),
		StreamOrder: make([]uint8, cfg.Width*cfg.Height),
		BasinLabels: make([]uint32, cfg.Width*cfg.Height),
	}

	flowDim := f.Width
	if f.Height > flowDim {
		flowDim = f.Height
	}
	cellSize := cfg.Altitude.CellSize(flowDim)
	cellArea := cellSize * cellSize
	altScale := (cfg.Altitude.MaxAltitude - cfg.Altitude.MinAltitude) / 65535.0

	order := strahlerOrder(g, f, cfg.FlowThreshold, cfg.SeaLevel)

	// TWI and resampling are independent per output cell.
	workers := runtime.NumCPU()
	if workers > cfg.Height {
		workers = cfg.Height
	}
	var wg sync.WaitGroup
	rowsPer := (cfg.Height + workers - 1) / workers
	for w := 0; w < workers; w++ {
		y0 := w * rowsPer
		y1 := y0 + rowsPer
		if y1 > cfg.Height {
			y1 = cfg.Height
		}
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				v := (float64(y) + 0.5) / float64(cfg.Height)
				for x := 0; x < cfg.Width; x++ {
					u := (float64(x) + 0.5) / float64(cfg.Width)
					i := y*cfg.Width + x

					fx, fy := nearestCell(u, v, f.Width, f.Height)
					fi := fy*f.Width + fx

					gx, gy := nearestCell(u, v, g.Width, g.Height)
					slope := localSlope(g, gx, gy, cellSize, altScale)
					if slope < cfg.MinSlope {
						slope = cfg.MinSlope
					}

					acc := float64(f.Acc[fi]) + cfg.Epsilon
					m.TWI[i] = float32(math.Log(acc * cellArea / slope))
					m.StreamOrder[i] = order[fi]

					if ws != nil {
						wx, wy := nearestCell(u, v, ws.Width, ws.Height)
						m.BasinLabels[i] = ws.Labels[wy*ws.Width+wx]
					}
				}
			}
		}(y0, y1)
	}
	wg.Wait()

	if ws != nil {
		m.BasinCount = ws.Count
	}
	return m
}

// nearestCell maps a [0,1] UV coordinate to the nearest cell of a raster.
func nearestCell(u, v float64, width, height int) (int, int) {
	x := int(u * float64(width))
	y := int(v * float64(height))
	if x < 0 {
		x = 0
	} else if x >= width {
		x = width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= height {
		y = height - 1
	}
	return x, y
}

// localSlope returns the gradient magnitude in meters per meter at (x, y)
// using central differences, one-sided at the raster border.
func localSlope(g *dem.Grid, x, y int, cellSize, altScale float64) float64 {
	x0, x1 := x-1, x+1
	if x0 < 0 {
		x0 = 0
	}
	if x1 >= g.Width {
		x1 = g.Width - 1
	}
	y0, y1 := y-1, y+1
	if y0 < 0 {
		y0 = 0
	}
	if y1 >= g.Height {
		y1 = g.Height - 1
	}

	dx := (float64(g.At(x1, y)) - float64(g.At(x0, y))) * altScale / (float64(x1-x0) * cellSize)
	dy := (float64(g.At(x, y1)) - float64(g.At(x, y0))) * altScale / (float64(y1-y0) * cellSize)
	return math.Hypot(dx, dy)
}

// strahlerOrder computes Strahler stream order on the flow grid. Only
// land cells at or above the flow threshold are channel candidates.
// Cells are processed in ascending accumulation order, which guarantees
// every upstream channel cell is ordered before its downstream neighbor:
// accumulation is strictly increasing along flow paths.
func strahlerOrder(g *dem.Grid, f *FlowField, threshold uint32, seaLevel uint16) []uint8 {
	n := f.Width * f.Height
	order := make([]uint8, n)

	var cells []int
	for i := 0; i < n; i++ {
		if f.Acc[i] >= threshold && g.Data[i] > seaLevel {
			cells = append(cells, i)
		}
	}
	sort.Slice(cells, func(a, b int) bool {
		return f.Acc[cells[a]] < f.Acc[cells[b]]
	})

	var upstream []int
	for _, i := range cells {
		upstream = f.upstreamNeighbors(i%f.Width, i/f.Width, upstream[:0])

		var maxOrd uint8
		atMax := 0
		for _, ni := range upstream {
			if order[ni] == 0 {
				continue // not a channel cell
			}
			switch {
			case order[ni] > maxOrd:
				maxOrd = order[ni]
				atMax = 1
			case order[ni] == maxOrd:
				atMax++
			}
		}

		switch {
		case maxOrd == 0:
			order[i] = 1
		case atMax >= 2 && maxOrd < 255:
			order[i] = maxOrd + 1
		default:
			order[i] = maxOrd
		}
	}

	return order
}
