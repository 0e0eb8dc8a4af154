// Package hydro implements the raster hydrology toolchain: D8 flow
// directions, depression resolution by watershed merging, flow
// accumulation, basin delineation and merging, river tracing and
// wetness/stream-order metrics.
package hydro

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/openterra/watershed/pkg/dem"
)

// NoFlow marks a cell with no downslope neighbor (pit or flat).
const NoFlow int8 = 8

// D8 direction codes 0..7 in compass order N, NE, E, SE, S, SW, W, NW.
var (
	dirDX = [8]int{0, 1, 1, 1, 0, -1, -1, -1}
	dirDY = [8]int{-1, -1, 0, 1, 1, 1, 0, -1}

	// Distance to each neighbor; diagonals are weighted by sqrt(2).
	dirDist = [8]float64{1, math.Sqrt2, 1, math.Sqrt2, 1, math.Sqrt2, 1, math.Sqrt2}
)

// FlowField holds per-cell D8 flow directions and flow accumulation for a
// raster. Directions are mutated in place by the depression resolver;
// accumulation must be recomputed after any direction change.
type FlowField struct {
	Width  int
	Height int
	Dir    []int8   // 0..7 compass code or NoFlow
	Acc    []uint32 // 1 (self) + upstream contributors
}

// Index returns the flat index of (x, y).
func (f *FlowField) Index(x, y int) int {
	return y*f.Width + x
}

// Downstream returns the flat index of the cell that i flows into.
// ok is false when i has no flow or drains off the grid edge.
func (f *FlowField) Downstream(i int) (next int, ok bool) {
	d := f.Dir[i]
	if d == NoFlow {
		return 0, false
	}
	x := i%f.Width + dirDX[d]
	y := i/f.Width + dirDY[d]
	if x < 0 || x >= f.Width || y < 0 || y >= f.Height {
		return 0, false
	}
	return y*f.Width + x, true
}

// DrainsOffGrid reports whether cell i flows across the raster edge.
func (f *FlowField) DrainsOffGrid(i int) bool {
	d := f.Dir[i]
	if d == NoFlow {
		return false
	}
	x := i%f.Width + dirDX[d]
	y := i/f.Width + dirDY[d]
	return x < 0 || x >= f.Width || y < 0 || y >= f.Height
}

// FlowsInto reports whether cell (x, y) flows into cell (tx, ty).
func (f *FlowField) FlowsInto(x, y, tx, ty int) bool {
	d := f.Dir[y*f.Width+x]
	if d == NoFlow {
		return false
	}
	return x+dirDX[d] == tx && y+dirDY[d] == ty
}

// ComputeD8 derives a flow field from the elevation grid: per cell, the
// steepest-descent neighbor weighted by distance, or NoFlow when no
// neighbor is strictly lower. A step off the raster edge always wins over
// any in-grid neighbor, so every edge cell can drain off-map. Ties between
// equal descent slopes resolve to the first direction in scan order 0..7.
func ComputeD8(g *dem.Grid) (*FlowField, error) {
	f := &FlowField{
		Width:  g.Width,
		Height: g.Height,
		Dir:    make([]int8, g.Width*g.Height),
	}

	// Direction choice is independent per cell; split rows across workers.
	workers := runtime.NumCPU()
	if workers > g.Height {
		workers = g.Height
	}
	var wg sync.WaitGroup
	rowsPer := (g.Height + workers - 1) / workers
	for w := 0; w < workers; w++ {
		y0 := w * rowsPer
		y1 := y0 + rowsPer
		if y1 > g.Height {
			y1 = g.Height
		}
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			for y := y0; y < y1; y++ {
				for x := 0; x < g.Width; x++ {
					f.Dir[y*g.Width+x] = steepestDescent(g, x, y)
				}
			}
		}(y0, y1)
	}
	wg.Wait()

	if err := f.Accumulate(); err != nil {
		return nil, err
	}
	return f, nil
}

func steepestDescent(g *dem.Grid, x, y int) int8 {
	h := g.At(x, y)
	best := NoFlow
	bestSlope := 0.0
	for d := 0; d < 8; d++ {
		nx, ny := x+dirDX[d], y+dirDY[d]
		if !g.InBounds(nx, ny) {
			// Edge drain: stepping off-map beats any finite descent.
			return int8(d)
		}
		nh := g.At(nx, ny)
		if nh >= h {
			continue
		}
		slope := float64(h-nh) / dirDist[d]
		if slope > bestSlope {
			bestSlope = slope
			best = int8(d)
		}
	}
	return best
}

// Accumulate recomputes flow accumulation from the direction field using
// Kahn's algorithm over the flow graph. Every cell contributes 1 for
// itself plus everything upstream of it. Returns an error if the graph
// contains a cycle, which the D8 rules and depression resolution are
// supposed to rule out.
func (f *FlowField) Accumulate() error {
	n := f.Width * f.Height
	f.Acc = make([]uint32, n)
	indeg := make([]int32, n)

	for i := 0; i < n; i++ {
		f.Acc[i] = 1
		if next, ok := f.Downstream(i); ok {
			indeg[next]++
		}
	}

	queue := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			queue = append(queue, i)
		}
	}

	processed := 0
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		processed++
		if next, ok := f.Downstream(i); ok {
			f.Acc[next] += f.Acc[i]
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if processed != n {
		return fmt.Errorf("flow accumulation: %d cells stuck in a cycle", n-processed)
	}
	return nil
}

// upstreamNeighbors appends to buf the flat indices of cells whose
// direction points at cell (x, y), and returns the extended slice.
func (f *FlowField) upstreamNeighbors(x, y int, buf []int) []int {
	for d := 0; d < 8; d++ {
		nx, ny := x+dirDX[d], y+dirDY[d]
		if nx < 0 || nx >= f.Width || ny < 0 || ny >= f.Height {
			continue
		}
		if f.FlowsInto(nx, ny, x, y) {
			buf = append(buf, ny*f.Width+nx)
		}
	}
	return buf
}
