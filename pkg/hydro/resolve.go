package hydro

import (
	"container/heap"
	"fmt"

	"github.com/openterra/watershed/pkg/dem"
)

// basin tracks the merge state of one drainage basin during depression
// resolution. Stored at the union-find root; stale entries at non-root
// indices are never read.
type basin struct {
	sink     int  // flat index of the terminal cell
	area     int32
	boundary bool // drains to sea or off the raster edge
}

// spill links two adjacent basins through their cheapest boundary crossing.
type spill struct {
	elev   uint16 // max elevation of the two crossing cells
	a, b   int    // flat cell indices, a in basin la, b in basin lb
	la, lb int32  // original basin ids (0-based)
}

type spillHeap []spill

func (h spillHeap) Len() int            { return len(h) }
func (h spillHeap) Less(i, j int) bool  { return h[i].elev < h[j].elev }
func (h spillHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *spillHeap) Push(x any)         { *h = append(*h, x.(spill)) }
func (h *spillHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	*h = old[:n-1]
	return s
}

// Resolve re-routes flow out of every depression so that all land cells
// (elevation > seaLevel) drain to the sea or off the raster edge. The
// elevation data is never modified; only flow directions are rewritten,
// following the watershed-merge method: label basins from their sinks,
// find the cheapest spill crossing between each adjacent basin pair, then
// greedily connect basins in ascending spill elevation, redirecting the
// cheaper basin's flow from its sink out across the spill. Accumulation is
// recomputed once at the end.
func Resolve(g *dem.Grid, f *FlowField, seaLevel uint16) error {
	n := g.Width * g.Height

	labels, basins := labelBasins(g, f, seaLevel)

	if len(basins) < 2 {
		return f.Accumulate()
	}

	// Cheapest spill crossing per adjacent basin pair. Checking the four
	// forward directions covers every 8-adjacency exactly once.
	cheapest := make(map[uint64]spill)
	forward := [4]int{2, 3, 4, 5} // E, SE, S, SW
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			i := y*f.Width + x
			la := labels[i] - 1
			for _, d := range forward {
				nx, ny := x+dirDX[d], y+dirDY[d]
				if nx < 0 || nx >= f.Width || ny < 0 || ny >= f.Height {
					continue
				}
				j := ny*f.Width + nx
				lb := labels[j] - 1
				if la == lb {
					continue
				}
				elev := g.Data[i]
				if g.Data[j] > elev {
					elev = g.Data[j]
				}
				lo, hi := la, lb
				if lo > hi {
					lo, hi = hi, lo
				}
				key := uint64(lo)<<32 | uint64(hi)
				if prev, ok := cheapest[key]; !ok || elev < prev.elev {
					cheapest[key] = spill{elev: elev, a: i, b: j, la: la, lb: lb}
				}
			}
		}
	}

	h := make(spillHeap, 0, len(cheapest))
	for _, s := range cheapest {
		h = append(h, s)
	}
	heap.Init(&h)

	uf := newUnionFind(len(basins))

	// Scratch buffers for BFS path reconstruction, reused across merges.
	prev := make([]int32, n)
	seen := make([]int32, n)
	generation := int32(0)

	for h.Len() > 0 {
		s := heap.Pop(&h).(spill)
		ra, rb := uf.find(s.la), uf.find(s.lb)
		if ra == rb {
			continue
		}
		ba, bb := basins[ra], basins[rb]
		if ba.boundary && bb.boundary {
			// Both already reach the sea or the edge; nothing to connect.
			continue
		}

		// The interior basin gets redirected; between two interior basins
		// the smaller one moves.
		redirect, other := ra, rb
		from, to := s.a, s.b
		if ba.boundary || (!bb.boundary && ba.area > bb.area) {
			redirect, other = rb, ra
			from, to = s.b, s.a
		}

		generation++
		path, err := bfsPath(f, labels, uf, redirect, basins[redirect].sink, from, prev, seen, generation)
		if err != nil {
			return err
		}
		for k := 0; k+1 < len(path); k++ {
			f.Dir[path[k]] = dirBetween(f.Width, path[k], path[k+1])
		}
		f.Dir[from] = dirBetween(f.Width, from, to)

		root := uf.union(ra, rb)
		basins[root] = basin{
			sink:     basins[other].sink,
			area:     ba.area + bb.area,
			boundary: ba.boundary || bb.boundary,
		}
	}

	// Every remaining land pit would stall flow; with a connected raster
	// the merge loop is supposed to leave none.
	pits := 0
	for i := 0; i < n; i++ {
		if f.Dir[i] == NoFlow && g.Data[i] > seaLevel {
			pits++
		}
	}
	if pits > 0 {
		return fmt.Errorf("depression resolution: %d land pits remain", pits)
	}

	return f.Accumulate()
}

// bfsPath finds a path from the basin's sink to the spill cell, moving only
// through cells of the redirect basin, and returns it sink-first.
func bfsPath(f *FlowField, labels []int32, uf *unionFind, root int32, sink, target int, prev, seen []int32, gen int32) ([]int, error) {
	queue := []int{sink}
	seen[sink] = gen
	prev[sink] = -1

	found := false
	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		cx, cy := cur%f.Width, cur/f.Width
		for d := 0; d < 8; d++ {
			nx, ny := cx+dirDX[d], cy+dirDY[d]
			if nx < 0 || nx >= f.Width || ny < 0 || ny >= f.Height {
				continue
			}
			ni := ny*f.Width + nx
			if seen[ni] == gen || uf.find(labels[ni]-1) != root {
				continue
			}
			seen[ni] = gen
			prev[ni] = int32(cur)
			if ni == target {
				found = true
				break
			}
			queue = append(queue, ni)
		}
	}
	if !found && sink != target {
		return nil, fmt.Errorf("spill redirection: no path from sink to spill cell")
	}

	path := []int{}
	for cur := target; cur != -1; {
		path = append(path, cur)
		if cur == sink {
			break
		}
		cur = int(prev[cur])
	}
	// Reverse to sink-first order.
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path, nil
}

// dirBetween returns the D8 code pointing from cell i to the 8-adjacent
// cell j.
func dirBetween(width, i, j int) int8 {
	dx := j%width - i%width
	dy := j/width - i/width
	for d := 0; d < 8; d++ {
		if dirDX[d] == dx && dirDY[d] == dy {
			return int8(d)
		}
	}
	return NoFlow
}
