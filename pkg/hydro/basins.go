package hydro

import (
	"github.com/openterra/watershed/pkg/dem"
)

// Watershed labels every cell with the id of the basin it drains to.
// Label 0 is unused; valid basins are 1..Count.
type Watershed struct {
	Width  int
	Height int
	Labels []uint32
	Count  int
}

// labelBasins identifies every sink in the flow field and flood-fills its
// contributing basin backward along the flow graph. A sink is a no-flow
// cell, a cell draining off the raster edge, or a land cell emptying
// directly into the sea. Returned labels are basin id + 1, 0 = unlabeled
// (never left behind on a fully connected field).
func labelBasins(g *dem.Grid, f *FlowField, seaLevel uint16) ([]int32, []basin) {
	n := f.Width * f.Height
	sinkAt := make([]bool, n)
	labels := make([]int32, n)
	var basins []basin

	for i := 0; i < n; i++ {
		switch {
		case f.Dir[i] == NoFlow:
			sinkAt[i] = true
		case f.DrainsOffGrid(i):
			sinkAt[i] = true
		default:
			next, _ := f.Downstream(i)
			if g.Data[i] > seaLevel && g.Data[next] <= seaLevel {
				sinkAt[i] = true
			}
		}
	}

	// Iterative fill; basin extents can approach the full grid size.
	queue := make([]int, 0, 1024)
	for i := 0; i < n; i++ {
		if !sinkAt[i] || labels[i] != 0 {
			continue
		}
		id := int32(len(basins))
		boundary := f.DrainsOffGrid(i) || g.Data[i] <= seaLevel
		if next, ok := f.Downstream(i); ok && g.Data[next] <= seaLevel {
			boundary = true
		}

		labels[i] = id + 1
		area := int32(1)
		queue = append(queue[:0], i)
		for len(queue) > 0 {
			cur := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			cx, cy := cur%f.Width, cur/f.Width
			for d := 0; d < 8; d++ {
				nx, ny := cx+dirDX[d], cy+dirDY[d]
				if nx < 0 || nx >= f.Width || ny < 0 || ny >= f.Height {
					continue
				}
				ni := ny*f.Width + nx
				if labels[ni] == 0 && !sinkAt[ni] && f.FlowsInto(nx, ny, cx, cy) {
					labels[ni] = id + 1
					area++
					queue = append(queue, ni)
				}
			}
		}
		basins = append(basins, basin{sink: i, area: area, boundary: boundary})
	}

	return labels, basins
}

// Delineate assigns every cell to the basin of the outlet it drains to.
// Run on a resolved flow field; outlets are identified exactly like the
// sinks of the depression resolver.
func Delineate(g *dem.Grid, f *FlowField, seaLevel uint16) *Watershed {
	labels, basins := labelBasins(g, f, seaLevel)
	out := make([]uint32, len(labels))
	for i, l := range labels {
		out[i] = uint32(l)
	}
	return &Watershed{
		Width:  f.Width,
		Height: f.Height,
		Labels: out,
		Count:  len(basins),
	}
}

// MergeBasins unions every basin smaller than minArea into the neighboring
// basin behind its lowest spill crossing, repeating to a fixed point, and
// returns a densely relabeled watershed. Flow directions are untouched;
// this operates on labels only. minArea <= 0 returns ws unchanged.
func MergeBasins(ws *Watershed, g *dem.Grid, minArea int) *Watershed {
	if minArea <= 0 || ws.Count < 2 {
		return ws
	}

	n := ws.Width * ws.Height
	uf := newUnionFind(ws.Count)
	area := make([]int32, ws.Count)
	for i := 0; i < n; i++ {
		if ws.Labels[i] != 0 {
			area[ws.Labels[i]-1]++
		}
	}

	forward := [4]int{2, 3, 4, 5} // E, SE, S, SW: each adjacency once

	for {
		// Cheapest spill per pair of current roots.
		type pairSpill struct {
			elev uint16
			a, b int32
		}
		cheapest := make(map[uint64]pairSpill)
		for y := 0; y < ws.Height; y++ {
			for x := 0; x < ws.Width; x++ {
				i := y*ws.Width + x
				if ws.Labels[i] == 0 {
					continue
				}
				la := uf.find(int32(ws.Labels[i] - 1))
				for _, d := range forward {
					nx, ny := x+dirDX[d], y+dirDY[d]
					if nx < 0 || nx >= ws.Width || ny < 0 || ny >= ws.Height {
						continue
					}
					j := ny*ws.Width + nx
					if ws.Labels[j] == 0 {
						continue
					}
					lb := uf.find(int32(ws.Labels[j] - 1))
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
						cheapest[key] = pairSpill{elev: elev, a: lo, b: hi}
					}
				}
			}
		}

		// Lowest spill target per root.
		type target struct {
			elev  uint16
			other int32
			valid bool
		}
		best := make(map[int32]target)
		for _, s := range cheapest {
			if t, ok := best[s.a]; !ok || s.elev < t.elev {
				best[s.a] = target{elev: s.elev, other: s.b, valid: true}
			}
			if t, ok := best[s.b]; !ok || s.elev < t.elev {
				best[s.b] = target{elev: s.elev, other: s.a, valid: true}
			}
		}

		merged := false
		for root, t := range best {
			if !t.valid {
				continue
			}
			r := uf.find(root)
			if int(area[r]) >= minArea {
				continue
			}
			o := uf.find(t.other)
			if r == o {
				continue
			}
			sum := area[r] + area[o]
			nr := uf.union(r, o)
			area[nr] = sum
			merged = true
		}
		if !merged {
			break
		}
	}

	// Dense relabeling 1..M in first-appearance order.
	remap := make(map[int32]uint32)
	out := make([]uint32, n)
	for i := 0; i < n; i++ {
		if ws.Labels[i] == 0 {
			continue
		}
		r := uf.find(int32(ws.Labels[i] - 1))
		id, ok := remap[r]
		if !ok {
			id = uint32(len(remap) + 1)
			remap[r] = id
		}
		out[i] = id
	}

	return &Watershed{
		Width:  ws.Width,
		Height: ws.Height,
		Labels: out,
		Count:  len(remap),
	}
}
