package hydro

// unionFind is an array-backed disjoint-set structure with path compression
// and union by size. Iterative find keeps stack depth flat on large grids.
type unionFind struct {
	parent []int32
	size   []int32
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{
		parent: make([]int32, n),
		size:   make([]int32, n),
	}
	for i := range uf.parent {
		uf.parent[i] = int32(i)
		uf.size[i] = 1
	}
	return uf
}

func (uf *unionFind) find(i int32) int32 {
	root := i
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	// Path compression.
	for uf.parent[i] != root {
		uf.parent[i], i = root, uf.parent[i]
	}
	return root
}

// union merges the sets containing a and b and returns the surviving root.
func (uf *unionFind) union(a, b int32) int32 {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return ra
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
	return ra
}
