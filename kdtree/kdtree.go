// Package kdtree wraps gonum's spatial/kdtree over r3.Vector so the registration and rolling
// grid packages can run k-nearest-neighbour queries without touching gonum's generic Comparable
// machinery directly.
package kdtree

import (
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// item is the gonum kdtree.Comparable backing a single indexed point.
type item struct {
	v   r3.Vector
	idx int
}

func (a item) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	b := c.(item)
	switch d {
	case 0:
		return a.v.X - b.v.X
	case 1:
		return a.v.Y - b.v.Y
	default:
		return a.v.Z - b.v.Z
	}
}

func (a item) Dims() int { return 3 }

func (a item) Distance(c kdtree.Comparable) float64 {
	b := c.(item)
	d := a.v.Sub(b.v)
	return d.Dot(d)
}

// items is a collection of item values that satisfies kdtree.Interface.
type items []item

func (p items) Index(i int) kdtree.Comparable         { return p[i] }
func (p items) Len() int                              { return len(p) }
func (p items) Pivot(d kdtree.Dim) int                { return plane{items: p, Dim: d}.Pivot() }
func (p items) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane is required to help items implement kdtree.Interface's Pivot method.
type plane struct {
	kdtree.Dim
	items
}

func (p plane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.items[i].v.X < p.items[j].v.X
	case 1:
		return p.items[i].v.Y < p.items[j].v.Y
	default:
		return p.items[i].v.Z < p.items[j].v.Z
	}
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.items = p.items[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.items[i], p.items[j] = p.items[j], p.items[i]
}

// Tree is a static k-d tree over a fixed set of points, indexed by their position in the slice
// passed to New.
type Tree struct {
	tree *kdtree.Tree
	n    int
}

// New builds a tree over points. The tree does not support insertion; rebuild it if the
// underlying point set changes.
func New(points []r3.Vector) *Tree {
	its := make(items, len(points))
	for i, p := range points {
		its[i] = item{v: p, idx: i}
	}
	return &Tree{tree: kdtree.New(its, false), n: len(points)}
}

// Len returns the number of points indexed by the tree.
func (t *Tree) Len() int { return t.n }

// Neighbor is one result of a nearest-neighbour query: the index into the slice passed to New,
// the point itself, and its squared Euclidean distance from the query point.
type Neighbor struct {
	Index        int
	Point        r3.Vector
	SquaredDist float64
}

// Nearest returns the single closest point to q.
func (t *Tree) Nearest(q r3.Vector) (Neighbor, bool) {
	if t.n == 0 {
		return Neighbor{}, false
	}
	c, dist := t.tree.Nearest(item{v: q})
	it, ok := c.(item)
	if !ok {
		return Neighbor{}, false
	}
	return Neighbor{Index: it.idx, Point: it.v, SquaredDist: dist}, true
}

// KNearest returns up to k closest points to q, ordered by increasing distance. It returns fewer
// than k results if the tree holds fewer than k points.
func (t *Tree) KNearest(q r3.Vector, k int) []Neighbor {
	if t.n == 0 || k <= 0 {
		return nil
	}
	keeper := kdtree.NewNKeeper(k)
	t.tree.NearestSet(keeper, item{v: q})

	neighbors := make([]Neighbor, 0, len(keeper.Heap))
	for _, cd := range keeper.Heap {
		it, ok := cd.Comparable.(item)
		if !ok {
			continue
		}
		neighbors = append(neighbors, Neighbor{Index: it.idx, Point: it.v, SquaredDist: cd.Dist})
	}
	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].SquaredDist < neighbors[j].SquaredDist })
	return neighbors
}
