package kdtree

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"
)

func TestNearest(t *testing.T) {
	points := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 5, Y: 0, Z: 0},
		{X: 0, Y: 5, Z: 0},
	}
	tree := New(points)

	n, ok := tree.Nearest(r3.Vector{X: 0.9, Y: 0, Z: 0})
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, n.Index, test.ShouldEqual, 1)
}

func TestKNearest(t *testing.T) {
	points := []r3.Vector{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 0, Z: 0},
		{X: 2, Y: 0, Z: 0},
		{X: 10, Y: 0, Z: 0},
	}
	tree := New(points)

	neighbors := tree.KNearest(r3.Vector{X: 0, Y: 0, Z: 0}, 3)
	test.That(t, len(neighbors), test.ShouldEqual, 3)
	test.That(t, neighbors[0].Index, test.ShouldEqual, 0)
	test.That(t, neighbors[1].Index, test.ShouldEqual, 1)
	test.That(t, neighbors[2].Index, test.ShouldEqual, 2)
}

func TestKNearestMoreThanAvailable(t *testing.T) {
	points := []r3.Vector{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}}
	tree := New(points)

	neighbors := tree.KNearest(r3.Vector{}, 10)
	test.That(t, len(neighbors), test.ShouldEqual, 2)
}

func TestEmptyTree(t *testing.T) {
	tree := New(nil)
	_, ok := tree.Nearest(r3.Vector{})
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, tree.KNearest(r3.Vector{}, 3), test.ShouldBeNil)
}
