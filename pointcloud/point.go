// Package pointcloud defines the point and sweep-cloud types exchanged between the keypoint
// extractor, the registration engine, and the rolling grid maps, plus PCD persistence for them.
package pointcloud

import "github.com/golang/geo/r3"

// Point is a single LiDAR return: a 3-D position, the time it was captured relative to the
// start of its sweep, the physical laser (scan line) that produced it, and its reflected
// intensity.
type Point struct {
	X, Y, Z   float64
	Time      float64 // seconds relative to sweep start
	LaserID   uint8
	Intensity float32
}

// Position returns the point's location as a vector, discarding the non-spatial fields.
func (p Point) Position() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// NewPoint builds a Point from a position vector and the remaining per-return fields.
func NewPoint(pos r3.Vector, t float64, laserID uint8, intensity float32) Point {
	return Point{X: pos.X, Y: pos.Y, Z: pos.Z, Time: t, LaserID: laserID, Intensity: intensity}
}

// WithPosition returns a copy of p translated/rotated to pos, keeping its other fields.
func (p Point) WithPosition(pos r3.Vector) Point {
	p.X, p.Y, p.Z = pos.X, pos.Y, pos.Z
	return p
}
