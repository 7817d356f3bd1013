package pointcloud

import (
	"math"

	"github.com/golang/geo/r3"
)

// Cloud is the ordered sequence of Points produced by one full sensor sweep, or a
// concatenation thereof (e.g. a rolling-grid query result). Within a single sweep's Cloud,
// points sharing a LaserID appear contiguously and in non-decreasing Time order; across the
// whole Cloud, points with different LaserIDs need not be interleaved.
type Cloud struct {
	FrameID string
	Points  []Point
}

// NewCloud returns an empty Cloud in the named frame.
func NewCloud(frameID string) *Cloud {
	return &Cloud{FrameID: frameID}
}

// NewCloudWithCapacity returns an empty Cloud preallocated for n points.
func NewCloudWithCapacity(frameID string, n int) *Cloud {
	return &Cloud{FrameID: frameID, Points: make([]Point, 0, n)}
}

// Size returns the number of points in the cloud.
func (c *Cloud) Size() int {
	if c == nil {
		return 0
	}
	return len(c.Points)
}

// Append adds a point to the end of the cloud.
func (c *Cloud) Append(p Point) {
	c.Points = append(c.Points, p)
}

// Iterate calls fn for every point in order, stopping early if fn returns false.
func (c *Cloud) Iterate(fn func(i int, p Point) bool) {
	for i, p := range c.Points {
		if !fn(i, p) {
			return
		}
	}
}

// Bounds returns the axis-aligned bounding box of the cloud's points. For an empty cloud, min
// and max are both the zero vector.
func (c *Cloud) Bounds() (min, max r3.Vector) {
	if c.Size() == 0 {
		return r3.Vector{}, r3.Vector{}
	}
	min = r3.Vector{X: math.MaxFloat64, Y: math.MaxFloat64, Z: math.MaxFloat64}
	max = r3.Vector{X: -math.MaxFloat64, Y: -math.MaxFloat64, Z: -math.MaxFloat64}
	for _, p := range c.Points {
		v := p.Position()
		min.X, max.X = math.Min(min.X, v.X), math.Max(max.X, v.X)
		min.Y, max.Y = math.Min(min.Y, v.Y), math.Max(max.Y, v.Y)
		min.Z, max.Z = math.Min(min.Z, v.Z), math.Max(max.Z, v.Z)
	}
	return min, max
}

// GroupByLaserID splits the cloud into one sub-slice of point indices per distinct LaserID,
// keyed by the remapped scan-line index rather than the raw LaserID. laserIDMapping is the
// order of physical laser indices produced by the calibration table (sorted by descending
// vertical correction); raw LaserID values are looked up in it to find their scan-line index.
func (c *Cloud) GroupByLaserID(laserIDMapping []uint8) map[int][]int {
	rank := make(map[uint8]int, len(laserIDMapping))
	for i, id := range laserIDMapping {
		rank[id] = i
	}

	lines := make(map[int][]int)
	for i, p := range c.Points {
		line, ok := rank[p.LaserID]
		if !ok {
			continue
		}
		lines[line] = append(lines[line], i)
	}
	return lines
}

// Concat returns a new Cloud holding the points of all the given clouds, in order.
func Concat(frameID string, clouds ...*Cloud) *Cloud {
	total := 0
	for _, c := range clouds {
		total += c.Size()
	}
	out := NewCloudWithCapacity(frameID, total)
	for _, c := range clouds {
		out.Points = append(out.Points, c.Points...)
	}
	return out
}

// Transform returns a new Cloud with every point's position mapped through fn, preserving all
// other per-point fields.
func (c *Cloud) Transform(fn func(r3.Vector) r3.Vector) *Cloud {
	out := NewCloudWithCapacity(c.FrameID, c.Size())
	for _, p := range c.Points {
		out.Points = append(out.Points, p.WithPosition(fn(p.Position())))
	}
	return out
}
