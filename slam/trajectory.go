package slam

import (
	"github.com/jpouderoux/LidarSlam/pointcloud"
	"github.com/jpouderoux/LidarSlam/spatialmath"
)

// TrajectoryRecord is one entry of the ordered trajectory log: the BASE-in-WORLD pose at Timestamp
// plus its flattened 6x6 covariance, DoF order (x, y, z, rx, ry, rz).
type TrajectoryRecord struct {
	Timestamp  float64
	Pose       spatialmath.Pose
	Covariance [36]float64
}

// keypointSnapshot is one entry of the bounded keypoint log, retained for post-hoc analysis of a
// frame already dropped from the hot path.
type keypointSnapshot struct {
	timestamp float64
	edges     *pointcloud.Cloud
	planars   *pointcloud.Cloud
	blobs     *pointcloud.Cloud
}

// loggingDeque is a time-bounded FIFO: entries older than timeout (seconds, relative to the
// timestamp of the most recently pushed entry) are evicted on every push. A non-positive timeout
// disables retention entirely (Push is a no-op and the deque stays empty).
type loggingDeque[T any] struct {
	timeout  float64
	entries  []T
	stampOf  func(T) float64
}

func newLoggingDeque[T any](timeout float64, stampOf func(T) float64) *loggingDeque[T] {
	return &loggingDeque[T]{timeout: timeout, stampOf: stampOf}
}

func (d *loggingDeque[T]) Push(entry T) {
	if d.timeout <= 0 {
		return
	}
	d.entries = append(d.entries, entry)
	cutoff := d.stampOf(entry) - d.timeout
	i := 0
	for i < len(d.entries) && d.stampOf(d.entries[i]) < cutoff {
		i++
	}
	d.entries = d.entries[i:]
}

func (d *loggingDeque[T]) Entries() []T {
	return d.entries
}
