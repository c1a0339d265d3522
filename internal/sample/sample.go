package sample

import "math"

// Vec3 is one 3-axis reading in SI units.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Sample is a single fused sensor reading: orientation as Euler angles
// (degrees), calibrated angular rate (rad/s) and linear acceleration (m/s²),
// plus a millisecond timestamp and a monotonically increasing sequence
// number. Samples are immutable once stamped; only the acquisition loop
// produces them.
type Sample struct {
	Euler Vec3
	Gyro  Vec3
	Accel Vec3

	TimestampMS int64
	Seq         uint32
}

// AccelMagnitude returns the magnitude of the acceleration vector in m/s².
func (s *Sample) AccelMagnitude() float64 {
	return math.Sqrt(s.Accel.X*s.Accel.X + s.Accel.Y*s.Accel.Y + s.Accel.Z*s.Accel.Z)
}
