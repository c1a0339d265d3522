package sensors

import (
	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// Reports is one poll's worth of sensor output. Each report type carries
// its own has-new-data flag; a source may deliver any subset per poll and
// the acquisition loop accumulates partial reports into one sample.
type Reports struct {
	HasRotation bool
	Rotation    sample.Vec3 // Euler angles, degrees

	HasGyro bool
	Gyro    sample.Vec3 // calibrated angular rate, rad/s

	HasAccel bool
	Accel    sample.Vec3 // linear acceleration, m/s²
}

// Any reports whether the poll produced data at all.
func (r *Reports) Any() bool {
	return r.HasRotation || r.HasGyro || r.HasAccel
}

// Source is a motion sensor delivering reports at the configured rate.
// Poll must never block: when no new data is available it returns empty
// Reports and the acquisition loop yields briefly before retrying.
type Source interface {
	Poll() (Reports, error)
	Close() error
}
