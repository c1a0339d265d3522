package orientation

import (
	"math"
)

// Pose is the Euler-equivalent orientation of the racquet head, in degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// FromAccel computes roll and pitch from the gravity direction:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
//
// Yaw cannot be observed from the accelerometer and is left at 0.
func FromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * 180.0 / math.Pi,
		Pitch: pitchRad * 180.0 / math.Pi,
	}
}

// Fuse advances prev by one sample: roll and pitch from the accelerometer
// tilt estimate, yaw integrated from the z gyro rate (rad/s) over dt
// seconds. During a swing the accelerometer reads impact rather than
// gravity, so the orientation channel is advisory; swing analysis works
// from the raw rates.
func Fuse(ax, ay, az, gz float64, prev Pose, dt float64) Pose {
	p := FromAccel(ax, ay, az)
	p.Yaw = math.Mod(prev.Yaw+gz*(180.0/math.Pi)*dt, 360)
	return p
}
