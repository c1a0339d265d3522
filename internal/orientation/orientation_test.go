package orientation

import (
	"math"
	"testing"
)

func TestFromAccelLevel(t *testing.T) {
	// Flat on the table: gravity straight down the z axis.
	p := FromAccel(0, 0, 9.81)
	if math.Abs(p.Roll) > 0.01 || math.Abs(p.Pitch) > 0.01 {
		t.Fatalf("level pose = %+v, want roll=pitch=0", p)
	}
	if p.Yaw != 0 {
		t.Fatalf("yaw = %f, accelerometer cannot observe yaw", p.Yaw)
	}
}

func TestFromAccelRolled(t *testing.T) {
	// Gravity along +y: rolled 90 degrees.
	p := FromAccel(0, 9.81, 0)
	if math.Abs(p.Roll-90) > 0.01 {
		t.Fatalf("roll = %f, want 90", p.Roll)
	}
}

func TestFuseIntegratesYaw(t *testing.T) {
	prev := Pose{Yaw: 10}
	// Half a radian per second for 0.1 s ≈ 2.86 degrees.
	p := Fuse(0, 0, 9.81, 0.5, prev, 0.1)
	want := 10 + 0.5*(180.0/math.Pi)*0.1
	if math.Abs(p.Yaw-want) > 0.01 {
		t.Fatalf("yaw = %f, want %f", p.Yaw, want)
	}
}
