// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"fmt"
	"log"
	"math"
	"time"

	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/devices/v3/mpu9250"
	"periph.io/x/host/v3"

	"github.com/relabs-tech/racquet_stream/internal/orientation"
	"github.com/relabs-tech/racquet_stream/internal/sample"
)

const gravity = 9.80665 // m/s² per g

// mpuSource reads the racquet-mounted MPU-9250 over SPI. The driver has no
// per-report data-ready flag at this level, so reports are paced at the
// configured sample period: a poll before the next period boundary returns
// no data and the acquisition loop yields.
type mpuSource struct {
	imu    *mpu9250.MPU9250
	period time.Duration
	next   time.Time
	last   time.Time

	accelScale float64 // counts → m/s²
	gyroScale  float64 // counts → rad/s
	pose       orientation.Pose
}

// NewMPU9250Source initializes the MPU-9250 on spiDev with chip select on
// csPin. accelFSG and gyroFSDPS are the configured full-scale ranges (g and
// °/s) used to convert raw counts to SI units.
func NewMPU9250Source(spiDev, csPin string, period time.Duration, accelFSG, gyroFSDPS int) (Source, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}

	cs := gpioreg.ByName(csPin)
	if cs == nil {
		return nil, fmt.Errorf("IMU CS pin %q not found", csPin)
	}

	tr, err := mpu9250.NewSpiTransport(spiDev, cs)
	if err != nil {
		return nil, fmt.Errorf("IMU SPI transport (%s): %w", spiDev, err)
	}

	imu, err := mpu9250.New(tr)
	if err != nil {
		return nil, fmt.Errorf("IMU device creation: %w", err)
	}

	if err := imu.Init(); err != nil {
		return nil, fmt.Errorf("IMU initialization: %w", err)
	}

	if testResult, err := imu.SelfTest(); err != nil {
		log.Printf("warning: IMU self-test failed: %v", err)
	} else {
		log.Printf("IMU self-test passed: %+v", testResult)
	}

	if err := imu.Calibrate(); err != nil {
		log.Printf("warning: IMU calibration failed: %v", err)
	} else {
		log.Printf("IMU calibration complete")
	}

	// int16 full scale maps ±accelFSG g and ±gyroFSDPS °/s onto ±32768.
	now := time.Now()
	return &mpuSource{
		imu:        imu,
		period:     period,
		next:       now,
		last:       now,
		accelScale: float64(accelFSG) * gravity / 32768.0,
		gyroScale:  float64(gyroFSDPS) * (math.Pi / 180.0) / 32768.0,
	}, nil
}

func (s *mpuSource) Poll() (Reports, error) {
	now := time.Now()
	if now.Before(s.next) {
		return Reports{}, nil
	}
	s.next = s.next.Add(s.period)
	if now.After(s.next.Add(10 * s.period)) {
		s.next = now.Add(s.period)
	}

	ax, err := s.imu.GetAccelerationX()
	if err != nil {
		return Reports{}, fmt.Errorf("IMU accel X: %w", err)
	}
	ay, err := s.imu.GetAccelerationY()
	if err != nil {
		return Reports{}, fmt.Errorf("IMU accel Y: %w", err)
	}
	az, err := s.imu.GetAccelerationZ()
	if err != nil {
		return Reports{}, fmt.Errorf("IMU accel Z: %w", err)
	}

	gx, err := s.imu.GetRotationX()
	if err != nil {
		return Reports{}, fmt.Errorf("IMU gyro X: %w", err)
	}
	gy, err := s.imu.GetRotationY()
	if err != nil {
		return Reports{}, fmt.Errorf("IMU gyro Y: %w", err)
	}
	gz, err := s.imu.GetRotationZ()
	if err != nil {
		return Reports{}, fmt.Errorf("IMU gyro Z: %w", err)
	}

	accel := sample.Vec3{
		X: float64(ax) * s.accelScale,
		Y: float64(ay) * s.accelScale,
		Z: float64(az) * s.accelScale,
	}
	gyro := sample.Vec3{
		X: float64(gx) * s.gyroScale,
		Y: float64(gy) * s.gyroScale,
		Z: float64(gz) * s.gyroScale,
	}

	dt := now.Sub(s.last).Seconds()
	s.last = now
	s.pose = orientation.Fuse(accel.X, accel.Y, accel.Z, gyro.Z, s.pose, dt)

	return Reports{
		HasRotation: true,
		Rotation:    sample.Vec3{X: s.pose.Roll, Y: s.pose.Pitch, Z: s.pose.Yaw},
		HasGyro:     true,
		Gyro:        gyro,
		HasAccel:    true,
		Accel:       accel,
	}, nil
}

func (s *mpuSource) Close() error {
	return nil
}
