package app

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/relabs-tech/racquet_stream/internal/clock"
	"github.com/relabs-tech/racquet_stream/internal/config"
	"github.com/relabs-tech/racquet_stream/internal/ring"
	"github.com/relabs-tech/racquet_stream/internal/sample"
	"github.com/relabs-tech/racquet_stream/internal/sensors"
	"github.com/relabs-tech/racquet_stream/internal/swing"
)

// scriptedSource replays a fixed series of reports, then goes quiet.
type scriptedSource struct {
	reports []sensors.Reports
	i       int
}

func (s *scriptedSource) Poll() (sensors.Reports, error) {
	if s.i >= len(s.reports) {
		return sensors.Reports{}, nil
	}
	r := s.reports[s.i]
	s.i++
	return r, nil
}

func (s *scriptedSource) Close() error { return nil }

func fullReport(accelMag float64) sensors.Reports {
	return sensors.Reports{
		HasRotation: true,
		HasGyro:     true,
		Gyro:        sample.Vec3{Z: 0.1},
		HasAccel:    true,
		Accel:       sample.Vec3{X: accelMag},
	}
}

func testConfig() *config.Config {
	return &config.Config{
		SensorPeriodUS:    2500,
		LiveDecimation:    2,
		LiveQueueSize:     100,
		AccelThresholdMS2: 30,
		EventDebounceMS:   1000,
		EventPreSamples:   8,
		EventPostSamples:  12,
		AcquisitionCPU:    -1,
	}
}

func TestAcquisitionFlow(t *testing.T) {
	cfg := testConfig()

	// 30 quiet samples, one swing, then enough post samples to finalize.
	var script []sensors.Reports
	for i := 0; i < 30; i++ {
		script = append(script, fullReport(9.8))
	}
	script = append(script, fullReport(45))
	for i := 0; i < cfg.EventPostSamples; i++ {
		script = append(script, fullReport(9.8))
	}

	windowSize := cfg.EventPreSamples + cfg.EventPostSamples
	history := ring.New(windowSize)
	store := swing.NewSnapshotStore(windowSize)
	detector := swing.NewDetector(swing.Config{
		AccelThreshold: cfg.AccelThresholdMS2,
		DebounceMS:     int64(cfg.EventDebounceMS),
		PreSamples:     cfg.EventPreSamples,
		PostSamples:    cfg.EventPostSamples,
	}, history, store)

	liveQueue := make(chan sample.Sample, cfg.LiveQueueSize)
	var drops atomic.Uint64

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	runAcquisition(ctx, &scriptedSource{reports: script}, clock.New(),
		history, detector, liveQueue, &drops, nil, cfg)

	total := len(script)
	if got := history.Count(); got != windowSize {
		t.Errorf("history holds %d samples, want full window %d", got, windowSize)
	}

	// Decimation by 2: every even sequence number goes to the live queue.
	wantLive := (total + 1) / 2
	if got := len(liveQueue); got != wantLive {
		t.Errorf("live queue holds %d samples, want %d", got, wantLive)
	}
	if drops.Load() != 0 {
		t.Errorf("unexpected live drops: %d", drops.Load())
	}

	// The swing plus its post window must have finalized a snapshot.
	dst := make([]sample.Sample, windowSize)
	n, _, ok := store.TakeCopy(dst)
	if !ok {
		t.Fatal("no snapshot finalized")
	}
	if n != windowSize {
		t.Fatalf("snapshot has %d samples, want %d", n, windowSize)
	}
	var sawSwing bool
	for i := 0; i < n; i++ {
		if dst[i].AccelMagnitude() > cfg.AccelThresholdMS2 {
			sawSwing = true
		}
	}
	if !sawSwing {
		t.Fatal("snapshot window does not contain the triggering sample")
	}

	// Timestamps are stamped in order even on the uptime clock.
	for i := 1; i < n; i++ {
		if dst[i].TimestampMS < dst[i-1].TimestampMS {
			t.Fatalf("timestamps out of order at %d", i)
		}
	}
}

func TestAcquisitionDropsWhenQueueFull(t *testing.T) {
	cfg := testConfig()
	cfg.LiveQueueSize = 4
	cfg.LiveDecimation = 1

	var script []sensors.Reports
	for i := 0; i < 40; i++ {
		script = append(script, fullReport(9.8))
	}

	history := ring.New(cfg.EventPreSamples + cfg.EventPostSamples)
	store := swing.NewSnapshotStore(cfg.EventPreSamples + cfg.EventPostSamples)
	detector := swing.NewDetector(swing.Config{
		AccelThreshold: cfg.AccelThresholdMS2,
		DebounceMS:     int64(cfg.EventDebounceMS),
		PreSamples:     cfg.EventPreSamples,
		PostSamples:    cfg.EventPostSamples,
	}, history, store)

	liveQueue := make(chan sample.Sample, cfg.LiveQueueSize)
	var drops atomic.Uint64

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	runAcquisition(ctx, &scriptedSource{reports: script}, clock.New(),
		history, detector, liveQueue, &drops, nil, cfg)

	if got := len(liveQueue); got != cfg.LiveQueueSize {
		t.Errorf("queue holds %d, want its bound %d", got, cfg.LiveQueueSize)
	}
	if got := drops.Load(); got != 36 {
		t.Errorf("drops = %d, want 36", got)
	}
}
