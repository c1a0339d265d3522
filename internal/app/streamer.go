// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/relabs-tech/racquet_stream/internal/affinity"
	"github.com/relabs-tech/racquet_stream/internal/clock"
	"github.com/relabs-tech/racquet_stream/internal/config"
	"github.com/relabs-tech/racquet_stream/internal/netstate"
	"github.com/relabs-tech/racquet_stream/internal/relay"
	"github.com/relabs-tech/racquet_stream/internal/ring"
	"github.com/relabs-tech/racquet_stream/internal/sample"
	"github.com/relabs-tech/racquet_stream/internal/sensors"
	"github.com/relabs-tech/racquet_stream/internal/swing"
)

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// RunStreamer wires the full streaming node: sensor acquisition feeding the
// history ring, swing detector and live queue, with the two sender tasks
// and connectivity/clock lifecycle beside them. Returns when interrupted.
func RunStreamer() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := newSource(cfg)
	if err != nil {
		return fmt.Errorf("sensor source init: %w", err)
	}
	defer src.Close()

	clk := clock.New()
	gate := netstate.NewGate()
	monitor := netstate.NewMonitor(gate, cfg.ProbeAddr(),
		ms(cfg.ProbeIntervalMS), ms(cfg.ProbeTimeoutMS))

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
	var liveDrops atomic.Uint64

	eventSender := relay.NewEventSender(relay.EventSenderConfig{
		URL:          cfg.EventURL(),
		Timeout:      ms(cfg.HTTPTimeoutMS),
		PollInterval: ms(cfg.EventPollIntervalMS),
		BufferSize:   cfg.EventPayloadBytes,
		WindowSize:   windowSize,
	}, store, gate)

	liveSender := relay.NewLiveSender(relay.LiveSenderConfig{
		Addr:       cfg.LiveAddr(),
		Interval:   ms(cfg.LivePostIntervalMS),
		MaxBatch:   cfg.MaxLivePerPost,
		BufferSize: cfg.LivePayloadBytes,
	}, liveQueue, gate, &liveDrops)

	var mirror *liveMirror
	if cfg.MQTTBroker != "" {
		mirror, err = newLiveMirror(cfg)
		if err != nil {
			// The mirror is a dashboard convenience, never worth failing
			// the firmware over.
			log.Printf("streamer: MQTT mirror disabled: %v", err)
			mirror = nil
		} else {
			defer mirror.close()
			detector.OnCapture(mirror.offerEvent)
		}
	}

	var wg sync.WaitGroup
	start := func(f func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f(ctx)
		}()
	}

	start(monitor.Run)
	start(eventSender.Run)
	start(liveSender.Run)
	start(func(ctx context.Context) { syncClockOnce(ctx, gate, clk, cfg) })
	if mirror != nil {
		start(mirror.run)
	}
	start(func(ctx context.Context) {
		runAcquisition(ctx, src, clk, history, detector, liveQueue, &liveDrops, mirror, cfg)
	})

	log.Printf("streamer: sampling at %d µs period (%d Hz), live decimation %d, trigger %.1f m/s2",
		cfg.SensorPeriodUS, 1_000_000/cfg.SensorPeriodUS, cfg.LiveDecimation, cfg.AccelThresholdMS2)

	<-ctx.Done()
	log.Println("streamer: shutting down")
	wg.Wait()
	return nil
}

func newSource(cfg *config.Config) (sensors.Source, error) {
	period := time.Duration(cfg.SensorPeriodUS) * time.Microsecond
	switch cfg.SensorSource {
	case "mpu9250":
		return sensors.NewMPU9250Source(cfg.IMUSPIDevice, cfg.IMUCSPin, period,
			cfg.IMUAccelFSG, cfg.IMUGyroFSDPS)
	case "serial":
		return sensors.NewSerialSource(cfg.SerialPort, uint(cfg.SerialBaudRate))
	case "mock":
		log.Println("streamer: using mock sensor source")
		return sensors.NewMockSource(period, 5*time.Second, cfg.AccelThresholdMS2+10), nil
	default:
		return nil, fmt.Errorf("unknown sensor source %q", cfg.SensorSource)
	}
}

// syncClockOnce waits for first connectivity, then attempts the one-shot
// time synchronization with a bounded wait. Failure leaves the clock on
// uptime timestamps; acquisition is already running either way.
func syncClockOnce(ctx context.Context, gate *netstate.Gate, clk *clock.Clock, cfg *config.Config) {
	if err := gate.Wait(ctx); err != nil {
		return
	}
	log.Printf("streamer: syncing time against %s", cfg.NTPServer)
	if err := clk.Sync(cfg.NTPServer, ms(cfg.NTPTimeoutMS)); err != nil {
		log.Printf("streamer: time sync failed, staying on uptime timestamps: %v", err)
		return
	}
	log.Printf("streamer: time synced, samples now carry wall-clock timestamps")
}

// runAcquisition is the fixed-rate sampling loop. It owns the history ring
// and the detector outright; its only outputs are non-blocking queue
// offers and the snapshot publish inside the detector. The loop allocates
// nothing and never touches the network.
func runAcquisition(ctx context.Context, src sensors.Source, clk *clock.Clock,
	history *ring.Buffer, detector *swing.Detector, liveQueue chan sample.Sample,
	liveDrops *atomic.Uint64, mirror *liveMirror, cfg *config.Config) {

	// One exclusive OS thread for the time-critical lane, pinned when the
	// deployment dedicates a CPU to it.
	runtime.LockOSThread()
	if cfg.AcquisitionCPU >= 0 {
		if err := affinity.PinCurrentThread(cfg.AcquisitionCPU); err != nil {
			if errors.Is(err, errors.ErrUnsupported) {
				log.Printf("streamer: CPU pinning unsupported on this platform")
			} else {
				log.Printf("streamer: could not pin acquisition thread: %v", err)
			}
		} else {
			log.Printf("streamer: acquisition thread pinned to CPU %d", cfg.AcquisitionCPU)
		}
	}

	period := time.Duration(cfg.SensorPeriodUS) * time.Microsecond
	yield := period / 4
	if yield < 100*time.Microsecond {
		yield = 100 * time.Microsecond
	}
	decimation := uint32(cfg.LiveDecimation)

	var cur sample.Sample
	var seq uint32
	var dirty bool

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		reports, err := src.Poll()
		if err != nil {
			// Sensor read failures are never fatal; yield and retry.
			log.Printf("streamer: sensor read error: %v", err)
			time.Sleep(yield)
			continue
		}
		if reports.HasRotation {
			cur.Euler = reports.Rotation
			dirty = true
		}
		if reports.HasGyro {
			cur.Gyro = reports.Gyro
			dirty = true
		}
		if reports.HasAccel {
			cur.Accel = reports.Accel
			dirty = true
		}
		if !dirty {
			time.Sleep(yield)
			continue
		}

		cur.TimestampMS = clk.NowMS()
		cur.Seq = seq
		seq++
		dirty = false

		history.Write(cur)

		if cur.Seq%decimation == 0 {
			if !relay.Offer(liveQueue, cur) {
				liveDrops.Add(1)
			}
			if mirror != nil {
				mirror.offer(cur)
			}
		}

		detector.Observe(&cur)
	}
}
