package sensors

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/racquet_stream/internal/sample"
)

// serialSource reads a UART-attached sensor module that streams one report
// per line:
//
//	E:<roll>,<pitch>,<yaw>     Euler angles, degrees
//	G:<x>,<y>,<z>              calibrated gyro, rad/s
//	A:<x>,<y>,<z>              linear acceleration, m/s²
//
// A reader goroutine owns the blocking port I/O and hands parsed reports
// over a buffered channel, so Poll stays non-blocking for the acquisition
// loop. Reports arriving while the channel is full are dropped: the sensor
// keeps streaming regardless, so stale data has no value.
type serialSource struct {
	port    io.ReadCloser
	reports chan Reports
	done    chan struct{}
}

// NewSerialSource opens portName at baudRate and starts the reader.
func NewSerialSource(portName string, baudRate uint) (Source, error) {
	opts := serial.OpenOptions{
		PortName:        portName,
		BaudRate:        baudRate,
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open sensor serial port %s: %w", portName, err)
	}
	log.Printf("sensor serial port opened on %s at %d baud", portName, baudRate)

	s := &serialSource{
		port:    port,
		reports: make(chan Reports, 64),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

func (s *serialSource) readLoop() {
	reader := bufio.NewReader(s.port)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Printf("sensor serial read error: %v", err)
			}
			return
		}
		rep, err := parseReportLine(strings.TrimSpace(line))
		if err != nil {
			log.Printf("sensor serial: %v", err)
			continue
		}
		select {
		case s.reports <- rep:
		default:
		}
	}
}

// parseReportLine decodes one report line into a single-report Reports.
func parseReportLine(line string) (Reports, error) {
	if line == "" {
		return Reports{}, fmt.Errorf("empty report line")
	}
	kind, rest, found := strings.Cut(line, ":")
	if !found {
		return Reports{}, fmt.Errorf("malformed report line %q", line)
	}

	fields := strings.Split(rest, ",")
	if len(fields) != 3 {
		return Reports{}, fmt.Errorf("report line %q has %d fields, want 3", line, len(fields))
	}
	var v sample.Vec3
	for i, f := range fields {
		val, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return Reports{}, fmt.Errorf("report line %q field %d: %w", line, i, err)
		}
		switch i {
		case 0:
			v.X = val
		case 1:
			v.Y = val
		case 2:
			v.Z = val
		}
	}

	switch kind {
	case "E":
		return Reports{HasRotation: true, Rotation: v}, nil
	case "G":
		return Reports{HasGyro: true, Gyro: v}, nil
	case "A":
		return Reports{HasAccel: true, Accel: v}, nil
	default:
		return Reports{}, fmt.Errorf("unknown report kind %q", kind)
	}
}

// Poll merges every report already decoded into one Reports value, so an
// E/G/A line triple emitted for the same instant lands in a single sample.
func (s *serialSource) Poll() (Reports, error) {
	var merged Reports
	for {
		select {
		case rep := <-s.reports:
			if rep.HasRotation {
				merged.HasRotation = true
				merged.Rotation = rep.Rotation
			}
			if rep.HasGyro {
				merged.HasGyro = true
				merged.Gyro = rep.Gyro
			}
			if rep.HasAccel {
				merged.HasAccel = true
				merged.Accel = rep.Accel
			}
		default:
			return merged, nil
		}
	}
}

func (s *serialSource) Close() error {
	close(s.done)
	return s.port.Close()
}
