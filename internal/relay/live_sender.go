package relay

import (
	"context"
	"log"
	"net"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/racquet_stream/internal/netstate"
	"github.com/relabs-tech/racquet_stream/internal/payload"
	"github.com/relabs-tech/racquet_stream/internal/sample"
)

const liveStatsInterval = 10 * time.Second

// Offer enqueues a sample onto the live queue without ever blocking the
// producer: when the queue is full the sample is dropped and false is
// returned. Bounded staleness beats backpressure on the acquisition loop.
func Offer(queue chan sample.Sample, s sample.Sample) bool {
	select {
	case queue <- s:
		return true
	default:
		return false
	}
}

// LiveSenderConfig holds the best-effort channel tunables.
type LiveSenderConfig struct {
	Addr       string        // host:port for the UDP destination
	Interval   time.Duration // drain period
	MaxBatch   int           // samples per datagram, at most
	BufferSize int           // fixed serialization buffer, bytes
}

// LiveSender drains the live queue on a fixed interval and fires batches at
// the backend as UDP datagrams. No retry, no acknowledgment: a lost batch
// is a cosmetic gap on the dashboard, and retrying here would stall the
// drain loop and back the queue up.
type LiveSender struct {
	cfg     LiveSenderConfig
	queue   chan sample.Sample
	gate    *netstate.Gate
	drops   *atomic.Uint64 // producer-side queue drops, reported here
	builder *payload.Builder
	batch   []sample.Sample
	conn    net.Conn
	dialErr bool // last connect attempt failed, suppresses repeat logs

	// dial is swapped out in tests.
	dial func(network, addr string) (net.Conn, error)
}

// NewLiveSender creates a sender draining queue, gated on gate. drops is
// the producer's overflow counter; the sender folds it into its periodic
// stats line.
func NewLiveSender(cfg LiveSenderConfig, queue chan sample.Sample, gate *netstate.Gate, drops *atomic.Uint64) *LiveSender {
	return &LiveSender{
		cfg:     cfg,
		queue:   queue,
		gate:    gate,
		drops:   drops,
		builder: payload.NewBuilder(cfg.BufferSize),
		batch:   make([]sample.Sample, 0, cfg.MaxBatch),
		dial:    net.Dial,
	}
}

// Run drains until ctx is done.
func (s *LiveSender) Run(ctx context.Context) {
	if err := s.gate.Wait(ctx); err != nil {
		return
	}

	defer func() {
		if s.conn != nil {
			s.conn.Close()
		}
	}()
	log.Printf("relay: live stream to %s every %v", s.cfg.Addr, s.cfg.Interval)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	stats := time.NewTicker(liveStatsInterval)
	defer stats.Stop()

	var sent, failed uint64
	var lastDrops uint64

	for {
		select {
		case <-ctx.Done():
			return
		case <-stats.C:
			d := s.drops.Load()
			if d != lastDrops || failed > 0 {
				log.Printf("relay: live stats: sent=%d failed=%d queue_drops=%d", sent, failed, d)
				lastDrops = d
				failed = 0
			}
		case <-ticker.C:
			if !s.gate.Up() {
				continue
			}
			if s.conn == nil && !s.connect() {
				continue
			}
			if s.sendBatch() {
				sent++
			} else if len(s.batch) > 0 {
				failed++
			}
		}
	}
}

// connect sets up the UDP socket, retried on the next tick when it fails.
// Addr may be a hostname, so setup can fail transiently while the resolver
// is still unreachable right after the link comes up.
func (s *LiveSender) connect() bool {
	conn, err := s.dial("udp", s.cfg.Addr)
	if err != nil {
		if !s.dialErr {
			log.Printf("relay: live UDP socket to %s failed, will retry: %v", s.cfg.Addr, err)
			s.dialErr = true
		}
		return false
	}
	if s.dialErr {
		log.Printf("relay: live UDP socket to %s recovered", s.cfg.Addr)
		s.dialErr = false
	}
	s.conn = conn
	return true
}

// sendBatch drains up to MaxBatch samples without blocking and transmits
// them in one datagram. Returns true when a non-empty batch went out.
func (s *LiveSender) sendBatch() bool {
	s.batch = s.batch[:0]
drain:
	for len(s.batch) < s.cfg.MaxBatch {
		select {
		case smp := <-s.queue:
			s.batch = append(s.batch, smp)
		default:
			break drain
		}
	}
	if len(s.batch) == 0 {
		return false
	}

	body, err := s.builder.BuildLive(s.batch)
	if err != nil {
		log.Printf("relay: live payload build failed (%d samples): %v", len(s.batch), err)
		return false
	}
	if _, err := s.conn.Write(body); err != nil {
		log.Printf("relay: live send failed (%d samples): %v", len(s.batch), err)
		return false
	}
	return true
}
