package netstate

import (
	"context"
	"log"
	"net"
	"time"
)

// Monitor drives a Gate from periodic reachability probes against the
// backend. The association and IP-acquisition sequence belongs to the OS
// network stack; from this process's point of view "connected" means the
// backend TCP port answers. Probing continues after a loss, which is the
// automatic-reconnect behavior the senders rely on.
type Monitor struct {
	gate     *Gate
	addr     string
	interval time.Duration
	timeout  time.Duration

	// dial is swappable for tests.
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// NewMonitor creates a monitor probing addr (host:port) every interval with
// the given per-probe timeout.
func NewMonitor(gate *Gate, addr string, interval, timeout time.Duration) *Monitor {
	return &Monitor{
		gate:     gate,
		addr:     addr,
		interval: interval,
		timeout:  timeout,
		dial:     net.DialTimeout,
	}
}

// Run probes until ctx is done. State transitions are logged once, not per
// probe.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe() // immediate first probe, don't wait a full interval at boot
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe()
		}
	}
}

func (m *Monitor) probe() {
	conn, err := m.dial("tcp", m.addr, m.timeout)
	if err != nil {
		if m.gate.Up() {
			log.Printf("netstate: backend %s unreachable, senders paused: %v", m.addr, err)
		}
		m.gate.Clear()
		return
	}
	conn.Close()
	if !m.gate.Up() {
		log.Printf("netstate: backend %s reachable, senders resuming", m.addr)
	}
	m.gate.Set()
}
