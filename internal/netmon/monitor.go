// Package netmon observes network reachability for the sync engine.
//
// Reachability is probed actively: a periodic TCP dial against the API host
// stands in for a platform connectivity API, and the wifi distinction is a
// best-effort interface-name check on the route the dial used.
package netmon

import (
	"context"
	"net"
	"os"
	"strings"
	"sync"
	"time"
)

// Status is a connectivity snapshot.
type Status struct {
	Online bool
	Wifi   bool
}

// Callback receives a Status after every probe. It runs on the monitor
// goroutine and must not block on I/O.
type Callback func(Status)

// Probe checks connectivity once.
type Probe func(ctx context.Context) Status

// Monitor periodically probes reachability and reports every result to its
// callback. Transition detection is the subscriber's concern.
type Monitor struct {
	mu       sync.RWMutex
	probe    Probe
	callback Callback
	interval time.Duration
	last     Status
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a monitor that dials the given "host:port" target. A zero
// interval defaults to 15s.
func New(target string, interval time.Duration, cb Callback) *Monitor {
	if interval == 0 {
		interval = 15 * time.Second
	}
	return &Monitor{
		probe:    dialProbe(target),
		callback: cb,
		interval: interval,
	}
}

// Start begins the probe loop. The first probe fires immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.check(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.RLock()
	cancel := m.cancel
	done := m.done
	m.mu.RUnlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Status returns the most recent probe result.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) check(ctx context.Context) {
	st := m.probe(ctx)

	m.mu.Lock()
	m.last = st
	cb := m.callback
	m.mu.Unlock()

	if cb != nil {
		cb(st)
	}
}

func dialProbe(target string) Probe {
	return func(ctx context.Context) Status {
		d := net.Dialer{Timeout: 3 * time.Second}
		conn, err := d.DialContext(ctx, "tcp", target)
		if err != nil {
			return Status{}
		}
		defer conn.Close()
		return Status{Online: true, Wifi: onWirelessRoute(conn.LocalAddr())}
	}
}

// onWirelessRoute reports whether the local address the probe used belongs to
// a wireless interface.
func onWirelessRoute(local net.Addr) bool {
	tcpAddr, ok := local.(*net.TCPAddr)
	if !ok {
		return false
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if ok && ipNet.Contains(tcpAddr.IP) {
				return isWirelessInterface(iface.Name)
			}
		}
	}
	return false
}

func isWirelessInterface(name string) bool {
	if _, err := os.Stat("/sys/class/net/" + name + "/wireless"); err == nil {
		return true
	}
	return strings.HasPrefix(name, "wl")
}
