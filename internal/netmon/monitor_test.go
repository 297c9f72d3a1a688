package netmon

import (
	"context"
	"net"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMonitorReportsEveryProbe(t *testing.T) {
	results := make(chan Status, 16)

	m := &Monitor{
		interval: 10 * time.Millisecond,
		callback: func(st Status) { results <- st },
	}
	online := false
	m.probe = func(ctx context.Context) Status {
		online = !online
		return Status{Online: online, Wifi: online}
	}

	m.Start(context.Background())
	defer m.Stop()

	var got []Status
	timeout := time.After(2 * time.Second)
	for len(got) < 3 {
		select {
		case st := <-results:
			got = append(got, st)
		case <-timeout:
			t.Fatalf("timed out waiting for probes, got %d", len(got))
		}
	}

	if !got[0].Online || got[1].Online || !got[2].Online {
		t.Errorf("probe sequence = %v, want alternating online state", got)
	}
}

func TestMonitorStopWaitsForLoop(t *testing.T) {
	m := &Monitor{
		interval: 5 * time.Millisecond,
		probe:    func(ctx context.Context) Status { return Status{Online: true} },
	}
	m.Start(context.Background())
	m.Stop()

	select {
	case <-m.done:
	default:
		t.Error("done channel not closed after Stop")
	}
}

func TestMonitorStatusTracksLastProbe(t *testing.T) {
	m := &Monitor{
		interval: time.Hour,
		probe:    func(ctx context.Context) Status { return Status{Online: true} },
	}
	m.check(context.Background())

	if st := m.Status(); !st.Online {
		t.Error("Status() should reflect the last probe")
	}
}

func TestDialProbe(t *testing.T) {
	srv := httptest.NewServer(nil)
	defer srv.Close()

	host := srv.Listener.Addr().String()
	if st := dialProbe(host)(context.Background()); !st.Online {
		t.Error("probe against live listener reported offline")
	}

	// A closed port must report offline quickly.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	dead := l.Addr().String()
	l.Close()

	if st := dialProbe(dead)(context.Background()); st.Online {
		t.Error("probe against closed port reported online")
	}
}
