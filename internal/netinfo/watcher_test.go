package netinfo

import (
	"context"
	"testing"
	"time"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

func TestWatcherObserve(t *testing.T) {
	w := NewWatcher(nil, logging.Nop())

	steps := []struct {
		up     bool
		want   Event
		wantOK bool
	}{
		{false, 0, false},
		{true, GotIP, true},
		{true, 0, false},
		{false, Disconnected, true},
		{false, 0, false},
		{true, GotIP, true},
	}
	for i, s := range steps {
		ev, ok := w.Observe(Info{Up: s.up})
		if ev != s.want || ok != s.wantOK {
			t.Errorf("step %d: got (%v, %v), want (%v, %v)", i, ev, ok, s.want, s.wantOK)
		}
	}
}

func TestWatcherRun(t *testing.T) {
	src := NewFakeSource(Info{Interface: "wlan0", Up: true, IP: "10.0.0.2"})
	w := NewWatcher(src, logging.Nop())

	tick := make(chan time.Time)
	events := make(chan Event, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, tick, func(ev Event, _ Info) { events <- ev })
		close(done)
	}()

	expect := func(want Event) {
		t.Helper()
		select {
		case got := <-events:
			if got != want {
				t.Errorf("event = %v, want %v", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("no %v event", want)
		}
	}

	expect(GotIP)
	src.Set(Info{Interface: "wlan0"})
	tick <- time.Now()
	expect(Disconnected)
	tick <- time.Now()
	src.Set(Info{Interface: "wlan0", Up: true})
	tick <- time.Now()
	expect(GotIP)

	cancel()
	<-done
}

func TestEventString(t *testing.T) {
	if GotIP.String() != "GOT_IP" || Disconnected.String() != "DISCONNECTED" || Event(0).String() != "UNKNOWN" {
		t.Error("unexpected Event strings")
	}
}
