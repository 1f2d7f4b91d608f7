package netinfo

import (
	"context"
	"time"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

// DefaultPollInterval is how often the link is checked.
const DefaultPollInterval = 2 * time.Second

// Event is a link transition.
type Event int

const (
	// GotIP fires when the link comes up with an address.
	GotIP Event = iota + 1
	// Disconnected fires when the link goes down.
	Disconnected
)

func (e Event) String() string {
	switch e {
	case GotIP:
		return "GOT_IP"
	case Disconnected:
		return "DISCONNECTED"
	default:
		return "UNKNOWN"
	}
}

// Watcher turns periodic link samples into transitions. The link is
// assumed down until the first sample says otherwise.
type Watcher struct {
	src Source
	log *logging.Logger
	up  bool
}

// NewWatcher creates a Watcher over src.
func NewWatcher(src Source, log *logging.Logger) *Watcher {
	return &Watcher{src: src, log: log}
}

// Observe feeds one sample and returns the resulting transition, if any.
func (w *Watcher) Observe(info Info) (Event, bool) {
	switch {
	case info.Up && !w.up:
		w.up = true
		return GotIP, true
	case !info.Up && w.up:
		w.up = false
		return Disconnected, true
	}
	return 0, false
}

// Run samples the source on every tick and calls emit for each transition.
// The first sample is taken immediately. It returns when ctx is done.
func (w *Watcher) Run(ctx context.Context, tick <-chan time.Time, emit func(Event, Info)) {
	check := func() {
		info := w.src.Info()
		if ev, ok := w.Observe(info); ok {
			w.log.Infow("link "+ev.String(), "iface", info.Interface, "ip", info.IP)
			emit(ev, info)
		}
	}
	check()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			check()
		}
	}
}
