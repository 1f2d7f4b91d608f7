// Package status provides a thread-safe status tracker for the bridge daemon.
// It is written by the event loop and read by HTTP handlers.
package status

import (
	"sync"
	"time"
)

// Config contains daemon configuration for display.
type Config struct {
	Hostname   string
	Version    string
	Broker     string
	HTTPAddr   string
	SerialPort string
	DataDir    string
	Interface  string
}

// Counts are running totals since startup.
type Counts struct {
	StatusPublished   int
	StatusDropped     int
	CommandsForwarded int
	CommandsRejected  int
	Reconnects        int
	Polls             int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	LinkUp        bool
	LastStatusAt  time.Time // zero until the first status report
	Counts        Counts
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetLinkUp sets the network link status.
func (t *Tracker) SetLinkUp(up bool) {
	t.mu.Lock()
	t.snap.LinkUp = up
	t.mu.Unlock()
}

// RecordStatus counts a status report from the unit and whether it was
// published or dropped for lack of a broker connection.
func (t *Tracker) RecordStatus(at time.Time, published bool) {
	t.mu.Lock()
	t.snap.LastStatusAt = at
	if published {
		t.snap.Counts.StatusPublished++
	} else {
		t.snap.Counts.StatusDropped++
	}
	t.mu.Unlock()
}

// RecordCommand counts an inbound command.
func (t *Tracker) RecordCommand(forwarded bool) {
	t.mu.Lock()
	if forwarded {
		t.snap.Counts.CommandsForwarded++
	} else {
		t.snap.Counts.CommandsRejected++
	}
	t.mu.Unlock()
}

// RecordReconnect counts an armed reconnect timer.
func (t *Tracker) RecordReconnect() {
	t.mu.Lock()
	t.snap.Counts.Reconnects++
	t.mu.Unlock()
}

// RecordPoll counts a periodic status request.
func (t *Tracker) RecordPoll() {
	t.mu.Lock()
	t.snap.Counts.Polls++
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
