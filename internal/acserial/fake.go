package acserial

import (
	"sync"

	"github.com/sweeney/ac-mqtt-bridge/internal/ac"
)

// Heartbeat is one recorded SendHeartbeatStatus call.
type Heartbeat struct {
	Connected bool
	Flag      bool
}

// FakeLink records requests for test assertions. It is safe for
// concurrent use.
type FakeLink struct {
	mu sync.Mutex

	configs        []ac.Config
	heartbeats     []Heartbeat
	statusRequests int
	snRequests     int
	onStatus       func(ac.Status)

	// Serial is returned by SerialNumber.
	Serial string

	// SendError, if set, is returned by every send method.
	SendError error
}

// NewFakeLink creates a FakeLink.
func NewFakeLink() *FakeLink {
	return &FakeLink{}
}

// RequestSerialNumber records the call.
func (f *FakeLink) RequestSerialNumber() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snRequests++
	return f.SendError
}

// SendConfiguration records cfg.
func (f *FakeLink) SendConfiguration(cfg ac.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendError != nil {
		return f.SendError
	}
	f.configs = append(f.configs, cfg)
	return nil
}

// SendHeartbeatStatus records the call.
func (f *FakeLink) SendHeartbeatStatus(connected, flag bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats = append(f.heartbeats, Heartbeat{Connected: connected, Flag: flag})
	return f.SendError
}

// RequestStatus records the call.
func (f *FakeLink) RequestStatus() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusRequests++
	return f.SendError
}

// OnStatusEvent stores cb for Emit.
func (f *FakeLink) OnStatusEvent(cb func(ac.Status)) {
	f.mu.Lock()
	f.onStatus = cb
	f.mu.Unlock()
}

// SerialNumber returns f.Serial.
func (f *FakeLink) SerialNumber() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Serial
}

// Emit delivers st to the registered callback as if the unit had reported it.
func (f *FakeLink) Emit(st ac.Status) {
	f.mu.Lock()
	cb := f.onStatus
	f.mu.Unlock()
	if cb != nil {
		cb(st)
	}
}

// Configs returns a copy of the configurations sent.
func (f *FakeLink) Configs() []ac.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ac.Config(nil), f.configs...)
}

// Heartbeats returns a copy of the heartbeats sent.
func (f *FakeLink) Heartbeats() []Heartbeat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Heartbeat(nil), f.heartbeats...)
}

// StatusRequests returns how many status requests were sent.
func (f *FakeLink) StatusRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusRequests
}

// SerialNumberRequests returns how many serial number requests were sent.
func (f *FakeLink) SerialNumberRequests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snRequests
}
