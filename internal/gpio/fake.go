package gpio

import "sync"

// FakeIndicator records every Set for test assertions.
type FakeIndicator struct {
	mu     sync.Mutex
	states []bool
	closed bool

	// SetError, if set, will be returned by Set().
	SetError error
}

// NewFakeIndicator creates a FakeIndicator that starts off.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// Set records the state.
func (f *FakeIndicator) Set(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.states = append(f.states, on)
	return nil
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// On reports the last state set. Off if never set.
func (f *FakeIndicator) On() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.states) > 0 && f.states[len(f.states)-1]
}

// States returns every state set, in order.
func (f *FakeIndicator) States() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.states...)
}

// Closed reports whether Close was called.
func (f *FakeIndicator) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
