package netinfo

import "sync"

// FakeSource returns scripted link info. It is safe for concurrent use.
type FakeSource struct {
	mu   sync.Mutex
	info Info
}

// NewFakeSource creates a FakeSource returning info.
func NewFakeSource(info Info) *FakeSource {
	return &FakeSource{info: info}
}

// Info implements Source.
func (f *FakeSource) Info() Info {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info
}

// Set replaces the returned info.
func (f *FakeSource) Set(info Info) {
	f.mu.Lock()
	f.info = info
	f.mu.Unlock()
}
