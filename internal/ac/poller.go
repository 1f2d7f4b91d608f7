package ac

import "time"

// StatusPollInterval is how often the unit is asked for a status report.
const StatusPollInterval = 30 * time.Second

// Poller gates periodic status requests. It is driven from a single
// goroutine and is not safe for concurrent use.
type Poller struct {
	interval time.Duration
	last     time.Time
	polls    int
}

// NewPoller creates a gate that first opens interval after startTime.
func NewPoller(interval time.Duration, startTime time.Time) *Poller {
	return &Poller{interval: interval, last: startTime}
}

// Due reports whether a poll should be sent at now. When it returns true
// the gate is re-armed from now.
func (p *Poller) Due(now time.Time) bool {
	if p.interval <= 0 {
		return false
	}
	if now.Sub(p.last) < p.interval {
		return false
	}
	p.last = now
	p.polls++
	return true
}

// Polls returns how many times the gate has opened.
func (p *Poller) Polls() int {
	return p.polls
}
