// Package acserial talks to the indoor unit over its UART.
// The Adapter implements the frame protocol on any byte stream; OpenPort
// supplies a real serial port and FakeLink stands in for tests.
package acserial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sweeney/ac-mqtt-bridge/internal/ac"
	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

// ErrNotOpen is returned when a request is sent while no port is bound.
var ErrNotOpen = errors.New("acserial: port not open")

// DefaultReopenDelay is the pause between attempts to reopen the port.
const DefaultReopenDelay = 5 * time.Second

// Link is the command surface of the unit.
type Link interface {
	// RequestSerialNumber asks the unit for its serial number.
	RequestSerialNumber() error

	// SendConfiguration pushes a desired configuration to the unit.
	SendConfiguration(cfg ac.Config) error

	// SendHeartbeatStatus tells the unit whether the bridge is connected.
	SendHeartbeatStatus(connected, flag bool) error

	// RequestStatus asks the unit for a status report. The answer arrives
	// asynchronously through the OnStatusEvent callback.
	RequestStatus() error

	// OnStatusEvent registers the callback for decoded status reports.
	OnStatusEvent(cb func(ac.Status))

	// SerialNumber returns the last serial number reported, or "".
	SerialNumber() string
}

// Opener opens the underlying byte stream.
type Opener func() (io.ReadWriteCloser, error)

// Adapter is a Link over a byte stream.
type Adapter struct {
	log         *logging.Logger
	reopenDelay time.Duration

	mu       sync.Mutex
	port     io.ReadWriteCloser
	msgID    byte
	serial   string
	onStatus func(ac.Status)

	wg sync.WaitGroup
}

// NewAdapter creates an unbound adapter.
func NewAdapter(log *logging.Logger) *Adapter {
	return &Adapter{log: log, reopenDelay: DefaultReopenDelay}
}

// Begin opens the port and starts the reader. If the port fails to open or
// later fails to read, it is reopened every reopen delay until ctx is done.
func (a *Adapter) Begin(ctx context.Context, open Opener) {
	port, err := open()
	if err != nil {
		a.log.Warnw("open serial port failed", "err", err)
		port = nil
	} else {
		a.setPort(port)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.run(ctx, open, port)
	}()
}

// Wait blocks until the reader has stopped.
func (a *Adapter) Wait() {
	a.wg.Wait()
}

func (a *Adapter) run(ctx context.Context, open Opener, port io.ReadWriteCloser) {
	for {
		if port != nil {
			a.serve(ctx, port)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(a.reopenDelay):
		}
		var err error
		port, err = open()
		if err != nil {
			a.log.Warnw("reopen serial port failed", "err", err)
			port = nil
			continue
		}
		a.log.Infow("serial port reopened")
	}
}

func (a *Adapter) serve(ctx context.Context, port io.ReadWriteCloser) {
	a.setPort(port)
	var once sync.Once
	closePort := func() {
		once.Do(func() {
			if err := port.Close(); err != nil {
				a.log.Debugw("serial close failed", "err", err)
			}
		})
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			closePort()
		case <-stop:
		}
	}()
	defer func() {
		close(stop)
		a.setPort(nil)
		closePort()
	}()

	var dec decoder
	buf := make([]byte, 256)
	for {
		n, err := port.Read(buf)
		if n > 0 {
			frames, dropped := dec.feed(buf[:n])
			if dropped > 0 {
				a.log.Debugw("dropped invalid frame bytes", "count", dropped)
			}
			for _, f := range frames {
				a.handleFrame(f)
			}
		}
		if err != nil {
			if ctx.Err() == nil {
				a.log.Warnw("serial read failed", "err", err)
			}
			return
		}
	}
}

func (a *Adapter) handleFrame(f []byte) {
	msgType, body, err := parseFrame(f)
	if err != nil {
		return
	}
	switch msgType {
	case msgControl, msgQuery, msgNotify:
		if len(body) == 0 || body[0] != bodyStatus {
			a.log.Debugw("ignoring frame", "type", msgType, "tag", firstByte(body))
			return
		}
		st, err := decodeStatus(body)
		if err != nil {
			a.log.Debugw("bad status body", "err", err)
			return
		}
		a.mu.Lock()
		cb := a.onStatus
		a.mu.Unlock()
		if cb != nil {
			cb(st)
		}
	case msgSerialNumber:
		sn := decodeSerialNumber(body)
		a.mu.Lock()
		a.serial = sn
		a.mu.Unlock()
		a.log.Infow("unit serial number", "sn", sn)
	default:
		a.log.Debugw("ignoring frame", "type", msgType)
	}
}

func firstByte(b []byte) int {
	if len(b) == 0 {
		return -1
	}
	return int(b[0])
}

func (a *Adapter) setPort(port io.ReadWriteCloser) {
	a.mu.Lock()
	a.port = port
	a.mu.Unlock()
}

func (a *Adapter) send(msgType byte, body []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.port == nil {
		return ErrNotOpen
	}
	a.msgID++
	if _, err := a.port.Write(buildFrame(msgType, a.msgID, body)); err != nil {
		return fmt.Errorf("write frame 0x%02X: %w", msgType, err)
	}
	return nil
}

// RequestSerialNumber implements Link.
func (a *Adapter) RequestSerialNumber() error {
	return a.send(msgSerialNumber, encodeSerialNumberRequest())
}

// SendConfiguration implements Link.
func (a *Adapter) SendConfiguration(cfg ac.Config) error {
	return a.send(msgControl, encodeSet(cfg))
}

// SendHeartbeatStatus implements Link.
func (a *Adapter) SendHeartbeatStatus(connected, flag bool) error {
	return a.send(msgNetworkState, encodeNetworkState(connected, flag))
}

// RequestStatus implements Link.
func (a *Adapter) RequestStatus() error {
	return a.send(msgQuery, encodeQuery())
}

// OnStatusEvent implements Link.
func (a *Adapter) OnStatusEvent(cb func(ac.Status)) {
	a.mu.Lock()
	a.onStatus = cb
	a.mu.Unlock()
}

// SerialNumber implements Link.
func (a *Adapter) SerialNumber() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.serial
}
