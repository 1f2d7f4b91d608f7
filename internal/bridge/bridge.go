// Package bridge runs the daemon's event loop. It owns the MQTT connection
// state machine, the reconnect timer and the periodic AC status poll. All
// I/O callbacks post events into one channel and the loop handles them one
// at a time, so no handler ever runs concurrently with another.
package bridge

import (
	"context"
	"time"

	"github.com/sweeney/ac-mqtt-bridge/internal/ac"
	"github.com/sweeney/ac-mqtt-bridge/internal/acserial"
	"github.com/sweeney/ac-mqtt-bridge/internal/gpio"
	"github.com/sweeney/ac-mqtt-bridge/internal/identity"
	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
	"github.com/sweeney/ac-mqtt-bridge/internal/mqtt"
	"github.com/sweeney/ac-mqtt-bridge/internal/netinfo"
	"github.com/sweeney/ac-mqtt-bridge/internal/status"
)

// Timing defaults.
const (
	DefaultReconnectDelay = 2 * time.Second
	eventBuffer           = 64
)

// Broadcaster receives every published state payload.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// Deps are the collaborators of a Bridge. Client, Link, Network and Tracker
// are required.
type Deps struct {
	Identity identity.Identity
	Version  string
	Client   mqtt.Conn
	Link     acserial.Link
	Network  netinfo.Source
	Tracker  *status.Tracker
	LED      gpio.Indicator
	Hub      Broadcaster
	Log      *logging.Logger

	// Scheduler defaults to wall-clock timers.
	Scheduler Scheduler
	// Now defaults to time.Now.
	Now func() time.Time
	// ReconnectDelay defaults to DefaultReconnectDelay.
	ReconnectDelay time.Duration
	// PollInterval defaults to ac.StatusPollInterval.
	PollInterval time.Duration
}

// Bridge is the event loop.
type Bridge struct {
	id             identity.Identity
	version        string
	client         mqtt.Conn
	link           acserial.Link
	net            netinfo.Source
	tracker        *status.Tracker
	led            gpio.Indicator
	hub            Broadcaster
	log            *logging.Logger
	sched          Scheduler
	now            func() time.Time
	reconnectDelay time.Duration
	poller         *ac.Poller

	events chan Event
	done   chan struct{}

	// Owned by the loop goroutine.
	timer    Timer
	armed    bool
	timerGen uint64
	// pending is set while a broker connect attempt has not yet reported.
	pending bool
}

// New creates a Bridge and registers its callbacks with the client and link.
func New(d Deps) *Bridge {
	b := &Bridge{
		id:             d.Identity,
		version:        d.Version,
		client:         d.Client,
		link:           d.Link,
		net:            d.Network,
		tracker:        d.Tracker,
		led:            d.LED,
		hub:            d.Hub,
		log:            d.Log,
		sched:          d.Scheduler,
		now:            d.Now,
		reconnectDelay: d.ReconnectDelay,
		events:         make(chan Event, eventBuffer),
		done:           make(chan struct{}),
	}
	if b.led == nil {
		b.led = gpio.Nop{}
	}
	if b.log == nil {
		b.log = logging.Nop()
	}
	if b.sched == nil {
		b.sched = realScheduler{}
	}
	if b.now == nil {
		b.now = time.Now
	}
	if b.reconnectDelay <= 0 {
		b.reconnectDelay = DefaultReconnectDelay
	}
	poll := d.PollInterval
	if poll == 0 {
		poll = ac.StatusPollInterval
	}
	b.poller = ac.NewPoller(poll, b.now())

	b.client.SetHandlers(mqtt.Handlers{
		OnConnect: func() { b.Post(Event{Type: EventMQTTConnected}) },
		OnDisconnect: func(err error) {
			b.Post(Event{Type: EventMQTTDisconnected, Err: err})
		},
		OnMessage: func(topic string, payload []byte) {
			b.Post(Event{Type: EventMQTTMessage, Topic: topic, Payload: payload})
		},
	})
	b.link.OnStatusEvent(func(st ac.Status) {
		b.Post(Event{Type: EventACStatus, Status: st})
	})
	return b
}

// Post queues ev for the loop. It blocks while the queue is full and
// returns without queuing once the loop has stopped.
func (b *Bridge) Post(ev Event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// OnLinkEvent adapts netinfo transitions into loop events.
func (b *Bridge) OnLinkEvent(ev netinfo.Event, _ netinfo.Info) {
	switch ev {
	case netinfo.GotIP:
		b.Post(Event{Type: EventLinkUp})
	case netinfo.Disconnected:
		b.Post(Event{Type: EventLinkDown})
	}
}

// Run asks the unit for its serial number, then handles events and poll
// ticks until ctx is done. On shutdown it announces "Offline" and closes the
// broker connection.
func (b *Bridge) Run(ctx context.Context, tick <-chan time.Time) error {
	defer close(b.done)

	if err := b.link.RequestSerialNumber(); err != nil {
		b.log.Warnw("serial number request failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			b.shutdown()
			return nil
		case ev := <-b.events:
			b.Handle(ev)
		case now := <-tick:
			b.PollTick(now)
		}
	}
}

// Handle processes one event. It must only be called from the loop
// goroutine (or from tests driving the bridge synchronously).
func (b *Bridge) Handle(ev Event) {
	switch ev.Type {
	case EventLinkUp:
		b.tracker.SetLinkUp(true)
		b.connect()
	case EventLinkDown:
		b.tracker.SetLinkUp(false)
		b.disarm()
	case EventMQTTConnected:
		b.onConnect()
	case EventMQTTDisconnected:
		b.onDisconnect(ev.Err)
	case EventMQTTMessage:
		b.onMessage(ev.Topic, ev.Payload)
	case EventACStatus:
		b.onStatus(ev.Status)
	case EventReconnectTimer:
		if !b.armed || ev.Generation != b.timerGen {
			b.log.Debugw("discarding stale reconnect timer", "generation", ev.Generation)
			return
		}
		b.armed = false
		b.connect()
	default:
		b.log.Warnw("unknown event", "type", ev.Type)
	}
}

// PollTick sends the heartbeat and status request when the poll gate is open.
func (b *Bridge) PollTick(now time.Time) {
	if !b.poller.Due(now) {
		return
	}
	b.tracker.RecordPoll()
	if err := b.link.SendHeartbeatStatus(b.client.IsConnected(), true); err != nil {
		b.log.Warnw("heartbeat to unit failed", "err", err)
	}
	if err := b.link.RequestStatus(); err != nil {
		b.log.Warnw("status request failed", "err", err)
	}
}

func (b *Bridge) connect() {
	if b.client.IsConnected() || b.pending {
		return
	}
	b.pending = true
	b.client.Connect(mqtt.ConnectOptions{
		ClientID:     b.id.Hostname,
		WillTopic:    b.id.Topics.LWT,
		WillPayload:  mqtt.PresenceOffline,
		WillRetained: true,
	})
}

func (b *Bridge) onConnect() {
	b.pending = false
	b.disarm()
	b.tracker.SetMQTTConnected(true)
	b.setLED(true)
	b.log.Infow("connected to broker", "client_id", b.id.Hostname)

	t := b.id.Topics
	if err := b.client.Subscribe(t.Command, mqtt.QoSAtMostOnce); err != nil {
		b.log.Warnw("subscribe failed", "topic", t.Command, "err", err)
	}

	info := b.net.Info()
	b.publish(t.LWT, true, []byte(mqtt.PresenceOnline))
	b.publish(t.LocalIP, true, []byte(info.IP))
	b.publish(t.RSSI, true, mqtt.FormatRSSI(info.RSSI))
	b.publish(t.Version, true, mqtt.FormatVersion(b.version))
}

func (b *Bridge) onDisconnect(err error) {
	b.pending = false
	b.tracker.SetMQTTConnected(false)
	b.setLED(false)
	b.log.Warnw("disconnected from broker", "err", err)

	if !b.net.Info().Up {
		return
	}
	b.arm(b.reconnectDelay)
}

func (b *Bridge) onMessage(topic string, payload []byte) {
	if topic != b.id.Topics.Command {
		b.log.Debugw("ignoring message", "topic", topic)
		return
	}
	cfg, err := mqtt.ParseCommand(payload)
	if err != nil {
		b.tracker.RecordCommand(false)
		b.log.Warnw("dropping command", "err", err)
		return
	}
	if err := b.link.SendConfiguration(cfg); err != nil {
		b.log.Warnw("forwarding command failed", "err", err)
		return
	}
	b.tracker.RecordCommand(true)
	b.log.Debugw("forwarded command", "on", cfg.On, "mode", cfg.Mode, "soll", cfg.Soll, "fan", cfg.Fan)
}

func (b *Bridge) onStatus(st ac.Status) {
	now := b.now()
	if !b.client.IsConnected() {
		b.tracker.RecordStatus(now, false)
		b.log.Debugw("dropping status, broker not connected")
		return
	}
	payload, err := mqtt.FormatState(st)
	if err != nil {
		b.log.Errorw("format state failed", "err", err)
		return
	}
	b.publish(b.id.Topics.State, false, payload)
	b.tracker.RecordStatus(now, true)
	if b.hub != nil {
		b.hub.Broadcast(payload)
	}
}

func (b *Bridge) publish(topic string, retained bool, payload []byte) {
	if err := b.client.Publish(topic, mqtt.QoSAtMostOnce, retained, payload); err != nil {
		b.log.Warnw("publish failed", "topic", topic, "err", err)
	}
}

func (b *Bridge) arm(d time.Duration) {
	b.disarm()
	b.timerGen++
	gen := b.timerGen
	b.armed = true
	b.timer = b.sched.AfterFunc(d, func() {
		b.Post(Event{Type: EventReconnectTimer, Generation: gen})
	})
	b.tracker.RecordReconnect()
	b.log.Infow("reconnect scheduled", "in", d)
}

func (b *Bridge) disarm() {
	if !b.armed {
		return
	}
	b.timer.Stop()
	b.armed = false
	b.timerGen++
}

func (b *Bridge) setLED(on bool) {
	if err := b.led.Set(on); err != nil {
		b.log.Debugw("LED update failed", "err", err)
	}
}

func (b *Bridge) shutdown() {
	b.disarm()
	if b.client.IsConnected() {
		b.publish(b.id.Topics.LWT, true, []byte(mqtt.PresenceOffline))
		b.client.Disconnect()
	}
	b.setLED(false)
	b.tracker.SetMQTTConnected(false)
	b.log.Infow("bridge stopped")
}
