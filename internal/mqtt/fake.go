package mqtt

import "sync"

// Message is one recorded publish.
type Message struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// Subscription is one recorded subscribe.
type Subscription struct {
	Topic string
	QoS   byte
}

// FakeClient records calls for test assertions. Tests drive the broker side
// with FireConnect, FireDisconnect and FireMessage. It is safe for
// concurrent use.
type FakeClient struct {
	mu            sync.Mutex
	handlers      Handlers
	connected     bool
	connects      []ConnectOptions
	subscriptions []Subscription
	published     []Message
	disconnects   int

	// PublishError, if set, is returned by Publish.
	PublishError error
}

// NewFakeClient creates a disconnected FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{}
}

// SetHandlers implements Conn.
func (f *FakeClient) SetHandlers(h Handlers) {
	f.mu.Lock()
	f.handlers = h
	f.mu.Unlock()
}

// Connect records opts. The connection is not established until FireConnect.
func (f *FakeClient) Connect(opts ConnectOptions) {
	f.mu.Lock()
	f.connects = append(f.connects, opts)
	f.mu.Unlock()
}

// IsConnected implements Conn.
func (f *FakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Subscribe records the subscription.
func (f *FakeClient) Subscribe(topic string, qos byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	f.subscriptions = append(f.subscriptions, Subscription{Topic: topic, QoS: qos})
	return nil
}

// Publish records the message.
func (f *FakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return ErrNotConnected
	}
	if f.PublishError != nil {
		return f.PublishError
	}
	f.published = append(f.published, Message{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  append([]byte(nil), payload...),
	})
	return nil
}

// Disconnect marks the client disconnected without firing OnDisconnect,
// matching a deliberate close.
func (f *FakeClient) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.disconnects++
	f.mu.Unlock()
}

// FireConnect marks the client connected and invokes OnConnect.
func (f *FakeClient) FireConnect() {
	f.mu.Lock()
	f.connected = true
	h := f.handlers
	f.mu.Unlock()
	if h.OnConnect != nil {
		h.OnConnect()
	}
}

// FireDisconnect marks the client disconnected and invokes OnDisconnect.
func (f *FakeClient) FireDisconnect(err error) {
	f.mu.Lock()
	f.connected = false
	h := f.handlers
	f.mu.Unlock()
	if h.OnDisconnect != nil {
		h.OnDisconnect(err)
	}
}

// FireMessage delivers an inbound message.
func (f *FakeClient) FireMessage(topic string, payload []byte) {
	f.mu.Lock()
	h := f.handlers
	f.mu.Unlock()
	if h.OnMessage != nil {
		h.OnMessage(topic, payload)
	}
}

// Connects returns a copy of the recorded connect attempts.
func (f *FakeClient) Connects() []ConnectOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ConnectOptions(nil), f.connects...)
}

// Subscriptions returns a copy of the recorded subscriptions.
func (f *FakeClient) Subscriptions() []Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Subscription(nil), f.subscriptions...)
}

// Published returns a copy of the recorded messages.
func (f *FakeClient) Published() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.published...)
}

// PublishedTo returns the messages sent to topic.
func (f *FakeClient) PublishedTo(topic string) []Message {
	var out []Message
	for _, m := range f.Published() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Reset clears recorded calls. Connection state is kept.
func (f *FakeClient) Reset() {
	f.mu.Lock()
	f.connects = nil
	f.subscriptions = nil
	f.published = nil
	f.disconnects = 0
	f.PublishError = nil
	f.mu.Unlock()
}
