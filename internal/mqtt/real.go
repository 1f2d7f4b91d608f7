package mqtt

import (
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

const (
	connectTimeout = 10 * time.Second
	tokenTimeout   = 5 * time.Second
	keepAlive      = 30 * time.Second
)

// RealClient is a Conn backed by an actual MQTT broker.
type RealClient struct {
	broker string
	log    *logging.Logger

	mu       sync.Mutex
	client   paho.Client
	handlers Handlers
	// gen counts Connect calls. Callbacks from an earlier attempt are dropped.
	gen uint64
}

// NewRealClient creates a client for broker (e.g. "tcp://host:1883").
// No connection is made until Connect.
func NewRealClient(broker string, log *logging.Logger) *RealClient {
	return &RealClient{broker: broker, log: log}
}

// SetHandlers implements Conn.
func (c *RealClient) SetHandlers(h Handlers) {
	c.mu.Lock()
	c.handlers = h
	c.mu.Unlock()
}

// Connect implements Conn. The attempt runs in the background; failure is
// reported through OnDisconnect.
func (c *RealClient) Connect(opts ConnectOptions) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	h := c.live(gen, c.handlers)
	old := c.client
	c.mu.Unlock()

	if old != nil {
		old.Disconnect(0)
	}

	o := paho.NewClientOptions().
		AddBroker(c.broker).
		SetClientID(opts.ClientID).
		SetCleanSession(true).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOnConnectHandler(func(paho.Client) {
			if h.OnConnect != nil {
				h.OnConnect()
			}
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			if h.OnDisconnect != nil {
				h.OnDisconnect(err)
			}
		}).
		SetDefaultPublishHandler(func(_ paho.Client, m paho.Message) {
			if h.OnMessage != nil {
				h.OnMessage(m.Topic(), m.Payload())
			}
		})
	if opts.WillTopic != "" {
		o.SetWill(opts.WillTopic, opts.WillPayload, QoSAtMostOnce, opts.WillRetained)
	}

	client := paho.NewClient(o)
	c.mu.Lock()
	c.client = client
	c.mu.Unlock()

	c.log.Infow("connecting to broker", "broker", c.broker, "client_id", opts.ClientID)
	token := client.Connect()
	go func() {
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.Warnw("broker connect failed", "broker", c.broker, "err", err)
			if h.OnDisconnect != nil {
				h.OnDisconnect(err)
			}
		}
	}()
}

// live wraps h so that each callback only runs while gen is the newest
// attempt. Replacing a pending attempt cancels it, and that cancellation must
// not be reported as a disconnect of the session that replaced it.
func (c *RealClient) live(gen uint64, h Handlers) Handlers {
	current := func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.gen == gen
	}
	var out Handlers
	if h.OnConnect != nil {
		out.OnConnect = func() {
			if current() {
				h.OnConnect()
			}
		}
	}
	if h.OnDisconnect != nil {
		out.OnDisconnect = func(err error) {
			if current() {
				h.OnDisconnect(err)
				return
			}
			c.log.Debugw("ignoring disconnect from replaced attempt", "err", err)
		}
	}
	if h.OnMessage != nil {
		out.OnMessage = func(topic string, payload []byte) {
			if current() {
				h.OnMessage(topic, payload)
			}
		}
	}
	return out
}

func (c *RealClient) current() paho.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.client
}

// IsConnected implements Conn.
func (c *RealClient) IsConnected() bool {
	client := c.current()
	return client != nil && client.IsConnectionOpen()
}

// Subscribe implements Conn. Messages are delivered to OnMessage.
func (c *RealClient) Subscribe(topic string, qos byte) error {
	client := c.current()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}
	c.watch(client.Subscribe(topic, qos, nil), "subscribe", topic)
	return nil
}

// Publish implements Conn.
func (c *RealClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	client := c.current()
	if client == nil || !client.IsConnectionOpen() {
		return ErrNotConnected
	}
	c.watch(client.Publish(topic, qos, retained, payload), "publish", topic)
	return nil
}

// watch logs the outcome of a token without blocking the caller.
func (c *RealClient) watch(token paho.Token, op, topic string) {
	go func() {
		if !token.WaitTimeout(tokenTimeout) {
			c.log.Warnw(op+" timeout", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			c.log.Warnw(op+" failed", "topic", topic, "err", err)
		}
	}()
}

// Disconnect implements Conn.
func (c *RealClient) Disconnect() {
	client := c.current()
	if client != nil {
		client.Disconnect(1000) // 1 second quiesce
	}
}
