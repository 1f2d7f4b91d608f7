// Package mqtt provides the broker connection with abstraction for testing,
// plus the JSON translation between MQTT payloads and the AC domain model.
package mqtt

// QoS levels used by the bridge.
const (
	QoSAtMostOnce byte = 0
)

// Presence values published on the last-will topic.
const (
	PresenceOnline  = "Online"
	PresenceOffline = "Offline"
)

// Handlers receive broker callbacks. They are invoked from the client's
// goroutines and must not block.
type Handlers struct {
	OnConnect    func()
	OnDisconnect func(err error)
	OnMessage    func(topic string, payload []byte)
}

// ConnectOptions describes one connection attempt.
type ConnectOptions struct {
	ClientID     string
	WillTopic    string
	WillPayload  string
	WillRetained bool
}

// Conn is a broker connection. Reconnecting is the caller's job: a failed
// attempt or a lost connection is reported through OnDisconnect and nothing
// is retried automatically.
type Conn interface {
	// SetHandlers installs the callbacks. Call before Connect.
	SetHandlers(h Handlers)

	// Connect starts an asynchronous connection attempt.
	Connect(opts ConnectOptions)

	// IsConnected reports whether the connection is up.
	IsConnected() bool

	// Subscribe subscribes to topic. Completion is not awaited.
	Subscribe(topic string, qos byte) error

	// Publish sends payload. Completion is not awaited.
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// Disconnect closes the connection.
	Disconnect()
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}
