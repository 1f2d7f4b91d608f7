package bridge

import "github.com/sweeney/ac-mqtt-bridge/internal/ac"

// EventType identifies what happened.
type EventType int

const (
	EventLinkUp EventType = iota + 1
	EventLinkDown
	EventMQTTConnected
	EventMQTTDisconnected
	EventMQTTMessage
	EventACStatus
	EventReconnectTimer
)

func (t EventType) String() string {
	switch t {
	case EventLinkUp:
		return "LINK_UP"
	case EventLinkDown:
		return "LINK_DOWN"
	case EventMQTTConnected:
		return "MQTT_CONNECTED"
	case EventMQTTDisconnected:
		return "MQTT_DISCONNECTED"
	case EventMQTTMessage:
		return "MQTT_MESSAGE"
	case EventACStatus:
		return "AC_STATUS"
	case EventReconnectTimer:
		return "RECONNECT_TIMER"
	default:
		return "UNKNOWN"
	}
}

// Event is posted by I/O goroutines and handled one at a time by the loop.
type Event struct {
	Type EventType

	// EventMQTTMessage
	Topic   string
	Payload []byte

	// EventACStatus
	Status ac.Status

	// EventMQTTDisconnected
	Err error

	// EventReconnectTimer: the arm generation that scheduled it.
	Generation uint64
}
