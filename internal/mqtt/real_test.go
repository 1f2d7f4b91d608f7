package mqtt

import (
	"errors"
	"net"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

func startBroker(t *testing.T) (*mochi.Server, string) {
	t.Helper()
	addr := freeAddr(t)
	server := mochi.New(&mochi.Options{InlineClient: true})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("add hook: %v", err)
	}
	if err := server.AddListener(listeners.NewTCP(listeners.Config{ID: "test", Address: addr})); err != nil {
		t.Fatalf("add listener: %v", err)
	}
	if err := server.Serve(); err != nil {
		t.Fatalf("serve: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server, "tcp://" + addr
}

func TestRealClientRoundTrip(t *testing.T) {
	server, broker := startBroker(t)

	fromClient := make(chan string, 4)
	if err := server.Subscribe("dev/state", 1, func(_ *mochi.Client, _ packets.Subscription, pk packets.Packet) {
		fromClient <- string(pk.Payload)
	}); err != nil {
		t.Fatal(err)
	}

	connected := make(chan struct{}, 1)
	inbound := make(chan string, 4)
	c := NewRealClient(broker, logging.Nop())
	c.SetHandlers(Handlers{
		OnConnect: func() { connected <- struct{}{} },
		OnMessage: func(topic string, payload []byte) { inbound <- topic + "=" + string(payload) },
	})
	c.Connect(ConnectOptions{ClientID: "dev", WillTopic: "dev/lwt", WillPayload: PresenceOffline, WillRetained: true})
	defer c.Disconnect()

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not connect")
	}
	if !c.IsConnected() {
		t.Fatal("IsConnected() = false after OnConnect")
	}

	if err := c.Subscribe("dev/command", QoSAtMostOnce); err != nil {
		t.Fatal(err)
	}
	if err := c.Publish("dev/state", QoSAtMostOnce, false, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	select {
	case got := <-fromClient:
		if got != "hello" {
			t.Errorf("broker got %q", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("broker did not receive publish")
	}

	// The subscribe is not awaited, so retry until it is active.
	deadline := time.After(5 * time.Second)
	for {
		server.Publish("dev/command", []byte(`{"on":true}`), false, 0)
		select {
		case got := <-inbound:
			if got != `dev/command={"on":true}` {
				t.Errorf("inbound = %q", got)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("client did not receive command")
		}
	}
}

func TestRealClientConnectFailureReportsDisconnect(t *testing.T) {
	lost := make(chan error, 1)
	c := NewRealClient("tcp://"+freeAddr(t), logging.Nop())
	c.SetHandlers(Handlers{OnDisconnect: func(err error) { lost <- err }})
	c.Connect(ConnectOptions{ClientID: "dev"})

	select {
	case err := <-lost:
		if err == nil {
			t.Error("expected non-nil error")
		}
	case <-time.After(15 * time.Second):
		t.Fatal("OnDisconnect not called")
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after failed connect")
	}
}

func TestRealClientNotConnected(t *testing.T) {
	c := NewRealClient("tcp://127.0.0.1:1", logging.Nop())
	if err := c.Publish("x", 0, false, nil); err != ErrNotConnected {
		t.Errorf("Publish err = %v", err)
	}
	if err := c.Subscribe("x", 0); err != ErrNotConnected {
		t.Errorf("Subscribe err = %v", err)
	}
}

func TestRealClientDropsReplacedAttemptCallbacks(t *testing.T) {
	var connects, lost, msgs int
	c := NewRealClient("tcp://127.0.0.1:1", logging.Nop())
	h := Handlers{
		OnConnect:    func() { connects++ },
		OnDisconnect: func(error) { lost++ },
		OnMessage:    func(string, []byte) { msgs++ },
	}

	c.gen = 1
	first := c.live(1, h)
	c.gen = 2
	second := c.live(2, h)

	first.OnConnect()
	first.OnDisconnect(errors.New("cancelled"))
	first.OnMessage("t", nil)
	if connects != 0 || lost != 0 || msgs != 0 {
		t.Fatalf("replaced attempt reached handlers: connects=%d lost=%d msgs=%d", connects, lost, msgs)
	}

	second.OnConnect()
	second.OnDisconnect(errors.New("gone"))
	second.OnMessage("t", nil)
	if connects != 1 || lost != 1 || msgs != 1 {
		t.Errorf("current attempt: connects=%d lost=%d msgs=%d, want 1 each", connects, lost, msgs)
	}
}
