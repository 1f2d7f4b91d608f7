package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sweeney/ac-mqtt-bridge/internal/acserial"
	"github.com/sweeney/ac-mqtt-bridge/internal/mqtt"
	"github.com/sweeney/ac-mqtt-bridge/internal/netinfo"
	"github.com/sweeney/ac-mqtt-bridge/internal/status"
	"github.com/sweeney/ac-mqtt-bridge/internal/sysinfo"
)

type fakeSettings struct {
	mu     sync.Mutex
	clears int
	err    error
}

func (f *fakeSettings) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	return f.err
}

func (f *fakeSettings) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clears
}

type fixture struct {
	ts       *httptest.Server
	tracker  *status.Tracker
	client   *mqtt.FakeClient
	settings *fakeSettings
	hub      *Hub
	restarts chan struct{}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	f := &fixture{
		tracker: status.NewTracker(start, status.Config{
			Hostname:   "ARM64-A1B2C3",
			Version:    "1.0.0",
			Broker:     "tcp://192.168.178.79:1883",
			HTTPAddr:   ":80",
			SerialPort: "/dev/ttyAMA0",
			DataDir:    "/var/lib/ac-bridge",
			Interface:  "wlan0",
		}),
		client:   mqtt.NewFakeClient(),
		settings: &fakeSettings{},
		hub:      NewHub(nil),
		restarts: make(chan struct{}, 1),
	}
	link := acserial.NewFakeLink()
	link.Serial = "000000P0000000Q1B88C0A13A0A4200000"

	srv := New(Options{
		Addr:    ":0",
		Tracker: f.tracker,
		System: sysinfo.FakeCollector{Info: sysinfo.Info{
			CPUModel:   "Cortex-A72",
			CPUMHz:     1500,
			CPUCores:   4,
			GoVersion:  "go1.24.0",
			HeapAlloc:  2 << 20,
			HeapSys:    8 << 20,
			MemTotal:   4 << 30,
			BinarySize: 9 << 20,
			DiskFree:   12 << 30,
		}},
		Network: netinfo.NewFakeSource(netinfo.Info{
			Interface: "wlan0",
			Up:        true,
			IP:        "192.168.178.50",
			Mask:      "255.255.255.0",
			Gateway:   "192.168.178.1",
			MAC:       "dc:a6:32:a1:b2:c3",
			SSID:      "MyNet",
			RSSI:      -61,
		}),
		MQTT:     f.client,
		Unit:     link,
		Settings: f.settings,
		Hub:      f.hub,
		Restart:  func() { f.restarts <- struct{}{} },
	})
	f.ts = httptest.NewServer(srv.Handler())
	t.Cleanup(f.ts.Close)
	return f
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestJSONEndpoint(t *testing.T) {
	f := newFixture(t)
	f.tracker.RecordStatus(time.Date(2026, 1, 1, 0, 5, 0, 0, time.UTC), true)
	f.tracker.RecordCommand(true)
	f.tracker.RecordCommand(false)
	f.client.FireConnect()

	resp, body := get(t, f.ts.URL+"/status.json")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var dj DiagnosticsJSON
	if err := json.Unmarshal([]byte(body), &dj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	if dj.Hostname != "ARM64-A1B2C3" || dj.Version != "1.0.0" {
		t.Errorf("hostname/version: got %q/%q", dj.Hostname, dj.Version)
	}
	if !dj.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if dj.MQTT.Broker != "tcp://192.168.178.79:1883" {
		t.Errorf("MQTT.Broker: got %q", dj.MQTT.Broker)
	}
	if dj.Counts.StatusPublished != 1 || dj.Counts.CommandsForwarded != 1 || dj.Counts.CommandsRejected != 1 {
		t.Errorf("Counts: got %+v", dj.Counts)
	}
	if dj.LastStatus != "2026-01-01T00:05:00Z" {
		t.Errorf("LastStatus: got %q", dj.LastStatus)
	}
	if dj.Unit.SerialNumber != "000000P0000000Q1B88C0A13A0A4200000" {
		t.Errorf("Unit.SerialNumber: got %q", dj.Unit.SerialNumber)
	}
	if dj.Network.IP != "192.168.178.50" || dj.Network.RSSI != -61 || dj.Network.SSID != "MyNet" {
		t.Errorf("Network: got %+v", dj.Network)
	}
	if dj.System.CPUCores != 4 || dj.System.DiskFree != 12<<30 {
		t.Errorf("System: got %+v", dj.System)
	}
	if dj.Config.SerialPort != "/dev/ttyAMA0" {
		t.Errorf("Config.SerialPort: got %q", dj.Config.SerialPort)
	}
}

func TestJSONOmitsLastStatusBeforeFirstReport(t *testing.T) {
	f := newFixture(t)

	_, body := get(t, f.ts.URL+"/status.json")
	if strings.Contains(body, "last_status") {
		t.Errorf("last_status present before any report:\n%s", body)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	f := newFixture(t)

	resp, body := get(t, f.ts.URL+"/")
	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}
	for _, want := range []string{
		"ARM64-A1B2C3",
		"000000P0000000Q1B88C0A13A0A4200000",
		"192.168.178.50",
		"255.255.255.0",
		"192.168.178.1",
		"dc:a6:32:a1:b2:c3",
		"MyNet",
		"-61 dBm",
		"go1.24.0",
		"Cortex-A72",
		"12.0 GiB free",
		"9.0 MiB",
		"disconnected",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestRequestIDHeader(t *testing.T) {
	f := newFixture(t)

	resp, _ := get(t, f.ts.URL+"/status.json")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected generated X-Request-ID")
	}

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/status.json", nil)
	req.Header.Set("X-Request-ID", "abc")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "abc" {
		t.Errorf("X-Request-ID: got %q, want abc", got)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{"/unknown-path", "/index.html", "/status.json/x"} {
		resp, body := get(t, f.ts.URL+path)
		if resp.StatusCode != 404 {
			t.Errorf("%s status: got %d, want 404", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "text/plain" {
			t.Errorf("%s Content-Type: got %q, want text/plain", path, ct)
		}
		if body != "Not found..." {
			t.Errorf("%s body: got %q", path, body)
		}
	}
}

func TestWrongMethodIsNotFound(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Post(f.ts.URL+"/reset", "text/plain", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
	if f.settings.count() != 0 {
		t.Error("POST /reset must not clear settings")
	}
}

func TestResetClearsSettings(t *testing.T) {
	f := newFixture(t)

	for i := 0; i < 2; i++ {
		resp, body := get(t, f.ts.URL+"/reset")
		if resp.StatusCode != 200 || body != "Reset settings..." {
			t.Errorf("reset %d: got %d %q", i, resp.StatusCode, body)
		}
	}
	if n := f.settings.count(); n != 2 {
		t.Errorf("clears: got %d, want 2", n)
	}
}

func TestResetFailureStillAnswers(t *testing.T) {
	f := newFixture(t)
	f.settings.err = errors.New("read-only filesystem")

	resp, body := get(t, f.ts.URL+"/reset")
	if resp.StatusCode != 200 || body != "Reset settings..." {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}
}

func TestRebootAnswersThenRestarts(t *testing.T) {
	f := newFixture(t)

	resp, body := get(t, f.ts.URL+"/reboot")
	if resp.StatusCode != 200 || body != "Reboot device..." {
		t.Errorf("got %d %q", resp.StatusCode, body)
	}
	select {
	case <-f.restarts:
	case <-time.After(2 * time.Second):
		t.Fatal("restart not invoked")
	}
}

func TestWebSocketStreamsState(t *testing.T) {
	f := newFixture(t)
	f.hub.Broadcast([]byte(`[{"ist":20.0}]`))

	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read last state: %v", err)
	}
	if string(msg) != `[{"ist":20.0}]` {
		t.Errorf("first message: got %s", msg)
	}

	f.hub.Broadcast([]byte(`[{"ist":21.5}]`))
	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if string(msg) != `[{"ist":21.5}]` {
		t.Errorf("broadcast: got %s", msg)
	}
	if n := f.hub.ClientCount(); n != 1 {
		t.Errorf("ClientCount: got %d, want 1", n)
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{uint64(512), "512 B"},
		{uint64(1536), "1.5 KiB"},
		{int64(9 << 20), "9.0 MiB"},
		{uint64(4 << 30), "4.0 GiB"},
	}
	for _, tt := range tests {
		if got := humanBytes(tt.in); got != tt.want {
			t.Errorf("humanBytes(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{42 * time.Second, "42s"},
		{3*time.Minute + 5*time.Second, "3m 5s"},
		{2*time.Hour + 1*time.Minute, "2h 1m 0s"},
		{50 * time.Hour, "2d 2h 0m 0s"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.in); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
