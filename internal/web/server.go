// Package web serves the bridge's diagnostics page, its JSON twin, a live
// state websocket and the reset/reboot maintenance endpoints.
package web

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
	"github.com/sweeney/ac-mqtt-bridge/internal/mqtt"
	"github.com/sweeney/ac-mqtt-bridge/internal/netinfo"
	"github.com/sweeney/ac-mqtt-bridge/internal/status"
	"github.com/sweeney/ac-mqtt-bridge/internal/sysinfo"
)

// Responses for the plain-text endpoints.
const (
	msgReset    = "Reset settings..."
	msgReboot   = "Reboot device..."
	msgNotFound = "Not found..."
)

// Settings is the persisted provisioning cleared by /reset.
type Settings interface {
	Clear() error
}

// SerialSource reports the AC unit's serial number.
type SerialSource interface {
	SerialNumber() string
}

// Options are the data sources and actions the server exposes.
type Options struct {
	Addr     string
	Tracker  *status.Tracker
	System   sysinfo.Collector
	Network  netinfo.Source
	MQTT     mqtt.ConnectionStatus
	Unit     SerialSource
	Settings Settings
	Hub      *Hub
	Log      *logging.Logger

	// Restart is invoked after /reboot has answered. RestartDelay gives the
	// response time to reach the client.
	Restart      func()
	RestartDelay time.Duration
}

// Server serves the diagnostics endpoints over HTTP.
type Server struct {
	httpServer *http.Server
	opts       Options
	log        *logging.Logger
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	s := &Server{opts: opts, log: opts.Log}

	r := chi.NewRouter()
	r.Use(s.requestID, s.logRequests, s.recoverPanics)
	r.Get("/", s.handleIndex)
	r.Get("/reset", s.handleReset)
	r.Get("/reboot", s.handleReboot)
	r.Get("/status.json", s.handleJSON)
	if opts.Hub != nil {
		r.Get("/ws", opts.Hub.ServeHTTP)
	}
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleNotFound)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	page := s.collect(r.Context())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, page); err != nil {
		s.log.Warnw("render status page", "err", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	page := s.collect(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.Write(formatJSON(page))
}

func (s *Server) handleReset(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, msgReset)
	if s.opts.Settings == nil {
		return
	}
	if err := s.opts.Settings.Clear(); err != nil {
		s.log.Errorw("clearing settings failed", "err", err)
		return
	}
	s.log.Infow("settings cleared")
}

func (s *Server) handleReboot(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, msgReboot)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	if s.opts.Restart == nil {
		return
	}
	s.log.Infow("restart requested", "delay", s.opts.RestartDelay)
	go func() {
		time.Sleep(s.opts.RestartDelay)
		s.opts.Restart()
	}()
}

func handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusNotFound, msgNotFound)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(code)
	io.WriteString(w, body)
}

// page is everything the status page and JSON show, read fresh per request.
type page struct {
	status.Snapshot
	Uptime       time.Duration
	System       sysinfo.Info
	Network      netinfo.Info
	SerialNumber string
}

func (s *Server) collect(ctx context.Context) page {
	p := page{}
	if s.opts.Tracker != nil {
		p.Snapshot = s.opts.Tracker.Snapshot()
		p.Uptime = p.Snapshot.Uptime()
	}
	if s.opts.System != nil {
		p.System = s.opts.System.Collect(ctx)
	}
	if s.opts.Network != nil {
		p.Network = s.opts.Network.Info()
	}
	if s.opts.MQTT != nil {
		p.MQTTConnected = s.opts.MQTT.IsConnected()
	}
	if s.opts.Unit != nil {
		p.SerialNumber = s.opts.Unit.SerialNumber()
	}
	return p
}
