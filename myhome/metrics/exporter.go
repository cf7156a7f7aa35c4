package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/asnowfix/homecontrol/myhome/contacts"
	"github.com/asnowfix/homecontrol/myhome/control"
	"github.com/asnowfix/homecontrol/pkg/devices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-logr/logr"
)

type Contacts interface {
	Snapshot(role devices.Role) []contacts.Contact
}

// Directory is what /contacts returns.
type Directory struct {
	Sensors   []contacts.Contact `json:"sensors" yaml:"sensors"`
	Actuators []contacts.Contact `json:"actuators" yaml:"actuators"`
}

// Exporter serves Prometheus metrics and the controller's state over HTTP.
type Exporter struct {
	log        logr.Logger
	httpAddr   string
	metrics    *Metrics
	contacts   Contacts
	history    *control.History
	started    time.Time
	listener   net.Listener
	httpServer *http.Server
}

// NewExporter creates a new metrics exporter
func NewExporter(log logr.Logger, httpAddr string, m *Metrics, c Contacts, h *control.History) *Exporter {
	return &Exporter{
		log:      log,
		httpAddr: httpAddr,
		metrics:  m,
		contacts: c,
		history:  h,
	}
}

func (e *Exporter) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", e.metrics.Handler())
	r.Get("/health", e.handleHealth)
	r.Get("/contacts", e.handleContacts)
	r.Get("/history", e.handleHistory)
	r.Get("/history/{id}", e.handleDeviceHistory)
	return r
}

// Start listens and serves in the background.
func (e *Exporter) Start() error {
	l, err := net.Listen("tcp", e.httpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", e.httpAddr, err)
	}
	e.listener = l
	e.started = time.Now()
	e.httpServer = &http.Server{
		Handler:           e.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		e.log.Info("Starting HTTP server", "addr", l.Addr().String())
		if err := e.httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
			e.log.Error(err, "HTTP server error")
		}
	}()
	return nil
}

// Addr is the actual listening address, once started.
func (e *Exporter) Addr() string {
	if e.listener == nil {
		return e.httpAddr
	}
	return e.listener.Addr().String()
}

// Stop shuts down the HTTP server
func (e *Exporter) Stop() error {
	e.log.Info("Shutting down HTTP server")
	if e.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (e *Exporter) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(e.started).Round(time.Second).String(),
	})
}

func (e *Exporter) handleContacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Directory{
		Sensors:   e.contacts.Snapshot(devices.Sensor),
		Actuators: e.contacts.Snapshot(devices.Actuator),
	})
}

func (e *Exporter) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, e.history.All())
}

func (e *Exporter) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	id := devices.Id(chi.URLParam(r, "id"))
	if r.URL.Query().Has("latest") {
		entry, ok := e.history.Latest(id)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no history for %q", id)})
			return
		}
		writeJSON(w, http.StatusOK, entry)
		return
	}
	entries := e.history.Get(id)
	if entries == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": fmt.Sprintf("no history for %q", id)})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
