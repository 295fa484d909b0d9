package monitor

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/scan"
	"github.com/banshee-data/scansim/internal/lidar/visualiser"
	"github.com/banshee-data/scansim/internal/monitoring"
	"github.com/banshee-data/scansim/internal/version"
)

//go:embed status.html
var StatusHTML embed.FS

// Sensor is the read side of a simulated sensor.
type Sensor interface {
	Name() string
	Latest() (scan.Scan, *scan.DirectionTable, scan.Config)
	Stats() scan.Stats
}

// StreamStats reports on the gRPC scan stream.
type StreamStats interface {
	Stats() visualiser.PublisherStats
}

// HeadAngle reports the displayed spin angle of a sensor head in degrees.
type HeadAngle interface {
	Angle() float64
}

// AdminRoutes mounts extra debug routes, such as the recorder's SQL
// console.
type AdminRoutes interface {
	AttachAdminRoutes(mux *http.ServeMux) error
}

// WebServer handles the HTTP interface for inspecting simulated scans.
type WebServer struct {
	address string
	sensors []Sensor
	stream  StreamStats
	admin   AdminRoutes
	heads   map[string]HeadAngle
	server  *http.Server
	started time.Time
}

// WebServerConfig contains configuration options for the web server
type WebServerConfig struct {
	Address string
	Sensors []Sensor
	// Stream is optional.
	Stream StreamStats
	// Admin is optional.
	Admin AdminRoutes
	// Heads maps sensor names to their head animators. Optional.
	Heads map[string]HeadAngle
}

// NewWebServer creates a new web server with the provided configuration
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	ws := &WebServer{
		address: config.Address,
		sensors: config.Sensors,
		stream:  config.Stream,
		admin:   config.Admin,
		heads:   config.Heads,
		started: time.Now(),
	}
	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          monitoring.ErrorLog("monitor: "),
	}
	return ws, nil
}

// Handler returns the server's route multiplexer.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		monitoring.Logf("failed to encode response: %v", err)
	}
}

// Start serves HTTP until ctx is cancelled, then shuts the server down.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		lidar.Opsf("monitor: HTTP server listening on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	lidar.Opsf("monitor: shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		lidar.Opsf("monitor: HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			lidar.Opsf("monitor: HTTP server force close error: %v", err)
		}
	}
	return nil
}

// setupRoutes configures the HTTP routes and handlers
func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/lidar/scan", ws.handleScan)
	mux.HandleFunc("/api/lidar/stats", ws.handleStats)
	mux.HandleFunc("/debug/lidar/polar", ws.handleScanPolar)
	mux.HandleFunc("/debug/lidar/scan.png", ws.handleScanPNG)

	if ws.admin != nil {
		if err := ws.admin.AttachAdminRoutes(mux); err != nil {
			return nil, fmt.Errorf("failed to attach admin routes: %w", err)
		}
	}
	return mux, nil
}

// sensor resolves the ?sensor= query parameter, defaulting to the first
// sensor. It writes a 404 and returns nil when there is no match.
func (ws *WebServer) sensor(w http.ResponseWriter, r *http.Request) Sensor {
	name := r.URL.Query().Get("sensor")
	for _, s := range ws.sensors {
		if name == "" || s.Name() == name {
			return s
		}
	}
	if name == "" {
		ws.writeJSONError(w, http.StatusNotFound, "no sensors configured")
	} else {
		ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("unknown sensor %q", name))
	}
	return nil
}

// handleHealth handles the health check endpoint
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "ok", "service": "scansim", "timestamp": "%s"}`, time.Now().UTC().Format(time.RFC3339))
}

type statusRow struct {
	Name    string
	Stats   scan.Stats
	Summary lidar.RangeSummary
	Config  scan.Config
}

// handleStatus renders the overview page.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	tmpl, err := template.ParseFS(StatusHTML, "status.html")
	if err != nil {
		http.Error(w, "Error loading template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	rows := make([]statusRow, 0, len(ws.sensors))
	for _, s := range ws.sensors {
		latest, _, cfg := s.Latest()
		rows = append(rows, statusRow{
			Name:    s.Name(),
			Stats:   s.Stats(),
			Summary: lidar.Summarize(latest.Ranges),
			Config:  cfg,
		})
	}
	data := struct {
		Version     string
		HTTPAddress string
		Uptime      string
		Sensors     []statusRow
		Stream      *visualiser.PublisherStats
	}{
		Version:     version.Version,
		HTTPAddress: ws.address,
		Uptime:      time.Since(ws.started).Round(time.Second).String(),
		Sensors:     rows,
	}
	if ws.stream != nil {
		st := ws.stream.Stats()
		data.Stream = &st
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, data); err != nil {
		http.Error(w, "Error executing template: "+err.Error(), http.StatusInternalServerError)
	}
}

// Close shuts down the web server
func (ws *WebServer) Close() error {
	if ws.server != nil {
		return ws.server.Close()
	}
	return nil
}
