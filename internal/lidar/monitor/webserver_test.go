package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/scansim/internal/lidar/laserscan"
	"github.com/banshee-data/scansim/internal/lidar/scan"
	"github.com/banshee-data/scansim/internal/lidar/visualiser"
	"github.com/banshee-data/scansim/internal/testutil"
)

// fakeSensor serves a fixed scan: a return at 5 m every 90 degrees.
type fakeSensor struct {
	name string
	cfg  scan.Config
}

func newFakeSensor(name string) *fakeSensor {
	return &fakeSensor{name: name, cfg: scan.DefaultConfig()}
}

func (f *fakeSensor) Name() string { return f.name }

func (f *fakeSensor) Latest() (scan.Scan, *scan.DirectionTable, scan.Config) {
	n := f.cfg.MeasurementsPerScan()
	s := scan.Scan{Seq: 3, SimTime: 3 * f.cfg.Period(), Ranges: make([]float64, n), Intensities: make([]float64, n)}
	for i := range s.Ranges {
		s.Ranges[i] = math.Inf(1)
		if i%90 == 0 {
			s.Ranges[i] = 5
		}
		s.Intensities[i] = f.cfg.Intensity
	}
	return s, scan.NewDirectionTable(f.cfg), f.cfg
}

func (f *fakeSensor) Stats() scan.Stats {
	return scan.Stats{Scans: 3, Seq: 3, LastBatchLatency: time.Millisecond}
}

type fakeStream struct{}

func (fakeStream) Stats() visualiser.PublisherStats {
	return visualiser.PublisherStats{ScanCount: 12, ClientCount: 2, Running: true}
}

type fakeAdmin struct{ err error }

func (a fakeAdmin) AttachAdminRoutes(mux *http.ServeMux) error {
	if a.err != nil {
		return a.err
	}
	mux.HandleFunc("/debug/fake", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("admin"))
	})
	return nil
}

func newTestServer(t *testing.T, sensors ...Sensor) *WebServer {
	t.Helper()
	ws, err := NewWebServer(WebServerConfig{
		Address: ":0",
		Sensors: sensors,
		Stream:  fakeStream{},
		Admin:   fakeAdmin{},
	})
	testutil.AssertNoError(t, err)
	return ws
}

func serve(ws *WebServer, method, path string) *httptest.ResponseRecorder {
	req := testutil.NewTestRequest(method, path)
	rec := testutil.NewTestRecorder()
	ws.Handler().ServeHTTP(rec, req)
	return rec
}

func TestNewWebServer_AdminError(t *testing.T) {
	_, err := NewWebServer(WebServerConfig{Admin: fakeAdmin{err: errors.New("boom")}})
	testutil.AssertError(t, err)
}

func TestWebServer_HealthAndAdmin(t *testing.T) {
	ws := newTestServer(t, newFakeSensor("front"))

	rec := serve(ws, http.MethodGet, "/health")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"status": "ok"`) {
		t.Errorf("unexpected health body: %s", rec.Body.String())
	}

	rec = serve(ws, http.MethodGet, "/debug/fake")
	if rec.Body.String() != "admin" {
		t.Errorf("expected admin route to be mounted, got %q", rec.Body.String())
	}
}

func TestWebServer_StatusPage(t *testing.T) {
	ws := newTestServer(t, newFakeSensor("front"), newFakeSensor("rear"))

	rec := serve(ws, http.MethodGet, "/")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	body := rec.Body.String()
	for _, want := range []string{"front", "rear", "polar?sensor=front", "2 clients"} {
		if !strings.Contains(body, want) {
			t.Errorf("status page missing %q", want)
		}
	}

	rec = serve(ws, http.MethodGet, "/nope")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestWebServer_Scan(t *testing.T) {
	ws := newTestServer(t, newFakeSensor("front"), newFakeSensor("rear"))

	rec := serve(ws, http.MethodGet, "/api/lidar/scan?sensor=rear")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var msg laserscan.Message
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("failed to decode scan: %v", err)
	}
	if msg.FrameID != "rear" {
		t.Errorf("expected frame rear, got %q", msg.FrameID)
	}
	if len(msg.Ranges) != 360 {
		t.Fatalf("expected 360 ranges, got %d", len(msg.Ranges))
	}
	if msg.Ranges[90] != 5 || !math.IsInf(float64(msg.Ranges[1]), 1) {
		t.Errorf("unexpected ranges: [90]=%v [1]=%v", msg.Ranges[90], msg.Ranges[1])
	}
	if msg.Valid() != 4 {
		t.Errorf("expected 4 returns, got %d", msg.Valid())
	}

	rec = serve(ws, http.MethodGet, "/api/lidar/scan?sensor=side")
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)

	rec = serve(ws, http.MethodPost, "/api/lidar/scan")
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

type fixedHead float64

func (h fixedHead) Angle() float64 { return float64(h) }

func TestWebServer_ScanHeadAngle(t *testing.T) {
	ws, err := NewWebServer(WebServerConfig{
		Address: ":0",
		Sensors: []Sensor{newFakeSensor("front"), newFakeSensor("rear")},
		Heads:   map[string]HeadAngle{"front": fixedHead(135)},
	})
	testutil.AssertNoError(t, err)

	rec := serve(ws, http.MethodGet, "/api/lidar/scan?sensor=front")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp ScanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode scan: %v", err)
	}
	if resp.HeadAngle == nil || *resp.HeadAngle != 135 {
		t.Errorf("expected head angle 135, got %v", resp.HeadAngle)
	}
	if resp.Valid() != 4 {
		t.Errorf("head angle must not change the scan, got %d returns", resp.Valid())
	}

	rec = serve(ws, http.MethodGet, "/api/lidar/scan?sensor=rear")
	if strings.Contains(rec.Body.String(), "head_angle_deg") {
		t.Errorf("rear has no animator, got %s", rec.Body.String())
	}
}

func TestWebServer_NoSensors(t *testing.T) {
	ws := newTestServer(t)
	for _, path := range []string{"/api/lidar/scan", "/debug/lidar/polar", "/debug/lidar/scan.png"} {
		rec := serve(ws, http.MethodGet, path)
		testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
	}
}

func TestWebServer_Stats(t *testing.T) {
	ws := newTestServer(t, newFakeSensor("front"), newFakeSensor("rear"))

	rec := serve(ws, http.MethodGet, "/api/lidar/stats")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	var resp StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if len(resp.Sensors) != 2 {
		t.Fatalf("expected 2 sensors, got %d", len(resp.Sensors))
	}
	got := resp.Sensors[0]
	if got.Stats.Scans != 3 || got.Summary.Valid != 4 || got.Summary.Mean != 5 {
		t.Errorf("unexpected stats: %+v", got)
	}
	if resp.Stream == nil || resp.Stream.ScanCount != 12 {
		t.Errorf("expected stream stats, got %+v", resp.Stream)
	}

	rec = serve(ws, http.MethodGet, "/api/lidar/stats?sensor=rear")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if len(resp.Sensors) != 1 || resp.Sensors[0].Sensor != "rear" {
		t.Errorf("expected only rear, got %+v", resp.Sensors)
	}
}

func TestWebServer_ScanPolar(t *testing.T) {
	ws := newTestServer(t, newFakeSensor("front"))
	rec := serve(ws, http.MethodGet, "/debug/lidar/polar")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	body := rec.Body.String()
	if !strings.Contains(body, "echarts") || !strings.Contains(body, "LIDAR scan front #3") {
		t.Errorf("unexpected chart page")
	}
}

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func TestWebServer_ScanPNG(t *testing.T) {
	ws := newTestServer(t, newFakeSensor("front"))
	rec := serve(ws, http.MethodGet, "/debug/lidar/scan.png")
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), pngMagic) {
		t.Error("response is not a PNG")
	}
}

func TestPlotScan(t *testing.T) {
	s := newFakeSensor("front")
	msg := latestMessage(s)
	path := filepath.Join(t.TempDir(), "scan.png")
	if err := PlotScan(msg, path); err != nil {
		t.Fatalf("PlotScan failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read plot: %v", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Error("plot is not a PNG")
	}

	// A scan with no returns still plots.
	empty := msg
	empty.Ranges = laserscan.Ranges{float32(math.Inf(1))}
	if _, err := NewScanPlot(empty); err != nil {
		t.Errorf("expected empty scan to plot, got %v", err)
	}
}

func TestWebServer_StartStop(t *testing.T) {
	ws, err := NewWebServer(WebServerConfig{Address: "127.0.0.1:0"})
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ws.Start(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		testutil.AssertNoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestWebServer_StartError(t *testing.T) {
	ws, err := NewWebServer(WebServerConfig{Address: "bad-address"})
	testutil.AssertNoError(t, err)
	if err := ws.Start(context.Background()); err == nil {
		t.Error("expected listen error")
	}
}
