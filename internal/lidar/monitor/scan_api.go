package monitor

import (
	"net/http"

	"github.com/banshee-data/scansim/internal/lidar"
	"github.com/banshee-data/scansim/internal/lidar/laserscan"
	"github.com/banshee-data/scansim/internal/lidar/scan"
	"github.com/banshee-data/scansim/internal/lidar/visualiser"
)

// latestMessage returns the sensor's current scan as a message.
func latestMessage(s Sensor) laserscan.Message {
	sc, table, cfg := s.Latest()
	return laserscan.FromScan(sc, table, cfg, s.Name())
}

// ScanResponse is the latest scan of a sensor plus, when the sensor has a
// head animator, its displayed head angle.
type ScanResponse struct {
	laserscan.Message
	HeadAngle *float64 `json:"head_angle_deg,omitempty"`
}

// handleScan returns the latest scan of a sensor as a LaserScan JSON
// document. No-return ranges are null.
// Query params:
//   - sensor (optional; defaults to the first sensor)
func (ws *WebServer) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s := ws.sensor(w, r)
	if s == nil {
		return
	}
	resp := ScanResponse{Message: latestMessage(s)}
	if h, ok := ws.heads[s.Name()]; ok {
		angle := h.Angle()
		resp.HeadAngle = &angle
	}
	ws.writeJSON(w, resp)
}

// SensorStats is the per-sensor stats document.
type SensorStats struct {
	Sensor  string             `json:"sensor"`
	Config  scan.Config        `json:"config"`
	Stats   scan.Stats         `json:"stats"`
	Summary lidar.RangeSummary `json:"summary"`
	Gap     float64            `json:"angular_gap_deg"`
}

// StatsResponse is returned by /api/lidar/stats.
type StatsResponse struct {
	Sensors []SensorStats              `json:"sensors"`
	Stream  *visualiser.PublisherStats `json:"stream,omitempty"`
}

// handleStats returns counters and a summary of the latest scan for every
// sensor, or only the one named by ?sensor=.
func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sensors := ws.sensors
	if r.URL.Query().Get("sensor") != "" {
		s := ws.sensor(w, r)
		if s == nil {
			return
		}
		sensors = []Sensor{s}
	}

	resp := StatsResponse{Sensors: make([]SensorStats, 0, len(sensors))}
	for _, s := range sensors {
		latest, table, cfg := s.Latest()
		resp.Sensors = append(resp.Sensors, SensorStats{
			Sensor:  s.Name(),
			Config:  cfg,
			Stats:   s.Stats(),
			Summary: lidar.Summarize(latest.Ranges),
			Gap:     table.Gap(),
		})
	}
	if ws.stream != nil {
		st := ws.stream.Stats()
		resp.Stream = &st
	}
	ws.writeJSON(w, resp)
}
