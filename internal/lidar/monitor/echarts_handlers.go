package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/scansim/internal/lidar/laserscan"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// renderScanPolar renders the valid returns of m as a square XY scatter
// centred on the sensor, coloured by sample index.
func renderScanPolar(m laserscan.Message) ([]byte, error) {
	pts := laserscan.Points(m)
	data := make([]opts.ScatterData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y, p.Index}})
	}

	pad := m.RangeMax * 1.05
	if pad <= 0 {
		pad = 1
	}
	maxIndex := len(m.Ranges) - 1
	if maxIndex < 1 {
		maxIndex = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "LIDAR scan (Polar->XY)", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsPrefix}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("LIDAR scan %s #%d", m.FrameID, m.Seq), Subtitle: fmt.Sprintf("t=%s returns=%d/%d", m.Stamp, len(pts), len(m.Ranges))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "X right (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "Y forward (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxIndex),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#3e4989", "#26828e", "#35b779", "#fde725"}},
		}),
	)
	scatter.AddSeries("returns", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("sensor", []opts.ScatterData{{Value: []interface{}{0, 0, 0}}}, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// handleScanPolar renders the latest scan of a sensor as an HTML chart.
// Debugging only, no auth.
// Query params:
//   - sensor (optional; defaults to the first sensor)
func (ws *WebServer) handleScanPolar(w http.ResponseWriter, r *http.Request) {
	s := ws.sensor(w, r)
	if s == nil {
		return
	}
	page, err := renderScanPolar(latestMessage(s))
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}
