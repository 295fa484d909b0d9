package monitor

import (
	"bytes"
	"fmt"
	"image/color"
	"io"
	"math"
	"net/http"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/scansim/internal/lidar/laserscan"
)

// ScanPlotSize is the side length of scan plots.
const ScanPlotSize = 8 * vg.Inch

// NewScanPlot builds a top-down plot of the valid returns of m with the
// sensor at the origin and +Y forward.
func NewScanPlot(m laserscan.Message) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s scan #%d at %s", m.FrameID, m.Seq, m.Stamp)
	p.X.Label.Text = "X right (m)"
	p.Y.Label.Text = "Y forward (m)"
	p.Add(plotter.NewGrid())

	pts := laserscan.Points(m)
	if len(pts) > 0 {
		xys := make(plotter.XYs, len(pts))
		for i, pt := range pts {
			xys[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		returns, err := plotter.NewScatter(xys)
		if err != nil {
			return nil, fmt.Errorf("failed to create scatter: %w", err)
		}
		returns.GlyphStyle.Radius = vg.Points(1.5)
		returns.GlyphStyle.Shape = draw.CircleGlyph{}
		returns.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
		p.Add(returns)
		p.Legend.Add(fmt.Sprintf("returns (%d/%d)", len(pts), len(m.Ranges)), returns)
	}

	origin, err := plotter.NewScatter(plotter.XYs{{X: 0, Y: 0}})
	if err != nil {
		return nil, fmt.Errorf("failed to create origin marker: %w", err)
	}
	origin.GlyphStyle.Radius = vg.Points(4)
	origin.GlyphStyle.Shape = draw.TriangleGlyph{}
	origin.GlyphStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	p.Add(origin)
	p.Legend.Add("sensor", origin)

	extent := m.RangeMax
	if math.IsInf(extent, 0) || math.IsNaN(extent) || extent <= 0 {
		extent = 1
	}
	p.X.Min, p.X.Max = -extent, extent
	p.Y.Min, p.Y.Max = -extent, extent
	return p, nil
}

// PlotScan writes a plot of m to path. The image format follows the file
// extension (png, svg, pdf, ...).
func PlotScan(m laserscan.Message, path string) error {
	p, err := NewScanPlot(m)
	if err != nil {
		return err
	}
	if err := p.Save(ScanPlotSize, ScanPlotSize, path); err != nil {
		return fmt.Errorf("failed to save plot %s: %w", path, err)
	}
	return nil
}

// WriteScanPNG writes a PNG plot of m to w.
func WriteScanPNG(w io.Writer, m laserscan.Message) error {
	p, err := NewScanPlot(m)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(ScanPlotSize, ScanPlotSize, "png")
	if err != nil {
		return fmt.Errorf("failed to render plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

// handleScanPNG renders the latest scan of a sensor as a PNG.
// Query params:
//   - sensor (optional; defaults to the first sensor)
func (ws *WebServer) handleScanPNG(w http.ResponseWriter, r *http.Request) {
	s := ws.sensor(w, r)
	if s == nil {
		return
	}
	var buf bytes.Buffer
	if err := WriteScanPNG(&buf, latestMessage(s)); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}
