package report

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/outage-overlay/internal/domain"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

const (
	plotWidth  = 10 * vg.Inch
	plotHeight = 5 * vg.Inch
	plotDPI    = 200
	// Instant incidents are drawn at least this wide so they stay visible.
	minBandWidth = 30 * time.Minute
)

// providerColors are the band colors; alpha is applied separately.
var providerColors = map[domain.Provider]color.NRGBA{
	domain.ProviderAWS:        {R: 0xff, G: 0x99, B: 0x00},
	domain.ProviderCloudflare: {R: 0xf3, G: 0x80, B: 0x20},
	domain.ProviderGCP:        {R: 0x42, G: 0x85, B: 0xf4},
}

var (
	seriesColor   = color.NRGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	fallbackColor = color.NRGBA{R: 0x80, G: 0x80, B: 0x80}
)

const bandAlpha = 0x26 // ~15% opacity

// legendRows returns the index of each provider's first row, in row order.
func legendRows(rows []domain.IncidentRow) []int {
	seen := make(map[domain.Provider]bool)
	var idx []int
	for i, r := range rows {
		if !seen[r.Provider] {
			seen[r.Provider] = true
			idx = append(idx, i)
		}
	}
	return idx
}

// OverlayPlot builds the overlay chart: the daily series as a line and each
// incident as a translucent vertical band, one legend entry per provider.
func OverlayPlot(rows []domain.IncidentRow, series domain.DailySeries, window domain.Window, metric domain.Metric) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Cloud outages vs. botnet activity proxy"
	p.X.Label.Text = "Date (UTC)"
	p.Y.Label.Text = fmt.Sprintf("Botnet proxy: DShield %s per day", metric)
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Legend.Top = true

	yMax := float64(series.Max())
	if yMax <= 0 {
		yMax = 1
	}
	yMax *= 1.05

	bands := make([]*plotter.Polygon, len(rows))
	for i, r := range rows {
		band, err := incidentBand(r, yMax)
		if err != nil {
			return nil, err
		}
		p.Add(band)
		bands[i] = band
	}
	for _, i := range legendRows(rows) {
		p.Legend.Add(string(rows[i].Provider), bands[i])
	}

	if len(series) > 0 {
		pts := make(plotter.XYs, len(series))
		for i, pt := range series {
			pts[i].X = unix(pt.Date)
			pts[i].Y = float64(pt.Total)
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("series line: %w", err)
		}
		line.Color = seriesColor
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add("botnet proxy", line)
	}

	// Add widens the axes to fit the data; pin them to the window afterwards.
	p.X.Min, p.X.Max = unix(window.Start), unix(window.End)
	p.Y.Min, p.Y.Max = 0, yMax
	return p, nil
}

func incidentBand(r domain.IncidentRow, top float64) (*plotter.Polygon, error) {
	start, end := r.Start, r.End
	if end.Sub(start) < minBandWidth {
		end = start.Add(minBandWidth)
	}
	x0, x1 := unix(start), unix(end)
	poly, err := plotter.NewPolygon(plotter.XYs{{X: x0, Y: 0}, {X: x1, Y: 0}, {X: x1, Y: top}, {X: x0, Y: top}})
	if err != nil {
		return nil, fmt.Errorf("incident band %s/%s: %w", r.Provider, r.IncidentID, err)
	}
	c, ok := providerColors[r.Provider]
	if !ok {
		c = fallbackColor
	}
	c.A = bandAlpha
	poly.Color = c
	poly.LineStyle.Width = 0
	return poly, nil
}

// SavePlot writes p to path. PNG output is rendered at 200 dpi; other
// extensions use the gonum defaults.
func SavePlot(p *plot.Plot, path string) error {
	if !strings.EqualFold(filepath.Ext(path), ".png") {
		if err := p.Save(plotWidth, plotHeight, path); err != nil {
			return fmt.Errorf("save plot %s: %w", path, err)
		}
		return nil
	}

	canvas := vgimg.NewWith(vgimg.UseWH(plotWidth, plotHeight), vgimg.UseDPI(plotDPI))
	p.Draw(draw.New(canvas))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := (vgimg.PngCanvas{Canvas: canvas}).WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func unix(t time.Time) float64 {
	return float64(t.Unix())
}
