// Package reportchart renders verification reports as charts: an HTML page
// for browsing and a PNG for attaching to CI logs.
//
// Every check is plotted by its tolerance ratio (see
// harness.ToleranceRatio); points above 1 are failures.
package reportchart

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/raycheck/internal/harness"
)

// point is one plottable check.
type point struct {
	label string
	ratio float64
}

// points flattens the compared checks of a report. Checks without a value
// (missing fields) and non-finite ratios are left out.
func points(r *harness.Report) []point {
	var out []point
	for _, c := range r.Cases {
		for _, ch := range c.Checks {
			if ch.Reason == harness.ReasonFieldNotFound || ch.Reason == harness.ReasonDecodeFailure {
				continue
			}
			ratio := harness.ToleranceRatio(ch.Actual, ch.Expected)
			if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
				continue
			}
			out = append(out, point{label: fmt.Sprintf("%s[%d].%s", c.Name, ch.Index, ch.Field), ratio: ratio})
		}
	}
	return out
}

// WriteHTML renders a page with the per-case outcome and the per-check
// tolerance ratios.
func WriteHTML(w io.Writer, r *harness.Report) error {
	subtitle := fmt.Sprintf("run=%s passed=%d failed=%d", r.RunID, r.Passed, r.Failed)

	names := make([]string, len(r.Cases))
	checked := make([]opts.BarData, len(r.Cases))
	failed := make([]opts.BarData, len(r.Cases))
	for i, c := range r.Cases {
		names[i] = c.Name
		var bad int
		for _, ch := range c.Checks {
			if !ch.Passed {
				bad++
			}
		}
		if c.Status == harness.StatusFailed && bad == 0 {
			// Failed before any value was compared.
			bad = 1
		}
		checked[i] = opts.BarData{Value: len(c.Checks)}
		failed[i] = opts.BarData{Value: bad}
	}

	cases := charts.NewBar()
	cases.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "raynoise verification", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Cases", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	cases.SetXAxis(names).
		AddSeries("checks", checked).
		AddSeries("failures", failed,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	pts := points(r)
	labels := make([]string, len(pts))
	ratios := make([]opts.BarData, len(pts))
	for i, p := range pts {
		labels[i] = p.label
		ratios[i] = opts.BarData{Value: p.ratio}
	}

	checks := charts.NewBar()
	checks.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Tolerance ratio per check", Subtitle: "values above 1 fail"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "|actual-expected| / bound"}),
	)
	checks.SetXAxis(labels).AddSeries("ratio", ratios)

	page := components.NewPage()
	page.AddCharts(cases, checks)
	return page.Render(w)
}

// SavePNG writes a scatter of the per-check tolerance ratios with the
// pass threshold drawn at 1.
func SavePNG(path string, r *harness.Report) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("raynoise verification %s", r.RunID)
	p.X.Label.Text = "check"
	p.Y.Label.Text = "tolerance ratio"

	pts := points(r)
	xys := make(plotter.XYs, len(pts))
	for i, pt := range pts {
		xys[i] = plotter.XY{X: float64(i), Y: pt.ratio}
	}

	if len(xys) > 0 {
		scatter, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("scatter: %w", err)
		}
		scatter.GlyphStyle.Radius = vg.Points(3)
		p.Add(scatter)
	}

	width := math.Max(float64(len(xys)-1), 1)
	threshold, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 1}, {X: width, Y: 1}})
	if err != nil {
		return fmt.Errorf("threshold: %w", err)
	}
	threshold.Width = vg.Points(1)
	threshold.Color = color.RGBA{R: 200, A: 255}
	p.Add(threshold)
	p.Legend.Add("pass threshold", threshold)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
