// Package viz renders anomaly scores, ROC curves and correlation structures
// to image files.
//
// Every helper is stateless: it takes precomputed arrays plus an explicit
// config struct, returns the plot for further composition, and writes an
// image when the config names a file. The zero config is not useful; start
// from the Default*Config constructors.
package viz

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/deltat99/kenchi/pkg/metrics"
)

// Limits bounds one axis.
type Limits struct {
	Min, Max float64
}

// ScoreConfig holds the display options for PlotAnomalyScore.
type ScoreConfig struct {
	Title  string
	XLabel string
	YLabel string

	// XLim and YLim override the default axis bounds of (0, n-1) and
	// (0, 1.1 * max score) when non-nil.
	XLim *Limits
	YLim *Limits

	// Threshold draws a horizontal decision rule when non-nil.
	Threshold *float64

	// Grid turns the axis grid on.
	Grid bool

	// Hist adds a side panel with the score distribution.
	Hist bool

	// Bins is the histogram bin count; non-positive means automatic
	// (Freedman-Diaconis).
	Bins int

	Width  vg.Length
	Height vg.Length

	// Filepath saves the figure when non-empty. Format follows the
	// extension (.png, .svg, .pdf); the histogram panel forces png.
	Filepath string
}

// DefaultScoreConfig mirrors the conventional score-plot appearance.
func DefaultScoreConfig() ScoreConfig {
	return ScoreConfig{
		XLabel: "Samples",
		YLabel: "Anomaly score",
		Grid:   true,
		Hist:   true,
		Width:  6 * vg.Inch,
		Height: 4 * vg.Inch,
	}
}

// PlotAnomalyScore draws one score per sample as a line over sample index,
// with an optional threshold rule and an optional distribution side panel.
// Empty and single-element inputs draw an empty or single-point figure.
func PlotAnomalyScore(scores []float64, cfg ScoreConfig) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = cfg.XLabel
	p.Y.Label.Text = cfg.YLabel

	xlim := Limits{0, float64(len(scores)) - 1}
	if len(scores) < 2 {
		xlim.Max = 1
	}
	if cfg.XLim != nil {
		xlim = *cfg.XLim
	}
	ylim := Limits{0, 1}
	if len(scores) > 0 {
		max := scores[0]
		for _, s := range scores[1:] {
			if s > max {
				max = s
			}
		}
		if max > 0 {
			ylim.Max = 1.1 * max
		}
	}
	if cfg.YLim != nil {
		ylim = *cfg.YLim
	}

	if cfg.Grid {
		p.Add(plotter.NewGrid())
	}

	xys := make(plotter.XYs, len(scores))
	for i, s := range scores {
		xys[i] = plotter.XY{X: float64(i), Y: s}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("score line: %w", err)
	}
	line.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	p.Add(line)

	if cfg.Threshold != nil {
		rule, err := plotter.NewLine(plotter.XYs{
			{X: xlim.Min, Y: *cfg.Threshold},
			{X: xlim.Max, Y: *cfg.Threshold},
		})
		if err != nil {
			return nil, fmt.Errorf("threshold rule: %w", err)
		}
		rule.Color = color.Gray{Y: 64}
		rule.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(rule)
	}

	// Add expands the axes to each plotter's data range; the configured
	// limits must land afterwards to stick.
	p.X.Min, p.X.Max = xlim.Min, xlim.Max
	p.Y.Min, p.Y.Max = ylim.Min, ylim.Max

	if !cfg.Hist || len(scores) == 0 {
		if cfg.Filepath != "" {
			if err := p.Save(cfg.Width, cfg.Height, cfg.Filepath); err != nil {
				return nil, err
			}
		}
		return p, nil
	}

	side, err := scoreHistPanel(scores, ylim, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Filepath != "" {
		img := vgimg.New(cfg.Width, cfg.Height)
		dc := draw.New(img)

		// Main axes on the left, distribution panel on the right fifth.
		p.Draw(draw.Crop(dc, 0, -0.22*cfg.Width, 0, 0))
		side.Draw(draw.Crop(dc, 0.80*cfg.Width, 0, 0, 0))

		if err := writePNG(img, cfg.Filepath); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func scoreHistPanel(scores []float64, ylim Limits, cfg ScoreConfig) (*plot.Plot, error) {
	side := plot.New()
	if cfg.Grid {
		side.Add(plotter.NewGrid())
	}

	bins := cfg.Bins
	if bins <= 0 {
		bins = autoBins(scores)
	}

	hist, err := plotter.NewHist(plotter.Values(scores), bins)
	if err != nil {
		return nil, fmt.Errorf("score histogram: %w", err)
	}
	hist.Normalize(1)
	hist.FillColor = color.RGBA{R: 31, G: 119, B: 180, A: 128}
	side.Add(hist)
	side.X.Min, side.X.Max = ylim.Min, ylim.Max

	return side, nil
}

// autoBins applies the Freedman-Diaconis rule with a fallback for
// degenerate spreads.
func autoBins(scores []float64) int {
	if len(scores) < 2 {
		return 1
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	iqr := stat.Quantile(0.75, stat.Empirical, sorted, nil) -
		stat.Quantile(0.25, stat.Empirical, sorted, nil)
	spread := sorted[len(sorted)-1] - sorted[0]
	if iqr <= 0 || spread <= 0 {
		return 1
	}

	width := 2 * iqr / math.Cbrt(float64(len(scores)))
	bins := int(math.Ceil(spread / width))
	if bins < 1 {
		bins = 1
	}
	if bins > len(scores) {
		bins = len(scores)
	}
	return bins
}

// ROCConfig holds the display options for PlotROCCurve.
type ROCConfig struct {
	Title  string
	XLabel string
	YLabel string

	// Label is the legend entry; empty means "area=<AUC>".
	Label string

	Grid bool

	Width  vg.Length
	Height vg.Length

	// Filepath saves the figure when non-empty.
	Filepath string
}

// DefaultROCConfig mirrors the conventional ROC appearance.
func DefaultROCConfig() ROCConfig {
	return ROCConfig{
		XLabel: "FPR",
		YLabel: "TPR",
		Grid:   true,
		Width:  5 * vg.Inch,
		Height: 5 * vg.Inch,
	}
}

// PlotROCCurve computes and draws the ROC curve for anomaly scores against
// true labels, annotating the legend with the area under the curve.
func PlotROCCurve(yTrue []int, yScore []float64, cfg ROCConfig) (*plot.Plot, error) {
	fpr, tpr, _, err := metrics.ROCCurve(yTrue, yScore)
	if err != nil {
		return nil, err
	}
	area := metrics.AUC(fpr, tpr)

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Label.Text = cfg.XLabel
	p.Y.Label.Text = cfg.YLabel
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1.05

	if cfg.Grid {
		p.Add(plotter.NewGrid())
	}

	xys := make(plotter.XYs, len(fpr))
	for i := range fpr {
		xys[i] = plotter.XY{X: fpr[i], Y: tpr[i]}
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return nil, fmt.Errorf("roc line: %w", err)
	}
	line.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	p.Add(line)

	label := cfg.Label
	if label == "" {
		label = fmt.Sprintf("area=%.3f", area)
	}
	p.Legend.Add(label, line)
	p.Legend.Top = false
	p.Legend.Left = false

	if cfg.Filepath != "" {
		if err := p.Save(cfg.Width, cfg.Height, cfg.Filepath); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func writePNG(img *vgimg.Canvas, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
