package viz

import (
	"fmt"
	"image/color"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/graph/layout"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// GraphConfig holds the display options for PlotGraphicalModel.
type GraphConfig struct {
	Title string

	// Seed drives the force-directed layout.
	Seed uint64

	Width  vg.Length
	Height vg.Length

	// Filepath saves the figure when non-empty.
	Filepath string
}

// DefaultGraphConfig mirrors the conventional graphical-model appearance.
func DefaultGraphConfig() GraphConfig {
	return GraphConfig{
		Title:  "GGM",
		Seed:   1,
		Width:  5 * vg.Inch,
		Height: 5 * vg.Inch,
	}
}

// PlotGraphicalModel draws the Gaussian graphical model implied by a partial
// correlation coefficient matrix. Nodes are features, an edge connects every
// pair with a nonzero coefficient in the lower triangle, node size grows
// with degree and edge width with the coefficient magnitude. Positions come
// from a force-directed layout.
func PlotGraphicalModel(pcorr mat.Matrix, cfg GraphConfig) (*plot.Plot, error) {
	rows, cols := pcorr.Dims()
	if rows != cols {
		return nil, fmt.Errorf("partial correlation matrix must be square, got %dx%d", rows, cols)
	}

	g := simple.NewWeightedUndirectedGraph(0, 0)
	for i := 0; i < rows; i++ {
		g.AddNode(simple.Node(i))
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < i; j++ {
			if w := pcorr.At(i, j); w != 0 {
				g.SetWeightedEdge(simple.WeightedEdge{
					F: simple.Node(i),
					T: simple.Node(j),
					W: w,
				})
			}
		}
	}

	eades := layout.EadesR2{
		Repulsion: 1,
		Rate:      0.05,
		Updates:   100,
		Theta:     0.1,
		Src:       rand.NewSource(cfg.Seed),
	}
	optimizer := layout.NewOptimizerR2(g, eades.Update)
	for optimizer.Update() {
	}

	p := plot.New()
	p.Title.Text = cfg.Title
	p.HideAxes()

	for i := 0; i < rows; i++ {
		for j := 0; j < i; j++ {
			w := pcorr.At(i, j)
			if w == 0 {
				continue
			}
			from := optimizer.Coord2(int64(i))
			to := optimizer.Coord2(int64(j))
			edge, err := plotter.NewLine(plotter.XYs{
				{X: from.X, Y: from.Y},
				{X: to.X, Y: to.Y},
			})
			if err != nil {
				return nil, fmt.Errorf("edge %d-%d: %w", i, j, err)
			}
			edge.Width = vg.Points(0.5 + 2.5*math.Abs(w))
			edge.Color = color.Gray{Y: 128}
			p.Add(edge)
		}
	}

	xys := make(plotter.XYs, rows)
	labels := make([]string, rows)
	for i := 0; i < rows; i++ {
		c := optimizer.Coord2(int64(i))
		xys[i] = plotter.XY{X: c.X, Y: c.Y}
		labels[i] = fmt.Sprintf("%d", i)
	}

	nodes, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, fmt.Errorf("nodes: %w", err)
	}
	nodes.GlyphStyleFunc = func(i int) draw.GlyphStyle {
		degree := g.From(int64(i)).Len()
		return draw.GlyphStyle{
			Color:  color.RGBA{R: 31, G: 119, B: 180, A: 255},
			Radius: vg.Points(3 + 1.5*float64(degree)),
			Shape:  draw.CircleGlyph{},
		}
	}
	p.Add(nodes)

	names, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: labels})
	if err != nil {
		return nil, fmt.Errorf("node labels: %w", err)
	}
	p.Add(names)

	if cfg.Filepath != "" {
		if err := p.Save(cfg.Width, cfg.Height, cfg.Filepath); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// HeatmapConfig holds the display options for PlotPartialCorrcoef.
type HeatmapConfig struct {
	Title string

	// ColorBar adds a color scale panel on the right.
	ColorBar bool

	Width  vg.Length
	Height vg.Length

	// Filepath saves the figure when non-empty. The colorbar panel forces
	// png output.
	Filepath string
}

// DefaultHeatmapConfig mirrors the conventional correlation-heatmap
// appearance.
func DefaultHeatmapConfig() HeatmapConfig {
	return HeatmapConfig{
		Title:    "Partial correlation",
		ColorBar: true,
		Width:    5 * vg.Inch,
		Height:   4.5 * vg.Inch,
	}
}

// corrGrid adapts a matrix to the heatmap's grid interface, masking exact
// zeros and keeping matrix orientation (row 0 on top).
type corrGrid struct {
	m mat.Matrix
}

func (g corrGrid) Dims() (c, r int) {
	rows, cols := g.m.Dims()
	return cols, rows
}

func (g corrGrid) Z(c, r int) float64 {
	rows, _ := g.m.Dims()
	v := g.m.At(rows-1-r, c)
	if v == 0 {
		return math.NaN()
	}
	return v
}

func (g corrGrid) X(c int) float64 { return float64(c) }

func (g corrGrid) Y(r int) float64 { return float64(r) }

// PlotPartialCorrcoef draws a partial correlation coefficient matrix as a
// heatmap on a diverging palette fixed to [-1, 1]. Zero cells are masked.
func PlotPartialCorrcoef(pcorr mat.Matrix, cfg HeatmapConfig) (*plot.Plot, error) {
	rows, cols := pcorr.Dims()
	if rows != cols {
		return nil, fmt.Errorf("partial correlation matrix must be square, got %dx%d", rows, cols)
	}

	cm := moreland.SmoothBlueRed()
	cm.SetMin(-1)
	cm.SetMax(1)

	pal := cm.Palette(255)
	grid := corrGrid{m: pcorr}
	hm := plotter.NewHeatMap(grid, pal)
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Gray{Y: 128}

	p := plot.New()
	p.Title.Text = cfg.Title
	p.X.Tick.Marker = plot.ConstantTicks(nil)
	p.Y.Tick.Marker = plot.ConstantTicks(nil)
	p.Add(hm)

	if !cfg.ColorBar {
		if cfg.Filepath != "" {
			if err := p.Save(cfg.Width, cfg.Height, cfg.Filepath); err != nil {
				return nil, err
			}
		}
		return p, nil
	}

	bar := plot.New()
	bar.HideX()
	bar.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})

	if cfg.Filepath != "" {
		img := vgimg.New(cfg.Width, cfg.Height)
		dc := draw.New(img)

		p.Draw(draw.Crop(dc, 0, -0.15*cfg.Width, 0, 0))
		bar.Draw(draw.Crop(dc, 0.87*cfg.Width, 0, 0, 0))

		if err := writePNG(img, cfg.Filepath); err != nil {
			return nil, err
		}
	}
	return p, nil
}
