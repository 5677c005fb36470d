package render

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Chart draws the stacked per-author areas of an analysis run.
type Chart struct {
	// Title is the caption over the plot.
	Title string
	// Width and Height are in pixels at 96 DPI. Zero values fall back to
	// 1024x768.
	Width  int
	Height int
}

// Render stacks the series bottom-up and writes the chart to path. The
// format follows the file extension (png, svg, pdf...). Series must be
// aligned on the same day axis, as produced by Builder.Series.
func (chart *Chart) Render(series []Series, path string) error {
	if len(series) == 0 || len(series[0].Points) == 0 {
		return errors.New("nothing to render: no commits were consumed")
	}
	p := plot.New()
	p.Title.Text = chart.Title
	p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	p.Y.Label.Text = "lines of code"
	p.Legend.Top = true
	p.Legend.Left = true

	days := series[0].Points
	bottom := make([]float64, len(days))
	for i, s := range series {
		if len(s.Points) != len(days) {
			return errors.Errorf("series %s is not aligned: %d points out of %d",
				s.Name, len(s.Points), len(days))
		}
		top := make(plotter.XYs, len(days))
		ring := make(plotter.XYs, 0, 2*len(days))
		for j, point := range s.Points {
			x := float64(point.Day.Unix())
			top[j] = plotter.XY{X: x, Y: bottom[j] + float64(point.Lines)}
			ring = append(ring, top[j])
		}
		for j := len(days) - 1; j >= 0; j-- {
			ring = append(ring, plotter.XY{X: float64(days[j].Day.Unix()), Y: bottom[j]})
		}
		area, err := plotter.NewPolygon(ring)
		if err != nil {
			return errors.Wrapf(err, "failed to build the area of %s", s.Name)
		}
		shade := plotutil.Color(i)
		area.Color = translucent(shade)
		area.LineStyle.Width = 0
		p.Add(area)

		outline, err := plotter.NewLine(top)
		if err != nil {
			return errors.Wrapf(err, "failed to build the outline of %s", s.Name)
		}
		outline.Color = shade
		p.Add(outline)
		p.Legend.Add(s.Name, outline)

		for j := range bottom {
			bottom[j] = top[j].Y
		}
	}

	width, height := chart.Width, chart.Height
	if width <= 0 || height <= 0 {
		width, height = 1024, 768
	}
	return p.Save(pixels(width), pixels(height), path)
}

// pixels converts a 96 DPI pixel count to a vg length.
func pixels(value int) vg.Length {
	return vg.Length(value) * vg.Inch / 96
}

// translucent mixes the fill color the same way the outline color is drawn
// over a white background at 40% opacity.
func translucent(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.NRGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: 0x6666}
}
