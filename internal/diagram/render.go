package diagram

import (
	"fmt"
	"io"
	"math"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Format is an output image format.
type Format string

const (
	// FormatPNG renders a raster image.
	FormatPNG Format = "png"
	// FormatSVG renders a vector image.
	FormatSVG Format = "svg"
)

// ParseFormat accepts png or svg, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimPrefix(s, "."))); f {
	case FormatPNG, FormatSVG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported diagram format %q", s)
	}
}

// ContentType is the MIME type of the format.
func (f Format) ContentType() string {
	if f == FormatSVG {
		return "image/svg+xml"
	}
	return "image/png"
}

func (f Format) provider() chart.RendererProvider {
	if f == FormatSVG {
		return chart.SVG
	}
	return chart.PNG
}

// Render draws d onto w.
func Render(w io.Writer, d *Diagram, f Format) error {
	if _, err := ParseFormat(string(f)); err != nil {
		return err
	}
	r, err := f.provider()(int(math.Ceil(d.Width)), int(math.Ceil(d.Height)))
	if err != nil {
		return fmt.Errorf("create %s renderer: %w", f, err)
	}
	font, err := chart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("load font: %w", err)
	}
	r.SetFont(font)

	background(r, d)
	for _, p := range d.Placements {
		drawResidue(r, p)
	}
	for _, e := range d.Edges {
		drawEdge(r, e)
	}
	if d.Title != "" {
		r.SetFontColor(black)
		r.SetFontSize(FontSize)
		r.Text(d.Title, int(Margin), 80)
		r.SetFontSize(FontSize - 10)
		r.Text(d.Subtitle, int(Margin), 95)
	}
	return r.Save(w)
}

func background(r chart.Renderer, d *Diagram) {
	w, h := int(math.Ceil(d.Width)), int(math.Ceil(d.Height))
	r.SetFillColor(white)
	r.SetStrokeColor(drawing.ColorTransparent)
	r.MoveTo(0, 0)
	r.LineTo(w, 0)
	r.LineTo(w, h)
	r.LineTo(0, h)
	r.Close()
	r.Fill()
}

func drawResidue(r chart.Renderer, p Placement) {
	cx, cy := int(p.Centre.X), int(p.Centre.Y)
	r.SetFillColor(p.Fill)
	// two half arcs; a single full turn degenerates in SVG paths
	r.ArcTo(cx, cy, ResidueRadius, ResidueRadius/2, 0, math.Pi)
	r.ArcTo(cx, cy, ResidueRadius, ResidueRadius/2, math.Pi, math.Pi)
	r.Close()
	r.Fill()

	label := p.Entry.Chain + ":" + p.Entry.DisplayLegend()
	r.SetFontColor(black)
	r.SetFontSize(FontSize)
	box := r.MeasureText(label)
	r.Text(label, cx-box.Width()/2, cy+box.Height()/2)
}

func drawEdge(r chart.Renderer, e Edge) {
	r.SetStrokeColor(e.Colour)
	r.SetStrokeWidth(e.Width)
	if e.Dashed {
		r.SetStrokeDashArray([]float64{DashSize, DashSize})
	} else {
		r.SetStrokeDashArray(nil)
	}
	r.MoveTo(int(e.From.X), int(e.From.Y))
	r.LineTo(int(e.To.X), int(e.To.Y))
	r.Stroke()

	if e.Label != "" {
		r.SetFontColor(black)
		r.SetFontSize(FontSize - 10)
		box := r.MeasureText(e.Label)
		r.Text(e.Label, int(e.LabelAt.X)-box.Width()/2, int(e.LabelAt.Y))
	}
}
