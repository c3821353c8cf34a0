package diagram

import (
	"regexp"
	"strings"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"interdiag/internal/control"
	"interdiag/internal/residue"
)

var hexColour = regexp.MustCompile(`^#([0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

// namedColours covers the matplotlib single-letter codes and the common
// colour names seen in control files.
var namedColours = map[string]drawing.Color{
	"b":       {R: 0, G: 0, B: 255, A: 255},
	"g":       {R: 0, G: 128, B: 0, A: 255},
	"r":       {R: 255, G: 0, B: 0, A: 255},
	"c":       {R: 0, G: 191, B: 191, A: 255},
	"m":       {R: 191, G: 0, B: 191, A: 255},
	"y":       {R: 191, G: 191, B: 0, A: 255},
	"k":       {R: 0, G: 0, B: 0, A: 255},
	"w":       {R: 255, G: 255, B: 255, A: 255},
	"black":   {R: 0, G: 0, B: 0, A: 255},
	"white":   {R: 255, G: 255, B: 255, A: 255},
	"red":     {R: 255, G: 0, B: 0, A: 255},
	"green":   {R: 0, G: 128, B: 0, A: 255},
	"lime":    {R: 0, G: 255, B: 0, A: 255},
	"blue":    {R: 0, G: 0, B: 255, A: 255},
	"cyan":    {R: 0, G: 255, B: 255, A: 255},
	"aqua":    {R: 0, G: 255, B: 255, A: 255},
	"magenta": {R: 255, G: 0, B: 255, A: 255},
	"yellow":  {R: 255, G: 255, B: 0, A: 255},
	"orange":  {R: 255, G: 165, B: 0, A: 255},
	"purple":  {R: 128, G: 0, B: 128, A: 255},
	"pink":    {R: 255, G: 192, B: 203, A: 255},
	"brown":   {R: 165, G: 42, B: 42, A: 255},
	"grey":    {R: 128, G: 128, B: 128, A: 255},
	"gray":    {R: 128, G: 128, B: 128, A: 255},
	"navy":    {R: 0, G: 0, B: 128, A: 255},
	"teal":    {R: 0, G: 128, B: 128, A: 255},
	"olive":   {R: 128, G: 128, B: 0, A: 255},
	"maroon":  {R: 128, G: 0, B: 0, A: 255},
	"gold":    {R: 255, G: 215, B: 0, A: 255},
	"violet":  {R: 238, G: 130, B: 238, A: 255},
}

var (
	black    = drawing.Color{R: 0, G: 0, B: 0, A: 255}
	white    = drawing.Color{R: 255, G: 255, B: 255, A: 255}
	hbondRed = drawing.Color{R: 255, G: 0, B: 0, A: 255}
)

// ParseColour resolves a fill specifier: a #RGB/#RRGGBB hex code or a
// known colour name.
func ParseColour(spec string) (drawing.Color, bool) {
	spec = strings.TrimSpace(spec)
	if hexColour.MatchString(spec) {
		return drawing.ColorFromHex(strings.TrimPrefix(spec, "#")), true
	}
	c, ok := namedColours[strings.ToLower(spec)]
	return c, ok
}

// fillColour resolves the fill of a control entry. Hydro picks from the
// hydrophobicity scale using the legend.
func fillColour(e control.Entry) (drawing.Color, bool) {
	spec := e.Fill
	if spec == "" || strings.EqualFold(spec, control.FillHydro) {
		spec = residue.HydrophobicityColor(e.DisplayLegend())
	}
	return ParseColour(spec)
}
