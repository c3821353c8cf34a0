package diagram

import (
	"interdiag/internal/control"
)

// Layout constants, in pixels.
const (
	Margin        = 100.0
	ResidueRadius = 60.0
	ColumnPitch   = 400.0
	RowPitch      = 80.0
	FontSize      = 24.0
	DashSize      = 10.0
	LabelOffset   = 5.0
)

// layout places every column entry. Each column is stacked top to bottom in
// declaration order and centred on the tallest column; gaps take a slot but
// are not placed.
func layout(d *Diagram, cols []control.Column) {
	maxRows, maxIndex := 0, 0
	for _, col := range cols {
		maxRows = max(maxRows, len(col.Entries))
		maxIndex = max(maxIndex, col.Index)
	}
	centreY := Margin + ResidueRadius + RowPitch*float64(maxRows)/2

	for _, col := range cols {
		x := Margin + ResidueRadius + float64(col.Index)*ColumnPitch
		y := centreY - float64(len(col.Entries))*RowPitch/2
		slots := ColumnSlots{Index: col.Index, X: x}
		for _, e := range col.Entries {
			slots.Rows = append(slots.Rows, Slot{ID: e.ID, Y: y, Gap: e.IsGap()})
			if !e.IsGap() {
				d.Placements = append(d.Placements, Placement{Entry: e, Centre: Point{X: x, Y: y}})
			}
			y += RowPitch
		}
		d.Slots = append(d.Slots, slots)
	}

	d.Width = 2 * Margin
	d.Height = 2 * Margin
	if len(cols) > 0 {
		d.Width = Margin + 2*ResidueRadius + float64(maxIndex)*ColumnPitch + Margin
		d.Height = Margin + ResidueRadius + float64(maxRows)*RowPitch + Margin
	}
}

// endpoints trims an edge between two residue centres to the ellipse
// outlines. Edges between columns leave the ellipse sides; edges within a
// column run vertically between top and bottom.
func endpoints(a, b Point) (Point, Point) {
	if a.X > b.X {
		a, b = b, a
	}
	if a.X < b.X {
		return Point{X: a.X + ResidueRadius, Y: a.Y}, Point{X: b.X - ResidueRadius, Y: b.Y}
	}
	top, bottom := min(a.Y, b.Y), max(a.Y, b.Y)
	return Point{X: a.X, Y: top + ResidueRadius/2}, Point{X: a.X, Y: bottom - ResidueRadius/2}
}
