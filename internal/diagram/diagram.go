// Package diagram lays out the residues of a control sheet, turns
// significant pair energies (or their change against a second run) into
// styled edges, and renders the result.
package diagram

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/wcharczuk/go-chart/v2/drawing"

	"interdiag/internal/control"
	"interdiag/internal/decomp"
	"interdiag/internal/hbond"
	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

const stage = "diagram"

// DefaultCompareThreshold is the minimum change, in kcal/mol, drawn in diff
// mode.
const DefaultCompareThreshold = 0.5

// Options selects the diagram policies.
type Options struct {
	// OmitNone hides residues left without an edge unless their legend
	// carries the always-show marker.
	OmitNone bool
	// Compare switches to diff mode against a second matrix.
	Compare *decomp.Matrix
	// CompareThreshold is the minimum magnitude of a diff-mode edge.
	CompareThreshold float64
	// OmitSameColumn drops edges between residues of one column.
	OmitSameColumn bool
	// HBondThreshold is the minimum frame count that highlights an edge.
	HBondThreshold int
	// Title is drawn top left when set.
	Title string
	// CompareLabel names the comparison run in the subtitle.
	CompareLabel string
}

// DefaultOptions returns the options of a plain, unfiltered diagram.
func DefaultOptions() Options {
	return Options{CompareThreshold: DefaultCompareThreshold}
}

// Point is a canvas position in pixels.
type Point struct {
	X, Y float64
}

// Placement is a drawn residue.
type Placement struct {
	Entry  control.Entry
	Centre Point
	Fill   drawing.Color
}

// Edge is a drawn interaction.
type Edge struct {
	Pair residue.Pair
	// Value is the signed energy, or the signed change in diff mode.
	Value     float64
	Magnitude float64
	HBond     bool
	Dashed    bool
	Colour    drawing.Color
	Width     float64
	From, To  Point
	// Label is set on the largest change in diff mode.
	Label   string
	LabelAt Point
}

// SummaryRow is the per-residue energy total written to the summary file.
type SummaryRow struct {
	Column  int
	Chain   string
	Residue string
	Total   float64
}

// Diagram is the laid out result of Build.
type Diagram struct {
	Title    string
	Subtitle string
	Width    float64
	Height   float64
	DiffMode bool
	// Slots holds every row slot per column, gaps included, in column order.
	Slots      []ColumnSlots
	Placements []Placement
	Edges      []Edge
	Summary    []SummaryRow
}

// ColumnSlots records the realized vertical slots of one column.
type ColumnSlots struct {
	Index int
	X     float64
	Rows  []Slot
}

// Slot is one row position in a column.
type Slot struct {
	ID  residue.ID
	Y   float64
	Gap bool
}

// Placement returns the placement of id.
func (d *Diagram) Placement(id residue.ID) (Placement, bool) {
	for _, p := range d.Placements {
		if p.Entry.ID == id {
			return p, true
		}
	}
	return Placement{}, false
}

// Largest returns the labelled edge of a diff-mode diagram.
func (d *Diagram) Largest() (Edge, bool) {
	for _, e := range d.Edges {
		if e.Label != "" {
			return e, true
		}
	}
	return Edge{}, false
}

type edgeValue struct {
	pair      residue.Pair
	value     float64
	magnitude float64
	dashed    bool
}

type builder struct {
	sheet  *control.Sheet
	opts   Options
	warn   *warnings.Log
	column map[residue.ID]int
}

// Build lays out sheet and derives edges from m. bonds may be nil.
func Build(sheet *control.Sheet, m *decomp.Matrix, bonds *hbond.Map, opts Options, warn *warnings.Log) (*Diagram, error) {
	if sheet == nil || m == nil {
		return nil, fmt.Errorf("diagram requires a control sheet and an energy matrix")
	}
	if bonds == nil {
		bonds = hbond.NewMap()
	}
	b := &builder{sheet: sheet, opts: opts, warn: warn, column: make(map[residue.ID]int)}
	for _, col := range sheet.Columns() {
		for _, e := range col.Entries {
			b.column[e.ID] = col.Index
		}
	}

	energies := b.energies(b.reconcile(m, false))
	highlighted := b.hbonds(bonds, energies)
	var compare map[residue.Pair]float64
	if opts.Compare != nil {
		compare = b.energies(b.reconcile(opts.Compare, true))
	}
	if opts.OmitSameColumn {
		energies = b.crossColumn(energies)
		if compare != nil {
			compare = b.crossColumn(compare)
		}
	}

	var edges []edgeValue
	if opts.Compare != nil {
		edges = diffEdges(energies, compare, opts.CompareThreshold)
	} else {
		edges = plainEdges(energies)
	}

	g := newEnergyGraph(sheet.IDs())
	for _, e := range edges {
		g.connect(e.pair, e.magnitude)
	}

	d := &Diagram{DiffMode: opts.Compare != nil}
	d.Title, d.Subtitle = b.titles()
	layout(d, b.visibleColumns(g))
	for i := range d.Placements {
		p := &d.Placements[i]
		fill, ok := fillColour(p.Entry)
		if !ok {
			b.warn.Addf(stage, "unknown fill %q for %s, using black", p.Entry.Fill, p.Entry.ID)
			fill = black
		}
		p.Fill = fill
	}
	d.Edges = b.styleEdges(d, edges, highlighted)
	d.Summary = b.summary(d, g)
	return d, nil
}

// reconcile maps matrix residues that are missing from the sheet onto a
// sheet residue with the same number. Comparison matrices are relabelled
// silently; for the primary matrix the disagreement is only reported.
func (b *builder) reconcile(m *decomp.Matrix, isCompare bool) *decomp.Matrix {
	subs := make(map[residue.ID]residue.ID)
	ids := b.sheet.IDs()
	for _, res := range m.Residues() {
		if _, ok := b.column[res]; ok {
			continue
		}
		num, ok := res.Number()
		if !ok {
			continue
		}
		for _, id := range ids {
			n, ok := id.Number()
			if !ok || n != num {
				continue
			}
			if isCompare {
				subs[res] = id
			} else {
				b.warn.Addf(stage, "control file id %s does not agree with decomp table id %s", id, res)
			}
		}
	}
	if !isCompare {
		return m
	}
	return m.Relabel(subs)
}

// energies keeps the significant pairs whose residues are both on the
// sheet, warning once for each residue that is not.
func (b *builder) energies(m *decomp.Matrix) map[residue.Pair]float64 {
	out := make(map[residue.Pair]float64)
	for _, p := range m.Pairs() {
		_, okA := b.column[p.A]
		_, okB := b.column[p.B]
		if okA && okB {
			out[p], _ = m.Energy(p)
			continue
		}
		for _, id := range []residue.ID{p.A, p.B} {
			if _, ok := b.column[id]; !ok {
				b.warn.Once(string(id), stage, "%s has interaction energies but is not listed in the control file", id)
			}
		}
	}
	return out
}

// hbonds returns the pairs bonded at least HBondThreshold times that also
// carry an energy.
func (b *builder) hbonds(bonds *hbond.Map, energies map[residue.Pair]float64) map[residue.Pair]bool {
	out := make(map[residue.Pair]bool)
	for _, bond := range bonds.Bonds() {
		if bond.Count < b.opts.HBondThreshold {
			continue
		}
		p := bond.Pair()
		if _, ok := energies[p]; !ok {
			b.warn.Addf(stage, "hbond between %s and %s but no corresponding energy value", bond.First, bond.Second)
			continue
		}
		out[p] = true
	}
	return out
}

func (b *builder) crossColumn(energies map[residue.Pair]float64) map[residue.Pair]float64 {
	out := make(map[residue.Pair]float64, len(energies))
	for p, v := range energies {
		if b.column[p.A] != b.column[p.B] {
			out[p] = v
		}
	}
	return out
}

func sortedPairs(sets ...map[residue.Pair]float64) []residue.Pair {
	seen := make(map[residue.Pair]struct{})
	var out []residue.Pair
	for _, set := range sets {
		for p := range set {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func plainEdges(energies map[residue.Pair]float64) []edgeValue {
	out := make([]edgeValue, 0, len(energies))
	for _, p := range sortedPairs(energies) {
		v := energies[p]
		out = append(out, edgeValue{pair: p, value: v, magnitude: math.Abs(v)})
	}
	return out
}

// diffEdges compares the magnitude of each pair between the two runs. A
// weaker interaction in the primary run, or one present only in the
// comparison run, is dashed.
func diffEdges(energies, compare map[residue.Pair]float64, threshold float64) []edgeValue {
	var out []edgeValue
	for _, p := range sortedPairs(energies, compare) {
		e, inE := energies[p]
		c, inC := compare[p]
		switch {
		case inE && inC:
			diff := math.Abs(e) - math.Abs(c)
			if math.Abs(diff) >= threshold {
				out = append(out, edgeValue{pair: p, value: diff, magnitude: math.Abs(diff), dashed: diff < 0})
			}
		case inE:
			if math.Abs(e) >= threshold {
				out = append(out, edgeValue{pair: p, value: e, magnitude: math.Abs(e)})
			}
		case inC:
			if math.Abs(c) >= threshold {
				out = append(out, edgeValue{pair: p, value: c, magnitude: math.Abs(c), dashed: true})
			}
		}
	}
	return out
}

// visibleColumns applies OmitNone. Gaps always keep their slot.
func (b *builder) visibleColumns(g *energyGraph) []control.Column {
	cols := b.sheet.Columns()
	if !b.opts.OmitNone {
		return cols
	}
	for i, col := range cols {
		kept := col.Entries[:0:0]
		for _, e := range col.Entries {
			if e.IsGap() || e.AlwaysShow() || g.degree(e.ID) > 0 {
				kept = append(kept, e)
			}
		}
		cols[i].Entries = kept
	}
	return cols
}

func (b *builder) titles() (string, string) {
	if b.opts.Title == "" {
		return "", ""
	}
	sub := "(" + strconv.FormatFloat(b.opts.CompareThreshold, 'f', -1, 64) + " kcal/mol"
	if b.opts.Compare != nil && b.opts.CompareLabel != "" {
		sub += ", " + b.opts.CompareLabel
	}
	return b.opts.Title, sub + ")"
}

func (b *builder) styleEdges(d *Diagram, edges []edgeValue, highlighted map[residue.Pair]bool) []Edge {
	out := make([]Edge, 0, len(edges))
	largest := -1
	for _, ev := range edges {
		pa, okA := d.Placement(ev.pair.A)
		pb, okB := d.Placement(ev.pair.B)
		if !okA || !okB {
			continue
		}
		e := Edge{
			Pair:      ev.pair,
			Value:     ev.value,
			Magnitude: ev.magnitude,
			HBond:     highlighted[ev.pair],
			Dashed:    d.DiffMode && ev.dashed,
			Colour:    black,
			Width:     ev.magnitude,
		}
		if e.HBond {
			e.Colour = hbondRed
		}
		e.From, e.To = endpoints(pa.Centre, pb.Centre)
		out = append(out, e)
		if largest < 0 || e.Magnitude > out[largest].Magnitude {
			largest = len(out) - 1
		}
	}
	if d.DiffMode && largest >= 0 {
		e := &out[largest]
		e.Label = decomp.FormatEnergy(e.Value)
		e.LabelAt = Point{X: (e.From.X + e.To.X) / 2, Y: (e.From.Y+e.To.Y)/2 - LabelOffset}
	}
	return out
}

// summary totals, for every placed residue, the magnitudes of its edges to
// residues in other columns. Same-column edges never count.
func (b *builder) summary(d *Diagram, g *energyGraph) []SummaryRow {
	rows := make([]SummaryRow, 0, len(d.Placements))
	for _, p := range d.Placements {
		var total float64
		for _, n := range g.neighbours(p.Entry.ID) {
			if _, placed := d.Placement(n.id); !placed {
				continue
			}
			if b.column[n.id] != p.Entry.Column {
				total += n.weight
			}
		}
		rows = append(rows, SummaryRow{
			Column:  p.Entry.Column,
			Chain:   p.Entry.Chain,
			Residue: p.Entry.DisplayLegend(),
			Total:   total,
		})
	}
	return rows
}
