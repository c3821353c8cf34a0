package diagram

import (
	"bytes"
	"strings"
	"testing"

	"interdiag/internal/control"
	"interdiag/internal/decomp"
	"interdiag/internal/hbond"
	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

const controlCSV = "Col,Id,Legend,Chain,Fill\n" +
	"1,LEU 153,L53,A,Hydro\n" +
	"1,Gap,,,\n" +
	"1,GLY   7,G7,A,Hydro\n" +
	"2,ASP  12,D12,B,Hydro\n" +
	"2,LYS  20,+K20,B,#00FF00\n"

const primaryCSV = "Res,LEU 153,GLY   7,ASP  12,LYS  20\n" +
	"LEU 153,,-1.5,-4.0,\n" +
	"GLY   7,-1.5,,,\n" +
	"ASP  12,-4.0,,,\n" +
	"LYS  20,,,,\n"

func readSheet(t *testing.T, in string, warn *warnings.Log) *control.Sheet {
	t.Helper()
	sheet, err := control.Read("control.csv", strings.NewReader(in), warn)
	if err != nil {
		t.Fatalf("control: %v", err)
	}
	return sheet
}

func readMatrix(t *testing.T, in string) *decomp.Matrix {
	t.Helper()
	m, err := decomp.ReadTable("decomp.csv", strings.NewReader(in), nil)
	if err != nil {
		t.Fatalf("decomp: %v", err)
	}
	return m
}

func edgeFor(t *testing.T, d *Diagram, a, b residue.ID) Edge {
	t.Helper()
	for _, e := range d.Edges {
		if e.Pair == residue.NewPair(a, b) {
			return e
		}
	}
	t.Fatalf("no edge between %s and %s in %+v", a, b, d.Edges)
	return Edge{}
}

func TestBuildLayoutGapConsumesOneSlot(t *testing.T) {
	d, err := Build(readSheet(t, controlCSV, nil), readMatrix(t, primaryCSV), nil, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(d.Placements) != 4 {
		t.Fatalf("gaps must not be placed: %+v", d.Placements)
	}
	leu, _ := d.Placement("LEU 153")
	gly, _ := d.Placement("GLY   7")
	asp, _ := d.Placement("ASP  12")
	if leu.Centre != (Point{X: 560, Y: 160}) {
		t.Fatalf("LEU centre = %+v", leu.Centre)
	}
	if gly.Centre.Y-leu.Centre.Y != 2*RowPitch {
		t.Fatalf("gap should consume exactly one row: %v -> %v", leu.Centre.Y, gly.Centre.Y)
	}
	if asp.Centre != (Point{X: 960, Y: 200}) {
		t.Fatalf("shorter column should be centred, ASP centre = %+v", asp.Centre)
	}
	if !d.Slots[0].Rows[1].Gap || d.Slots[0].Rows[1].Y != 240 {
		t.Fatalf("unexpected gap slot %+v", d.Slots[0].Rows[1])
	}
	if d.Width != 1120 || d.Height != 500 {
		t.Fatalf("canvas = %vx%v", d.Width, d.Height)
	}
}

func TestBuildEdgesAndStyling(t *testing.T) {
	bonds := hbond.NewMap()
	bonds.Add("LEU 153", "ASP  12", 50)
	opts := DefaultOptions()
	opts.HBondThreshold = 10
	d, err := Build(readSheet(t, controlCSV, nil), readMatrix(t, primaryCSV), bonds, opts, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(d.Edges) != 2 {
		t.Fatalf("edges = %+v", d.Edges)
	}
	cross := edgeFor(t, d, "ASP  12", "LEU 153")
	if !cross.HBond || cross.Colour != hbondRed || cross.Width != 4 || cross.Dashed {
		t.Fatalf("unexpected cross edge %+v", cross)
	}
	if cross.From != (Point{X: 620, Y: 160}) || cross.To != (Point{X: 900, Y: 200}) {
		t.Fatalf("cross endpoints %+v -> %+v", cross.From, cross.To)
	}
	same := edgeFor(t, d, "GLY   7", "LEU 153")
	if same.HBond || same.Colour != black {
		t.Fatalf("unexpected same-column edge %+v", same)
	}
	if same.From != (Point{X: 560, Y: 190}) || same.To != (Point{X: 560, Y: 290}) {
		t.Fatalf("vertical endpoints %+v -> %+v", same.From, same.To)
	}
	if _, ok := d.Largest(); ok {
		t.Fatalf("plain mode should not label edges")
	}
}

func TestSummaryExcludesSameColumn(t *testing.T) {
	d, err := Build(readSheet(t, controlCSV, nil), readMatrix(t, primaryCSV), nil, DefaultOptions(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []SummaryRow{
		{Column: 1, Chain: "A", Residue: "L53", Total: 4},
		{Column: 1, Chain: "A", Residue: "G7", Total: 0},
		{Column: 2, Chain: "B", Residue: "D12", Total: 4},
		{Column: 2, Chain: "B", Residue: "K20", Total: 0},
	}
	if len(d.Summary) != len(want) {
		t.Fatalf("summary = %+v", d.Summary)
	}
	for i := range want {
		if d.Summary[i] != want[i] {
			t.Fatalf("row %d = %+v, want %+v", i, d.Summary[i], want[i])
		}
	}
	var buf bytes.Buffer
	if err := WriteSummary(&buf, d); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Column,Chain,Residue,Total\n1,A,L53,4\n") {
		t.Fatalf("summary csv = %q", buf.String())
	}
}

func TestOmitFlags(t *testing.T) {
	opts := DefaultOptions()
	opts.OmitSameColumn = true
	d, err := Build(readSheet(t, controlCSV, nil), readMatrix(t, primaryCSV), nil, opts, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(d.Edges) != 1 {
		t.Fatalf("same-column edge should be dropped: %+v", d.Edges)
	}

	opts.OmitNone = true
	d, err = Build(readSheet(t, controlCSV, nil), readMatrix(t, primaryCSV), nil, opts, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, ok := d.Placement("GLY   7"); ok {
		t.Fatalf("GLY 7 has no surviving edge and should be omitted")
	}
	if _, ok := d.Placement("LYS  20"); !ok {
		t.Fatalf("LYS 20 is marked always-show")
	}
	if len(d.Slots[0].Rows) != 2 || !d.Slots[0].Rows[1].Gap {
		t.Fatalf("gap should survive omission: %+v", d.Slots[0])
	}
}

func TestCompareAgainstSelfHasNoEdges(t *testing.T) {
	m := readMatrix(t, primaryCSV)
	opts := DefaultOptions()
	opts.Compare = m
	d, err := Build(readSheet(t, controlCSV, nil), m, nil, opts, nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(d.Edges) != 0 {
		t.Fatalf("self comparison should produce no edges: %+v", d.Edges)
	}
	if !d.DiffMode {
		t.Fatalf("expected diff mode")
	}
}

func TestCompareDiffPolarity(t *testing.T) {
	compareCSV := "Res,LEU 153,GLY   7,ASP  12,ILE  20\n" +
		"LEU 153,,-3.0,-1.0,-2.0\n" +
		"GLY   7,-3.0,,,\n" +
		"ASP  12,-1.0,,,\n" +
		"ILE  20,-2.0,,,\n"
	warn := warnings.New(nil)
	opts := DefaultOptions()
	opts.Compare = readMatrix(t, compareCSV)
	opts.Title = "Mutant vs wild type"
	opts.CompareLabel = "wt.csv"
	d, err := Build(readSheet(t, controlCSV, nil), readMatrix(t, primaryCSV), nil, opts, warn)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	stronger := edgeFor(t, d, "ASP  12", "LEU 153")
	if stronger.Value != 3 || stronger.Dashed {
		t.Fatalf("stronger interaction should be solid with change 3: %+v", stronger)
	}
	weaker := edgeFor(t, d, "GLY   7", "LEU 153")
	if weaker.Value != -1.5 || weaker.Magnitude != 1.5 || !weaker.Dashed {
		t.Fatalf("weaker interaction should be dashed: %+v", weaker)
	}
	lost := edgeFor(t, d, "LEU 153", "LYS  20")
	if !lost.Dashed || lost.Magnitude != 2 {
		t.Fatalf("comparison-only pair should be dashed: %+v", lost)
	}
	largest, ok := d.Largest()
	if !ok || largest.Pair != stronger.Pair || largest.Label != "3" {
		t.Fatalf("largest = %+v %v", largest, ok)
	}
	if d.Subtitle != "(0.5 kcal/mol, wt.csv)" {
		t.Fatalf("subtitle = %q", d.Subtitle)
	}
	if warn.Len() != 0 {
		t.Fatalf("comparison relabelling should be silent: %v", warn.Entries())
	}
}

func TestWarnings(t *testing.T) {
	primary := "Res,LEU 153,ASP  12,TRP  99,ILE  20\n" +
		"LEU 153,,-4.0,-2.0,\n" +
		"ASP  12,-4.0,,-1.0,\n" +
		"TRP  99,-2.0,-1.0,,\n" +
		"ILE  20,,,,\n"
	bonds := hbond.NewMap()
	bonds.Add("GLY   7", "ASP  12", 50)
	warn := warnings.New(nil)
	_, err := Build(readSheet(t, controlCSV, nil), readMatrix(t, primary), bonds, DefaultOptions(), warn)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	var notListed, mismatch, noEnergy int
	for _, e := range warn.Entries() {
		switch {
		case strings.Contains(e.Message, "TRP  99 has interaction energies"):
			notListed++
		case strings.Contains(e.Message, "control file id LYS  20 does not agree with decomp table id ILE  20"):
			mismatch++
		case strings.Contains(e.Message, "hbond between GLY   7 and ASP  12"):
			noEnergy++
		}
	}
	if notListed != 1 || mismatch != 1 || noEnergy != 1 {
		t.Fatalf("unexpected warnings %v", warn.Entries())
	}
}

func TestUnknownFillFallsBackToBlack(t *testing.T) {
	in := "Col,Id,Legend,Chain,Fill\n1,LEU 153,L53,A,mauve-ish\n"
	warn := warnings.New(nil)
	d, err := Build(readSheet(t, in, nil), readMatrix(t, primaryCSV), nil, DefaultOptions(), warn)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	p, _ := d.Placement("LEU 153")
	if p.Fill != black {
		t.Fatalf("fill = %+v", p.Fill)
	}
	found := false
	for _, e := range warn.Entries() {
		if strings.Contains(e.Message, "unknown fill") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unknown fill warning, got %v", warn.Entries())
	}
}

func TestParseColour(t *testing.T) {
	if c, ok := ParseColour("#00FF00"); !ok || c.G != 255 || c.R != 0 {
		t.Fatalf("hex colour = %+v %v", c, ok)
	}
	if c, ok := ParseColour("g"); !ok || c.G != 128 {
		t.Fatalf("single letter colour = %+v %v", c, ok)
	}
	if _, ok := ParseColour("Green"); !ok {
		t.Fatalf("names should be case insensitive")
	}
	if _, ok := ParseColour("00FF00"); ok {
		t.Fatalf("hex without # should be rejected")
	}
}

func TestBuildRequiresInputs(t *testing.T) {
	if _, err := Build(nil, nil, nil, DefaultOptions(), nil); err == nil {
		t.Fatalf("expected error")
	}
}
