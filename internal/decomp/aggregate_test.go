package decomp

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

// pairwiseTable renders a minimal MMPBSA.py style pairwise decomposition
// CSV. value returns the TOTAL cell for (from, to) and whether the row is
// listed at all.
func pairwiseTable(ids []string, value func(from, to string) (string, bool)) string {
	var b strings.Builder
	b.WriteString("Complex:\nTotal Energy Decomposition:\n")
	header := []string{"Resid 1", "Resid 2"}
	for len(header) < DefaultValueColumn+1 {
		header = append(header, "col")
	}
	b.WriteString(strings.Join(header, ",") + "\n")
	for _, from := range ids {
		for _, to := range ids {
			v, ok := value(from, to)
			if !ok {
				continue
			}
			row := []string{from, to}
			for len(row) < DefaultValueColumn {
				row = append(row, "0.0")
			}
			row = append(row, v)
			b.WriteString(strings.Join(row, ",") + "\n")
		}
	}
	b.WriteString("\nSidechain Energy Decomposition:\n")
	tail := []string{ids[0], ids[0]}
	for len(tail) < DefaultValueColumn+1 {
		tail = append(tail, "99.0")
	}
	b.WriteString(strings.Join(tail, ",") + "\n")
	return b.String()
}

func constTable(ids []string, pairs map[[2]string]string) string {
	return pairwiseTable(ids, func(from, to string) (string, bool) {
		if v, ok := pairs[[2]string{from, to}]; ok {
			return v, true
		}
		if v, ok := pairs[[2]string{to, from}]; ok {
			return v, true
		}
		return "0.0", true
	})
}

var fourResidues = []string{"ALA   1", "ARG   2", "ASN   3", "ASP   4"}

func aggregateStrings(t *testing.T, opts Options, warn *warnings.Log, tables ...string) (*Matrix, error) {
	t.Helper()
	agg := NewAggregator(opts, warn)
	for i, tbl := range tables {
		if err := agg.Add("file"+string(rune('1'+i)), strings.NewReader(tbl)); err != nil {
			return nil, err
		}
	}
	return agg.Matrix()
}

func TestAggregateAveragesAcrossFiles(t *testing.T) {
	f1 := constTable(fourResidues, map[[2]string]string{{"ALA   1", "ARG   2"}: "2.0"})
	f2 := constTable(fourResidues, map[[2]string]string{{"ALA   1", "ARG   2"}: "4.0"})
	p := residue.NewPair("ALA   1", "ARG   2")

	m, err := aggregateStrings(t, Options{Threshold: 1.0}, nil, f1, f2)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if got := m.Samples(p); len(got) != 2 {
		t.Fatalf("expected one sample per file, got %v", got)
	}
	if v, ok := m.Energy(p); !ok || v != 3.0 {
		t.Fatalf("energy = %v %v, want 3.0", v, ok)
	}

	m, err = aggregateStrings(t, Options{Threshold: 5.0}, nil, f1, f2)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if _, ok := m.Energy(p); ok {
		t.Fatalf("expected pair to be below threshold 5.0")
	}
	if v, ok := m.Mean(p); !ok || v != 3.0 {
		t.Fatalf("mean = %v %v, want 3.0", v, ok)
	}
}

func TestAggregateMissingPairIsFatal(t *testing.T) {
	full := constTable(fourResidues, nil)
	partial := pairwiseTable(fourResidues, func(from, to string) (string, bool) {
		skip := (from == "ARG   2" && to == "ASP   4") || (from == "ASP   4" && to == "ARG   2")
		return "0.5", !skip
	})
	_, err := aggregateStrings(t, DefaultOptions(), nil, full, partial)
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected IncompleteError, got %v", err)
	}
	if len(incomplete.Missing) != 1 || incomplete.Missing[0] != residue.NewPair("ARG   2", "ASP   4") {
		t.Fatalf("unexpected missing pairs %v", incomplete.Missing)
	}
	if incomplete.Files != 2 || !strings.Contains(err.Error(), "ARG   2,ASP   4") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestAggregateIsCommutativeAcrossFiles(t *testing.T) {
	ids := []string{"GLY   1", "LEU   2", "VAL   3"}
	forward := pairwiseTable(ids, func(from, to string) (string, bool) {
		if from == "VAL   3" && to == "LEU   2" {
			return "", false
		}
		return "1.5", true
	})
	backward := pairwiseTable(ids, func(from, to string) (string, bool) {
		if from == "LEU   2" && to == "VAL   3" {
			return "", false
		}
		return "1.5", true
	})
	m, err := aggregateStrings(t, DefaultOptions(), nil, forward, backward)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if v, ok := m.Energy(residue.NewPair("VAL   3", "LEU   2")); !ok || v != 1.5 {
		t.Fatalf("energy = %v %v", v, ok)
	}
}

func TestAggregateJoinsByPosition(t *testing.T) {
	first := constTable(fourResidues, map[[2]string]string{{"ALA   1", "ASN   3"}: "-2.0"})
	monomerB := []string{"ALA 101", "ARG 102", "ASN 103", "ASP 104"}
	second := constTable(monomerB, map[[2]string]string{{"ALA 101", "ASN 103"}: "-4.0"})
	m, err := aggregateStrings(t, DefaultOptions(), nil, first, second)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if v, ok := m.Energy(residue.NewPair("ALA   1", "ASN   3")); !ok || v != -3.0 {
		t.Fatalf("energy = %v %v", v, ok)
	}
	if m.Contains("ALA 101") {
		t.Fatalf("second file ids should be mapped onto the first file's ids")
	}
	if got := m.Sources(); len(got) != 2 {
		t.Fatalf("sources = %v", got)
	}
}

func TestAggregateRejectsResidueCountMismatch(t *testing.T) {
	first := constTable(fourResidues, nil)
	second := constTable(fourResidues[:3], nil)
	if _, err := aggregateStrings(t, DefaultOptions(), nil, first, second); err == nil {
		t.Fatalf("expected residue count error")
	}
	if _, err := aggregateStrings(t, DefaultOptions(), nil, "no table here\n"); err == nil {
		t.Fatalf("expected missing table error")
	}
	if _, err := NewAggregator(DefaultOptions(), nil).Matrix(); err == nil {
		t.Fatalf("expected error with no inputs")
	}
}

func TestAggregateOmitZeroDropsResidue(t *testing.T) {
	tbl := constTable(fourResidues, map[[2]string]string{
		{"ALA   1", "ARG   2"}: "-3.0",
		{"ARG   2", "ASN   3"}: "1.2",
		{"ASN   3", "ASP   4"}: "0.4",
	})
	m, err := aggregateStrings(t, Options{Threshold: 1.0, OmitZero: true}, nil, tbl)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if m.Contains("ASP   4") {
		t.Fatalf("ASP 4 has no significant pair and should be omitted")
	}
	if got := m.Residues(); len(got) != 3 {
		t.Fatalf("residues = %v", got)
	}
	if _, ok := m.Mean(residue.NewPair("ASN   3", "ASP   4")); ok {
		t.Fatalf("omitted residue should not expose means")
	}
}

func TestAggregateWarnsOnUnparseableValue(t *testing.T) {
	tbl := pairwiseTable(fourResidues, func(from, to string) (string, bool) {
		if from == "ALA   1" && to == "ARG   2" {
			return "n/a", true
		}
		return "0.0", true
	})
	warn := warnings.New(nil)
	if _, err := aggregateStrings(t, DefaultOptions(), warn, tbl); err != nil {
		t.Fatalf("a single bad cell in one direction should not be fatal: %v", err)
	}
	if warn.Len() != 1 || !strings.Contains(warn.Entries()[0].Message, "ignoring row") {
		t.Fatalf("unexpected warnings %v", warn.Entries())
	}
}

func TestWriteAndReadTable(t *testing.T) {
	tbl := constTable(fourResidues, map[[2]string]string{
		{"ALA   1", "ARG   2"}: "-3.456",
		{"ARG   2", "ASN   3"}: "0.2",
	})
	m, err := aggregateStrings(t, DefaultOptions(), nil, tbl)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteTable(&buf, m); err != nil {
		t.Fatalf("write: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "Res,ALA   1,ARG   2,ASN   3,ASP   4" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "ALA   1,,-3.46,," {
		t.Fatalf("row = %q", lines[1])
	}
	back, err := ReadTable("decomp.csv", strings.NewReader(buf.String()), nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if v, ok := back.Energy(residue.NewPair("ARG   2", "ALA   1")); !ok || v != -3.46 {
		t.Fatalf("read energy = %v %v", v, ok)
	}
	if _, ok := back.Energy(residue.NewPair("ARG   2", "ASN   3")); ok {
		t.Fatalf("blank cell should be absent")
	}
	if _, err := ReadTable("bad.csv", strings.NewReader("x,y\n"), nil); err == nil {
		t.Fatalf("expected header error")
	}
}

func TestReadTableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "decomp.csv")
	if err := os.WriteFile(path, []byte("Res,GLY   7,ASP  12\nGLY   7,,-2.5\nASP  12,-2.5,\n"), 0o600); err != nil {
		t.Fatalf("write table: %v", err)
	}
	m, err := ReadTableFile(path, warnings.New(nil))
	if err != nil {
		t.Fatalf("read table: %v", err)
	}
	if v, ok := m.Energy(residue.NewPair("GLY   7", "ASP  12")); !ok || v != -2.5 {
		t.Fatalf("unexpected energy %v (present %v)", v, ok)
	}
	if _, err := ReadTableFile(filepath.Join(t.TempDir(), "missing.csv"), warnings.New(nil)); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}
