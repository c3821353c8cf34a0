// Package hbond consolidates cpptraj hydrogen-bond average files into
// per-residue-pair frame counts.
package hbond

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

const stage = "hbond"

// NoFolding disables repeat folding.
const NoFolding = 0

// Fold reduces n by period until it is no greater than period, so residue
// n, n+period, n+2·period… collapse onto one residue.
func Fold(n, period int) int {
	if period <= 0 {
		return n
	}
	for n > period {
		n -= period
	}
	return n
}

// Bond is one consolidated residue pair. First and Second are ordered by
// residue number.
type Bond struct {
	First  residue.ID
	Second residue.ID
	Count  int
}

// Pair returns the canonical key of the bond.
func (b Bond) Pair() residue.Pair { return residue.NewPair(b.First, b.Second) }

// Map holds summed frame counts per residue pair. Counts may exceed the
// number of frames when a pair forms several bonds at once.
type Map struct {
	bonds map[residue.Pair]*Bond
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{bonds: make(map[residue.Pair]*Bond)}
}

// Add accumulates count for the pair (a, b).
func (m *Map) Add(a, b residue.ID, count int) {
	first, second := byNumber(a, b)
	p := residue.NewPair(a, b)
	if existing, ok := m.bonds[p]; ok {
		existing.Count += count
		return
	}
	m.bonds[p] = &Bond{First: first, Second: second, Count: count}
}

// Count returns the accumulated count for p.
func (m *Map) Count(p residue.Pair) int {
	if b, ok := m.bonds[p]; ok {
		return b.Count
	}
	return 0
}

// Has reports whether p was observed at all.
func (m *Map) Has(p residue.Pair) bool {
	_, ok := m.bonds[p]
	return ok
}

// Len returns the number of distinct pairs.
func (m *Map) Len() int { return len(m.bonds) }

// Bonds lists every pair in canonical key order.
func (m *Map) Bonds() []Bond {
	out := make([]Bond, 0, len(m.bonds))
	for _, b := range m.bonds {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair().Less(out[j].Pair()) })
	return out
}

// Residues lists the distinct residues taking part in any bond, sorted.
func (m *Map) Residues() []residue.ID {
	seen := make(map[residue.ID]struct{}, 2*len(m.bonds))
	for p := range m.bonds {
		seen[p.A] = struct{}{}
		seen[p.B] = struct{}{}
	}
	out := make([]residue.ID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func byNumber(a, b residue.ID) (residue.ID, residue.ID) {
	na, okA := a.Number()
	nb, okB := b.Number()
	if okA && okB && na != nb {
		if na > nb {
			return b, a
		}
		return a, b
	}
	if b < a {
		return b, a
	}
	return a, b
}

// Consolidator folds and sums hydrogen-bond records from any number of
// files.
type Consolidator struct {
	period int
	warn   *warnings.Log
	m      *Map
}

// NewConsolidator returns a consolidator folding residue numbers by period.
func NewConsolidator(period int, warn *warnings.Log) *Consolidator {
	return &Consolidator{period: period, warn: warn, m: NewMap()}
}

// Add reads one cpptraj hbond average file. Only lines naming atoms (those
// containing '@') are considered; malformed ones are warned and skipped.
func (c *Consolidator) Add(name string, r io.Reader) error {
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		if !strings.Contains(line, "@") {
			continue
		}
		if err := c.addLine(line); err != nil {
			c.warn.Addf(stage, "%s:%d: ignoring line: %v", name, lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	return nil
}

func (c *Consolidator) addLine(line string) error {
	fields := strings.Fields(line)
	if len(fields) != 7 {
		return fmt.Errorf("expected 7 fields, found %d", len(fields))
	}
	acceptor, err := c.atomResidue(fields[0])
	if err != nil {
		return err
	}
	donor, err := c.atomResidue(fields[2])
	if err != nil {
		return err
	}
	frames, err := strconv.Atoi(fields[3])
	if err != nil {
		return fmt.Errorf("frames %q: %w", fields[3], err)
	}
	if acceptor == donor {
		return fmt.Errorf("intra-residue bond in %s", acceptor)
	}
	c.m.Add(acceptor, donor, frames)
	return nil
}

// atomResidue reduces RES_NUM@ATOM to a folded residue id.
func (c *Consolidator) atomResidue(atom string) (residue.ID, error) {
	res, _, ok := strings.Cut(atom, "@")
	if !ok {
		return "", fmt.Errorf("atom %q has no '@'", atom)
	}
	name, num, ok := strings.Cut(res, "_")
	if !ok || name == "" {
		return "", fmt.Errorf("atom %q is not RES_NUM@ATOM", atom)
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return "", fmt.Errorf("atom %q: %w", atom, err)
	}
	return residue.Format(name, Fold(n, c.period)), nil
}

// Map returns the consolidated map.
func (c *Consolidator) Map() *Map { return c.m }

// Consolidate reads every path in order.
func Consolidate(paths []string, period int, warn *warnings.Log) (*Map, error) {
	c := NewConsolidator(period, warn)
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open hbond file: %w", err)
		}
		err = c.Add(path, f)
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return c.Map(), nil
}

// Write emits first,second,count lines without a header.
func Write(w io.Writer, m *Map) error {
	cw := csv.NewWriter(w)
	for _, b := range m.Bonds() {
		if err := cw.Write([]string{string(b.First), string(b.Second), strconv.Itoa(b.Count)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read parses the format produced by Write. Malformed lines are warned and
// skipped.
func Read(name string, r io.Reader, warn *warnings.Log) (*Map, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	m := NewMap()
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 3 {
			warn.Addf(stage, "%s:%d: ignoring line with %d fields", name, line, len(rec))
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if err != nil {
			warn.Addf(stage, "%s:%d: ignoring count %q", name, line, rec[2])
			continue
		}
		a, b := residue.ID(rec[0]), residue.ID(rec[1])
		if a == b {
			warn.Addf(stage, "%s:%d: ignoring intra-residue bond in %s", name, line, a)
			continue
		}
		m.Add(a, b, count)
	}
	return m, nil
}
