package decomp

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

const stage = "decomp"

// DefaultValueColumn is the TOTAL column of MMPBSA.py pairwise decomposition
// output.
const DefaultValueColumn = 17

// DefaultThreshold is the significance threshold in kcal/mol.
const DefaultThreshold = 1.0

// Options controls aggregation.
type Options struct {
	// Threshold is the minimum absolute mean reported as significant.
	Threshold float64
	// OmitZero removes residues with no significant pair at all.
	OmitZero bool
	// ValueColumn is the zero-based column holding the pair energy.
	ValueColumn int
}

// DefaultOptions returns the options used by the decomp-table command.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, ValueColumn: DefaultValueColumn}
}

// IncompleteError reports pairs that did not receive one sample per input.
type IncompleteError struct {
	Files   int
	Missing []residue.Pair
}

func (e *IncompleteError) Error() string {
	if len(e.Missing) == 0 {
		return "decomposition tables are incomplete"
	}
	first := e.Missing[0]
	msg := fmt.Sprintf("the energy for residue pair %s,%s appears not to be listed in all %d files", first.A, first.B, e.Files)
	if n := len(e.Missing) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more pairs)", n)
	}
	return msg
}

// Aggregator merges decomposition tables one file at a time. The first file
// added fixes the canonical residue order; later files are joined to it by
// position.
type Aggregator struct {
	opts      Options
	warn      *warnings.Log
	canonical []residue.ID
	files     []string
	samples   map[residue.Pair][]float64
}

// NewAggregator returns an empty aggregator. A zero ValueColumn selects
// DefaultValueColumn.
func NewAggregator(opts Options, warn *warnings.Log) *Aggregator {
	if opts.ValueColumn <= 0 {
		opts.ValueColumn = DefaultValueColumn
	}
	return &Aggregator{opts: opts, warn: warn, samples: make(map[residue.Pair][]float64)}
}

type cell struct {
	from, to string
	raw      []string
}

// Add reads one decomposition table. A table whose residue count differs
// from the first table is rejected.
func (a *Aggregator) Add(name string, r io.Reader) error {
	rows, err := a.readSection(name, r)
	if err != nil {
		return err
	}
	local := localOrder(rows)
	if len(local) == 0 {
		return fmt.Errorf("%s: no pairwise decomposition table found", name)
	}
	if a.canonical == nil {
		a.canonical = make([]residue.ID, len(local))
		for i, id := range local {
			a.canonical[i] = residue.ID(id)
		}
	} else if len(local) != len(a.canonical) {
		return fmt.Errorf("%s: table lists %d residues, expected %d as in %s", name, len(local), len(a.canonical), a.files[0])
	}

	// local position -> canonical residue, built once per file
	index := make(map[string]residue.ID, len(local))
	for i, id := range local {
		index[id] = a.canonical[i]
	}

	directional := make(map[residue.Pair][]float64)
	for _, c := range rows {
		from, okFrom := index[c.from]
		to, okTo := index[c.to]
		if !okFrom || !okTo {
			a.warn.Addf(stage, "%s: ignoring row %s", name, strings.Join(c.raw, ","))
			continue
		}
		if from == to {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(c.raw[a.opts.ValueColumn]), 64)
		if err != nil {
			a.warn.Addf(stage, "%s: ignoring row %s", name, strings.Join(c.raw, ","))
			continue
		}
		p := residue.NewPair(from, to)
		directional[p] = append(directional[p], v)
	}
	for p, vals := range directional {
		a.samples[p] = append(a.samples[p], mean(vals))
	}
	a.files = append(a.files, name)
	return nil
}

// readSection returns the rows of the first table section: it starts at the
// first self-pair row and ends at the first row too short to carry a value.
func (a *Aggregator) readSection(name string, r io.Reader) ([]cell, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	var rows []cell
	started := false
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if !started {
			if len(rec) >= 2 && rec[0] != "" && rec[0] == rec[1] {
				started = true
			} else {
				continue
			}
		}
		if len(rec) <= a.opts.ValueColumn {
			break
		}
		rows = append(rows, cell{from: rec[0], to: rec[1], raw: rec})
	}
	return rows, nil
}

// localOrder lists the partners of the first residue, which is the file's
// own residue ordering.
func localOrder(rows []cell) []string {
	if len(rows) == 0 {
		return nil
	}
	first := rows[0].from
	var out []string
	seen := make(map[string]struct{})
	for _, c := range rows {
		if c.from != first {
			break
		}
		if _, dup := seen[c.to]; dup {
			continue
		}
		seen[c.to] = struct{}{}
		out = append(out, c.to)
	}
	return out
}

// Matrix validates the accumulated samples and builds the averaged matrix.
// Every pair of canonical residues must carry exactly one sample per file.
func (a *Aggregator) Matrix() (*Matrix, error) {
	n := len(a.files)
	if n == 0 {
		return nil, fmt.Errorf("no decomposition tables added")
	}
	var missing []residue.Pair
	means := make(map[residue.Pair]float64, len(a.samples))
	samples := make(map[residue.Pair][]float64, len(a.samples))
	for i, x := range a.canonical {
		for _, y := range a.canonical[i+1:] {
			p := residue.NewPair(x, y)
			got := a.samples[p]
			if len(got) != n {
				missing = append(missing, p)
				continue
			}
			means[p] = mean(got)
			samples[p] = append([]float64(nil), got...)
		}
	}
	if len(missing) > 0 {
		return nil, &IncompleteError{Files: n, Missing: missing}
	}

	residues := append([]residue.ID(nil), a.canonical...)
	if a.opts.OmitZero {
		residues = withoutEmpty(residues, means, a.opts.Threshold)
	}
	return newMatrix(residues, append([]string(nil), a.files...), a.opts.Threshold, means, samples), nil
}

// withoutEmpty drops residues whose every pairwise mean is below threshold.
func withoutEmpty(residues []residue.ID, means map[residue.Pair]float64, threshold float64) []residue.ID {
	out := residues[:0:0]
	for _, x := range residues {
		for _, y := range residues {
			if x == y {
				continue
			}
			if math.Abs(means[residue.NewPair(x, y)]) >= threshold {
				out = append(out, x)
				break
			}
		}
	}
	return out
}

// Aggregate opens each path in order and aggregates them.
func Aggregate(paths []string, opts Options, warn *warnings.Log) (*Matrix, error) {
	agg := NewAggregator(opts, warn)
	for _, path := range paths {
		if err := addFile(agg, path); err != nil {
			return nil, err
		}
	}
	return agg.Matrix()
}

func addFile(agg *Aggregator, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open decomposition table: %w", err)
	}
	defer f.Close()
	return agg.Add(path, f)
}

// ReadTableFile loads an averaged decomposition table from path.
func ReadTableFile(path string, warn *warnings.Log) (*Matrix, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open decomp table: %w", err)
	}
	defer f.Close()
	return ReadTable(path, f, warn)
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
