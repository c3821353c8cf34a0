package residue

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrUnmapped is returned when a residue number has no entry in the mapping
// table.
var ErrUnmapped = errors.New("residue not in mapping")

// Target is the display identity a raw residue number resolves to.
type Target struct {
	Display string
	Chain   string
}

// Mapping resolves raw residue numbers (as they appear in simulation output)
// to display identifiers and chains.
type Mapping struct {
	targets map[string]Target
	chains  []string
}

var digitsRE = regexp.MustCompile(`\d+`)

// NewMapping builds a mapping from already parsed rows. Rows are applied in
// order; a repeated raw number is rejected.
func NewMapping(rows [][3]string) (*Mapping, error) {
	m := &Mapping{targets: make(map[string]Target, len(rows))}
	seenChain := make(map[string]struct{})
	for _, row := range rows {
		from := strings.TrimSpace(row[0])
		if from == "" {
			return nil, fmt.Errorf("mapping row with empty 'from'")
		}
		if _, dup := m.targets[from]; dup {
			return nil, fmt.Errorf("residue %s mapped more than once", from)
		}
		t := Target{Display: strings.TrimSpace(row[1]), Chain: strings.TrimSpace(row[2])}
		m.targets[from] = t
		if _, ok := seenChain[t.Chain]; !ok {
			seenChain[t.Chain] = struct{}{}
			m.chains = append(m.chains, t.Chain)
		}
	}
	return m, nil
}

// ReadMapping parses a CSV with header from,to,chain.
func ReadMapping(r io.Reader) (*Mapping, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read mapping: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("mapping file is empty")
	}
	idx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		idx[strings.TrimSpace(name)] = i
	}
	cols := [3]int{}
	for i, name := range []string{"from", "to", "chain"} {
		pos, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("mapping header missing %q column", name)
		}
		cols[i] = pos
	}
	rows := make([][3]string, 0, len(records)-1)
	for line, rec := range records[1:] {
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		var row [3]string
		for i, pos := range cols {
			if pos >= len(rec) {
				return nil, fmt.Errorf("mapping line %d: too few fields", line+2)
			}
			row[i] = rec[pos]
		}
		rows = append(rows, row)
	}
	return NewMapping(rows)
}

// Resolve looks up the first run of digits in id.
func (m *Mapping) Resolve(id ID) (Target, error) {
	num := digitsRE.FindString(string(id))
	if num == "" {
		return Target{}, fmt.Errorf("%w: %q has no residue number", ErrUnmapped, id)
	}
	t, ok := m.targets[num]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q (number %s)", ErrUnmapped, id, num)
	}
	return t, nil
}

// Chains returns the distinct chains in the order they were first declared.
func (m *Mapping) Chains() []string {
	return append([]string(nil), m.chains...)
}

// Len returns the number of mapped residue numbers.
func (m *Mapping) Len() int { return len(m.targets) }
