package control

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

const stage = "control"

// DuplicateError reports a residue declared more than once in a control
// file.
type DuplicateError struct {
	ID           residue.ID
	FirstColumn  int
	SecondColumn int
}

func (e *DuplicateError) Error() string {
	if e.FirstColumn == e.SecondColumn {
		return fmt.Sprintf("residue %s is listed twice in column %d", e.ID, e.FirstColumn)
	}
	return fmt.Sprintf("residue %s is listed in columns %d and %d", e.ID, e.FirstColumn, e.SecondColumn)
}

// Column is one diagram column and its entries in declaration order.
type Column struct {
	Index   int
	Entries []Entry
}

// Sheet is a parsed control file.
type Sheet struct {
	columns []Column
	byID    map[residue.ID]Entry
}

// Columns returns the columns in first-seen order.
func (s *Sheet) Columns() []Column {
	out := make([]Column, len(s.columns))
	for i, c := range s.columns {
		out[i] = Column{Index: c.Index, Entries: append([]Entry(nil), c.Entries...)}
	}
	return out
}

// Lookup returns the entry declared for id.
func (s *Sheet) Lookup(id residue.ID) (Entry, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// IDs lists every non-gap residue in column then declaration order.
func (s *Sheet) IDs() []residue.ID {
	var out []residue.ID
	for _, c := range s.columns {
		for _, e := range c.Entries {
			if !e.IsGap() {
				out = append(out, e.ID)
			}
		}
	}
	return out
}

// NewSheet arranges entries into columns. Gap entries named exactly "Gap"
// are numbered Gap_1, Gap_2, … in order of appearance, skipping numbers
// already used by explicit Gap_N entries.
func NewSheet(entries []Entry, warn *warnings.Log) (*Sheet, error) {
	s := &Sheet{byID: make(map[residue.ID]Entry, len(entries))}
	taken := make(map[residue.ID]struct{})
	for _, e := range entries {
		if e.IsGap() && string(e.ID) != residue.GapPrefix {
			taken[e.ID] = struct{}{}
		}
	}
	pos := make(map[int]int)
	gaps := 0
	for _, e := range entries {
		if string(e.ID) == residue.GapPrefix {
			for {
				gaps++
				e.ID = residue.ID(fmt.Sprintf("%s_%d", residue.GapPrefix, gaps))
				if _, used := taken[e.ID]; !used {
					break
				}
			}
		}
		if first, dup := s.byID[e.ID]; dup {
			return nil, &DuplicateError{ID: e.ID, FirstColumn: first.Column, SecondColumn: e.Column}
		}
		if !e.IsGap() {
			if startsWithDigit(e.Legend) {
				if code, ok := residue.OneLetterCode(e.ID.Name()); ok {
					e.Legend = code + e.Legend
				}
			}
			if msg := residue.CheckLegend(e.ID, e.Legend); msg != "" {
				warn.Addf(stage, "%s", msg)
			}
		}
		i, ok := pos[e.Column]
		if !ok {
			i = len(s.columns)
			pos[e.Column] = i
			s.columns = append(s.columns, Column{Index: e.Column})
		}
		s.columns[i].Entries = append(s.columns[i].Entries, e)
		s.byID[e.ID] = e
	}
	return s, nil
}

func startsWithDigit(s string) bool {
	for _, r := range s {
		return unicode.IsDigit(r)
	}
	return false
}

// Read parses a control file. Columns are addressed by header name.
func Read(name string, r io.Reader, warn *warnings.Log) (*Sheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: control file is empty", name)
	}
	idx := make(map[string]int, len(records[0]))
	for i, h := range records[0] {
		idx[strings.TrimSpace(h)] = i
	}
	for _, h := range Header {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("%s: header missing %q column", name, h)
		}
	}
	field := func(rec []string, h string) string {
		if i := idx[h]; i < len(rec) {
			return rec[i]
		}
		return ""
	}
	entries := make([]Entry, 0, len(records)-1)
	for n, rec := range records[1:] {
		col, err := strconv.Atoi(strings.TrimSpace(field(rec, "Col")))
		if err != nil {
			return nil, fmt.Errorf("%s line %d: column: %w", name, n+2, err)
		}
		entries = append(entries, Entry{
			Column: col,
			ID:     residue.ID(field(rec, "Id")),
			Legend: field(rec, "Legend"),
			Chain:  field(rec, "Chain"),
			Fill:   strings.TrimSpace(field(rec, "Fill")),
		})
	}
	return NewSheet(entries, warn)
}
