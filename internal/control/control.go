// Package control builds and reads the display control file that assigns
// residues to diagram columns.
package control

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"interdiag/internal/residue"
)

// Header is the column layout of a control file.
var Header = []string{"Col", "Id", "Legend", "Chain", "Fill"}

// FillHydro selects the built-in hydrophobicity colour scale.
const FillHydro = "Hydro"

// AlwaysShowMarker in a legend keeps the residue on the diagram even when it
// has no surviving interaction.
const AlwaysShowMarker = "+"

// Entry is one control file row.
type Entry struct {
	Column int
	ID     residue.ID
	Legend string
	Chain  string
	Fill   string
}

// IsGap reports whether the entry is a spacing placeholder.
func (e Entry) IsGap() bool { return e.ID.IsGap() }

// AlwaysShow reports whether the legend carries the always-show marker.
func (e Entry) AlwaysShow() bool { return strings.Contains(e.Legend, AlwaysShowMarker) }

// DisplayLegend is the legend without the always-show marker.
func (e Entry) DisplayLegend() string { return strings.ReplaceAll(e.Legend, AlwaysShowMarker, "") }

// Build derives one entry per residue referenced by the hydrogen-bond map or
// the decomposition table. Each id is resolved through mapping; columnOrder
// lists chains left to right (spaces ignored). An empty columnOrder uses the
// order in which chains are declared in the mapping.
func Build(hbondIDs, decompIDs []residue.ID, mapping *residue.Mapping, columnOrder string) ([]Entry, error) {
	order := mapping.Chains()
	if columnOrder != "" {
		order = strings.Split(strings.ReplaceAll(columnOrder, " ", ""), "")
	}
	column := make(map[string]int, len(order))
	for i, chain := range order {
		if _, dup := column[chain]; !dup {
			column[chain] = i + 1
		}
	}

	seen := make(map[residue.ID]struct{})
	var entries []Entry
	for _, ids := range [][]residue.ID{hbondIDs, decompIDs} {
		for _, id := range ids {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			target, err := mapping.Resolve(id)
			if err != nil {
				return nil, err
			}
			col, ok := column[target.Chain]
			if !ok {
				return nil, fmt.Errorf("chain %q of %s is not in column order %q", target.Chain, id, strings.Join(order, ""))
			}
			entries = append(entries, Entry{
				Column: col,
				ID:     id,
				Legend: target.Display,
				Chain:  target.Chain,
				Fill:   FillHydro,
			})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Column != entries[j].Column {
			return entries[i].Column < entries[j].Column
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Write emits entries under the control file header.
func Write(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, e := range entries {
		if err := cw.Write([]string{strconv.Itoa(e.Column), string(e.ID), e.Legend, e.Chain, e.Fill}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
