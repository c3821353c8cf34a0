// Package decomp averages per-replicate residue-pair interaction energies
// into a single thresholded matrix and reads/writes the pairwise table
// format consumed by the diagram stage.
package decomp

import (
	"math"
	"sort"

	"interdiag/internal/residue"
)

// Matrix is an immutable averaged energy matrix over an ordered residue
// universe. Pairs absent from the matrix have no mean.
type Matrix struct {
	residues  []residue.ID
	members   map[residue.ID]struct{}
	sources   []string
	threshold float64
	means     map[residue.Pair]float64
	samples   map[residue.Pair][]float64
}

func newMatrix(residues []residue.ID, sources []string, threshold float64, means map[residue.Pair]float64, samples map[residue.Pair][]float64) *Matrix {
	members := make(map[residue.ID]struct{}, len(residues))
	for _, id := range residues {
		members[id] = struct{}{}
	}
	return &Matrix{
		residues:  residues,
		members:   members,
		sources:   sources,
		threshold: threshold,
		means:     means,
		samples:   samples,
	}
}

// Residues returns the residue universe in table order.
func (m *Matrix) Residues() []residue.ID {
	return append([]residue.ID(nil), m.residues...)
}

// Sources names the inputs the matrix was built from.
func (m *Matrix) Sources() []string {
	return append([]string(nil), m.sources...)
}

// Threshold is the significance threshold applied by Energy.
func (m *Matrix) Threshold() float64 { return m.threshold }

// Contains reports whether id is part of the residue universe.
func (m *Matrix) Contains(id residue.ID) bool {
	_, ok := m.members[id]
	return ok
}

// Mean returns the averaged value for p regardless of threshold.
func (m *Matrix) Mean(p residue.Pair) (float64, bool) {
	if p.Self() || !m.Contains(p.A) || !m.Contains(p.B) {
		return 0, false
	}
	v, ok := m.means[p]
	return v, ok
}

// Energy returns the mean for p only when its magnitude reaches the
// threshold. Below-threshold values are reported absent, as are exact zeros
// that fall below a positive threshold.
func (m *Matrix) Energy(p residue.Pair) (float64, bool) {
	v, ok := m.Mean(p)
	if !ok || math.Abs(v) < m.threshold {
		return 0, false
	}
	return v, true
}

// Samples returns the per-source samples backing p, one per input.
func (m *Matrix) Samples(p residue.Pair) []float64 {
	if m.samples == nil {
		return nil
	}
	return append([]float64(nil), m.samples[p]...)
}

// Relabel returns a copy of m with residues renamed through subs. Residues
// not named in subs keep their id.
func (m *Matrix) Relabel(subs map[residue.ID]residue.ID) *Matrix {
	if len(subs) == 0 {
		return m
	}
	rename := func(id residue.ID) residue.ID {
		if to, ok := subs[id]; ok {
			return to
		}
		return id
	}
	residues := make([]residue.ID, len(m.residues))
	for i, id := range m.residues {
		residues[i] = rename(id)
	}
	means := make(map[residue.Pair]float64, len(m.means))
	var samples map[residue.Pair][]float64
	if m.samples != nil {
		samples = make(map[residue.Pair][]float64, len(m.samples))
	}
	for p, v := range m.means {
		np := residue.NewPair(rename(p.A), rename(p.B))
		means[np] = v
		if samples != nil {
			samples[np] = m.samples[p]
		}
	}
	return newMatrix(residues, m.Sources(), m.threshold, means, samples)
}

// Pairs returns every significant pair in canonical order.
func (m *Matrix) Pairs() []residue.Pair {
	out := make([]residue.Pair, 0, len(m.means))
	for p := range m.means {
		if _, ok := m.Energy(p); ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}
