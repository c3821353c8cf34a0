package decomp

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"interdiag/internal/residue"
	"interdiag/internal/warnings"
)

// LabelColumn heads the residue label column of a pairwise table.
const LabelColumn = "Res"

// WriteTable writes m as a square Res,<ids...> table. Significant values are
// rounded to two decimals; self pairs and below-threshold values are blank.
func WriteTable(w io.Writer, m *Matrix) error {
	cw := csv.NewWriter(w)
	ids := m.Residues()
	header := make([]string, 0, len(ids)+1)
	header = append(header, LabelColumn)
	for _, id := range ids {
		header = append(header, string(id))
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range ids {
		rec := make([]string, 0, len(ids)+1)
		rec = append(rec, string(row))
		for _, col := range ids {
			v, ok := m.Energy(residue.NewPair(row, col))
			if !ok {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, FormatEnergy(v))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatEnergy rounds v to two decimals.
func FormatEnergy(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}

// ReadTable parses a table produced by WriteTable. Blank cells are absent
// pairs; the resulting matrix has a zero threshold so every listed value is
// significant. Unparseable cells are warned and skipped.
func ReadTable(name string, r io.Reader, warn *warnings.Log) (*Matrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(records) == 0 || len(records[0]) == 0 || strings.TrimSpace(records[0][0]) != LabelColumn {
		return nil, fmt.Errorf("%s: expected header starting with %q", name, LabelColumn)
	}
	header := records[0]
	ids := make([]residue.ID, 0, len(header)-1)
	for _, h := range header[1:] {
		ids = append(ids, residue.ID(h))
	}

	directional := make(map[residue.Pair][]float64)
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		from := residue.ID(rec[0])
		for i, raw := range rec[1:] {
			if i >= len(ids) || strings.TrimSpace(raw) == "" {
				continue
			}
			to := ids[i]
			if to == from {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				warn.Addf(stage, "%s: ignoring value %q for %s,%s", name, raw, from, to)
				continue
			}
			p := residue.NewPair(from, to)
			directional[p] = append(directional[p], v)
		}
	}
	means := make(map[residue.Pair]float64, len(directional))
	for p, vals := range directional {
		means[p] = mean(vals)
	}
	return newMatrix(ids, []string{name}, 0, means, nil), nil
}
