package diagram

import (
	"encoding/csv"
	"io"
	"strconv"

	"interdiag/internal/decomp"
)

// SummaryHeader is the header of the per-residue summary file.
var SummaryHeader = []string{"Column", "Chain", "Residue", "Total"}

// WriteSummary writes one row per placed residue with its cross-column
// energy total.
func WriteSummary(w io.Writer, d *Diagram) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return err
	}
	for _, row := range d.Summary {
		rec := []string{strconv.Itoa(row.Column), row.Chain, row.Residue, decomp.FormatEnergy(row.Total)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
