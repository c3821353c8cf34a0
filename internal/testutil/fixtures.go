package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Residues are the residue labels used by the fixtures.
var Residues = []string{"GLY   7", "ASP  12", "LEU  53"}

// valueColumn is the TOTAL column of pairwise decomposition output.
const valueColumn = 17

// RawDecomp renders a per-replicate pairwise decomposition file over
// Residues. Pairs missing from energy are written as zero; skip omits one
// directional row.
func RawDecomp(energy map[[2]string]string, skip [2]string) string {
	var b strings.Builder
	b.WriteString("Complex:\nTotal Energy Decomposition:\nResid 1,Resid 2" + strings.Repeat(",col", valueColumn-1) + "\n")
	for _, from := range Residues {
		for _, to := range Residues {
			if [2]string{from, to} == skip {
				continue
			}
			v := "0.0"
			if e, ok := energy[[2]string{from, to}]; ok {
				v = e
			} else if e, ok := energy[[2]string{to, from}]; ok {
				v = e
			}
			b.WriteString(from + "," + to + strings.Repeat(",0.0", valueColumn-2) + "," + v + "\n")
		}
	}
	b.WriteString("\nSidechain Energy Decomposition:\nGLY   7,GLY   7\n")
	return b.String()
}

// Energies is the default interaction set: L53-D12 at -4 and G7-D12 at -2.
func Energies() map[[2]string]string {
	return map[[2]string]string{{"LEU  53", "ASP  12"}: "-4.0", {"GLY   7", "ASP  12"}: "-2.0"}
}

// AveragedTable is the averaged decomposition table of Energies.
const AveragedTable = "Res,GLY   7,ASP  12,LEU  53\n" +
	"GLY   7,,-2,\n" +
	"ASP  12,-2,,-4\n" +
	"LEU  53,,-4,\n"

// HBondFile is a hydrogen bond listing with one LEU 53 to ASP 12 bond over
// 40 frames.
const HBondFile = "#Acceptor DonorH Donor Frames Frac AvgDist AvgAng\n" +
	"LEU_53@O  ASP_12@H  ASP_12@N  40  0.4  2.9  160.1\n"

// ConsolidatedHBonds is HBondFile after consolidation.
const ConsolidatedHBonds = "ASP  12,LEU  53,40\n"

// MappingFile places LEU 53 and GLY 7 on chain A and ASP 12 on chain B.
const MappingFile = "from,to,chain\n53,L53,A\n7,G7,A\n12,D12,B\n"

// ControlFile arranges the fixture residues over two columns.
const ControlFile = "Col,Id,Legend,Chain,Fill\n" +
	"1,LEU  53,L53,A,Hydro\n" +
	"1,GLY   7,G7+,A,Hydro\n" +
	"2,ASP  12,D12,B,#ffcc00\n"

// WriteFiles writes name to body pairs into dir and returns dir.
func WriteFiles(t testing.TB, dir string, files map[string]string) string {
	t.Helper()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}
