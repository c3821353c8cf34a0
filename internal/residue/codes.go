package residue

import (
	"fmt"
	"strings"
	"unicode"
)

var oneLetterCodes = map[string]string{
	"ALA": "A",
	"ARG": "R",
	"ASN": "N",
	"ASP": "D",
	"CYS": "C",
	"CYX": "C",
	"GLU": "E",
	"GLN": "Q",
	"GLY": "G",
	"HIS": "H",
	"HIE": "H",
	"HID": "H",
	"HIP": "H",
	"ILE": "I",
	"LEU": "L",
	"LYS": "K",
	"MET": "M",
	"PHE": "F",
	"PRO": "P",
	"SER": "S",
	"THR": "T",
	"TRP": "W",
	"TYR": "Y",
	"VAL": "V",
}

const singles = "ARNDCEQGHILKMFPSTWYV"

// Unknown is the one-letter code reported for unrecognised residues.
const Unknown = "X"

// OneLetterCode maps a three-letter code (including Amber protonation
// variants) to its one-letter code.
func OneLetterCode(name string) (string, bool) {
	code, ok := oneLetterCodes[strings.ToUpper(name)]
	return code, ok
}

// OneLetter reduces a legend such as "L53", "LEU53" or "P52A" to a single
// residue letter. Digits are discarded, a trailing insertion code is dropped
// and three-letter codes are translated. Anything else yields Unknown.
func OneLetter(legend string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(legend) {
		if unicode.IsLetter(r) {
			b.WriteRune(r)
		}
	}
	letters := b.String()
	if len(letters) == 4 || len(letters) == 2 {
		// inserted residue, eg P52A
		letters = letters[:len(letters)-1]
	}
	if code, ok := oneLetterCodes[letters]; ok {
		letters = code
	}
	if len(letters) != 1 || !strings.Contains(singles, letters) {
		return Unknown
	}
	return letters
}

// CheckLegend compares the residue code carried by a control file id with
// the single-letter code of its legend. It returns a human readable warning,
// or "" when the two agree.
func CheckLegend(id ID, legend string) string {
	if id.IsGap() {
		return ""
	}
	leg := OneLetter(legend)
	if leg == Unknown {
		return fmt.Sprintf("invalid residue code in (%s, %s)", id, legend)
	}
	code, ok := OneLetterCode(id.Name())
	if !ok {
		return fmt.Sprintf("invalid location code in (%s, %s)", id, legend)
	}
	if code != leg {
		return fmt.Sprintf("three-letter and single-letter codes do not agree in (%s, %s)", id, legend)
	}
	return ""
}

var hydrophobicity = []struct {
	hex     string
	members string
}{
	{"#FF0000", "FIWLVM"},
	{"#FF8080", "YCA"},
	{"#00FF00", "THGSQ"},
	{"#00FFFF", "RKNEPD"},
}

// HydrophobicityColor returns the built-in hydrophobicity scale colour for a
// legend, as a #RRGGBB string. Unknown residues are black.
func HydrophobicityColor(legend string) string {
	code := OneLetter(legend)
	for _, band := range hydrophobicity {
		if strings.Contains(band.members, code) {
			return band.hex
		}
	}
	return "#000000"
}
