// Package residue canonicalizes residue identifiers shared by the
// decomposition tables, hydrogen-bond files and control layouts.
package residue

import (
	"fmt"
	"strconv"
	"strings"
)

// GapPrefix marks layout placeholders in a control file.
const GapPrefix = "Gap"

// ID is a display identifier such as "LEU 153": a residue code followed by
// its position. IDs are compared as opaque strings.
type ID string

// Format builds the canonical textual form used by the consolidated hydrogen
// bond files, e.g. Format("LEU", 3) == "LEU   3".
func Format(name string, number int) ID {
	return ID(fmt.Sprintf("%s %3d", name, number))
}

// Name returns the residue code part of the identifier.
func (id ID) Name() string {
	fields := strings.Fields(string(id))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Number returns the positional number of the identifier, if it has one.
func (id ID) Number() (int, bool) {
	fields := strings.Fields(string(id))
	if len(fields) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsGap reports whether the identifier is a layout placeholder.
func (id ID) IsGap() bool {
	return strings.HasPrefix(string(id), GapPrefix)
}

func (id ID) String() string { return string(id) }

// Pair is an unordered pair of residues. A and B are always stored in
// lexicographic order so that (x, y) and (y, x) produce the same key.
type Pair struct {
	A, B ID
}

// NewPair canonicalizes a and b into a Pair.
func NewPair(a, b ID) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{A: a, B: b}
}

// Contains reports whether id is one of the pair's members.
func (p Pair) Contains(id ID) bool {
	return p.A == id || p.B == id
}

// Other returns the member of the pair that is not id.
func (p Pair) Other(id ID) ID {
	if p.A == id {
		return p.B
	}
	return p.A
}

// Self reports whether both members name the same residue.
func (p Pair) Self() bool { return p.A == p.B }

func (p Pair) String() string {
	return string(p.A) + "," + string(p.B)
}

// Less orders pairs by their first then second member.
func (p Pair) Less(o Pair) bool {
	if p.A != o.A {
		return p.A < o.A
	}
	return p.B < o.B
}
