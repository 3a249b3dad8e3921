// Package field defines the table-provided data model: bit flags,
// field descriptors, and maps. A Map is represented as a Go slice
// rather than a sentinel-terminated array, since the slice header
// already carries its own length.
package field

import (
	"strings"

	"github.com/oisee/regio/pkg/bitops"
)

// Flags is the per-field and per-device bitset. Bit values are fixed
// for wire/config stability, mirroring a hardware flag register rather
// than an arbitrary Go iota sequence.
type Flags uint8

const (
	READONLY  Flags = 1 << 0
	WRITEONLY Flags = 1 << 1
	VOLATILE  Flags = 1 << 2
	NOCOMM    Flags = 1 << 3
	ALIAS     Flags = 1 << 4
	DESCEND   Flags = 1 << 5
	MSRFirst  Flags = 1 << 6
	NORESET   Flags = 1 << 7
)

// Has reports whether all bits in want are set in f.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Descriptor is one named bitfield within a map. Descriptors are
// immutable once a Map is built; reg is the index of the register
// holding the field's least-significant chunk.
type Descriptor struct {
	Name  string
	Reg   int
	Offs  int
	Width int
	Flags Flags
}

// Underscore reports whether d is a padding/reserved field: its name
// begins with "_". Underscore names may repeat within a map and are
// never exposed by the public field API.
func (d Descriptor) Underscore() bool {
	return strings.HasPrefix(d.Name, "_")
}

// Map is an ordered set of field descriptors describing one physical
// register layout.
type Map []Descriptor

// NonUnderscore returns the subset of m whose names do not begin with
// "_", preserving order. Mirrors the catalog-filter helpers (e.g. an
// opcode table's "non-immediate ops" accessor) generalized to field
// descriptors instead of instructions.
func (m Map) NonUnderscore() Map {
	out := make(Map, 0, len(m))
	for _, d := range m {
		if !d.Underscore() {
			out = append(out, d)
		}
	}
	return out
}

// Lookup performs a linear, first-match-wins scan by name. It does not
// skip underscore names; callers that must hide padding fields (the
// public Get/Set API) filter separately.
func Lookup(m Map, name string) (*Descriptor, bool) {
	for i := range m {
		if m[i].Name == name {
			return &m[i], true
		}
	}
	return nil, false
}

// Span returns the number of registers d occupies at the given
// register width: ⌈(offs+width)/regWidth⌉.
func (d Descriptor) Span(regWidth int) int {
	return bitops.CeilDiv(d.Offs+d.Width, regWidth)
}
