package equivclass

import (
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Key identifies an equivalence class within one cycle.
// Two jobs are interchangeable for the cycle if and only if their keys are equal.
type Key string

// KeyOf serialises attrs into a Key. Entries are sorted by name and both names and values are
// quoted, so the encoding is injective and independent of the order in which attrs was built.
func KeyOf(attrs Attributes) Key {
	names := maps.Keys(attrs)
	slices.Sort(names)
	var sb strings.Builder
	for i, name := range names {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.Quote(name))
		sb.WriteByte('=')
		sb.WriteString(strconv.Quote(attrs[name]))
	}
	return Key(sb.String())
}
