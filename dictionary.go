package citydb

import (
	"slices"
	"strings"
)

// DictionaryBuilder collects the distinct strings of one table (regions or
// countries). It has no lookup methods: indices only exist once Finalize
// has frozen the full set, so nothing can be indexed against a partial
// table.
type DictionaryBuilder struct {
	seen   map[string]struct{}
	frozen bool
}

// NewDictionaryBuilder creates a builder with the given capacity hint.
func NewDictionaryBuilder(capacity int) *DictionaryBuilder {
	return &DictionaryBuilder{seen: make(map[string]struct{}, capacity)}
}

// Add inserts a candidate string. Duplicates collapse.
// Panics if called after Finalize.
func (b *DictionaryBuilder) Add(s string) {
	if b.frozen {
		panic("citydb: Add called on a finalized dictionary builder")
	}
	b.seen[s] = struct{}{}
}

// Finalize sorts the collected strings in ascending byte order and returns
// the immutable table. Each string's position in that order is its index.
// Panics if called twice.
func (b *DictionaryBuilder) Finalize() *Dictionary {
	if b.frozen {
		panic("citydb: Finalize called twice on a dictionary builder")
	}
	b.frozen = true

	lookup := make([]string, 0, len(b.seen))
	for s := range b.seen {
		lookup = append(lookup, s)
	}
	slices.Sort(lookup)

	index := make(map[string]int, len(lookup))
	for i, s := range lookup {
		index[s] = i
	}
	b.seen = nil
	return &Dictionary{lookup: lookup, index: index}
}

// Dictionary is a frozen, sorted string table. Safe for concurrent reads.
type Dictionary struct {
	lookup []string       // index -> string
	index  map[string]int // string -> index
}

// Index returns the position of s in the table.
func (d *Dictionary) Index(s string) (int, bool) {
	i, ok := d.index[s]
	return i, ok
}

// At returns the string at position i, or "" if out of range.
func (d *Dictionary) At(i int) string {
	if i < 0 || i >= len(d.lookup) {
		return ""
	}
	return d.lookup[i]
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.lookup)
}

// Strings returns a copy of the table in index order.
func (d *Dictionary) Strings() []string {
	return slices.Clone(d.lookup)
}

// CleanRegion strips leading and trailing slashes, an encoding artifact
// found on some admin names in the source data.
func CleanRegion(s string) string {
	return strings.Trim(s, "/")
}

// cleanRegions returns the cleaned text of every region entry, position
// for position, so existing indices stay valid.
func cleanRegions(d *Dictionary) []string {
	out := make([]string, d.Len())
	for i, s := range d.lookup {
		out[i] = CleanRegion(s)
	}
	return out
}

// regionCollisions maps each cleaned text that occurs more than once to
// the positions holding it.
func regionCollisions(regions []string) map[string][]int {
	pos := make(map[string][]int)
	for i, s := range regions {
		pos[s] = append(pos[s], i)
	}
	for s, idx := range pos {
		if len(idx) < 2 {
			delete(pos, s)
		}
	}
	return pos
}

// dedupeRegions collapses repeated cleaned entries onto their first
// occurrence and rewrites every city's region index to match. Relative
// order of the surviving entries is unchanged.
func dedupeRegions(regions []string, cities Cities) []string {
	remap := make([]int, len(regions))
	first := make(map[string]int, len(regions))
	out := make([]string, 0, len(regions))
	for i, s := range regions {
		if j, ok := first[s]; ok {
			remap[i] = j
			continue
		}
		first[s] = len(out)
		remap[i] = len(out)
		out = append(out, s)
	}
	for i := range cities {
		cities[i].Region = remap[cities[i].Region]
	}
	return out
}
