package knowledge

import (
	"sort"
	"strings"
)

// Index maps lower-cased terms (question words and keywords) to the positions
// of the entries containing them. It is a pure function of the Base it was
// built from; a reloaded Base gets a fresh Index, never an incremental patch.
//
// The index is an acceleration structure only; Search scores every entry
// regardless, so skipping it changes nothing observable. Its vocabulary also
// feeds the phonetic corrector in this package.
type Index struct {
	terms map[string][]int
}

// BuildIndex constructs the lexical index for base.
func BuildIndex(base *Base) *Index {
	ix := &Index{terms: make(map[string][]int)}
	if base == nil {
		return ix
	}
	for pos, entry := range base.Entries {
		for _, word := range strings.Fields(strings.ToLower(entry.Question)) {
			ix.add(word, pos)
		}
		for _, kw := range entry.Keywords {
			ix.add(strings.ToLower(kw), pos)
		}
	}
	return ix
}

func (ix *Index) add(term string, pos int) {
	positions := ix.terms[term]
	// Entries are indexed in order, so a duplicate can only be the last element.
	if n := len(positions); n > 0 && positions[n-1] == pos {
		return
	}
	ix.terms[term] = append(positions, pos)
}

// Lookup returns the positions of entries containing term (lower-cased by
// the caller at build time; Lookup lower-cases its argument for symmetry).
// The returned slice must not be modified.
func (ix *Index) Lookup(term string) []int {
	return ix.terms[strings.ToLower(term)]
}

// Terms returns the sorted index vocabulary.
func (ix *Index) Terms() []string {
	out := make([]string, 0, len(ix.terms))
	for t := range ix.terms {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Size returns the number of distinct terms in the index.
func (ix *Index) Size() int {
	return len(ix.terms)
}
