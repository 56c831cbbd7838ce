// Package knowledge implements the Q&A knowledge base used to ground live
// call answers: a JSON-loaded entry store, a derived lexical index, and a
// weighted relevance search whose results are merged into the LLM prompt.
//
// A loaded [Base] is immutable. The [Engine] built on top of it is read-only
// after construction and safe for any number of concurrent callers; Reload
// builds a fresh Base/index pair off to the side and swaps it in atomically.
package knowledge

// Entry is a single question/answer record. Category, Language, and Keywords
// are optional search hints; Metadata is opaque passthrough for the caller.
type Entry struct {
	// Question is the canonical phrasing this entry answers.
	Question string `json:"question"`

	// Answer is the response text spoken back to the caller.
	Answer string `json:"answer"`

	// Category groups related entries (e.g. "billing", "outage").
	Category string `json:"category,omitempty"`

	// Language restricts the entry to one language code (e.g. "te-IN").
	// Empty means the entry applies to every language.
	Language string `json:"language,omitempty"`

	// Keywords are additional match terms beyond the question words.
	Keywords []string `json:"keywords,omitempty"`

	// Metadata carries source-defined values untouched by the engine.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Base is an immutable collection of entries plus source-level metadata
// (e.g. a dataset version). Entries keep their source order; search results
// with equal scores preserve that order.
type Base struct {
	Entries  []Entry        `json:"entries"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Len returns the number of entries in the base.
func (b *Base) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Entries)
}
