package knowledge

import (
	"sort"
	"strings"
	"sync/atomic"
)

// Engine ranks knowledge entries against live caller utterances. All search
// methods are read-only and safe for unlimited concurrent callers; the only
// mutation is Reload, which builds the replacement Base and Index off to the
// side and publishes them with a single atomic swap, so in-flight searches
// see either the fully-old or the fully-new state.
type Engine struct {
	path string // source file for Reload; empty for fixed in-memory bases
	snap atomic.Pointer[snapshot]
}

// snapshot bundles a Base with the Index derived from it so both always
// swap together.
type snapshot struct {
	base  *Base
	index *Index
}

// scored pairs an entry with its computed score during ranking.
type scored struct {
	entry Entry
	score float64
}

// NewEngine creates an Engine over an already-loaded base. Reload is a no-op
// for engines created this way.
func NewEngine(base *Base) *Engine {
	if base == nil {
		base = &Base{}
	}
	e := &Engine{}
	e.snap.Store(&snapshot{base: base, index: BuildIndex(base)})
	return e
}

// NewEngineFromFile creates an Engine whose base is loaded from the JSON
// file at path via [Load]. A missing or malformed file yields a working
// engine over an empty base.
func NewEngineFromFile(path string) *Engine {
	e := NewEngine(Load(path))
	e.path = path
	return e
}

// Reload re-reads the source file and atomically swaps in the fresh base and
// index. Engines constructed from an in-memory base keep their current state.
// Reload must not be called concurrently with itself.
func (e *Engine) Reload() {
	if e.path == "" {
		return
	}
	base := Load(e.path)
	e.snap.Store(&snapshot{base: base, index: BuildIndex(base)})
}

// Base returns the currently published base.
func (e *Engine) Base() *Base {
	return e.snap.Load().base
}

// Index returns the lexical index for the currently published base.
func (e *Engine) Index() *Index {
	return e.snap.Load().index
}

// Search scores every entry against query and returns up to limit entries
// with score >= minScore, ordered by descending score. Equal-scored entries
// keep their base order (stable sort), which makes rankings deterministic.
//
// When language is non-empty, entries pinned to a different language are
// skipped; entries with no language always qualify. Empty queries and
// queries matching nothing return an empty result, never an error.
func (e *Engine) Search(query, language string, limit int, minScore float64) []Entry {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}

	base := e.Base()
	var ranked []scored
	for _, entry := range base.Entries {
		if language != "" && entry.Language != "" && entry.Language != language {
			continue
		}
		if s := Score(query, entry); s >= minScore {
			ranked = append(ranked, scored{entry: entry, score: s})
		}
	}

	return topEntries(ranked, limit)
}

// SearchByCategory returns up to limit entries whose category equals
// category, compared case-insensitively, in base order.
func (e *Engine) SearchByCategory(category string, limit int) []Entry {
	if limit <= 0 {
		return nil
	}
	var out []Entry
	for _, entry := range e.Base().Entries {
		if entry.Category != "" && strings.EqualFold(entry.Category, category) {
			out = append(out, entry)
			if len(out) == limit {
				break
			}
		}
	}
	return out
}

// SearchByKeywords ranks entries by how many of the given keywords they
// carry: 10 points per keyword present in the entry's keyword set and 5 per
// keyword appearing inside the question text. Entries with a positive total
// are returned in descending order (stable), truncated to limit.
func (e *Engine) SearchByKeywords(keywords []string, limit int) []Entry {
	if limit <= 0 || len(keywords) == 0 {
		return nil
	}

	var ranked []scored
	for _, entry := range e.Base().Entries {
		questionLower := strings.ToLower(entry.Question)

		entryKeywords := make(map[string]struct{}, len(entry.Keywords))
		for _, kw := range entry.Keywords {
			entryKeywords[strings.ToLower(kw)] = struct{}{}
		}

		var score float64
		for _, kw := range keywords {
			kwLower := strings.ToLower(kw)
			if _, ok := entryKeywords[kwLower]; ok {
				score += 10
			}
			if strings.Contains(questionLower, kwLower) {
				score += 5
			}
		}
		if score > 0 {
			ranked = append(ranked, scored{entry: entry, score: score})
		}
	}

	return topEntries(ranked, limit)
}

// topEntries stable-sorts ranked by descending score and returns the first
// limit entries.
func topEntries(ranked []scored, limit int) []Entry {
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]Entry, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.entry)
	}
	return out
}
