package knowledge

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// CorrectorOption configures a [Corrector].
type CorrectorOption func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetically
// matched vocabulary term needs to replace a token. Default: 0.70.
func WithPhoneticThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for the pure string
// similarity fallback used when no phonetic candidate exists. Default: 0.85.
func WithFuzzyThreshold(threshold float64) CorrectorOption {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// Corrector repairs transcription errors in caller utterances before search.
// Telephony STT regularly garbles domain vocabulary ("bill" → "bhil",
// "outage" → "out age"); Corrector snaps such tokens back onto the knowledge
// base vocabulary using Double Metaphone candidate filtering ranked by
// Jaro-Winkler similarity.
//
// Correction happens upstream of the scorer: it rewrites the query string
// handed to [Engine.Search] and never changes how a given query is scored.
// The Corrector is read-only after construction and safe for concurrent use.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewCorrector returns a Corrector with the supplied options applied.
func NewCorrector(opts ...CorrectorOption) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CorrectUtterance rewrites each token of utterance that is absent from the
// index vocabulary with its best phonetic match, leaving known tokens and
// unmatched tokens untouched. The rewritten utterance is returned lower-cased.
func (c *Corrector) CorrectUtterance(utterance string, index *Index) string {
	tokens := strings.Fields(strings.ToLower(utterance))
	if len(tokens) == 0 || index == nil || index.Size() == 0 {
		return strings.ToLower(strings.TrimSpace(utterance))
	}

	vocab := index.Terms()
	for i, tok := range tokens {
		if len(index.Lookup(tok)) > 0 {
			continue // already a known term
		}
		if corrected, _, ok := c.CorrectToken(tok, vocab); ok {
			tokens[i] = corrected
		}
	}
	return strings.Join(tokens, " ")
}

// CorrectToken finds the vocabulary term most similar to token.
//
// Candidates sharing a Double Metaphone code with token are ranked by
// Jaro-Winkler similarity and accepted above the phonetic threshold. When no
// candidate sounds alike, a second pass accepts a pure string-similarity
// match above the (higher) fuzzy threshold. When nothing qualifies, token is
// returned unchanged with ok=false.
func (c *Corrector) CorrectToken(token string, vocab []string) (corrected string, confidence float64, ok bool) {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" || len(vocab) == 0 {
		return token, 0, false
	}

	primary, secondary := matchr.DoubleMetaphone(token)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)

	for _, term := range vocab {
		if term == "" {
			continue
		}

		tp, ts := matchr.DoubleMetaphone(term)
		phonetic := codeMatches(primary, secondary, tp, ts)
		jw := matchr.JaroWinkler(token, term, false)

		if phonetic {
			if jw >= c.phoneticThreshold && (!bestPhonetic || jw > bestScore) {
				best, bestScore, bestPhonetic = term, jw, true
			}
		} else if !bestPhonetic && jw >= c.fuzzyThreshold && jw > bestScore {
			best, bestScore = term, jw
		}
	}

	if best == "" {
		return token, 0, false
	}
	return best, bestScore, true
}

// codeMatches reports whether any non-empty metaphone code is shared between
// the two (primary, secondary) pairs.
func codeMatches(p1, s1, p2, s2 string) bool {
	for _, a := range [2]string{p1, s1} {
		if a == "" {
			continue
		}
		if a == p2 || (s2 != "" && a == s2) {
			return true
		}
	}
	return false
}
