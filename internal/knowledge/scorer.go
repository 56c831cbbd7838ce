package knowledge

import "strings"

// Scoring weights. These are empirically tuned constants carried over from
// the production dataset; changing any of them changes ranking for every
// deployment that shares a knowledge file, so treat them as part of the
// wire contract rather than something to re-derive.
const (
	weightExactQuestion    = 100.0 // query == question
	weightQuestionContains = 50.0  // question contains query
	weightQueryContains    = 40.0  // query contains question
	weightKeywordExact     = 30.0  // keyword == query
	weightKeywordPartial   = 15.0  // keyword appears inside query
	weightWordOverlap      = 20.0  // scaled by Jaccard similarity
	weightCategoryBoost    = 10.0  // category mentioned in query
	weightAnswerWord       = 2.0   // per shared answer token

	// MaxScore is the upper bound every score is clamped to.
	MaxScore = 100.0
)

// Score computes the relevance of entry to query as a value in [0, MaxScore].
// It is a pure function: all comparisons are case-insensitive, signals are
// additive in a fixed order, and the sum is clamped.
//
// An empty (or whitespace-only) query scores zero against every entry; a
// bare substring test would otherwise match everything.
func Score(query string, entry Entry) float64 {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	if queryLower == "" {
		return 0
	}
	questionLower := strings.ToLower(entry.Question)

	var score float64

	// Question match signals are mutually exclusive: an exact match must
	// dominate, and the containment directions never stack.
	switch {
	case queryLower == questionLower:
		score += weightExactQuestion
	case strings.Contains(questionLower, queryLower):
		score += weightQuestionContains
	case strings.Contains(queryLower, questionLower):
		score += weightQueryContains
	}

	// Every keyword may contribute independently.
	for _, kw := range entry.Keywords {
		kwLower := strings.ToLower(kw)
		if kwLower == queryLower {
			score += weightKeywordExact
		} else if strings.Contains(queryLower, kwLower) {
			score += weightKeywordPartial
		}
	}

	// Word overlap between query and question, scaled by Jaccard similarity.
	queryWords := tokenSet(queryLower)
	questionWords := tokenSet(questionLower)
	if shared := intersectionSize(queryWords, questionWords); shared > 0 {
		union := len(queryWords) + len(questionWords) - shared
		score += weightWordOverlap * float64(shared) / float64(union)
	}

	// Category boost when the query mentions the entry's category.
	if entry.Category != "" && strings.Contains(queryLower, strings.ToLower(entry.Category)) {
		score += weightCategoryBoost
	}

	// Answer-term overlap acts as a tie-breaker among similar entries.
	answerWords := tokenSet(strings.ToLower(entry.Answer))
	score += weightAnswerWord * float64(intersectionSize(queryWords, answerWords))

	return min(score, MaxScore)
}

// tokenSet splits s on whitespace into a set of tokens. s must already be
// lower-cased by the caller.
func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(s)
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// intersectionSize counts tokens present in both sets.
func intersectionSize(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for t := range a {
		if _, ok := b[t]; ok {
			n++
		}
	}
	return n
}
