package similarity

import (
	"sort"
	"strings"
)

// MinTokenLen drops noise tokens shorter than this after lowercasing.
const MinTokenLen = 3

// stopwords are excluded from keyword sets regardless of length.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"from": {}, "are": {}, "was": {}, "were": {}, "have": {}, "has": {},
	"had": {}, "can": {}, "could": {}, "would": {}, "should": {}, "will": {},
	"not": {}, "but": {}, "its": {}, "it's": {}, "into": {}, "out": {},
	"about": {}, "how": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"who": {}, "why": {}, "you": {}, "your": {}, "all": {}, "any": {},
	"use": {}, "using": {}, "get": {}, "make": {}, "made": {}, "then": {},
	"them": {}, "they": {}, "than": {}, "some": {}, "over": {}, "only": {},
	"also": {}, "more": {}, "most": {}, "each": {}, "other": {}, "been": {},
	"does": {}, "did": {}, "just": {}, "like": {}, "need": {}, "want": {},
	"please": {},
}

// ExtractKeywords lowercases text, splits on whitespace, and returns the set
// of tokens at least MinTokenLen long that are not stopwords.
func ExtractKeywords(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		if len(tok) < MinTokenLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		set[tok] = struct{}{}
	}
	return set
}

// KeywordString renders a keyword set as the space-joined form stored on
// Solution rows.
func KeywordString(set map[string]struct{}) string {
	toks := make([]string, 0, len(set))
	for t := range set {
		toks = append(toks, t)
	}
	// Stable order helps debugging and tests.
	sort.Strings(toks)
	return strings.Join(toks, " ")
}

// SplitKeywords parses a stored keyword string back into a set.
func SplitKeywords(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(s) {
		set[tok] = struct{}{}
	}
	return set
}

// Jaccard returns intersection size over union size for two sets.
// An empty union scores 0.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}
