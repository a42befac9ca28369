package builders

import (
	"regexp"
	"sort"
	"strings"
)

// Minimum term lengths for dictionary matching. Short terms produce too
// many false positives against free text.
const (
	minDrugNameLength     = 3
	minReactionTermLength = 4
)

type dictEntry struct {
	term    string
	pattern *regexp.Regexp
}

// DictionaryMatcher finds known terms in free text using word-boundary
// matching, longest term first so multi-word names win over their prefixes.
type DictionaryMatcher struct {
	entries []dictEntry
}

// NewDictionaryMatcher builds a matcher from a case-folded term set,
// discarding terms shorter than minLen
func NewDictionaryMatcher(terms map[string]struct{}, minLen int) *DictionaryMatcher {
	sorted := make([]string, 0, len(terms))
	for term := range terms {
		if len(term) >= minLen {
			sorted = append(sorted, term)
		}
	}
	// Longest first; lexical tiebreak keeps match order deterministic
	sort.Slice(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i] < sorted[j]
	})

	entries := make([]dictEntry, 0, len(sorted))
	for _, term := range sorted {
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(term) + `\b`)
		if err != nil {
			continue
		}
		entries = append(entries, dictEntry{term: term, pattern: re})
	}
	return &DictionaryMatcher{entries: entries}
}

// Match returns every dictionary term found in text, longest first
func (m *DictionaryMatcher) Match(text string) []string {
	if text == "" || len(m.entries) == 0 {
		return nil
	}
	folded := strings.ToLower(text)

	var found []string
	for _, e := range m.entries {
		if e.pattern.MatchString(folded) {
			found = append(found, e.term)
		}
	}
	return found
}

// MatchSet returns the matched terms as a set
func (m *DictionaryMatcher) MatchSet(text string) map[string]struct{} {
	matched := make(map[string]struct{})
	for _, term := range m.Match(text) {
		matched[term] = struct{}{}
	}
	return matched
}
