package query

import (
	"strings"

	"github.com/ianlewis/go-stardict/internal/collate"
)

type suffixRule struct {
	suffix   string
	minLen   int
	addition string
	doubled  bool
	// precededBy restricts the rule to stems ending in one of these
	// (lowercase) substrings; empty means unrestricted.
	precededBy []string
}

// suffixCascade implements the English morphology cascade of spec §4.H,
// tried in table order; the first rule to produce a hit wins.
var suffixCascade = []suffixRule{
	{suffix: "s", minLen: 2},
	{suffix: "ed", minLen: 2},
	{suffix: "ly", minLen: 3, doubled: true},
	{suffix: "ing", minLen: 4, addition: "e", doubled: true},
	{suffix: "es", minLen: 4, precededBy: []string{"s", "x", "o", "ch", "sh"}},
	{suffix: "ed", minLen: 4, doubled: true},
	{suffix: "ied", minLen: 4, addition: "y"},
	{suffix: "ies", minLen: 4, addition: "y"},
	{suffix: "er", minLen: 3},
	{suffix: "est", minLen: 4},
}

func isASCIIString(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

func isVowel(c byte) bool {
	switch c | 0x20 {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

func isConsonant(c byte) bool {
	lc := c | 0x20
	return lc >= 'a' && lc <= 'z' && !isVowel(c)
}

// undouble removes one letter of a doubled-consonant-after-vowel ending
// (e.g. "runn" -> "run"), per spec §4.H.
func undouble(s string) string {
	n := len(s)
	if n < 3 {
		return s
	}
	last, prev, before := s[n-1], s[n-2], s[n-3]
	if last == prev && isConsonant(last) && isVowel(before) {
		return s[:n-1]
	}
	return s
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// similarCandidates generates the ordered list of alternate spellings to
// retry for a failed lookup, per spec §4.H's similar-word lookup: first
// whole-word case variants, then (for pure-ASCII words) the suffix-strip
// cascade, each rule retried with both the original-case and case-folded
// stripped form.
func similarCandidates(word string) []string {
	out := []string{
		strings.ToUpper(word),
		strings.ToLower(word),
		collate.Title(word),
	}

	if !isASCIIString(word) {
		return out
	}

	lower := strings.ToLower(word)
	for _, rule := range suffixCascade {
		if len(lower) < rule.minLen+len(rule.suffix) {
			continue
		}
		if !strings.HasSuffix(lower, rule.suffix) {
			continue
		}

		stem := word[:len(word)-len(rule.suffix)]
		stemLower := lower[:len(lower)-len(rule.suffix)]

		if len(rule.precededBy) > 0 && !hasAnySuffix(stemLower, rule.precededBy) {
			continue
		}

		if rule.doubled {
			stem = undouble(stem)
			stemLower = undouble(stemLower)
		}

		if rule.addition != "" {
			out = append(out, stem+rule.addition, stemLower+rule.addition, stem+strings.ToUpper(rule.addition), stemLower+strings.ToUpper(rule.addition))
		} else {
			out = append(out, stem, stemLower)
		}
	}

	return out
}
