// Package collate implements the StarDict headword collation: a
// case-insensitive ASCII primary sort with an exact bytewise tie-break.
package collate

import (
	"bytes"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// fold is the Unicode-aware case folder behind FoldUnicode. Compare does not
// use it: the collation's primary key folds only the ASCII subrange (see
// foldASCII), and non-ASCII bytes compare bytewise.
var fold = cases.Fold()

// Compare implements stardict_compare: primary key is case-insensitive
// ASCII byte comparison, tie-broken by exact byte comparison. Returns <0,
// 0, or >0 the way bytes.Compare does.
func Compare(a, b []byte) int {
	if c := bytes.Compare(foldASCII(a), foldASCII(b)); c != 0 {
		return c
	}
	return bytes.Compare(a, b)
}

// CompareStrings is Compare over strings, for callers (like the index
// shortcuts) that already hold Go strings.
func CompareStrings(a, b string) int {
	return Compare([]byte(a), []byte(b))
}

// foldASCII lowercases the ASCII letters in b and leaves every other byte
// untouched, matching the spec's "non-ASCII bytes compare bytewise"
// invariant exactly: only the ASCII range participates in case folding.
func foldASCII(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		} else {
			out[i] = c
		}
	}
	return out
}

// FoldUnicode case-folds s using Unicode-aware rules, unlike the ASCII-only
// folding Compare uses for collation. The similar-word cascade does not call
// it; it uses strings.ToUpper, strings.ToLower and Title.
func FoldUnicode(s string) string {
	return fold.String(s)
}

var titleCaser = cases.Title(language.Und)

// Title returns s with Unicode-aware title casing, used by the
// similar-word cascade's "try title-cased" step.
func Title(s string) string {
	return titleCaser.String(s)
}
