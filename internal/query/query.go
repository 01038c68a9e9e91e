// Package query implements the StarDict query engine: simple lookup with
// morphological similar-word fallback, bounded-edit-distance fuzzy lookup,
// glob pattern lookup, and full-data substring search across a dictionary
// set, plus the classifier that routes a raw user query to one of them.
// Grounded on lib.cpp's simpleLookupWord/lookupSimilarWord/
// lookupWithFuzzy/pattern-and-data-lookup family, per spec §4.H.
package query

import (
	"container/heap"
	"sort"
	"strings"

	"github.com/ianlewis/go-stardict/internal/collate"
	"github.com/ianlewis/go-stardict/internal/dict"
	"github.com/ianlewis/go-stardict/internal/dictset"
	"github.com/ianlewis/go-stardict/internal/editdistance"
	"github.com/ianlewis/go-stardict/internal/render"
)

// Translation is one dictionary's answer to a simple lookup: a headword,
// the dictionary it came from, and its rendered article. Modeled on the
// original engine's Translation value type (title, dictionary name,
// translation text).
type Translation struct {
	Title          string
	DictionaryName string
	Translation    string
}

// FuzzyMatch is one candidate from a fuzzy lookup, nearest first.
type FuzzyMatch struct {
	Headword string
	Distance int
}

// Progress is invoked once per dictionary visited during a long-running,
// set-wide scan (FuzzyLookup, DataLookup), per spec §5. A nil Progress
// disables both progress reporting and cancellation. Cancellation is
// cooperative: the scan reads the returned cancel flag only between
// dictionaries, never while a single dictionary's scan is underway, so a
// caller's callback may set its own flag on some external trigger (e.g. a
// signal) and simply return it here.
type Progress func(dictName string) (cancel bool)

// SimpleLookup looks up word in d; on a miss it retries the similar-word
// cascade (case variants, then English suffix-strip rules) and returns the
// first hit, per spec §4.H.
func SimpleLookup(d *dict.Dict, word string) (pos int, matched string, ok bool, err error) {
	found, pos, err := d.Lookup([]byte(word))
	if err != nil {
		return 0, "", false, err
	}
	if found {
		return pos, word, true, nil
	}

	for _, candidate := range similarCandidates(word) {
		found, pos, err := d.Lookup([]byte(candidate))
		if err != nil {
			return 0, "", false, err
		}
		if found {
			return pos, candidate, true, nil
		}
	}

	return 0, "", false, nil
}

// Translate runs SimpleLookup against every dictionary in the set and
// returns one Translation per hit, rendered via internal/render.
func Translate(set *dictset.Set, word string) ([]Translation, error) {
	var out []Translation
	for _, d := range set.Dicts() {
		pos, matched, ok, err := SimpleLookup(d, word)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		data, err := d.Data(pos)
		if err != nil {
			return nil, err
		}
		html, err := render.Render(d, data)
		if err != nil {
			return nil, err
		}
		out = append(out, Translation{
			Title:          matched,
			DictionaryName: d.Name(),
			Translation:    html,
		})
	}
	return out, nil
}

// fuzzyCandidate is one entry in the bounded k-heap.
type fuzzyCandidate struct {
	headword string
	distance int
}

// fuzzyHeap is a max-heap ordered so the single worst candidate (greatest
// distance, ties broken toward the lexicographically later headword) sits
// at the root and is evicted first when the heap overflows k.
type fuzzyHeap []fuzzyCandidate

func (h fuzzyHeap) Len() int { return len(h) }
func (h fuzzyHeap) Less(i, j int) bool {
	if h[i].distance != h[j].distance {
		return h[i].distance > h[j].distance
	}
	return h[i].headword > h[j].headword
}
func (h fuzzyHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *fuzzyHeap) Push(x interface{}) { *h = append(*h, x.(fuzzyCandidate)) }
func (h *fuzzyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// FuzzyLookup returns up to k nearest headwords in d to word under bounded
// edit distance, per spec §4.H: starts at max_distance=3 and tightens as
// the k-heap fills. progress, if non-nil, is called once for d (this
// function visits exactly one dictionary); a true return skips the scan
// and reports no matches.
func FuzzyLookup(d *dict.Dict, word string, k int, progress Progress) ([]FuzzyMatch, error) {
	if k <= 0 {
		return nil, nil
	}
	if progress != nil && progress(d.Name()) {
		return nil, nil
	}

	lower := strings.ToLower(word)
	maxDistance := 3

	h := &fuzzyHeap{}
	heap.Init(h)

	n := d.ArticleCount()
	for i := 0; i < n; i++ {
		key, err := d.Key(i)
		if err != nil {
			return nil, err
		}
		headword := string(key)

		if abs(len(headword)-len(lower)) >= maxDistance {
			continue
		}

		dist := editdistance.BoundedString(lower, strings.ToLower(headword), maxDistance)
		if dist >= maxDistance || dist >= len(lower) {
			continue
		}

		heap.Push(h, fuzzyCandidate{headword: headword, distance: dist})
		if h.Len() > k {
			heap.Pop(h)
		}
		if h.Len() == k {
			maxDistance = (*h)[0].distance
		}
	}

	out := make([]FuzzyMatch, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		c := heap.Pop(h).(fuzzyCandidate)
		out[i] = FuzzyMatch{Headword: c.headword, Distance: c.distance}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Headword < out[j].Headword
	})

	return out, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// patternBudgetPerDict is the maximum number of matches one dictionary may
// contribute to a pattern lookup, per spec §4.H.
const patternBudgetPerDict = 100

// PatternLookup runs a glob pattern against every dictionary in the set,
// deduplicating headwords (keeping the first occurrence) and sorting the
// result under stardict collation.
func PatternLookup(set *dictset.Set, pattern string) ([]string, error) {
	seen := map[string]bool{}
	var out []string

	for _, d := range set.Dicts() {
		matches, err := d.LookupWithGlob(pattern, patternBudgetPerDict)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			out = append(out, m)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return collate.CompareStrings(out[i], out[j]) < 0
	})
	return out, nil
}

// DataMatch is one dictionary's hit from a substring (data) lookup.
type DataMatch struct {
	DictionaryName string
	Headword       string
}

// Tokenize splits query on spaces, honoring backslash escapes for
// `\ `, `\\`, `\t`, and `\n`, per spec §4.H.
func Tokenize(query string) []string {
	var tokens []string
	var cur strings.Builder
	started := false

	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
			cur.Reset()
			started = false
		}
	}

	runes := []rune(query)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case ' ':
				cur.WriteRune(' ')
				started = true
				i++
				continue
			case '\\':
				cur.WriteRune('\\')
				started = true
				i++
				continue
			case 't':
				cur.WriteRune('\t')
				started = true
				i++
				continue
			case 'n':
				cur.WriteRune('\n')
				started = true
				i++
				continue
			}
		}
		if c == ' ' {
			flush()
			continue
		}
		cur.WriteRune(c)
		started = true
	}
	flush()

	return tokens
}

// DataLookup runs a substring (full-text) search across every dictionary
// in the set whose article format supports it, per spec §4.H. progress,
// if non-nil, is called once per dictionary visited; a true return stops
// the scan before that dictionary (and any after it) is visited.
func DataLookup(set *dictset.Set, query string, progress Progress) ([]DataMatch, error) {
	tokens := Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	byteTokens := make([][]byte, len(tokens))
	for i, t := range tokens {
		byteTokens[i] = []byte(t)
	}

	var out []DataMatch
	for _, d := range set.Dicts() {
		if progress != nil && progress(d.Name()) {
			break
		}
		if !d.ContainFindData() {
			continue
		}
		n := d.ArticleCount()
		for j := 0; j < n; j++ {
			key, offset, size, err := d.EntryAt(j)
			if err != nil {
				return nil, err
			}
			ok, err := d.FindData(byteTokens, offset, size)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, DataMatch{DictionaryName: d.Name(), Headword: string(key)})
			}
		}
	}
	return out, nil
}

// Kind is a classified query's dispatch target, per spec §4.H's
// analyze_query / §4.J.
type Kind int

const (
	KindSimple Kind = iota
	KindFuzzy
	KindGlob
	KindData
)

// Classify implements analyze_query: a leading '/' selects fuzzy lookup, a
// leading '|' selects data (substring) lookup, otherwise backslashes are
// stripped and the result is a glob lookup if it contains '*' or '?', else
// a simple lookup.
func Classify(input string) (Kind, string) {
	switch {
	case strings.HasPrefix(input, "/"):
		return KindFuzzy, strings.TrimPrefix(input, "/")
	case strings.HasPrefix(input, "|"):
		return KindData, strings.TrimPrefix(input, "|")
	default:
		stripped := strings.ReplaceAll(input, `\`, "")
		if strings.ContainsAny(stripped, "*?") {
			return KindGlob, stripped
		}
		return KindSimple, input
	}
}
