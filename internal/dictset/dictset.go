// Package dictset implements the StarDict dictionary set: the collection
// of loaded dictionaries a query is run against, with directory-tree
// discovery, order/disable lists, identity-preserving reload, and
// cross-dictionary enumeration cursors, per spec §4.F.
package dictset

import (
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ianlewis/go-stardict/internal/collate"
	"github.com/ianlewis/go-stardict/internal/dict"
)

// Sources describes where a Set's dictionaries come from: the same shape
// spec §4.F calls the order-list/disable-list/directory-list. Directories
// is plural -- a supplemental feature pulled from the original
// DirectoryProvider concept, which feeds a manager from a list of roots
// rather than a single directory.
type Sources struct {
	// Directories are root directories recursively walked for .ifo files.
	Directories []string
	// Order lists specific .ifo paths to load first, in order.
	Order []string
	// Disable lists .ifo paths that must never be loaded, whether named in
	// Order or discovered under a Directories root.
	Disable []string
}

// Set is a collection of loaded dictionaries, safe for concurrent queries
// provided Load/Reload are not called concurrently with them (spec §5:
// load/reload take exclusive access, queries take shared access).
type Set struct {
	mu     sync.RWMutex
	dicts  []*dict.Dict
	byPath map[string]*dict.Dict
	logger *slog.Logger
}

// New returns an empty Set. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *Set {
	if logger == nil {
		logger = slog.Default()
	}
	return &Set{logger: logger, byPath: map[string]*dict.Dict{}}
}

// candidatePaths resolves Sources into the ordered list of .ifo paths to
// load, per spec §4.F's load policy: order-list entries first (skipping
// disabled ones), then each directory's discovered .ifo files not already
// named by the order-list or disable-list.
func candidatePaths(src Sources) ([]string, error) {
	disabled := map[string]bool{}
	for _, p := range src.Disable {
		disabled[p] = true
	}

	seen := map[string]bool{}
	var out []string

	for _, p := range src.Order {
		if disabled[p] || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}

	for _, root := range src.Directories {
		var found []string
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".ifo") {
				return nil
			}
			found = append(found, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		for _, p := range found {
			if disabled[p] || seen[p] {
				continue
			}
			seen[p] = true
			out = append(out, p)
		}
	}

	return out, nil
}

// Load populates the set from src. Dictionaries that fail to load are
// dropped with a diagnostic log line and never fail Load; Load returns an
// error only when walking one of the Directories roots fails.
func (s *Set) Load(src Sources) error {
	paths, err := candidatePaths(src)
	if err != nil {
		return err
	}

	var loaded []*dict.Dict
	byPath := map[string]*dict.Dict{}
	for _, p := range paths {
		d, err := dict.Load(p)
		if err != nil {
			s.logger.Warn("dropping dictionary that failed to load", "ifo_path", p, "error", err)
			continue
		}
		loaded = append(loaded, d)
		byPath[p] = d
	}

	s.mu.Lock()
	s.dicts = loaded
	s.byPath = byPath
	s.mu.Unlock()

	return nil
}

// Reload re-runs the same traversal as Load, but reuses already-loaded
// instances by .ifo path identity instead of re-parsing them, per spec
// §4.F. Instances for paths no longer present are closed.
func (s *Set) Reload(src Sources) error {
	paths, err := candidatePaths(src)
	if err != nil {
		return err
	}

	s.mu.Lock()
	previous := s.byPath
	s.mu.Unlock()

	var next []*dict.Dict
	nextByPath := map[string]*dict.Dict{}
	reused := map[string]bool{}

	for _, p := range paths {
		if d, ok := previous[p]; ok {
			next = append(next, d)
			nextByPath[p] = d
			reused[p] = true
			continue
		}
		d, err := dict.Load(p)
		if err != nil {
			s.logger.Warn("dropping dictionary that failed to load", "ifo_path", p, "error", err)
			continue
		}
		next = append(next, d)
		nextByPath[p] = d
	}

	for p, d := range previous {
		if !reused[p] {
			if err := d.Close(); err != nil {
				s.logger.Warn("error closing dropped dictionary", "ifo_path", p, "error", err)
			}
		}
	}

	s.mu.Lock()
	s.dicts = next
	s.byPath = nextByPath
	s.mu.Unlock()

	return nil
}

// Len returns the number of currently loaded dictionaries.
func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.dicts)
}

// Dicts returns the currently loaded dictionaries, in load/order-list
// order. The returned slice is a snapshot; callers must not mutate it.
func (s *Set) Dicts() []*dict.Dict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*dict.Dict, len(s.dicts))
	copy(out, s.dicts)
	return out
}

// invalid is the enumeration cursor sentinel meaning "not yet positioned".
const invalid = -1

// NewCursor returns a fresh enumeration cursor sized for the set's current
// dictionary count, with every slot at the invalid sentinel.
func (s *Set) NewCursor() []int {
	n := s.Len()
	cur := make([]int, n)
	for i := range cur {
		cur[i] = invalid
	}
	return cur
}

// CurrentWord returns the smallest headword among cur's non-sentinel,
// in-range cursor positions, per spec §4.F po_current_word.
func (s *Set) CurrentWord(cur []int) (string, bool, error) {
	dicts := s.Dicts()

	best := ""
	found := false
	for i, d := range dicts {
		if i >= len(cur) {
			break
		}
		pos := cur[i]
		if pos < 0 || pos >= d.ArticleCount() {
			continue
		}
		key, err := d.Key(pos)
		if err != nil {
			return "", false, err
		}
		if !found || collate.CompareStrings(string(key), best) < 0 {
			best = string(key)
			found = true
		}
	}
	return best, found, nil
}

// NextWord advances cur forward and returns the next headword in the
// sorted union of all loaded dictionaries' headwords, per spec §4.F
// po_next_word. If word is non-nil, every cursor is first repositioned via
// lookup. Returns ("", false, nil) once every cursor is exhausted.
func (s *Set) NextWord(word []byte, cur []int) (string, bool, error) {
	dicts := s.Dicts()

	if word != nil {
		for i, d := range dicts {
			if i >= len(cur) {
				break
			}
			_, pos, err := d.Lookup(word)
			if err != nil {
				return "", false, err
			}
			cur[i] = pos
		}
	}

	eff := make([]int, len(dicts))
	best := ""
	found := false
	for i, d := range dicts {
		if i >= len(cur) {
			eff[i] = d.ArticleCount()
			continue
		}
		p := cur[i]
		if p == invalid {
			p = 0
		}
		eff[i] = p
		if p >= d.ArticleCount() {
			continue
		}
		key, err := d.Key(p)
		if err != nil {
			return "", false, err
		}
		if !found || collate.CompareStrings(string(key), best) < 0 {
			best = string(key)
			found = true
		}
	}
	if !found {
		return "", false, nil
	}

	for i, d := range dicts {
		if i >= len(cur) {
			continue
		}
		p := eff[i]
		if p >= d.ArticleCount() {
			cur[i] = p
			continue
		}
		key, err := d.Key(p)
		if err != nil {
			return "", false, err
		}
		if string(key) == best {
			cur[i] = p + 1
		} else {
			cur[i] = p
		}
	}

	return best, true, nil
}

// PreviousWord is the symmetric reverse of NextWord: the invalid sentinel
// expands to article_count (one past end) rather than 0, per spec §4.F.
func (s *Set) PreviousWord(cur []int) (string, bool, error) {
	dicts := s.Dicts()

	eff := make([]int, len(dicts))
	best := ""
	found := false
	for i, d := range dicts {
		if i >= len(cur) {
			eff[i] = 0
			continue
		}
		p := cur[i]
		if p == invalid {
			p = d.ArticleCount()
		}
		eff[i] = p
		if p <= 0 {
			continue
		}
		key, err := d.Key(p - 1)
		if err != nil {
			return "", false, err
		}
		if !found || collate.CompareStrings(string(key), best) > 0 {
			best = string(key)
			found = true
		}
	}
	if !found {
		return "", false, nil
	}

	for i, d := range dicts {
		if i >= len(cur) {
			continue
		}
		p := eff[i]
		if p <= 0 {
			cur[i] = 0
			continue
		}
		key, err := d.Key(p - 1)
		if err != nil {
			return "", false, err
		}
		if string(key) == best {
			cur[i] = p - 1
		} else {
			cur[i] = p
		}
	}

	return best, true, nil
}
