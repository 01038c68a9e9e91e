// Package index implements the StarDict paged offset index: a binary
// search structure over a .idx file that maps a headword to its
// (data offset, data size) pair in the companion .dict file, backed by an
// on-disk page-offset cache so repeat opens don't rescan the whole .idx.
package index

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gobwas/glob"

	"github.com/ianlewis/go-stardict/internal/collate"
)

// ErrCorruptArchive indicates a truncated or malformed .idx file.
var ErrCorruptArchive = errors.New("index: corrupt archive")

// entriesPerPage is the fixed page size the spec mandates.
const entriesPerPage = 32

// cacheMagic is the literal magic string prefixing an offset-cache file.
const cacheMagic = "StarDict's Cache, Version: 0.1"

// Entry is one decoded index entry.
type Entry struct {
	Key    []byte
	Offset uint64
	Size   uint32
}

// shortcut is one of the first/middle/last/realLast fast-path entries.
type shortcut struct {
	page int
	key  []byte
}

// page is the single in-memory page cache.
type page struct {
	index   int
	entries []Entry
}

// Index is a paged, binary-searchable view over a .idx file.
type Index struct {
	f             *os.File
	wordCount     int
	offsetBits    int // 32 or 64
	pageOffsets   []uint64 // length = numPages+1, byte offsets into the .idx
	first, middle *shortcut
	last, realLast *shortcut
	loaded        page

	// lastOffset and lastSize hold the offset/size of the most recent Key call, per
	// the spec's "expose through accessors until the next key call"
	// contract.
	lastOffset uint64
	lastSize   uint32
}

// numPages returns the number of pages, counting the last one even when it
// is partial.
func (x *Index) numPages() int {
	return len(x.pageOffsets) - 1
}

// Open builds (or loads from cache) the paged index for the .idx file at
// path, which is expected to contain wordCount entries with offsetBits-wide
// (32 or 64) big-endian data offsets.
func Open(path string, wordCount int, offsetBits int) (*Index, error) {
	if offsetBits != 32 && offsetBits != 64 {
		return nil, fmt.Errorf("%w: unsupported offset width %d", ErrCorruptArchive, offsetBits)
	}

	x := &Index{
		wordCount:  wordCount,
		offsetBits: offsetBits,
		loaded:     page{index: -1},
	}

	numPages := 0
	if wordCount > 0 {
		numPages = (wordCount-1)/entriesPerPage + 1
	}

	offsets, err := loadOrBuildCache(path, wordCount, numPages, offsetBits)
	if err != nil {
		return nil, err
	}
	x.pageOffsets = offsets

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrCorruptArchive, path, err)
	}
	x.f = f

	if wordCount > 0 {
		firstKey, err := x.readFirstOnPage(0)
		if err != nil {
			return nil, err
		}
		x.first = &shortcut{page: 0, key: firstKey}

		lastPage := numPages - 1
		lastKey, err := x.readFirstOnPage(lastPage)
		if err != nil {
			return nil, err
		}
		x.last = &shortcut{page: lastPage, key: lastKey}

		midPage := lastPage / 2
		midKey, err := x.readFirstOnPage(midPage)
		if err != nil {
			return nil, err
		}
		x.middle = &shortcut{page: midPage, key: midKey}

		realLastKey, err := x.Key(wordCount - 1)
		if err != nil {
			return nil, err
		}
		x.realLast = &shortcut{page: lastPage, key: append([]byte(nil), realLastKey...)}
	}

	return x, nil
}

// Close releases the underlying .idx file handle.
func (x *Index) Close() error {
	return x.f.Close()
}

// WordCount returns the number of entries in the index.
func (x *Index) WordCount() int {
	return x.wordCount
}

// readFirstOnPage reads just the headword of the first entry on page p
// directly from disk (used only during shortcut construction, before the
// page cache holds anything useful).
func (x *Index) readFirstOnPage(p int) ([]byte, error) {
	off := x.pageOffsets[p]
	end := x.pageOffsets[p+1]
	if end < off {
		return nil, fmt.Errorf("%w: page %d has negative size", ErrCorruptArchive, p)
	}

	buf := make([]byte, end-off)
	if _, err := x.f.ReadAt(buf, int64(off)); err != nil {
		return nil, fmt.Errorf("%w: reading page %d: %w", ErrCorruptArchive, p, err)
	}

	nul := bytes.IndexByte(buf, 0)
	if nul < 0 {
		return nil, fmt.Errorf("%w: unterminated headword on page %d", ErrCorruptArchive, p)
	}
	return buf[:nul], nil
}

// firstOnPageKey returns the first headword on page p, consulting the
// first/middle/last shortcuts before falling back to a disk read.
func (x *Index) firstOnPageKey(p int) ([]byte, error) {
	switch p {
	case x.first.page:
		return x.first.key, nil
	case x.middle.page:
		return x.middle.key, nil
	case x.last.page:
		return x.last.key, nil
	default:
		return x.readFirstOnPage(p)
	}
}

// entryCountOnPage returns how many entries page p actually holds (the
// last page may be short).
func (x *Index) entryCountOnPage(p int) int {
	if p == x.numPages()-1 {
		if rem := x.wordCount % entriesPerPage; rem != 0 {
			return rem
		}
	}
	return entriesPerPage
}

// loadPage ensures page p is the currently-cached page, parsing it from
// disk if it wasn't already.
func (x *Index) loadPage(p int) error {
	if x.loaded.index == p {
		return nil
	}

	count := x.entryCountOnPage(p)
	off := x.pageOffsets[p]
	end := x.pageOffsets[p+1]
	buf := make([]byte, end-off)
	if _, err := x.f.ReadAt(buf, int64(off)); err != nil {
		return fmt.Errorf("%w: reading page %d: %w", ErrCorruptArchive, p, err)
	}

	entries := make([]Entry, count)
	pos := 0
	offsetWidth := x.offsetBits / 8
	for i := 0; i < count; i++ {
		nul := bytes.IndexByte(buf[pos:], 0)
		if nul < 0 {
			return fmt.Errorf("%w: unterminated headword in page %d entry %d", ErrCorruptArchive, p, i)
		}
		key := buf[pos : pos+nul]
		pos += nul + 1

		if pos+offsetWidth+4 > len(buf) {
			return fmt.Errorf("%w: truncated entry in page %d", ErrCorruptArchive, p)
		}

		var offset uint64
		if offsetWidth == 8 {
			offset = binary.BigEndian.Uint64(buf[pos:])
		} else {
			offset = uint64(binary.BigEndian.Uint32(buf[pos:]))
		}
		pos += offsetWidth

		size := binary.BigEndian.Uint32(buf[pos:])
		pos += 4

		entries[i] = Entry{Key: key, Offset: offset, Size: size}
	}

	x.loaded = page{index: p, entries: entries}
	return nil
}

// Key returns the headword at position i, and records its offset/size for
// a following OffsetSize call, matching the spec's key(i)/accessor
// contract.
func (x *Index) Key(i int) ([]byte, error) {
	if i < 0 || i >= x.wordCount {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrCorruptArchive, i, x.wordCount)
	}
	p := i / entriesPerPage
	if err := x.loadPage(p); err != nil {
		return nil, err
	}
	e := x.loaded.entries[i%entriesPerPage]
	x.lastOffset = e.Offset
	x.lastSize = e.Size
	return e.Key, nil
}

// OffsetSize returns the (offset, size) of the most recent Key call.
func (x *Index) OffsetSize() (uint64, uint32) {
	return x.lastOffset, x.lastSize
}

// Entry returns the full decoded entry at position i.
func (x *Index) Entry(i int) (Entry, error) {
	key, err := x.Key(i)
	if err != nil {
		return Entry{}, err
	}
	off, size := x.OffsetSize()
	return Entry{Key: key, Offset: off, Size: size}, nil
}

// Lookup performs the two-level binary search described in spec §4.C,
// returning (true, exact index) on a match or (false, insertion position)
// otherwise. An insertion position equal to WordCount means "past end".
func (x *Index) Lookup(word []byte) (bool, int, error) {
	if x.wordCount == 0 {
		return false, 0, nil
	}
	if collate.Compare(word, x.first.key) < 0 {
		return false, 0, nil
	}
	if collate.Compare(word, x.realLast.key) > 0 {
		return false, x.wordCount, nil
	}

	indexFrom, indexTo := 0, x.numPages()-1
	found := false
	mid := 0
	for indexFrom <= indexTo {
		mid = (indexFrom + indexTo) / 2
		key, err := x.firstOnPageKey(mid)
		if err != nil {
			return false, 0, err
		}
		switch c := collate.Compare(word, key); {
		case c > 0:
			indexFrom = mid + 1
		case c < 0:
			indexTo = mid - 1
		default:
			found = true
		}
		if found {
			break
		}
	}

	var pageIdx int
	if !found {
		pageIdx = indexTo // previous page
	} else {
		pageIdx = mid
	}
	if pageIdx < 0 {
		pageIdx = 0
	}

	if found {
		return true, pageIdx * entriesPerPage, nil
	}

	if err := x.loadPage(pageIdx); err != nil {
		return false, 0, err
	}
	entries := x.loaded.entries
	from, to := 1, len(entries)-1
	foundInPage := false
	i := 0
	for from <= to {
		i = (from + to) / 2
		switch c := collate.Compare(word, entries[i].Key); {
		case c > 0:
			from = i + 1
		case c < 0:
			to = i - 1
		default:
			foundInPage = true
		}
		if foundInPage {
			break
		}
	}

	base := pageIdx * entriesPerPage
	if foundInPage {
		return true, base + i, nil
	}
	return false, base + from, nil
}

// LookupGlob linearly scans every entry and returns headwords whose key
// matches the shell-style glob pattern, up to budget results.
func (x *Index) LookupGlob(pattern string, budget int) ([]string, error) {
	g, err := glob.Compile(pattern, '*', '?')
	if err != nil {
		return nil, fmt.Errorf("%w: compiling pattern %q: %w", ErrCorruptArchive, pattern, err)
	}

	var out []string
	for i := 0; i < x.wordCount && len(out) < budget; i++ {
		key, err := x.Key(i)
		if err != nil {
			return nil, err
		}
		if g.Match(string(key)) {
			out = append(out, string(key))
		}
	}
	return out, nil
}

// --- offset cache file (.oft) ---

// loadOrBuildCache returns the (numPages+1)-length page-offset table for
// path, either from a fresh on-disk cache or by rescanning the .idx file
// and writing a new cache.
func loadOrBuildCache(path string, wordCount, numPages, offsetBits int) ([]uint64, error) {
	wantLen := numPages + 1

	if offsets, ok := tryLoadCache(path, wantLen); ok {
		return offsets, nil
	}

	offsets, err := scanOffsets(path, wordCount, numPages, offsetBits/8)
	if err != nil {
		return nil, err
	}

	// Persisting the cache is best-effort: a write failure (read-only
	// directory, no cache dir) just means the next open rescans again.
	_ = saveCache(path, offsets)

	return offsets, nil
}

// cachePaths returns the candidate offset-cache file paths for idxPath, in
// preference order: alongside the .idx, then under the user cache
// directory.
func cachePaths(idxPath string) []string {
	paths := []string{idxPath + ".oft"}
	if dir, err := os.UserCacheDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "sdcv", filepath.Base(idxPath)+".oft"))
	}
	return paths
}

func tryLoadCache(idxPath string, wantLen int) ([]uint64, bool) {
	idxInfo, err := os.Stat(idxPath)
	if err != nil {
		return nil, false
	}

	for _, p := range cachePaths(idxPath) {
		cacheInfo, err := os.Stat(p)
		if err != nil {
			continue
		}
		if cacheInfo.ModTime().Before(idxInfo.ModTime()) {
			continue // CacheStale: rebuild.
		}

		f, err := os.Open(p)
		if err != nil {
			continue
		}
		offsets, ok := readCacheFile(f, wantLen)
		f.Close()
		if ok {
			return offsets, true
		}
	}
	return nil, false
}

func readCacheFile(r io.Reader, wantLen int) ([]uint64, bool) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(cacheMagic))
	if _, err := io.ReadFull(br, magic); err != nil || string(magic) != cacheMagic {
		return nil, false
	}

	offsets := make([]uint64, wantLen)
	for i := range offsets {
		var buf [8]byte
		if _, err := io.ReadFull(br, buf[:]); err != nil {
			return nil, false
		}
		offsets[i] = binary.LittleEndian.Uint64(buf[:])
	}
	return offsets, true
}

func saveCache(idxPath string, offsets []uint64) error {
	paths := cachePaths(idxPath)
	var firstErr error
	for _, p := range paths {
		if dir := filepath.Dir(p); dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
		if err := writeCacheFile(p, offsets); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		return nil
	}
	return firstErr
}

func writeCacheFile(path string, offsets []uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(cacheMagic); err != nil {
		return err
	}
	var buf [8]byte
	for _, off := range offsets {
		binary.LittleEndian.PutUint64(buf[:], off)
		if _, err := w.Write(buf[:]); err != nil {
			return err
		}
	}
	return w.Flush()
}

// scanOffsets rescans the raw .idx file, recording the byte offset of the
// start of every 32nd entry (each page), plus a sentinel equal to the file
// size.
func scanOffsets(path string, wordCount, numPages, offsetWidth int) ([]uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", ErrCorruptArchive, path, err)
	}
	defer f.Close()

	offsets := make([]uint64, numPages+1)
	if wordCount == 0 {
		return offsets, nil
	}

	br := bufio.NewReaderSize(f, 64*1024)
	var pos uint64
	pageIdx := 0

	for i := 0; i < wordCount; i++ {
		if i%entriesPerPage == 0 {
			offsets[pageIdx] = pos
			pageIdx++
		}

		keyLen, err := br.ReadString(0)
		if err != nil {
			return nil, fmt.Errorf("%w: reading headword %d: %w", ErrCorruptArchive, i, err)
		}
		pos += uint64(len(keyLen))

		// Skip the entry's offset+size trailer: offsetWidth bytes for
		// the data offset, plus a fixed 4 bytes for the data size.
		skip := offsetWidth + 4
		if _, err := br.Discard(skip); err != nil {
			return nil, fmt.Errorf("%w: skipping entry %d trailer: %w", ErrCorruptArchive, i, err)
		}
		pos += uint64(skip)
	}

	offsets[numPages] = pos
	return offsets, nil
}
