// Package dict binds one StarDict dictionary together: its .ifo metadata,
// its paged index, and its article reader, derived from a single .ifo
// file path per spec §4.E.
package dict

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ianlewis/go-stardict/dictzip"
	"github.com/ianlewis/go-stardict/internal/article"
	"github.com/ianlewis/go-stardict/internal/ifo"
	"github.com/ianlewis/go-stardict/internal/index"
)

// ErrLoadFailed wraps any failure encountered while loading a dictionary
// from its .ifo path: a bad magic, a missing companion file, a corrupt
// index, or an unsupported archive variant.
var ErrLoadFailed = errors.New("dict: load failed")

// Dict is one loaded StarDict dictionary.
type Dict struct {
	ifoPath string
	meta    ifo.Metadata

	dz    *dictzip.File
	idx   *index.Index
	bodyR *article.Reader
}

// Load parses ifoPath and opens its companion index and article files. It
// returns ErrLoadFailed (wrapping the underlying cause) on any failure;
// callers loading a whole directory tree should drop the offending
// dictionary and continue rather than treat this as fatal, per spec §4.F.
func Load(ifoPath string) (*Dict, error) {
	meta, err := ifo.ParseFile(ifoPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, ifoPath, err)
	}
	if meta.WordCount == 0 {
		return nil, fmt.Errorf("%w: %s: empty dictionary (wordcount=0)", ErrLoadFailed, ifoPath)
	}

	base := strings.TrimSuffix(ifoPath, ".ifo")

	dictPath, err := pickExisting(base+".dict.dz", base+".dict")
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, ifoPath, err)
	}

	idxPath, err := pickIndexPath(base)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadFailed, ifoPath, err)
	}

	dz, err := dictzip.Open(dictPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: opening article file: %w", ErrLoadFailed, ifoPath, err)
	}

	idx, err := index.Open(idxPath, meta.WordCount, meta.IdxOffsetBits)
	if err != nil {
		dz.Close()
		return nil, fmt.Errorf("%w: %s: opening index: %w", ErrLoadFailed, ifoPath, err)
	}

	return &Dict{
		ifoPath: ifoPath,
		meta:    meta,
		dz:      dz,
		idx:     idx,
		bodyR:   article.New(dz, meta.SameTypeSequence),
	}, nil
}

// pickExisting returns the first path in candidates that exists on disk.
func pickExisting(candidates ...string) (string, error) {
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("none of %v found", candidates)
}

// pickIndexPath resolves the .idx companion for base, rejecting the
// gzipped-index variant: only the uncompressed-.idx page-cached path is in
// scope, per spec §4.E.
func pickIndexPath(base string) (string, error) {
	if _, err := os.Stat(base + ".idx"); err == nil {
		return base + ".idx", nil
	}
	if _, err := os.Stat(base + ".idx.gz"); err == nil {
		return "", fmt.Errorf("%w: .idx.gz indexes are not supported", ErrLoadFailed)
	}
	return "", fmt.Errorf("no .idx file found for %s", base)
}

// Close releases the dictionary's open file handles.
func (d *Dict) Close() error {
	idxErr := d.idx.Close()
	dzErr := d.dz.Close()
	if idxErr != nil {
		return idxErr
	}
	return dzErr
}

// ArticleCount returns the number of headwords in the dictionary.
func (d *Dict) ArticleCount() int {
	return d.meta.WordCount
}

// Name returns the dictionary's display name (the .ifo "bookname").
func (d *Dict) Name() string {
	return d.meta.Bookname
}

// IfoPath returns the .ifo path the dictionary was loaded from, used as its
// stable identity across a dictionary-set reload.
func (d *Dict) IfoPath() string {
	return d.ifoPath
}

// Info returns the dictionary's full .ifo metadata.
func (d *Dict) Info() ifo.Metadata {
	return d.meta
}

// Key returns the headword at index i.
func (d *Dict) Key(i int) ([]byte, error) {
	return d.idx.Key(i)
}

// Data returns the tagged article body at index i, concatenating the
// index's offset/size with the article reader's expansion, per spec
// §4.E's data(i).
func (d *Dict) Data(i int) ([]byte, error) {
	if _, err := d.idx.Key(i); err != nil {
		return nil, err
	}
	off, size := d.idx.OffsetSize()
	return d.bodyR.WordData(int64(off), int(size))
}

// Lookup finds word's exact position, or its sorted insertion point if
// absent.
func (d *Dict) Lookup(word []byte) (bool, int, error) {
	return d.idx.Lookup(word)
}

// LookupWithGlob returns up to budget headwords matching the shell-style
// glob pattern.
func (d *Dict) LookupWithGlob(pattern string, budget int) ([]string, error) {
	return d.idx.LookupGlob(pattern, budget)
}

// EntryAt returns the headword, data offset, and data size at index i,
// without reading the article body -- used by substring search, which only
// needs to stream the body through FindData.
func (d *Dict) EntryAt(i int) (key []byte, offset uint64, size uint32, err error) {
	e, err := d.idx.Entry(i)
	if err != nil {
		return nil, 0, 0, err
	}
	return e.Key, e.Offset, e.Size, nil
}

// ContainFindData reports whether substring search can locate anything in
// this dictionary's articles.
func (d *Dict) ContainFindData() bool {
	return article.ContainFindData(d.meta.SameTypeSequence)
}

// FindData reports whether every token in tokens appears in some text
// field of the article stored at (offset, size), without expanding the
// full tagged body.
func (d *Dict) FindData(tokens [][]byte, offset uint64, size uint32) (bool, error) {
	return d.bodyR.FindData(tokens, int64(offset), int(size))
}
