// Package article implements the StarDict article-body reader: given a
// (data offset, data size) pair it returns the typed field stream that
// makes up one dictionary entry's body, expanding the "sametypesequence"
// on-disk space optimization back out to an explicit, tagged form so the
// renderer only ever has to handle one shape.
package article

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

// ErrCorruptArchive indicates a truncated or malformed article body.
var ErrCorruptArchive = errors.New("article: corrupt archive")

// textTypes are the field type characters whose payload is NUL-terminated
// text, per spec §3 (the lowercase text/markup kinds that substring search
// and sametypesequence-aware sizing treat alike).
const textTypes = "mlgxty"

func isTextType(t byte) bool {
	return bytes.IndexByte([]byte(textTypes), t) >= 0
}

// Source is the raw byte provider an article [Reader] pulls stored article
// bytes from: either a plain .dict file or a dictzip .dict.dz archive.
type Source interface {
	ReadAt(offset int64, size int) ([]byte, error)
}

// cacheSize is the number of recent article bodies kept per dictionary.
const cacheSize = 10

type cacheEntry struct {
	offset int64
	data   []byte
}

// Reader expands stored article bytes into the tagged
// "(type, payload)..." form described in spec §4.D, honoring
// sameTypeSequence when set.
type Reader struct {
	src             Source
	sameTypeSequence string

	mu    sync.Mutex
	cache [cacheSize]cacheEntry
	next  int
}

// New returns an article Reader pulling bytes from src. sameTypeSequence is
// the dictionary's .ifo field of the same name ("" if absent).
func New(src Source, sameTypeSequence string) *Reader {
	return &Reader{src: src, sameTypeSequence: sameTypeSequence}
}

// WordData returns the tagged article body stored at (offset, size),
// consulting and populating the per-dictionary ring cache.
func (r *Reader) WordData(offset int64, size int) ([]byte, error) {
	r.mu.Lock()
	for _, e := range r.cache {
		if e.data != nil && e.offset == offset {
			r.mu.Unlock()
			return e.data, nil
		}
	}
	r.mu.Unlock()

	raw, err := r.src.ReadAt(offset, size)
	if err != nil {
		return nil, fmt.Errorf("%w: reading article at %d: %w", ErrCorruptArchive, offset, err)
	}

	var tagged []byte
	if r.sameTypeSequence == "" {
		tagged = raw
	} else {
		tagged, err = expand(raw, r.sameTypeSequence)
		if err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	r.cache[r.next] = cacheEntry{offset: offset, data: tagged}
	r.next = (r.next + 1) % cacheSize
	r.mu.Unlock()

	return tagged, nil
}

// expand converts sameTypeSequence-compacted bytes (type tags and the last
// field's length elided) into the fully tagged form, per spec §4.D.
func expand(raw []byte, sameTypeSequence string) ([]byte, error) {
	var out bytes.Buffer
	p := raw

	for i := 0; i < len(sameTypeSequence)-1; i++ {
		t := sameTypeSequence[i]
		out.WriteByte(t)

		if isUpperType(t) {
			if len(p) < 4 {
				return nil, fmt.Errorf("%w: truncated length-prefixed field", ErrCorruptArchive)
			}
			length := binary.BigEndian.Uint32(p)
			n := 4 + int(length)
			if len(p) < n {
				return nil, fmt.Errorf("%w: truncated field payload", ErrCorruptArchive)
			}
			out.Write(p[:n])
			p = p[n:]
		} else {
			nul := bytes.IndexByte(p, 0)
			if nul < 0 {
				return nil, fmt.Errorf("%w: unterminated text field", ErrCorruptArchive)
			}
			out.Write(p[:nul+1])
			p = p[nul+1:]
		}
	}

	// The last field's size is whatever remains.
	lastType := sameTypeSequence[len(sameTypeSequence)-1]
	out.WriteByte(lastType)
	if isUpperType(lastType) {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		out.Write(lenBuf[:])
		out.Write(p)
	} else {
		out.Write(p)
		out.WriteByte(0)
	}

	return out.Bytes(), nil
}

func isUpperType(t byte) bool {
	return t >= 'A' && t <= 'Z'
}

// ContainFindData reports whether substring search (FindData) can find
// anything in articles of a dictionary with the given sameTypeSequence: an
// empty sequence means per-field type tags are present so any text field
// can be located; otherwise at least one text type must appear in the
// sequence.
func ContainFindData(sameTypeSequence string) bool {
	if sameTypeSequence == "" {
		return true
	}
	return bytes.ContainsAny([]byte(sameTypeSequence), textTypes)
}

// FindData reports whether every needle appears somewhere inside a text
// field of the article stored at (offset, size), reading the raw
// (non-tagged) stored bytes directly -- it does not go through WordData's
// sameTypeSequence expansion, since it only needs to walk fields, not
// reconstruct them.
func (r *Reader) FindData(needles [][]byte, offset int64, size int) (bool, error) {
	raw, err := r.src.ReadAt(offset, size)
	if err != nil {
		return false, fmt.Errorf("%w: reading article at %d: %w", ErrCorruptArchive, offset, err)
	}

	found := make([]bool, len(needles))
	nfound := 0

	testText := func(field []byte) {
		for i, needle := range needles {
			if found[i] {
				continue
			}
			if bytes.Contains(field, needle) {
				found[i] = true
				nfound++
			}
		}
	}

	if r.sameTypeSequence != "" {
		p := raw
		seq := r.sameTypeSequence
		for i := 0; i < len(seq)-1; i++ {
			t := seq[i]
			if isUpperType(t) {
				if len(p) < 4 {
					return false, fmt.Errorf("%w: truncated length-prefixed field", ErrCorruptArchive)
				}
				n := 4 + int(binary.BigEndian.Uint32(p))
				if len(p) < n {
					return false, fmt.Errorf("%w: truncated field payload", ErrCorruptArchive)
				}
				p = p[n:]
				continue
			}

			nul := bytes.IndexByte(p, 0)
			if nul < 0 {
				return false, fmt.Errorf("%w: unterminated text field", ErrCorruptArchive)
			}
			if isTextType(t) {
				testText(p[:nul])
				if nfound == len(needles) {
					return true, nil
				}
			}
			p = p[nul+1:]
		}

		lastType := seq[len(seq)-1]
		if isTextType(lastType) {
			testText(p)
			if nfound == len(needles) {
				return true, nil
			}
		}
		return false, nil
	}

	p := raw
	for len(p) > 0 {
		t := p[0]
		p = p[1:]

		if isUpperType(t) {
			if len(p) < 4 {
				return false, fmt.Errorf("%w: truncated length-prefixed field", ErrCorruptArchive)
			}
			n := 4 + int(binary.BigEndian.Uint32(p))
			if len(p) < n {
				return false, fmt.Errorf("%w: truncated field payload", ErrCorruptArchive)
			}
			p = p[n:]
			continue
		}

		nul := bytes.IndexByte(p, 0)
		if nul < 0 {
			return false, fmt.Errorf("%w: unterminated text field", ErrCorruptArchive)
		}
		if isTextType(t) {
			testText(p[:nul])
			if nfound == len(needles) {
				return true, nil
			}
		}
		p = p[nul+1:]
	}

	return false, nil
}
