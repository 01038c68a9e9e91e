// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dictzip

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// chunkCacheSize is the number of inflated chunks kept around per dictzip
// file, per the format's random-read contract.
const chunkCacheSize = 5

// File is a random-access handle onto a .dict/.dict.dz article body file.
// It classifies the underlying file once at Open and dispatches ReadAt
// accordingly.
type File struct {
	kind Kind
	f    *os.File

	// dzip-only state.
	mu      sync.Mutex
	header  header
	offsets []int64
	cache   *lru.Cache[int64, []byte]
}

// Open classifies path and returns a [File] ready for [File.ReadAt]. Random
// access is supported for [KindPlain] and [KindDZip]; [KindGzip] files
// return [ErrNotRandomAccessible] from ReadAt.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %w", errDictzip, path, err)
	}

	magic := make([]byte, 2)
	n, err := io.ReadFull(f, magic)
	if err != nil && n < 2 {
		// Too short to be gzip; treat as plain.
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			f.Close()
			return nil, fmt.Errorf("%w: seeking %s: %w", errDictzip, path, serr)
		}
		return &File{kind: KindPlain, f: f}, nil
	}
	if _, serr := f.Seek(0, io.SeekStart); serr != nil {
		f.Close()
		return nil, fmt.Errorf("%w: seeking %s: %w", errDictzip, path, serr)
	}

	if magic[0] != hdrGzipID1 || magic[1] != hdrGzipID2 {
		return &File{kind: KindPlain, f: f}, nil
	}

	h, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArchive, path, err)
	}

	if !h.isDZip {
		if _, serr := f.Seek(0, io.SeekStart); serr != nil {
			f.Close()
			return nil, fmt.Errorf("%w: seeking %s: %w", errDictzip, path, serr)
		}
		return &File{kind: KindGzip, f: f}, nil
	}

	cache, err := lru.New[int64, []byte](chunkCacheSize)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: chunk cache: %w", errDictzip, err)
	}

	return &File{
		kind:    KindDZip,
		f:       f,
		header:  h,
		offsets: chunkOffsets(h),
		cache:   cache,
	}, nil
}

// Kind reports how the file may be accessed.
func (z *File) Kind() Kind {
	return z.kind
}

// Close releases the underlying file handle.
func (z *File) Close() error {
	return z.f.Close()
}

// ReadAt returns size bytes of decompressed data starting at the
// uncompressed-data offset start. It supports [KindPlain] and [KindDZip];
// [KindGzip] returns [ErrNotRandomAccessible].
func (z *File) ReadAt(start int64, size int) ([]byte, error) {
	switch z.kind {
	case KindPlain:
		buf := make([]byte, size)
		n, err := z.f.ReadAt(buf, start)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: %w", errDictzip, err)
		}
		return buf[:n], nil
	case KindGzip:
		return nil, ErrNotRandomAccessible
	case KindDZip:
		return z.readDZip(start, size)
	default:
		return nil, fmt.Errorf("%w: unknown file kind", errDictzip)
	}
}

// SequentialReader returns an [io.ReadCloser] over the whole decompressed
// body, for [KindGzip] files (and any other kind) that don't need random
// access.
func (z *File) SequentialReader() (io.ReadCloser, error) {
	if _, err := z.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %w", errDictzip, err)
	}
	switch z.kind {
	case KindPlain:
		return io.NopCloser(z.f), nil
	default:
		gr, err := gzip.NewReader(z.f)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
		}
		return gr, nil
	}
}

func (z *File) readDZip(start int64, size int) ([]byte, error) {
	if size <= 0 {
		return nil, nil
	}
	end := start + int64(size) // exclusive, in the uncompressed domain.
	chunkLen := int64(z.header.chunkLength)
	if chunkLen <= 0 {
		return nil, fmt.Errorf("%w: zero chunk length", ErrCorruptArchive)
	}

	firstChunk := start / chunkLen
	lastChunk := (end - 1) / chunkLen

	out := make([]byte, 0, size)
	for c := firstChunk; c <= lastChunk; c++ {
		data, err := z.chunk(c)
		if err != nil {
			return nil, err
		}

		chunkFileStart := c * chunkLen
		from := int64(0)
		if c == firstChunk {
			from = start - chunkFileStart
		}
		to := int64(len(data))
		if c == lastChunk {
			to = end - chunkFileStart
			if to > int64(len(data)) {
				to = int64(len(data))
			}
		}
		if from < 0 || from > to || to > int64(len(data)) {
			return nil, fmt.Errorf("%w: chunk bounds out of range", ErrCorruptArchive)
		}
		out = append(out, data[from:to]...)
	}

	return out, nil
}

// chunk returns the inflated bytes of chunk index c, consulting and
// populating the LRU cache.
func (z *File) chunk(c int64) ([]byte, error) {
	z.mu.Lock()
	defer z.mu.Unlock()

	if data, ok := z.cache.Get(c); ok {
		return data, nil
	}

	if c < 0 || int(c) >= len(z.header.chunkCompressedSizes) {
		return nil, fmt.Errorf("%w: chunk %d out of range", ErrCorruptArchive, c)
	}

	chunkOffset := z.offsets[c]
	chunkSize := z.offsets[c+1] - chunkOffset

	sr := io.NewSectionReader(z.f, chunkOffset, chunkSize)
	// Every chunk boundary is a Z_FULL_FLUSH point, so each chunk can be
	// inflated independently with no preset dictionary.
	fr := flate.NewReader(sr)
	defer fr.Close()

	data, err := io.ReadAll(fr)
	if err != nil {
		return nil, fmt.Errorf("%w: inflating chunk %d: %w", ErrCorruptArchive, c, err)
	}

	z.cache.Add(c, data)
	return data, nil
}

// ChunkLength returns the dictzip uncompressed chunk size, or 0 for
// non-dzip files.
func (z *File) ChunkLength() int {
	return z.header.chunkLength
}

// Name returns the original filename stored in the gzip header, if any.
func (z *File) Name() string {
	return z.header.name
}
