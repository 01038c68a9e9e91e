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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"time"
)

// gzip Header Values
//
//	+---+---+---+---+---+---+---+---+---+---+
//	|ID1|ID2|CM |FLG|     MTIME     |XFL|OS |
//	+---+---+---+---+---+---+---+---+---+---+
const (
	hdrGzipID1   byte = 0x1f
	hdrGzipID2   byte = 0x8b
	hdrDeflateCM byte = 0x08
)

// hdrDictzipSI1/SI2 are the dictzip random access subfield ID (SI1, SI2).
const (
	hdrDictzipSI1 = byte('R')
	hdrDictzipSI2 = byte('A')
)

// FLG (Flags). bit 1: FHCRC. bit 2: FEXTRA. bit 3: FNAME. bit 4: FCOMMENT.
const (
	flgCRC     = byte(1 << 1)
	flgEXTRA   = byte(1 << 2)
	flgNAME    = byte(1 << 3)
	flgCOMMENT = byte(1 << 4)
)

// header holds the parsed gzip/dictzip header fields needed for random
// access. Unlike the gzip package's Header, this only keeps what the
// dictzip reader needs: the chunk table and the byte offset the compressed
// body starts at.
type header struct {
	name    string
	comment string
	modTime time.Time
	os      byte

	// bodyOffset is the absolute byte offset the first compressed chunk
	// starts at.
	bodyOffset int64

	// chunkLength is the uncompressed size of each chunk except possibly
	// the last.
	chunkLength int

	// chunkCompressedSizes are the per-chunk compressed lengths, in file
	// order.
	chunkCompressedSizes []int

	// isDZip is true iff a "RA" FEXTRA subfield was found.
	isDZip bool
}

// readHeader reads a gzip header from r (positioned at the start of the
// file) and, if present, the dictzip "RA" random-access subfield.
func readHeader(r io.Reader) (header, error) {
	var h header

	head := make([]byte, 10)
	if _, err := io.ReadFull(r, head); err != nil {
		return h, headerErr(fmt.Errorf("reading header: %w", err))
	}
	h.bodyOffset += int64(len(head))

	if head[0] != hdrGzipID1 || head[1] != hdrGzipID2 {
		return h, fmt.Errorf("%w: ID1,ID2: %x", ErrHeader, head[0:2])
	}
	if head[2] != hdrDeflateCM {
		return h, fmt.Errorf("%w: CM: %x", ErrHeader, head[2])
	}

	if mtime := binary.LittleEndian.Uint32(head[4:8]); mtime > 0 {
		h.modTime = time.Unix(int64(mtime), 0)
	}
	h.os = head[9]
	flg := head[3]

	if flg&flgEXTRA != 0 {
		n, chunkLength, sizes, isDZip, err := readExtra(r)
		h.bodyOffset += int64(n)
		if err != nil {
			return h, err
		}
		h.chunkLength = chunkLength
		h.chunkCompressedSizes = sizes
		h.isDZip = isDZip
	}

	if flg&flgNAME != 0 {
		n, s, err := readCString(r)
		h.bodyOffset += n
		if err != nil {
			return h, err
		}
		h.name = s
	}

	if flg&flgCOMMENT != 0 {
		n, s, err := readCString(r)
		h.bodyOffset += n
		if err != nil {
			return h, err
		}
		h.comment = s
	}

	if flg&flgCRC != 0 {
		buf := make([]byte, 2)
		n, err := io.ReadFull(r, buf)
		h.bodyOffset += int64(n)
		if err != nil {
			return h, headerErr(fmt.Errorf("CRC-16: %w", err))
		}
	}

	return h, nil
}

// readExtra parses the FEXTRA header field, returning the total bytes
// consumed, the dictzip uncompressed chunk length, the per-chunk compressed
// sizes, and whether a "RA" subfield was found at all (a FEXTRA field
// without "RA" is a plain gzip file with unrelated extra data).
func readExtra(r io.Reader) (int, int, []int, bool, error) {
	var totalRead int

	buf := make([]byte, 2)
	n, err := io.ReadFull(r, buf)
	totalRead += n
	if err != nil {
		return totalRead, 0, nil, false, headerErr(fmt.Errorf("EXTRA XLEN: %w", err))
	}
	xlen := binary.LittleEndian.Uint16(buf)

	extra := make([]byte, xlen)
	n, err = io.ReadFull(r, extra)
	totalRead += n
	if err != nil {
		return totalRead, 0, nil, false, headerErr(fmt.Errorf("reading EXTRA: %w", err))
	}

	var chunkLength int
	var sizes []int
	var found bool

	er := bytes.NewReader(extra)
	for er.Len() > 0 {
		sub := make([]byte, 4)
		if _, err := io.ReadFull(er, sub); err != nil {
			return totalRead, 0, nil, false, headerErr(fmt.Errorf("reading EXTRA subfield: %w", err))
		}
		si1, si2 := sub[0], sub[1]
		subLen := binary.LittleEndian.Uint16(sub[2:])

		subBuf := make([]byte, subLen)
		if _, err := io.ReadFull(er, subBuf); err != nil {
			return totalRead, 0, nil, false, headerErr(fmt.Errorf("reading EXTRA subfield data: %w", err))
		}

		if si1 == hdrDictzipSI1 && si2 == hdrDictzipSI2 {
			cl, s, err := readRASubfield(bytes.NewReader(subBuf))
			if err != nil {
				return totalRead, 0, nil, false, err
			}
			chunkLength, sizes, found = cl, s, true
		}
	}

	return totalRead, chunkLength, sizes, found, nil
}

// readRASubfield parses VER, CHLEN, CHCNT, and the per-chunk size table out
// of the dictzip "RA" subfield body.
func readRASubfield(r io.Reader) (int, []int, error) {
	buf := make([]byte, 2)

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, headerErr(fmt.Errorf("VER: %w", err))
	}
	ver := binary.LittleEndian.Uint16(buf)
	if ver != 1 {
		return 0, nil, fmt.Errorf("%w: RA subfield version %d", ErrUnsupportedVersion, ver)
	}

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, headerErr(fmt.Errorf("CHLEN: %w", err))
	}
	chlen := binary.LittleEndian.Uint16(buf)

	if _, err := io.ReadFull(r, buf); err != nil {
		return 0, nil, headerErr(fmt.Errorf("CHCNT: %w", err))
	}
	chcnt := binary.LittleEndian.Uint16(buf)

	sizes := make([]int, 0, chcnt)
	for i := 0; i < int(chcnt); i++ {
		if _, err := io.ReadFull(r, buf); err != nil {
			return 0, nil, headerErr(fmt.Errorf("chunk size %d: %w", i, err))
		}
		sizes = append(sizes, int(binary.LittleEndian.Uint16(buf)))
	}

	return int(chlen), sizes, nil
}

// readCString reads a NUL-terminated Latin-1 string (RFC 1952 §2.3.1).
func readCString(r io.Reader) (int64, string, error) {
	var totalRead int64
	var b strings.Builder
	buf := make([]byte, 1)

	for i := 0; ; i++ {
		if i >= 1<<20 {
			return totalRead, "", fmt.Errorf("%w: string header too long", ErrHeader)
		}
		n, err := io.ReadFull(r, buf)
		totalRead += int64(n)
		if err != nil {
			return totalRead, "", headerErr(fmt.Errorf("string header: %w", err))
		}
		if buf[0] == 0 {
			return totalRead, b.String(), nil
		}
		b.WriteRune(rune(buf[0]))
	}
}

// chunkOffsets computes the absolute file offset of each chunk, plus a
// sentinel entry equal to the offset just past the last chunk (spanning
// `[off[i], off[i+1])` per chunk, matching the index page-offset-table
// convention used by the .idx paging code).
func chunkOffsets(h header) []int64 {
	offsets := make([]int64, len(h.chunkCompressedSizes)+1)
	offsets[0] = h.bodyOffset
	for i, sz := range h.chunkCompressedSizes {
		offsets[i+1] = offsets[i] + int64(sz)
	}
	return offsets
}
