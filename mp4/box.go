// Copyright © 2021 Kris Nóva <kris@nivenly.com>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package mp4 reads just enough of the ISO BMFF box layout to walk an
// MP4 file's moov tree and demux audio/video samples. It is not a
// general-purpose MP4 library: fragmented files
// (moof/mdat pairs), edit lists, and codecs other than AVC/HEVC/AV1
// video and AAC audio are out of scope.
package mp4

import (
	"encoding/binary"
	"fmt"
	"io"
)

// box is one parsed ISO BMFF box header plus the file range of its
// payload (the bytes after the header, before the next sibling box).
type box struct {
	typ        [4]byte
	start, end int64 // payload range within the file
}

func (b box) is(typ string) bool { return string(b.typ[:]) == typ }
func (b box) String() string     { return string(b.typ[:]) }

// readBoxHeader reads one box header at off, returning the box and the
// offset of the byte following its payload. Supports the 64-bit
// extended-size form (size==1, followed by a u64 largesize).
func readBoxHeader(r io.ReaderAt, off int64) (box, int64, error) {
	var hdr [8]byte
	if _, err := r.ReadAt(hdr[:], off); err != nil {
		return box{}, 0, err
	}
	size := int64(binary.BigEndian.Uint32(hdr[0:4]))
	var b box
	copy(b.typ[:], hdr[4:8])
	headerLen := int64(8)
	if size == 1 {
		var ext [8]byte
		if _, err := r.ReadAt(ext[:], off+8); err != nil {
			return box{}, 0, err
		}
		size = int64(binary.BigEndian.Uint64(ext[:]))
		headerLen = 16
	} else if size == 0 {
		return box{}, 0, fmt.Errorf("mp4: box %q extends to EOF, unsupported", b)
	}
	if size < headerLen {
		return box{}, 0, fmt.Errorf("mp4: box %q has impossible size %d", b, size)
	}
	b.start = off + headerLen
	b.end = off + size
	return b, b.end, nil
}

// walkBoxes calls fn for each top-level box in [start, end) of r,
// stopping early if fn returns a non-nil error.
func walkBoxes(r io.ReaderAt, start, end int64, fn func(box) error) error {
	off := start
	for off < end {
		b, next, err := readBoxHeader(r, off)
		if err != nil {
			return err
		}
		if err := fn(b); err != nil {
			return err
		}
		off = next
	}
	return nil
}

// readFull reads b's entire payload into memory. Used only for boxes
// small enough that this is reasonable (stsd, stts, stsz, stco, stsc,
// hdlr) — never for mdat.
func readFull(r io.ReaderAt, b box) ([]byte, error) {
	buf := make([]byte, b.end-b.start)
	if _, err := r.ReadAt(buf, b.start); err != nil {
		return nil, err
	}
	return buf, nil
}

func u32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func u16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func u24(b []byte) uint32 { return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2]) }
