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

package rtmp

import "github.com/gwuhaolin/livego/utils/pio"

// ByteStream is a bounded cursor over a borrowed byte slice. Every
// multi-byte read first checks Require so a short buffer never leaves
// the cursor partially advanced.
type ByteStream struct {
	buf []byte
	pos int
}

// NewByteStream wraps b. b is borrowed, not copied.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{buf: b}
}

// Require reports whether at least n bytes remain unread.
func (b *ByteStream) Require(n int) bool {
	return len(b.buf)-b.pos >= n
}

// Pos returns the current read/write offset.
func (b *ByteStream) Pos() int { return b.pos }

// Empty reports whether the cursor has reached the end of the buffer.
func (b *ByteStream) Empty() bool { return b.pos >= len(b.buf) }

// Len returns the number of unread bytes.
func (b *ByteStream) Len() int { return len(b.buf) - b.pos }

func (b *ByteStream) ReadU8() (uint8, error) {
	if !b.Require(1) {
		return 0, shortBuffer("ReadU8")
	}
	v := b.buf[b.pos]
	b.pos++
	return v, nil
}

func (b *ByteStream) ReadU16() (uint16, error) {
	if !b.Require(2) {
		return 0, shortBuffer("ReadU16")
	}
	v := pio.U16BE(b.buf[b.pos : b.pos+2])
	b.pos += 2
	return v, nil
}

func (b *ByteStream) ReadU24() (uint32, error) {
	if !b.Require(3) {
		return 0, shortBuffer("ReadU24")
	}
	v := pio.U24BE(b.buf[b.pos : b.pos+3])
	b.pos += 3
	return v, nil
}

func (b *ByteStream) ReadU32() (uint32, error) {
	if !b.Require(4) {
		return 0, shortBuffer("ReadU32")
	}
	v := pio.U32BE(b.buf[b.pos : b.pos+4])
	b.pos += 4
	return v, nil
}

func (b *ByteStream) ReadU64() (uint64, error) {
	if !b.Require(8) {
		return 0, shortBuffer("ReadU64")
	}
	v := pio.U64BE(b.buf[b.pos : b.pos+8])
	b.pos += 8
	return v, nil
}

// ReadBytes returns the next n bytes. The slice aliases the underlying
// buffer; callers that need to retain it beyond the ByteStream's
// lifetime must copy.
func (b *ByteStream) ReadBytes(n int) ([]byte, error) {
	if !b.Require(n) {
		return nil, shortBuffer("ReadBytes")
	}
	v := b.buf[b.pos : b.pos+n]
	b.pos += n
	return v, nil
}

// ReadString reads a u16 length prefix followed by that many bytes.
func (b *ByteStream) ReadString() (string, error) {
	n, err := b.ReadU16()
	if err != nil {
		return "", err
	}
	raw, err := b.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (b *ByteStream) Skip(n int) error {
	if !b.Require(n) {
		return shortBuffer("Skip")
	}
	b.pos += n
	return nil
}

func (b *ByteStream) WriteU8(v uint8) error {
	if !b.Require(1) {
		return shortBuffer("WriteU8")
	}
	b.buf[b.pos] = v
	b.pos++
	return nil
}

func (b *ByteStream) WriteU16(v uint16) error {
	if !b.Require(2) {
		return shortBuffer("WriteU16")
	}
	pio.PutU16BE(b.buf[b.pos:b.pos+2], v)
	b.pos += 2
	return nil
}

func (b *ByteStream) WriteU24(v uint32) error {
	if !b.Require(3) {
		return shortBuffer("WriteU24")
	}
	pio.PutU24BE(b.buf[b.pos:b.pos+3], v)
	b.pos += 3
	return nil
}

func (b *ByteStream) WriteU32(v uint32) error {
	if !b.Require(4) {
		return shortBuffer("WriteU32")
	}
	pio.PutU32BE(b.buf[b.pos:b.pos+4], v)
	b.pos += 4
	return nil
}

func (b *ByteStream) WriteBytes(p []byte) error {
	if !b.Require(len(p)) {
		return shortBuffer("WriteBytes")
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return nil
}

func shortBuffer(op string) error {
	return newErr(KindProtocol, SystemIoInvalid, "bytestream: %s: short buffer", op)
}
