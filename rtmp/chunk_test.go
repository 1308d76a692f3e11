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

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/gwuhaolin/livego/utils/pool"
)

func TestChunkRoundTrip(t *testing.T) {
	body := make([]byte, 4096)
	for i := range body {
		body[i] = byte(i)
	}

	var wire bytes.Buffer
	w := NewReadWriter(&wire, 8192)
	out := &ChunkStream{TypeID: VideoMessageID, StreamID: 1, Timestamp: 0, Length: uint32(len(body)), Data: body}
	if err := out.writeChunk(w, 128); err != nil {
		t.Fatalf("writeChunk: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := NewReadWriter(&wire, 8192)
	p := pool.NewPool()
	in := &ChunkStream{}
	chunks := 0
	for {
		h, err := r.ReadUintBE(1)
		if err != nil {
			t.Fatalf("read basic header: %v", err)
		}
		in.wireFormat = h >> 6
		in.CSID = h & 0x3f
		chunks++
		if err := in.readChunk(r, 128, p); err != nil {
			t.Fatalf("readChunk: %v", err)
		}
		if in.full() {
			break
		}
	}

	if chunks != 32 {
		t.Errorf("chunk count: got %d want 32", chunks)
	}
	if !in.full() {
		t.Fatal("expected reassembly to complete")
	}
	if !bytes.Equal(in.Data, body) {
		t.Errorf("reassembled body does not match original")
	}
}

func TestChunkRoundTripContinuationsAreType3(t *testing.T) {
	body := make([]byte, 300)
	var wire bytes.Buffer
	w := NewReadWriter(&wire, 4096)
	out := &ChunkStream{TypeID: AudioMessageID, StreamID: 1, Length: uint32(len(body)), Data: body}
	if err := out.writeChunk(w, 128); err != nil {
		t.Fatalf("writeChunk: %v", err)
	}
	w.Flush()

	wireBytes := wire.Bytes()
	// First chunk: format 0, CSIDAudio < 64 so a 1-byte basic header.
	if wireBytes[0]>>6 != 0 {
		t.Fatalf("first chunk format: got %d want 0", wireBytes[0]>>6)
	}
	// Header(0) = 1(basic) + 3(ts) + 3(len) + 1(typeid) + 4(streamid) = 12.
	firstChunkTotal := 12 + 128
	if wireBytes[firstChunkTotal]>>6 != 3 {
		t.Fatalf("second chunk format: got %d want 3 (continuation)", wireBytes[firstChunkTotal]>>6)
	}
}

func TestChunkExtendedTimestamp(t *testing.T) {
	const ts = 0x01000000

	var wire bytes.Buffer
	w := NewReadWriter(&wire, 1024)
	payload := make([]byte, 10)
	out := &ChunkStream{TypeID: VideoMessageID, StreamID: 1, Timestamp: ts, Length: uint32(len(payload)), Data: payload}
	if err := out.writeChunk(w, 128); err != nil {
		t.Fatalf("writeChunk: %v", err)
	}
	w.Flush()

	b := wire.Bytes()
	if b[0]&0x3f != CSIDVideo {
		t.Fatalf("csid: got %d want %d", b[0]&0x3f, CSIDVideo)
	}
	ts24 := uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	if ts24 != 0xFFFFFF {
		t.Fatalf("ts24: got %#x want 0xFFFFFF", ts24)
	}
	ts32 := binary.BigEndian.Uint32(b[12:16])
	if ts32 != ts {
		t.Fatalf("extended timestamp: got %#x want %#x", ts32, uint32(ts))
	}

	r := NewReadWriter(&wire, 1024)
	p := pool.NewPool()
	in := &ChunkStream{}
	h, err := r.ReadUintBE(1)
	if err != nil {
		t.Fatalf("read basic header: %v", err)
	}
	in.wireFormat = h >> 6
	in.CSID = h & 0x3f
	if err := in.readChunk(r, 128, p); err != nil {
		t.Fatalf("readChunk: %v", err)
	}
	if in.Timestamp != ts {
		t.Errorf("decoded timestamp: got %#x want %#x", in.Timestamp, uint32(ts))
	}
	if !in.exted {
		t.Errorf("expected exted=true for a timestamp requiring the extended field")
	}
}
