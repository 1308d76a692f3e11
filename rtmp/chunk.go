// Copyright © 2021 Kris Nóva <kris@nivenly.com>
// Copyright (c) 2017 吴浩麟
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
	"encoding/binary"

	"github.com/gwuhaolin/livego/utils/pool"
)

// ChunkStream is one RTMP message in flight, plus the bookkeeping a
// chunk-stream-id needs to decompress the next header it sees.
// Generalizes gwuhaolin/livego's core.go Type 0/1/2/3
// header-compression logic onto this module's own dispatch.
type ChunkStream struct {
	Format    uint32
	CSID      uint32
	Timestamp uint32
	Length    uint32
	TypeID    uint32
	StreamID  uint32

	timeDelta uint32
	exted     bool
	index     uint32
	remain    uint32
	got       bool

	// wireFormat is the format bits read off the basic header of the
	// chunk currently being parsed; it drives readChunk's dispatch and
	// may differ from Format, which records the logical message's own
	// format across Type-3 continuation chunks.
	wireFormat uint32

	Data []byte

	batchedValues []interface{}
}

func (cs *ChunkStream) full() bool { return cs.got }

func (cs *ChunkStream) new(p *pool.Pool) {
	cs.got = false
	cs.index = 0
	cs.remain = cs.Length
	cs.Data = p.Get(int(cs.Length))
}

// writeHeader emits the chunk basic header followed by the message
// header appropriate to cs.Format (11/7/3/0 bytes),
// including the 4-byte extended timestamp whenever the 24-bit
// timestamp field would otherwise be 0xFFFFFF.
func (cs *ChunkStream) writeHeader(w *ReadWriter) error {
	if err := cs.writeBasicHeader(w); err != nil {
		return err
	}

	ts := cs.Timestamp
	if cs.Format != 3 {
		if ts > 0xffffff {
			ts = 0xffffff
		}
		w.WriteUintBE(ts, 3)

		if cs.Format <= 1 {
			if cs.Length > 0xffffff {
				return newErr(KindProtocol, ChunkTooLarge, "message length %d exceeds 24 bits", cs.Length)
			}
			w.WriteUintBE(cs.Length, 3)
			w.WriteUintBE(cs.TypeID, 1)

			if cs.Format == 0 {
				w.WriteUintLE(cs.StreamID, 4)
			}
		}
	}

	if ts >= 0xffffff {
		w.WriteUintBE(cs.Timestamp, 4)
	}
	return w.WriteError()
}

// writeBasicHeader picks the 1/2/3-byte basic header encoding for
// cs.CSID: CSIDs under 64 fit in the format byte itself, CSIDs under
// 320 use the 1-byte form, everything else the 2-byte form.
func (cs *ChunkStream) writeBasicHeader(w *ReadWriter) error {
	h := cs.Format << 6
	switch {
	case cs.CSID < 64:
		h |= cs.CSID
		w.WriteUintBE(h, 1)
	case cs.CSID-64 < 256:
		w.WriteUintBE(h, 1)
		w.WriteUintLE(cs.CSID-64, 1)
	default:
		h |= 1
		w.WriteUintBE(h, 1)
		w.WriteUintLE(cs.CSID-64, 2)
	}
	return nil
}

// writeChunk splits cs.Data into chunks of at most chunkSize bytes,
// emitting a Type-0 header for the first chunk and Type-3 continuation
// headers for the rest: ceil(len(Data)/chunkSize) chunks total.
func (cs *ChunkStream) writeChunk(w *ReadWriter, chunkSize int) error {
	switch cs.TypeID {
	case AudioMessageID:
		cs.CSID = CSIDAudio
	case VideoMessageID:
		cs.CSID = CSIDVideo
	case DataMessageAMF0ID, DataMessageAMF3ID:
		cs.CSID = CSIDData
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var totalLen uint32
	numChunks := cs.Length / uint32(chunkSize)
	for i := uint32(0); i <= numChunks; i++ {
		if totalLen == cs.Length {
			break
		}
		if i == 0 {
			cs.Format = 0
		} else {
			cs.Format = 3
		}
		if err := cs.writeHeader(w); err != nil {
			return err
		}
		inc := uint32(chunkSize)
		start := i * uint32(chunkSize)
		if uint32(len(cs.Data))-start <= inc {
			inc = uint32(len(cs.Data)) - start
		}
		totalLen += inc
		if _, err := w.Write(cs.Data[start : start+inc]); err != nil {
			return err
		}
	}
	return nil
}

// readChunk consumes one physical chunk belonging to this chunk-stream
// and reports whether it completed the logical message (via full()).
// The basic header's wireFormat/csid must already be set by the caller
// (Conn.Read); readChunk dispatches to the message-header parser for
// the chunk's format and then reads its data payload.
func (cs *ChunkStream) readChunk(r *ReadWriter, chunkSize uint32, p *pool.Pool) error {
	if cs.remain != 0 && cs.wireFormat != 3 {
		return newErr(KindProtocol, InconsistentReassembly, "remain=%d with fmt=%d", cs.remain, cs.wireFormat)
	}

	switch cs.CSID {
	case 0:
		id, _ := r.ReadUintLE(1)
		cs.CSID = id + 64
	case 1:
		id, _ := r.ReadUintLE(2)
		cs.CSID = id + 64
	}

	var err error
	switch cs.wireFormat {
	case 0:
		err = cs.readType0Header(r, p)
	case 1:
		err = cs.readType1Header(r, p)
	case 2:
		err = cs.readType2Header(r, p)
	case 3:
		err = cs.readType3Continuation(r, p)
	default:
		return newErr(KindProtocol, ProtocolError, "invalid chunk format=%d", cs.wireFormat)
	}
	if err != nil {
		return err
	}

	if chunkSize == 0 {
		chunkSize = DefaultChunkSize
	}
	size := int(cs.remain)
	if size > int(chunkSize) {
		size = int(chunkSize)
	}

	buf := cs.Data[cs.index : cs.index+uint32(size)]
	if _, err := r.Read(buf); err != nil {
		return err
	}
	cs.index += uint32(size)
	cs.remain -= uint32(size)
	if cs.remain == 0 {
		cs.got = true
	}
	return r.ReadError()
}

// readType0Header parses a Type-0 (full) message header: absolute
// timestamp, message length, type id, and stream id.
func (cs *ChunkStream) readType0Header(r *ReadWriter, p *pool.Pool) error {
	cs.Format = 0
	cs.Timestamp, _ = r.ReadUintBE(3)
	cs.Length, _ = r.ReadUintBE(3)
	cs.TypeID, _ = r.ReadUintBE(1)
	cs.StreamID, _ = r.ReadUintLE(4)
	cs.exted = cs.Timestamp == 0xffffff
	if cs.exted {
		cs.Timestamp, _ = r.ReadUintBE(4)
	}
	cs.new(p)
	return nil
}

// readType1Header parses a Type-1 header: timestamp delta and message
// length/type id, reusing the previous chunk's stream id.
func (cs *ChunkStream) readType1Header(r *ReadWriter, p *pool.Pool) error {
	cs.Format = 1
	delta, _ := r.ReadUintBE(3)
	cs.Length, _ = r.ReadUintBE(3)
	cs.TypeID, _ = r.ReadUintBE(1)
	cs.exted = delta == 0xffffff
	if cs.exted {
		delta, _ = r.ReadUintBE(4)
	}
	cs.timeDelta = delta
	cs.Timestamp += delta
	cs.new(p)
	return nil
}

// readType2Header parses a Type-2 header: a timestamp delta only,
// reusing the previous chunk's length, type id, and stream id.
func (cs *ChunkStream) readType2Header(r *ReadWriter, p *pool.Pool) error {
	cs.Format = 2
	delta, _ := r.ReadUintBE(3)
	cs.exted = delta == 0xffffff
	if cs.exted {
		delta, _ = r.ReadUintBE(4)
	}
	cs.timeDelta = delta
	cs.Timestamp += delta
	cs.new(p)
	return nil
}

// readType3Continuation handles a Type-3 chunk: either the start of a
// new message that reuses every header field from the logical
// message's previous chunk, or a mid-message continuation chunk
// carrying no header fields beyond an optional repeated extended
// timestamp that must be discarded.
func (cs *ChunkStream) readType3Continuation(r *ReadWriter, p *pool.Pool) error {
	if cs.remain != 0 {
		if !cs.exted {
			return nil
		}
		peek, err := r.Peek(4)
		if err != nil {
			return err
		}
		if binary.BigEndian.Uint32(peek) == cs.Timestamp {
			r.Discard(4)
		}
		return nil
	}

	switch cs.Format {
	case 0:
		if cs.exted {
			cs.Timestamp, _ = r.ReadUintBE(4)
		}
	case 1, 2:
		delta := cs.timeDelta
		if cs.exted {
			delta, _ = r.ReadUintBE(4)
		}
		cs.Timestamp += delta
	}
	cs.new(p)
	return nil
}
