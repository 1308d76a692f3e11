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
	"bufio"
	"io"
	"net"
	"time"

	"github.com/gwuhaolin/livego/utils/pio"
	"github.com/gwuhaolin/livego/utils/pool"
)

// ReadWriter is a buffered net.Conn wrapper that latches the first read
// or write error it sees, so every subsequent call on a broken
// connection returns that same error instead of silently retrying.
// Carried over from gwuhaolin/livego's core.go almost verbatim.
type ReadWriter struct {
	*bufio.ReadWriter
	readError  error
	writeError error
}

func NewReadWriter(rw io.ReadWriter, bufSize int) *ReadWriter {
	return &ReadWriter{
		ReadWriter: bufio.NewReadWriter(bufio.NewReaderSize(rw, bufSize), bufio.NewWriterSize(rw, bufSize)),
	}
}

func (rw *ReadWriter) Read(p []byte) (int, error) {
	if rw.readError != nil {
		return 0, rw.readError
	}
	n, err := io.ReadAtLeast(rw.ReadWriter, p, len(p))
	if err != nil {
		rw.readError = err
	}
	return n, err
}

func (rw *ReadWriter) ReadError() error { return rw.readError }

func (rw *ReadWriter) ReadUintBE(n int) (uint32, error) {
	buf := make([]byte, n)
	if _, err := rw.Read(buf); err != nil {
		return 0, err
	}
	var v uint32
	for _, b := range buf {
		v = v<<8 + uint32(b)
	}
	return v, nil
}

func (rw *ReadWriter) ReadUintLE(n int) (uint32, error) {
	buf := make([]byte, n)
	if _, err := rw.Read(buf); err != nil {
		return 0, err
	}
	var v uint32
	for i := len(buf) - 1; i >= 0; i-- {
		v = v<<8 + uint32(buf[i])
	}
	return v, nil
}

func (rw *ReadWriter) Flush() error {
	if rw.writeError != nil {
		return rw.writeError
	}
	return rw.ReadWriter.Flush()
}

func (rw *ReadWriter) Write(p []byte) (int, error) {
	if rw.writeError != nil {
		return 0, rw.writeError
	}
	n, err := rw.ReadWriter.Write(p)
	if err != nil {
		rw.writeError = err
	}
	return n, err
}

func (rw *ReadWriter) WriteError() error { return rw.writeError }

func (rw *ReadWriter) WriteUintBE(v uint32, n int) error {
	buf := make([]byte, n)
	for i := n - 1; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	_, err := rw.Write(buf)
	return err
}

func (rw *ReadWriter) WriteUintLE(v uint32, n int) error {
	buf := make([]byte, n)
	for i := 0; i < n; i++ {
		buf[i] = byte(v)
		v >>= 8
	}
	_, err := rw.Write(buf)
	return err
}

// Conn wraps a net.Conn with the buffered ReadWriter above plus the
// chunk-stream negotiation state (window ack size, chunk sizes) that
// every message on this connection shares. Grounded on core.go's Conn.
type Conn struct {
	net.Conn
	rw *ReadWriter

	pool *pool.Pool

	chunks map[uint32]*ChunkStream

	readChunkSize  uint32
	writeChunkSize uint32

	remoteWindowAckSize uint32
	windowAckSize       uint32
	receivedBytes       uint32
	ackReceivedBytes    uint32
}

const defaultConnBufferSize = 4096

func NewConn(c net.Conn, bufferSize int) *Conn {
	if bufferSize <= 0 {
		bufferSize = defaultConnBufferSize
	}
	return &Conn{
		Conn:           c,
		rw:             NewReadWriter(c, bufferSize),
		pool:           pool.NewPool(),
		chunks:         make(map[uint32]*ChunkStream),
		readChunkSize:  DefaultChunkSize,
		writeChunkSize: DefaultChunkSize,
		windowAckSize:  DefaultWindowAckSize,
	}
}

func (c *Conn) SetTimeout(d time.Duration) {
	if d <= 0 {
		c.Conn.SetDeadline(time.Time{})
		return
	}
	c.Conn.SetDeadline(time.Now().Add(d))
}

func (c *Conn) Flush() error { return c.rw.Flush() }

func (c *Conn) Write(cs *ChunkStream) error {
	return cs.writeChunk(c.rw, int(c.writeChunkSize))
}

// SetChunkSize announces a new outgoing chunk size to the peer via a
// set_chunk_size control message, then applies it to every message c
// writes afterward.
func (c *Conn) SetChunkSize(n uint32) error {
	if n == 0 {
		n = DefaultChunkSize
	}
	if n > MaxChunkSize {
		return newErr(KindProtocol, ChunkTooLarge, "chunk size %d exceeds max %d", n, MaxChunkSize)
	}
	cs := newChunkStream(SetChunkSizeMessageID, CSIDProtocolControl, 0)
	cs.Data = make([]byte, 4)
	pio.PutU32BE(cs.Data, n)
	cs.Length = 4
	if err := c.Write(&cs); err != nil {
		return err
	}
	if err := c.Flush(); err != nil {
		return err
	}
	c.writeChunkSize = n
	return nil
}

// Read assembles one complete message across as many chunks as needed.
// Chunks from different chunk-stream-ids may interleave on the wire, so
// per-CSID reassembly state (held in c.chunks) persists across calls
// until that CSID's message is complete. Protocol-control messages are
// interpreted inline and never returned to the caller.
func (c *Conn) Read(out *ChunkStream) error {
	for {
		h, err := c.rw.ReadUintBE(1)
		if err != nil {
			return err
		}
		format := h >> 6
		csid := h & 0x3f

		cur, ok := c.chunks[csid]
		if !ok {
			cur = &ChunkStream{}
			c.chunks[csid] = cur
		}
		cur.wireFormat = format
		cur.CSID = csid

		if err := cur.readChunk(c.rw, c.readChunkSize, c.pool); err != nil {
			return err
		}
		if !cur.full() {
			continue
		}
		c.receivedBytes += cur.Length
		c.Ack(cur.Length)
		if c.handleControlMsg(cur) {
			continue
		}
		*out = *cur
		return nil
	}
}

// handleControlMsg interprets set_chunk_size / window_ack_size /
// set_peer_bandwidth / user_control inline, and
// reports whether the message was a control message (and so must not be
// surfaced to the caller).
func (c *Conn) handleControlMsg(cs *ChunkStream) bool {
	switch cs.TypeID {
	case SetChunkSizeMessageID:
		c.readChunkSize = pio.U32BE(cs.Data)
		return true
	case AbortMessageID:
		return true
	case AcknowledgementMessageID:
		return true
	case WindowAcknowledgementSizeMessageID:
		c.remoteWindowAckSize = pio.U32BE(cs.Data)
		return true
	case SetPeerBandwidthMessageID:
		return true
	case UserControlMessageID:
		c.handleUserControl(cs)
		return true
	default:
		return false
	}
}

func (c *Conn) handleUserControl(cs *ChunkStream) {
	if len(cs.Data) < 2 {
		return
	}
	event := pio.U16BE(cs.Data[:2])
	if event == UserControlEventPingRequest {
		resp := newChunkStream(UserControlMessageID, CSIDProtocolControl, 0)
		resp.Data = make([]byte, 2+len(cs.Data)-2)
		pio.PutU16BE(resp.Data[:2], UserControlEventPingResponse)
		copy(resp.Data[2:], cs.Data[2:])
		resp.Length = uint32(len(resp.Data))
		c.Write(&resp)
		c.Flush()
	}
}

func (c *Conn) Ack(size uint32) {
	c.ackReceivedBytes += size
	if c.remoteWindowAckSize > 0 && c.ackReceivedBytes >= c.remoteWindowAckSize {
		ack := newChunkStream(AcknowledgementMessageID, CSIDProtocolControl, 0)
		ack.Data = make([]byte, 4)
		pio.PutU32BE(ack.Data, c.ackReceivedBytes)
		ack.Length = 4
		c.Write(&ack)
		c.Flush()
		c.ackReceivedBytes = 0
	}
}

func newChunkStream(typeID, csid uint32, streamID uint32) ChunkStream {
	return ChunkStream{
		Format:   0,
		CSID:     csid,
		TypeID:   typeID,
		StreamID: streamID,
	}
}
