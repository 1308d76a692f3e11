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
	"time"

	"github.com/nivenly/rtmpgo/amf0"
	"github.com/nivenly/rtmpgo/internal/log"
)

// onSrsBandwidthCheck phase names. The server drives
// the play phase, the client drives the upload phase; both sides
// exchange these as the command name of an onSrsBandwidthCheck-style
// AMF0 message.
const (
	bwPhasePlayStart    = "onSrsBandwidthCheckStartPlayBytes"
	bwPhasePlayStop     = "onSrsBandwidthCheckStopPlayBytes"
	bwPhasePlayFinal    = "onSrsBandwidthCheckFinished"
	bwPhasePublishStart = "onSrsBandwidthCheckStartPublishBytes"
	bwPhasePublishStop  = "onSrsBandwidthCheckStopPublishBytes"
)

// bwUploadChunkSize is the size of each synthetic payload the client
// sends during the upload phase. A real peer varies packet size; this
// client keeps every packet the same size and relies on count rather
// than growth, which is sufficient to produce a stable kbps estimate.
const bwUploadChunkSize = 4096

// BandwidthResult is the outcome of one BandwidthCheck run.
type BandwidthResult struct {
	PlayKbps    float64
	PublishKbps float64
	Duration    time.Duration
}

// BandwidthCheck drives the onSrsBandwidthCheck phase machine to
// completion on an already-connected, already-authenticated Session
// (ConnectApp must have succeeded; BandwidthCheck does not call Play or
// Publish). It blocks until the server reports the final phase or the
// session's timeout elapses.
func (s *Session) BandwidthCheck() (BandwidthResult, error) {
	if s.state != StateAppConnected {
		return BandwidthResult{}, newErr(KindProtocol, ProtocolError, "BandwidthCheck called in state %s", s.state)
	}

	var result BandwidthResult
	var playStart, publishStart time.Time
	var playBytes, publishBytes int

	start := time.Now()
	for {
		cs := ChunkStream{}
		s.conn.SetTimeout(s.timeout)
		err := s.conn.Read(&cs)
		s.conn.SetTimeout(0)
		if err != nil {
			return result, transportErr(err)
		}

		if cs.TypeID != CommandMessageAMF0ID && cs.TypeID != CommandMessageAMF3ID {
			playBytes += len(cs.Data)
			continue
		}

		values, err := amf0.DecodeBatch(bytes.NewReader(cs.Data))
		if err != nil || len(values) == 0 {
			continue
		}
		name, _ := values[0].(string)

		switch name {
		case bwPhasePlayStart:
			playStart = time.Now()
			log.Debug(rtmpMessage("bandwidth: play phase start", rx))
		case bwPhasePlayStop:
			if !playStart.IsZero() {
				elapsed := time.Since(playStart)
				result.PlayKbps = kbps(playBytes, elapsed)
			}
			if err := s.sendBandwidthAck(bwPhasePlayStop); err != nil {
				return result, err
			}
		case bwPhasePublishStart:
			publishStart = time.Now()
			if err := s.runPublishPhase(&publishBytes); err != nil {
				return result, err
			}
			elapsed := time.Since(publishStart)
			result.PublishKbps = kbps(publishBytes, elapsed)
		case bwPhasePlayFinal:
			result.Duration = time.Since(start)
			return result, nil
		}
	}
}

// runPublishPhase sends fixed-size packets on the command channel until
// the server's stop_publish arrives upload phase.
func (s *Session) runPublishPhase(sent *int) error {
	payload := make([]byte, bwUploadChunkSize)
	for {
		cs := s.newCommandChunk(CommandMessageAMF0ID)
		cs.Data = payload
		cs.Length = uint32(len(payload))
		if err := s.writeChunk(&cs); err != nil {
			return err
		}
		*sent += len(payload)

		// Peer-driven: read without blocking the whole phase on a
		// single write; a real stop_publish interleaves with our
		// sends, so poll after every chunk.
		s.conn.SetTimeout(1 * time.Second)
		var reply ChunkStream
		err := s.conn.Read(&reply)
		s.conn.SetTimeout(0)
		if err != nil {
			if isTimeout(err) {
				// A poll timeout is expected here; clear the error the
				// ReadWriter latched so the next poll reads the socket.
				s.conn.rw.readError = nil
				continue
			}
			return transportErr(err)
		}
		if reply.TypeID != CommandMessageAMF0ID && reply.TypeID != CommandMessageAMF3ID {
			continue
		}
		values, derr := amf0.DecodeBatch(bytes.NewReader(reply.Data))
		if derr != nil || len(values) == 0 {
			continue
		}
		if name, _ := values[0].(string); name == bwPhasePublishStop {
			return nil
		}
	}
}

func (s *Session) sendBandwidthAck(phase string) error {
	return s.writeCommand(phase, s.nextTransID())
}

func kbps(byteCount int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	bits := float64(byteCount) * 8
	seconds := elapsed.Seconds()
	return bits / seconds / 1000
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	if t, ok := err.(timeouter); ok {
		return t.Timeout()
	}
	if e, ok := err.(*Error); ok {
		return e.Code == Timeout
	}
	return false
}
