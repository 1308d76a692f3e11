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

package fixtureserver

import (
	"bytes"

	"github.com/nivenly/rtmpgo/amf0"
	"github.com/nivenly/rtmpgo/rtmp"
)

// onSrsBandwidthCheck phase names the server drives, mirroring the
// names rtmp/bandwidth.go's client expects.
const (
	bwPhasePlayStart    = "onSrsBandwidthCheckStartPlayBytes"
	bwPhasePlayStop     = "onSrsBandwidthCheckStopPlayBytes"
	bwPhasePlayFinal    = "onSrsBandwidthCheckFinished"
	bwPhasePublishStart = "onSrsBandwidthCheckStartPublishBytes"
	bwPhasePublishStop  = "onSrsBandwidthCheckStopPublishBytes"
)

const bwPlayChunkCount = 3
const bwPublishChunkCount = 3

// runBandwidthPhases drives the onSrsBandwidthCheck phase machine to
// completion right after a successful connect, the role a server plays
// in this exchange. Grounded on rtmp/bandwidth.go's client side, played
// in reverse.
func (s *Server) runBandwidthPhases(c *rtmp.Conn) error {
	if err := writeBandwidthCommand(c, bwPhasePlayStart); err != nil {
		return err
	}
	payload := make([]byte, 1024)
	for i := 0; i < bwPlayChunkCount; i++ {
		cs := rtmp.ChunkStream{
			Format: 0,
			CSID:   rtmp.CSIDVideo,
			TypeID: rtmp.VideoMessageID,
			Data:   payload,
			Length: uint32(len(payload)),
		}
		if err := c.Write(&cs); err != nil {
			return err
		}
	}
	if err := c.Flush(); err != nil {
		return err
	}
	if err := writeBandwidthCommand(c, bwPhasePlayStop); err != nil {
		return err
	}

	// Drain the client's ack for the stop-play phase before starting
	// the publish phase, so the two don't interleave on the wire.
	var ack rtmp.ChunkStream
	if err := c.Read(&ack); err != nil {
		return err
	}

	if err := writeBandwidthCommand(c, bwPhasePublishStart); err != nil {
		return err
	}
	for i := 0; i < bwPublishChunkCount; i++ {
		var cs rtmp.ChunkStream
		if err := c.Read(&cs); err != nil {
			return err
		}
	}
	if err := writeBandwidthCommand(c, bwPhasePublishStop); err != nil {
		return err
	}
	return writeBandwidthCommand(c, bwPhasePlayFinal)
}

func writeBandwidthCommand(c *rtmp.Conn, phase string) error {
	var buf bytes.Buffer
	if _, err := amf0.EncodeBatch(&buf, phase, float64(0)); err != nil {
		return err
	}
	cs := rtmp.ChunkStream{
		Format: 0,
		CSID:   rtmp.CSIDCommand,
		TypeID: rtmp.CommandMessageAMF0ID,
		Data:   buf.Bytes(),
		Length: uint32(buf.Len()),
	}
	if err := c.Write(&cs); err != nil {
		return err
	}
	return c.Flush()
}
