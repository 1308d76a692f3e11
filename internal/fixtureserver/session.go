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
	"io"

	"github.com/nivenly/rtmpgo/amf0"
	"github.com/nivenly/rtmpgo/rtmp"
)

// runSession answers connect/createStream/publish/play on one accepted
// connection until the client disconnects or an unrecoverable error
// occurs.
func (s *Server) runSession(c *rtmp.Conn) error {
	var streamID uint32 = 1
	var streamName string
	var publishing bool

	for {
		var cs rtmp.ChunkStream
		if err := c.Read(&cs); err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}

		switch cs.TypeID {
		case rtmp.CommandMessageAMF0ID, rtmp.CommandMessageAMF3ID:
			values, err := amf0.DecodeBatch(bytes.NewReader(cs.Data))
			if err != nil || len(values) == 0 {
				continue
			}
			name, _ := values[0].(string)
			txID, _ := values[1].(float64)

			switch name {
			case rtmp.CommandConnect:
				if err := s.replyConnect(c, int(txID)); err != nil {
					return err
				}
				if s.RunBandwidthCheck {
					if err := s.runBandwidthPhases(c); err != nil {
						return err
					}
				}
			case rtmp.CommandCreateStream:
				if err := writeCommandResult(c, int(txID), streamID); err != nil {
					return err
				}
			case rtmp.CommandPublish:
				publishing = true
				if len(values) >= 4 {
					streamName, _ = values[3].(string)
				}
				if err := writeOnStatus(c, streamID, rtmp.NetStreamPublishStart); err != nil {
					return err
				}
			case rtmp.CommandPlay:
				if len(values) >= 4 {
					streamName, _ = values[3].(string)
				}
				_ = streamName
				if err := writeOnStatus(c, streamID, rtmp.NetStreamPlayStart); err != nil {
					return err
				}
				if err := s.sendPlayPackets(c, streamID); err != nil {
					return err
				}
			}
		default:
			if publishing {
				s.recordPublished(streamName, Packet{TypeID: cs.TypeID, Timestamp: cs.Timestamp, Data: append([]byte(nil), cs.Data...)})
			}
		}
	}
}

func writeCommandResult(c *rtmp.Conn, txID int, streamID uint32) error {
	var buf bytes.Buffer
	if _, err := amf0.EncodeBatch(&buf, rtmp.CommandResult, float64(txID), amf0.Null, float64(streamID)); err != nil {
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

func (s *Server) replyConnect(c *rtmp.Conn, txID int) error {
	srvInfo := &amf0.Object{}
	srvInfo.Set("fmsVer", "rtmpgo-fixture/1,0,0,0")
	srvInfo.Set("capabilities", float64(31))

	info := &amf0.Object{}
	info.Set(rtmp.ConnEventCode, rtmp.NetConnectionConnectSuccess)
	info.Set("description", "Connection succeeded.")

	var buf bytes.Buffer
	if _, err := amf0.EncodeBatch(&buf, rtmp.CommandResult, float64(txID), srvInfo, info); err != nil {
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

func writeOnStatus(c *rtmp.Conn, streamID uint32, code string) error {
	info := &amf0.Object{}
	info.Set(rtmp.ConnEventCode, code)
	info.Set("description", code)

	var buf bytes.Buffer
	if _, err := amf0.EncodeBatch(&buf, rtmp.CommandOnStatus, float64(0), amf0.Null, info); err != nil {
		return err
	}
	cs := rtmp.ChunkStream{
		Format:   0,
		CSID:     rtmp.CSIDCommand,
		TypeID:   rtmp.CommandMessageAMF0ID,
		StreamID: streamID,
		Data:     buf.Bytes(),
		Length:   uint32(buf.Len()),
	}
	if err := c.Write(&cs); err != nil {
		return err
	}
	return c.Flush()
}

func (s *Server) sendPlayPackets(c *rtmp.Conn, streamID uint32) error {
	for _, p := range s.PlayPackets {
		cs := rtmp.ChunkStream{
			Format:    0,
			CSID:      chunkStreamFor(p.TypeID),
			TypeID:    p.TypeID,
			StreamID:  streamID,
			Timestamp: p.Timestamp,
			Data:      p.Data,
			Length:    uint32(len(p.Data)),
		}
		if err := c.Write(&cs); err != nil {
			return err
		}
	}
	return c.Flush()
}

func chunkStreamFor(typeID uint32) uint32 {
	switch typeID {
	case rtmp.AudioMessageID:
		return rtmp.CSIDAudio
	case rtmp.VideoMessageID:
		return rtmp.CSIDVideo
	case rtmp.DataMessageAMF0ID, rtmp.DataMessageAMF3ID:
		return rtmp.CSIDData
	default:
		return rtmp.CSIDCommand
	}
}
