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

// disassembleAggregate explodes a type-22 aggregate message into its
// FLV-tag-shaped sub-records and rebases their timestamps:
// delta = agg.ts - first_sub.ts, then every sub-ts gets delta added so
// the first sub-tag lands exactly on the aggregate's own timestamp.
func disassembleAggregate(agg *ChunkStream) ([]*Packet, error) {
	body := agg.Data
	var packets []*Packet
	var delta uint32
	first := true
	pos := 0

	for pos < len(body) {
		if len(body)-pos < 11 {
			return packets, newErr(KindProtocol, RtmpAggregate, "aggregate sub-record header truncated")
		}
		tagType := uint32(body[pos])
		dataSize := pio.U24BE(body[pos+1 : pos+4])
		tsExt := uint32(body[pos+7])
		ts := pio.U24BE(body[pos+4:pos+7]) | tsExt<<24
		pos += 11

		if uint32(len(body)-pos) < dataSize+4 {
			return packets, newErr(KindProtocol, RtmpAggregate, "aggregate sub-record body truncated")
		}
		payload := body[pos : pos+int(dataSize)]
		pos += int(dataSize)
		pos += 4 // previousTagSize, not used by the caller

		if first {
			delta = agg.Timestamp - ts
			first = false
		}
		packets = append(packets, &Packet{
			TypeID:    tagType,
			StreamID:  agg.StreamID,
			Timestamp: ts + delta,
			Data:      payload,
		})
	}
	return packets, nil
}
