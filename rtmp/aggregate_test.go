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

import "testing"

// buildAggregateSubTag encodes one FLV-tag-shaped sub-record as it
// appears inside a type-22 aggregate payload: an 11-byte header
// (tag type, 24-bit data size, 24-bit timestamp + extension byte, and
// a 3-byte stream id this module ignores), the payload, and a 4-byte
// previousTagSize trailer disassembleAggregate also ignores.
func buildAggregateSubTag(tagType uint32, ts uint32, payload []byte) []byte {
	buf := make([]byte, 11+len(payload)+4)
	buf[0] = byte(tagType)
	dataSize := uint32(len(payload))
	buf[1] = byte(dataSize >> 16)
	buf[2] = byte(dataSize >> 8)
	buf[3] = byte(dataSize)
	buf[4] = byte(ts >> 16)
	buf[5] = byte(ts >> 8)
	buf[6] = byte(ts)
	buf[7] = byte(ts >> 24)
	copy(buf[11:11+len(payload)], payload)
	return buf
}

func TestDisassembleAggregate(t *testing.T) {
	var body []byte
	body = append(body, buildAggregateSubTag(VideoMessageID, 500, []byte{0xAA})...)
	body = append(body, buildAggregateSubTag(VideoMessageID, 520, []byte{0xBB})...)
	body = append(body, buildAggregateSubTag(VideoMessageID, 540, []byte{0xCC})...)

	agg := &ChunkStream{Timestamp: 1000, StreamID: 7, Data: body}
	pkts, err := disassembleAggregate(agg)
	if err != nil {
		t.Fatalf("disassembleAggregate: %v", err)
	}
	if len(pkts) != 3 {
		t.Fatalf("packet count: got %d want 3", len(pkts))
	}

	wantTS := []uint32{1000, 1020, 1040}
	wantPayload := []byte{0xAA, 0xBB, 0xCC}
	for i, p := range pkts {
		if p.Timestamp != wantTS[i] {
			t.Errorf("packet %d timestamp: got %d want %d", i, p.Timestamp, wantTS[i])
		}
		if p.StreamID != 7 {
			t.Errorf("packet %d stream id: got %d want 7", i, p.StreamID)
		}
		if p.TypeID != VideoMessageID {
			t.Errorf("packet %d type id: got %d want %d", i, p.TypeID, VideoMessageID)
		}
		if len(p.Data) != 1 || p.Data[0] != wantPayload[i] {
			t.Errorf("packet %d payload: got %v want [%#x]", i, p.Data, wantPayload[i])
		}
	}
}

func TestDisassembleAggregateTruncatedHeader(t *testing.T) {
	agg := &ChunkStream{Timestamp: 1000, Data: []byte{0x09, 0x00, 0x00}}
	if _, err := disassembleAggregate(agg); err == nil {
		t.Fatal("expected error for a truncated sub-record header")
	}
}
