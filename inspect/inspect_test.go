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

package inspect

import (
	"strings"
	"testing"

	"github.com/nivenly/rtmpgo/rtmp"
)

func TestDescribeVideoSequenceHeader(t *testing.T) {
	// AVC sequence header: frame_type=1, codec=7(AVC), avc_packet_type=0, cts=0
	data := []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x01, 0x42, 0x00, 0x1E}
	got, err := Describe(Packet{TypeID: rtmp.VideoMessageID, Timestamp: 1000, Data: data})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.HasPrefix(got, "Video packet type=Video, dts=1000, pts=1000, size=9, AVC(0,Key), NALU: ") {
		t.Fatalf("unexpected format: %q", got)
	}
}

func TestDescribeVideoNALUWithIDR(t *testing.T) {
	idr := []byte{0x65, 0xAA, 0xBB}
	var body []byte
	body = append(body, 0x17, 0x01, 0x00, 0x00, 0x05) // frame=key, avc_packet_type=nalu, cts=5
	body = append(body, 0, 0, 0, byte(len(idr)))
	body = append(body, idr...)

	got, err := Describe(Packet{TypeID: rtmp.VideoMessageID, Timestamp: 2000, Data: body})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(got, "dts=2000, pts=2005") {
		t.Fatalf("expected pts = dts+cts, got %q", got)
	}
	if !strings.Contains(got, "IDR[") {
		t.Fatalf("expected IDR NALU listed, got %q", got)
	}
}

func TestDescribeVideoNegativeCompositionTime(t *testing.T) {
	idr := []byte{0x65, 0xAA, 0xBB}
	var body []byte
	body = append(body, 0x17, 0x01, 0xFF, 0xFF, 0xFF) // cts = 0xFFFFFF = -1
	body = append(body, 0, 0, 0, byte(len(idr)))
	body = append(body, idr...)

	got, err := Describe(Packet{TypeID: rtmp.VideoMessageID, Timestamp: 2000, Data: body})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(got, "dts=2000, pts=1999") {
		t.Fatalf("expected pts = dts-1 for cts=-1, got %q", got)
	}
}

func TestDescribeAudioAAC(t *testing.T) {
	data := []byte{0xAF, 0x01, 0xDE, 0xAD}
	got, err := Describe(Packet{TypeID: rtmp.AudioMessageID, Timestamp: 500, Data: data})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	want := "Audio packet type=Audio, dts=500, pts=500, size=4, AAC(3,1,1,1), (af01dead)"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestDescribeAudioAACTruncatesHexPreview(t *testing.T) {
	data := []byte{0xAF, 0x01, 0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04, 0x05}
	got, err := Describe(Packet{TypeID: rtmp.AudioMessageID, Timestamp: 500, Data: data})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(got, "(af01deadbeef0102)") {
		t.Fatalf("expected an 8-byte hex preview, got %q", got)
	}
	if strings.Contains(got, "af01deadbeef0102030405") {
		t.Fatalf("hex preview was not truncated to 8 bytes, dumped the full %d-byte payload: %q", len(data), got)
	}
}

func TestDescribeDataAMF0(t *testing.T) {
	// AMF0-encoded string "hello": marker 0x02 + u16 len + bytes
	data := []byte{0x02, 0x00, 0x05, 'h', 'e', 'l', 'l', 'o'}
	got, err := Describe(Packet{TypeID: rtmp.DataMessageAMF0ID, Timestamp: 10, Data: data})
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(got, `"hello"`) {
		t.Fatalf("expected amf0 pretty-printed value, got %q", got)
	}
}

func TestDescribeUnknownType(t *testing.T) {
	if _, err := Describe(Packet{TypeID: 99, Data: []byte{1}}); err == nil {
		t.Fatal("expected error for unclassifiable type id")
	}
}
