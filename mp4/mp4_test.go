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

package mp4

import (
	"bytes"
	"encoding/binary"
	"testing"
)

// putBox appends a box with the given 4cc type and payload to buf.
func putBox(buf *bytes.Buffer, typ string, payload []byte) {
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(8+len(payload)))
	buf.Write(size[:])
	buf.WriteString(typ)
	buf.Write(payload)
}

func TestReadBoxHeaderAndWalk(t *testing.T) {
	var buf bytes.Buffer
	putBox(&buf, "ftyp", []byte("isom"))
	putBox(&buf, "free", []byte{1, 2, 3})

	r := bytes.NewReader(buf.Bytes())
	var seen []string
	err := walkBoxes(r, 0, int64(buf.Len()), func(b box) error {
		seen = append(seen, b.String())
		return nil
	})
	if err != nil {
		t.Fatalf("walkBoxes: %v", err)
	}
	if len(seen) != 2 || seen[0] != "ftyp" || seen[1] != "free" {
		t.Fatalf("unexpected box sequence: %v", seen)
	}
}

func TestParseAVCC(t *testing.T) {
	sps := []byte{0x67, 0x42, 0x00, 0x1E, 0xAA, 0xBB, 0xCC}
	pps := []byte{0x68, 0xCE, 0x3C, 0x80}

	var cfg bytes.Buffer
	cfg.Write([]byte{1, sps[1], sps[2], sps[3], 0xFF})
	cfg.WriteByte(0xE1) // numOfSPS = 1
	cfg.Write([]byte{byte(len(sps) >> 8), byte(len(sps))})
	cfg.Write(sps)
	cfg.WriteByte(1) // numOfPPS
	cfg.Write([]byte{byte(len(pps) >> 8), byte(len(pps))})
	cfg.Write(pps)

	gotSPS, gotPPS := parseAVCC(cfg.Bytes())
	if !bytes.Equal(gotSPS, sps) {
		t.Fatalf("sps mismatch: got %x want %x", gotSPS, sps)
	}
	if !bytes.Equal(gotPPS, pps) {
		t.Fatalf("pps mismatch: got %x want %x", gotPPS, pps)
	}
}

func TestFindDescriptorASC(t *testing.T) {
	asc := []byte{0x12, 0x10}

	// DecSpecificInfo (tag 5)
	var dsi bytes.Buffer
	dsi.WriteByte(0x05)
	dsi.WriteByte(byte(len(asc)))
	dsi.Write(asc)

	// DecoderConfigDescr (tag 4): 13-byte fixed header + DecSpecificInfo
	var dcd bytes.Buffer
	dcdBody := append(make([]byte, 13), dsi.Bytes()...)
	dcd.WriteByte(0x04)
	dcd.WriteByte(byte(len(dcdBody)))
	dcd.Write(dcdBody)

	// ES_Descr (tag 3): 3-byte ES_ID+flags + DecoderConfigDescr
	var es bytes.Buffer
	esBody := append(make([]byte, 3), dcd.Bytes()...)
	es.WriteByte(0x03)
	es.WriteByte(byte(len(esBody)))
	es.Write(esBody)

	// esds box body: version+flags (4 bytes) + ES_Descr
	esdsBody := append(make([]byte, 4), es.Bytes()...)

	got := parseEsdsASC(esdsBody)
	if !bytes.Equal(got, asc) {
		t.Fatalf("asc mismatch: got %x want %x", got, asc)
	}
}

func TestReadDescriptorLengthShortForm(t *testing.T) {
	length, n := readDescriptorLength([]byte{0x05})
	if length != 5 || n != 1 {
		t.Fatalf("got length=%d n=%d, want 5,1", length, n)
	}
}

func TestReadDescriptorLengthMultiByteForm(t *testing.T) {
	// 0x81 0x02 -> continuation bit set on first byte, value bits 0x01 then 0x02 => (1<<7)|2 = 130
	length, n := readDescriptorLength([]byte{0x81, 0x02})
	if length != 130 || n != 2 {
		t.Fatalf("got length=%d n=%d, want 130,2", length, n)
	}
}
