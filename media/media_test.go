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

package media

import (
	"bytes"
	"testing"
)

// buildADTS builds one ADTS frame (no CRC) carrying raw as the AAC
// payload, for profile=1 (LC), 44100Hz, stereo.
func buildADTS(raw []byte) []byte {
	frameLen := 7 + len(raw)
	b := make([]byte, frameLen)
	b[0] = 0xFF
	b[1] = 0xF1 // MPEG-4, no CRC
	profile := byte(1)
	sfi := byte(4) // 44100Hz
	chanCfg := byte(2)
	b[2] = (profile << 6) | (sfi << 2) | (chanCfg >> 2)
	b[3] = (chanCfg & 0x3 << 6) | byte(frameLen>>11)
	b[4] = byte(frameLen >> 3)
	b[5] = byte(frameLen<<5) | 0x1F
	b[6] = 0xFC
	copy(b[7:], raw)
	return b
}

func TestDemuxADTSTwoFrames(t *testing.T) {
	raw1 := []byte{0xAA, 0xBB, 0xCC}
	raw2 := []byte{0x11, 0x22}
	data := append(buildADTS(raw1), buildADTS(raw2)...)

	frames, err := DemuxADTS(data)
	if err != nil {
		t.Fatalf("DemuxADTS: %v", err)
	}
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if !bytes.Equal(frames[0].Raw, raw1) {
		t.Fatalf("frame 0 raw mismatch: got %x want %x", frames[0].Raw, raw1)
	}
	if !bytes.Equal(frames[1].Raw, raw2) {
		t.Fatalf("frame 1 raw mismatch: got %x want %x", frames[1].Raw, raw2)
	}
}

func TestDemuxADTSMissingSync(t *testing.T) {
	if _, err := DemuxADTS([]byte{0x00, 0x00, 0, 0, 0, 0, 0}); err == nil {
		t.Fatal("expected AacRequiredAdts error for missing sync word")
	}
}

// TestAACToFLVSequenceThenRaw checks that with two ADTS frames in, the
// first output tag is a sequence header and the rest are raw.
func TestAACToFLVSequenceThenRaw(t *testing.T) {
	raw1 := []byte{0xDE, 0xAD}
	raw2 := []byte{0xBE, 0xEF}
	data := append(buildADTS(raw1), buildADTS(raw2)...)
	frames, err := DemuxADTS(data)
	if err != nil {
		t.Fatalf("DemuxADTS: %v", err)
	}

	var st AudioState
	body0, isSeq0 := st.MuxAudioTag(frames[0], nil)
	if !isSeq0 {
		t.Fatal("expected first tag to be a sequence header")
	}
	if body0[0] != (10<<4)|(3<<2)|(1<<1)|1 || body0[1] != 0 {
		t.Fatalf("unexpected sequence header prefix: %x", body0[:2])
	}
	if len(body0) != 2+2 {
		t.Fatalf("expected ASC of length 2, got body %x", body0)
	}

	body1, isSeq1 := st.MuxAudioTag(frames[0], nil)
	if isSeq1 {
		t.Fatal("expected second tag to be raw")
	}
	if body1[1] != 1 || !bytes.Equal(body1[2:], raw1) {
		t.Fatalf("unexpected raw tag body: %x", body1)
	}

	body2, isSeq2 := st.MuxAudioTag(frames[1], nil)
	if isSeq2 {
		t.Fatal("expected third tag to be raw")
	}
	if !bytes.Equal(body2[2:], raw2) {
		t.Fatalf("unexpected raw tag body: %x", body2)
	}
}

func sps() []byte { return []byte{0x67, 0x42, 0x00, 0x1E, 0xAA, 0xBB} }
func pps() []byte { return []byte{0x68, 0xCE, 0x3C, 0x80} }
func idr() []byte { return []byte{0x65, 0x01, 0x02, 0x03} }

func annexB(nalus ...[]byte) []byte {
	var out []byte
	for _, n := range nalus {
		out = append(out, 0, 0, 0, 1)
		out = append(out, n...)
	}
	return out
}

func TestDemuxAnnexBThreeNALUs(t *testing.T) {
	data := annexB(sps(), pps(), idr())
	nalus, err := DemuxAnnexB(data)
	if err != nil {
		t.Fatalf("DemuxAnnexB: %v", err)
	}
	if len(nalus) != 3 {
		t.Fatalf("expected 3 NALUs, got %d", len(nalus))
	}
	if nalus[0].Type != NALUTypeSPS || nalus[1].Type != NALUTypePPS || nalus[2].Type != NALUTypeIDR {
		t.Fatalf("unexpected NALU types: %d %d %d", nalus[0].Type, nalus[1].Type, nalus[2].Type)
	}
}

// TestH264SPSPPSThenIDR checks that sps, pps, idr in produces one
// sequence-header tag followed by one NALU tag.
func TestH264SPSPPSThenIDR(t *testing.T) {
	nalus, err := DemuxAnnexB(annexB(sps(), pps(), idr()))
	if err != nil {
		t.Fatalf("DemuxAnnexB: %v", err)
	}

	var st H264State
	tags, warn := st.MuxFrames(nalus, 0, nil)
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if len(tags) != 2 {
		t.Fatalf("expected 2 tags (sequence header + NALU), got %d", len(tags))
	}
	if tags[0][0] != 0x17 || tags[0][1] != 0 {
		t.Fatalf("expected AVC sequence header tag, got %x", tags[0][:2])
	}
	if tags[1][0] != 0x17 || tags[1][1] != 1 {
		t.Fatalf("expected AVC NALU tag, got %x", tags[1][:2])
	}

	// A subsequent IDR alone (no sps/pps change) emits one NALU tag and
	// no sequence header.
	nalus2, err := DemuxAnnexB(annexB(idr()))
	if err != nil {
		t.Fatalf("DemuxAnnexB: %v", err)
	}
	tags2, warn2 := st.MuxFrames(nalus2, 0, nil)
	if warn2 != nil {
		t.Fatalf("unexpected warning: %v", warn2)
	}
	if len(tags2) != 1 {
		t.Fatalf("expected exactly 1 tag, got %d", len(tags2))
	}
	if tags2[0][1] != 1 {
		t.Fatalf("expected NALU tag (avc_packet_type=1), got %x", tags2[0][:2])
	}
}

func TestH264DropBeforeSpsPps(t *testing.T) {
	nalus, err := DemuxAnnexB(annexB(idr()))
	if err != nil {
		t.Fatalf("DemuxAnnexB: %v", err)
	}
	var st H264State
	tags, warn := st.MuxFrames(nalus, 0, nil)
	if len(tags) != 0 {
		t.Fatalf("expected no tags emitted before sps/pps, got %d", len(tags))
	}
	if warn == nil {
		t.Fatal("expected H264DropBeforeSpsPps warning")
	}
}

func TestH264DuplicatedSpsWarns(t *testing.T) {
	var st H264State
	if err := st.ObserveNALU(NALU{Type: NALUTypeSPS, Raw: sps()}); err != nil {
		t.Fatalf("first sps observe: %v", err)
	}
	if err := st.ObserveNALU(NALU{Type: NALUTypeSPS, Raw: sps()}); err == nil {
		t.Fatal("expected H264DuplicatedSps warning on repeated identical sps")
	}
}

func TestH264ResendAfterSpsChange(t *testing.T) {
	nalus, err := DemuxAnnexB(annexB(sps(), pps(), idr()))
	if err != nil {
		t.Fatalf("DemuxAnnexB: %v", err)
	}
	var st H264State
	if _, warn := st.MuxFrames(nalus, 0, nil); warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}

	newSPS := []byte{0x67, 0x42, 0x00, 0x1F, 0xCC, 0xDD}
	nalus2, err := DemuxAnnexB(annexB(newSPS, idr()))
	if err != nil {
		t.Fatalf("DemuxAnnexB: %v", err)
	}
	tags, warn := st.MuxFrames(nalus2, 0, nil)
	if warn != nil {
		t.Fatalf("unexpected warning: %v", warn)
	}
	if len(tags) != 2 {
		t.Fatalf("expected fresh sequence header + NALU after sps change, got %d tags", len(tags))
	}
	if tags[0][1] != 0 {
		t.Fatalf("expected a sequence header tag, got %x", tags[0][:2])
	}
}
