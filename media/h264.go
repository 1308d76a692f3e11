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
	"github.com/gwuhaolin/livego/utils/pio"

	"github.com/nivenly/rtmpgo/rtmp"
)

// NALU type values this adapter recognizes.
const (
	NALUTypeNonIDR = 1
	NALUTypeIDR    = 5
	NALUTypeSEI    = 6
	NALUTypeSPS    = 7
	NALUTypePPS    = 8
	NALUTypeAUD    = 9
)

// NALU is one demuxed Annex-B unit.
type NALU struct {
	Type byte
	Raw  []byte // payload, start code stripped
}

// DemuxAnnexB splits Annex-B framed H.264 into NALUs: units are
// separated by 3- or 4-byte start codes (00 00 01 or 00 00 00 01).
func DemuxAnnexB(data []byte) ([]NALU, error) {
	starts := findStartCodes(data)
	if len(starts) == 0 {
		return nil, rtmp.NewError(rtmp.KindInputShape, rtmp.SystemIoInvalid, "annexb: no start code found")
	}
	var nalus []NALU
	for i, s := range starts {
		end := len(data)
		if i+1 < len(starts) {
			end = starts[i+1].codeStart
		}
		payload := data[s.payloadStart:end]
		if len(payload) == 0 {
			continue
		}
		nalus = append(nalus, NALU{Type: payload[0] & 0x1F, Raw: payload})
	}
	return nalus, nil
}

type startCode struct {
	codeStart    int
	payloadStart int
}

func findStartCodes(data []byte) []startCode {
	var out []startCode
	for i := 0; i+2 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 {
			continue
		}
		if data[i+2] == 1 {
			out = append(out, startCode{codeStart: i, payloadStart: i + 3})
			i += 2
			continue
		}
		if i+3 < len(data) && data[i+2] == 0 && data[i+3] == 1 {
			out = append(out, startCode{codeStart: i, payloadStart: i + 4})
			i += 3
		}
	}
	return out
}

// H264State tracks the per-session SPS/PPS cache and sequence-header
// bookkeeping.
type H264State struct {
	SPS        []byte
	PPS        []byte
	SPSChanged bool
	PPSChanged bool
	SPSPPSSent bool
}

// ObserveNALU folds one NALU into the state, recording whether a known
// parameter set changed. Duplicated (byte-identical) SPS/PPS are
// reported as recoverable warnings kind 1; they do not
// prevent the mux from continuing.
func (s *H264State) ObserveNALU(n NALU) error {
	switch n.Type {
	case NALUTypeSPS:
		if s.SPS != nil && bytesEqual(s.SPS, n.Raw) {
			return rtmp.NewError(rtmp.KindRecoverableWarning, rtmp.H264DuplicatedSps, "h264: duplicated sps")
		}
		s.SPS = append([]byte(nil), n.Raw...)
		s.SPSChanged = true
		s.SPSPPSSent = false
	case NALUTypePPS:
		if s.PPS != nil && bytesEqual(s.PPS, n.Raw) {
			return rtmp.NewError(rtmp.KindRecoverableWarning, rtmp.H264DuplicatedPps, "h264: duplicated pps")
		}
		s.PPS = append([]byte(nil), n.Raw...)
		s.PPSChanged = true
		s.SPSPPSSent = false
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// AVCDecoderConfigurationRecord builds the AVCC sequence-header body
// carrying exactly one SPS and one PPS.
func AVCDecoderConfigurationRecord(sps, pps []byte) []byte {
	if len(sps) < 4 {
		return nil
	}
	body := make([]byte, 0, 11+len(sps)+len(pps))
	body = append(body,
		1,          // configurationVersion
		sps[1],     // AVCProfileIndication
		sps[2],     // profile_compatibility
		sps[3],     // AVCLevelIndication
		0xFF,       // lengthSizeMinusOne=3 | reserved
		0xE1,       // numOfSPS=1 | reserved
	)
	body = append(body, byte(len(sps)>>8), byte(len(sps)))
	body = append(body, sps...)
	body = append(body, 1) // numOfPPS
	body = append(body, byte(len(pps)>>8), byte(len(pps)))
	body = append(body, pps...)
	return body
}

// MuxVideoOptions overrides what the mux treats as the AVC codec id.
// Defaults to CodecID 7 (AVC).
type MuxVideoOptions struct {
	CodecID byte
}

var defaultMuxVideoOptions = MuxVideoOptions{CodecID: 7}

// MuxSequenceHeaderTag builds the video tag body for a fresh AVC
// sequence header, if s's SPS/PPS have changed since the last one was
// sent. Returns ok=false when nothing needs to be (re)sent.
func (s *H264State) MuxSequenceHeaderTag(opts *MuxVideoOptions) (body []byte, ok bool) {
	if s.SPS == nil || s.PPS == nil {
		return nil, false
	}
	if s.SPSPPSSent && !s.SPSChanged && !s.PPSChanged {
		return nil, false
	}
	o := defaultMuxVideoOptions
	if opts != nil {
		o = *opts
	}
	record := AVCDecoderConfigurationRecord(s.SPS, s.PPS)
	out := make([]byte, 0, 5+len(record))
	out = append(out, (1<<4)|o.CodecID, 0, 0, 0, 0) // frame_type=1(key), avc_packet_type=0(sh), cts=0
	out = append(out, record...)
	s.SPSChanged = false
	s.PPSChanged = false
	s.SPSPPSSent = true
	return out, true
}

// MuxNALUTag builds one video tag body for an IPB NALU. A frame
// arriving before the session's first sequence header is dropped with
// a H264DropBeforeSpsPps error.
func (s *H264State) MuxNALUTag(n NALU, cts int32, opts *MuxVideoOptions) ([]byte, error) {
	if !s.SPSPPSSent {
		return nil, rtmp.NewError(rtmp.KindRecoverableWarning, rtmp.H264DropBeforeSpsPps, "h264: frame before sps/pps sequence header")
	}
	o := defaultMuxVideoOptions
	if opts != nil {
		o = *opts
	}
	frameType := byte(2) // inter
	if n.Type == NALUTypeIDR {
		frameType = 1 // key
	}
	out := make([]byte, 5, 5+4+len(n.Raw))
	out[0] = (frameType << 4) | o.CodecID
	out[1] = 1 // avc_packet_type = NALU
	ct := uint32(cts) & 0xFFFFFF
	out[2] = byte(ct >> 16)
	out[3] = byte(ct >> 8)
	out[4] = byte(ct)

	var lenPrefix [4]byte
	pio.PutU32BE(lenPrefix[:], uint32(len(n.Raw)))
	out = append(out, lenPrefix[:]...)
	out = append(out, n.Raw...)
	return out, nil
}

// MuxFrames runs WriteH264RawFrames-style batch mux: for each input
// NALU in order, it updates s's SPS/PPS cache, emits a fresh sequence
// header tag whenever one is needed, and emits a NALU tag for IPB
// units. Non-IPB, non-parameter NALUs (AUD, SEI, ...) are dropped
// silently. The returned error (if any) is the *last* recoverable
// warning encountered; the caller's batch still completes.
func (s *H264State) MuxFrames(nalus []NALU, cts int32, opts *MuxVideoOptions) (tags [][]byte, warn error) {
	for _, n := range nalus {
		switch n.Type {
		case NALUTypeSPS, NALUTypePPS:
			if err := s.ObserveNALU(n); err != nil {
				warn = err
			}
		case NALUTypeIDR, NALUTypeNonIDR:
			if sh, ok := s.MuxSequenceHeaderTag(opts); ok {
				tags = append(tags, sh)
			}
			tag, err := s.MuxNALUTag(n, cts, opts)
			if err != nil {
				warn = err
				continue
			}
			tags = append(tags, tag)
		default:
			// AUD, SEI, and other non-essential units are dropped at mux time.
		}
	}
	return tags, warn
}
