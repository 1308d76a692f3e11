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

// Package inspect classifies an RTMP/FLV payload and formats it into a
// stable one-line human description. The format is load-bearing for
// external tools that grep these lines, so it is never adjusted to
// taste.
package inspect

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/nivenly/rtmpgo/amf0"
	"github.com/nivenly/rtmpgo/rtmp"
)

// Packet is the minimal shape this package needs out of an
// rtmp.Packet or flv.Tag to classify and describe a payload.
type Packet struct {
	TypeID    uint32 // rtmp.AudioMessageID, rtmp.VideoMessageID, or a data message id
	Timestamp uint32
	Data      []byte
}

var codecNames = map[byte]string{7: "AVC", 12: "HEVC", 13: "AV1"}

var soundFormatNames = map[byte]string{0: "LPCM", 2: "MP3", 10: "AAC", 13: "Opus"}

// naluTypeNames is carried over from the original srs_librtmp human
// packet dump function, srs_human_format_rtmp_packet.
var naluTypeNames = map[byte]string{
	1: "NonIDR", 5: "IDR", 6: "SEI", 7: "SPS", 8: "PPS", 9: "AUD",
	32: "VPS", 33: "SPS", 34: "PPS",
}

// importantNALU reports whether t is one of VPS/SPS/PPS/SEI, which get
// their full bytes dumped rather than a truncated preview.
func importantNALU(t byte) bool {
	switch t {
	case 6, 7, 8, 32, 33, 34:
		return true
	default:
		return false
	}
}

// Describe formats p STABLE logged-packet grammar.
// Unknown type IDs return an error rather than guessing a format.
func Describe(p Packet) (string, error) {
	switch p.TypeID {
	case rtmp.VideoMessageID:
		return describeVideo(p)
	case rtmp.AudioMessageID:
		return describeAudio(p)
	case rtmp.DataMessageAMF0ID, rtmp.DataMessageAMF3ID:
		return describeData(p)
	default:
		return "", rtmp.NewError(rtmp.KindInputShape, rtmp.SystemIoInvalid, "inspect: unclassifiable type id %d", p.TypeID)
	}
}

func describeVideo(p Packet) (string, error) {
	if len(p.Data) < 1 {
		return "", rtmp.NewError(rtmp.KindInputShape, rtmp.FlvInvalidVideoTag, "inspect: empty video payload")
	}
	frameType := p.Data[0] >> 4
	codecID := p.Data[0] & 0x0F
	codec := codecNames[codecID]
	if codec == "" {
		codec = fmt.Sprintf("codec%d", codecID)
	}

	var avcPacketType byte
	var cts int32
	if len(p.Data) >= 5 {
		avcPacketType = p.Data[1]
		cts = decodeCompositionTime(p.Data[2], p.Data[3], p.Data[4])
	}
	dts := int64(p.Timestamp)
	pts := dts + int64(cts)

	frameName := "Inter"
	if frameType == 1 {
		frameName = "Key"
	}

	var nalus string
	if len(p.Data) >= 5 {
		nalus = walkNALUs(p.Data[5:], codecID)
	}

	hexPreview := hexDump(p.Data, 8)
	return fmt.Sprintf("Video packet type=Video, dts=%d, pts=%d, size=%d, %s(%d,%s), NALU: %s\n(%s)",
		dts, pts, len(p.Data), codec, avcPacketType, frameName, nalus, hexPreview), nil
}

func describeAudio(p Packet) (string, error) {
	if len(p.Data) < 1 {
		return "", rtmp.NewError(rtmp.KindInputShape, rtmp.SystemIoInvalid, "inspect: empty audio payload")
	}
	flags := p.Data[0]
	soundFormat := flags >> 4
	soundRate := (flags >> 2) & 0x3
	soundSize := (flags >> 1) & 0x1
	soundType := flags & 0x1

	fmtName := soundFormatNames[soundFormat]
	if fmtName == "" {
		fmtName = fmt.Sprintf("format%d", soundFormat)
	}

	var aacPacketType byte
	if soundFormat == 10 && len(p.Data) >= 2 {
		aacPacketType = p.Data[1]
	}
	dts := int64(p.Timestamp)
	hexPreview := hexDump(p.Data, 8)

	return fmt.Sprintf("Audio packet type=Audio, dts=%d, pts=%d, size=%d, %s(%d,%d,%d,%d), (%s)",
		dts, dts, len(p.Data), fmtName, soundRate, soundSize, soundType, aacPacketType, hexPreview), nil
}

func describeData(p Packet) (string, error) {
	vs, err := amf0.DecodeBatch(bytes.NewReader(p.Data))
	var pretty string
	if err != nil {
		pretty = fmt.Sprintf("<amf0 decode error: %v>", err)
	} else {
		parts := make([]string, len(vs))
		for i, v := range vs {
			parts[i] = amf0.HumanPrint(v)
		}
		pretty = strings.Join(parts, ", ")
	}
	return fmt.Sprintf("Data  packet type=Data,  time=%d, size=%d, (%s)\n%s",
		p.Timestamp, len(p.Data), hexDump(p.Data, 8), pretty), nil
}

// walkNALUs walks a length-prefixed (4-byte, AVCC/HVCC-style) NALU
// list and lists each unit's type name. codecID
// picks the type-field layout: AVC packs it into the low 5 bits of
// byte 0, HEVC into bits 1-6.
func walkNALUs(body []byte, codecID byte) string {
	var names []string
	pos := 0
	for pos+4 <= len(body) {
		n := int(body[pos])<<24 | int(body[pos+1])<<16 | int(body[pos+2])<<8 | int(body[pos+3])
		pos += 4
		if n <= 0 || pos+n > len(body) {
			break
		}
		nalu := body[pos : pos+n]
		pos += n
		if len(nalu) == 0 {
			continue
		}
		var t byte
		if codecID == 12 { // HEVC
			t = (nalu[0] >> 1) & 0x3F
		} else {
			t = nalu[0] & 0x1F
		}
		name := naluTypeNames[t]
		if name == "" {
			name = fmt.Sprintf("type%d", t)
		}
		if importantNALU(t) {
			names = append(names, fmt.Sprintf("%s[%s]", name, hexDump(nalu, len(nalu))))
		} else {
			names = append(names, fmt.Sprintf("%s[%s]", name, hexDump(nalu, 16)))
		}
	}
	return strings.Join(names, ", ")
}

// decodeCompositionTime sign-extends the 24-bit two's-complement
// composition_time field (AVC video tags can carry a negative cts when
// B-frames reorder display relative to decode).
func decodeCompositionTime(b0, b1, b2 byte) int32 {
	raw := uint32(b0)<<16 | uint32(b1)<<8 | uint32(b2)
	if raw&0x800000 != 0 {
		raw |= 0xFF000000
	}
	return int32(raw)
}

func hexDump(b []byte, n int) string {
	if n > len(b) {
		n = len(b)
	}
	return fmt.Sprintf("%x", b[:n])
}
