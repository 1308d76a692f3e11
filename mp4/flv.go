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
	"github.com/nivenly/rtmpgo/flv"
	"github.com/nivenly/rtmpgo/rtmp"
)

// ToFLVTag prepends the codec-specific FLV prelude to s.Payload and
// returns a ready-to-write flv.Tag: "audio: 1 header
// byte + optional AAC packet-type byte; video AVC/HEVC/AV1: 1 header
// byte + avc-packet-type + 3-byte cts".
func (s Sample) ToFLVTag() (flv.Tag, error) {
	switch s.HandlerType {
	case HandlerAudio:
		return s.toAudioTag()
	case HandlerVideo:
		return s.toVideoTag()
	default:
		return flv.Tag{}, rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: sample has unhandled handler type %q", s.HandlerType)
	}
}

func (s Sample) toAudioTag() (flv.Tag, error) {
	if s.Codec != CodecAAC {
		return flv.Tag{}, rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: unsupported audio codec %q", s.Codec)
	}
	rateCode := aacSoundRateCode(s.SampleRate)
	sizeCode := byte(1)
	if s.SoundBits == 8 {
		sizeCode = 0
	}
	typeCode := byte(1)
	if s.Channels == 1 {
		typeCode = 0
	}
	header := byte(10<<4) | (rateCode << 2) | (sizeCode << 1) | typeCode

	body := make([]byte, 0, 2+len(s.Payload))
	body = append(body, header, 1) // AAC raw; sequence headers are emitted once out-of-band from the ASC
	body = append(body, s.Payload...)
	return flv.Tag{Type: flv.TypeAudio, Timestamp: uint32(s.DTS), Body: body}, nil
}

func aacSoundRateCode(rate uint32) byte {
	switch {
	case rate >= 44100:
		return 3
	case rate >= 22050:
		return 2
	case rate >= 11025:
		return 1
	default:
		return 0
	}
}

func (s Sample) toVideoTag() (flv.Tag, error) {
	var codecID byte
	switch s.Codec {
	case CodecAVC:
		codecID = 7
	case CodecHEVC:
		codecID = 12
	case CodecAV1:
		codecID = 13
	default:
		return flv.Tag{}, rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: unsupported video codec %q", s.Codec)
	}
	frameType := byte(2)
	if s.FrameType == "key" {
		frameType = 1
	}
	cts := uint32(s.PTS-s.DTS) & 0xFFFFFF

	body := make([]byte, 5, 5+len(s.Payload))
	body[0] = (frameType << 4) | codecID
	body[1] = 1 // NALU, not a sequence header — see mp4.Reader.SPSAndPPS
	body[2] = byte(cts >> 16)
	body[3] = byte(cts >> 8)
	body[4] = byte(cts)
	body = append(body, s.Payload...)
	return flv.Tag{Type: flv.TypeVideo, Timestamp: uint32(s.DTS), Body: body}, nil
}
