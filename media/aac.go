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
	"github.com/nivenly/rtmpgo/rtmp"
)

// ADTSFrame is one demuxed AAC-in-ADTS access unit.
type ADTSFrame struct {
	Profile                byte // MPEG-4 object type minus 1
	SamplingFrequencyIndex byte
	ChannelConfiguration   byte
	Raw                    []byte // raw AAC payload, ADTS header stripped
}

// DemuxADTS splits a byte stream of back-to-back ADTS units into
// frames: each unit begins with a 12-bit sync word
// 0xFFF in the first two bytes' 12 MSBs.
func DemuxADTS(data []byte) ([]ADTSFrame, error) {
	var frames []ADTSFrame
	pos := 0
	for pos < len(data) {
		if len(data)-pos < 7 {
			return frames, rtmp.NewError(rtmp.KindInputShape, rtmp.AacRequiredAdts, "adts header truncated")
		}
		b0, b1 := data[pos], data[pos+1]
		if b0 != 0xFF || b1&0xF0 != 0xF0 {
			return frames, rtmp.NewError(rtmp.KindInputShape, rtmp.AacRequiredAdts, "missing ADTS sync word at byte %d", pos)
		}
		protectionAbsent := b1 & 0x01
		b2, b3, b4 := data[pos+2], data[pos+3], data[pos+4]
		profile := (b2 >> 6) & 0x03
		sfi := (b2 >> 2) & 0x0F
		channelCfg := ((b2 & 0x01) << 2) | ((b3 >> 6) & 0x03)
		frameLength := (uint32(b3&0x03) << 11) | (uint32(b4) << 3) | (uint32(data[pos+5]) >> 5)

		headerLen := 7
		if protectionAbsent == 0 {
			headerLen = 9 // CRC present
		}
		if int(frameLength) < headerLen || pos+int(frameLength) > len(data) {
			return frames, rtmp.NewError(rtmp.KindInputShape, rtmp.AacRequiredAdts, "adts frame_length out of range")
		}
		raw := data[pos+headerLen : pos+int(frameLength)]
		frames = append(frames, ADTSFrame{
			Profile:                profile,
			SamplingFrequencyIndex: sfi,
			ChannelConfiguration:   channelCfg,
			Raw:                    raw,
		})
		pos += int(frameLength)
	}
	return frames, nil
}

// AudioSpecificConfig computes the 2-byte ASC from ADTS fields.
func AudioSpecificConfig(profile, samplingFrequencyIndex, channelConfiguration byte) []byte {
	objectType := profile + 1
	b0 := (objectType << 3) | (samplingFrequencyIndex >> 1)
	b1 := (samplingFrequencyIndex&0x01)<<7 | (channelConfiguration << 3)
	return []byte{b0, b1}
}

// AACMuxOptions overrides the ADTS-derived audio tag header fields,
// "Caller-provided sound_format/rate/size/type
// overrides the ADTS-derived defaults."
type AACMuxOptions struct {
	SoundFormat byte // default 10 (AAC)
	SoundRate   byte // default 3 (44kHz)
	SoundSize   byte // default 1 (16-bit)
	SoundType   byte // default 1 (stereo)
}

var defaultAACMuxOptions = AACMuxOptions{SoundFormat: 10, SoundRate: 3, SoundSize: 1, SoundType: 1}

// AudioState tracks whether the AAC sequence header has been emitted
// yet for a session "AAC: {asc: bytes}".
type AudioState struct {
	ASC  []byte
	Sent bool
}

// MuxAudioTag builds one FLV audio tag body. The first call on s returns
// the AudioSpecificConfig sequence header derived from frame, with true
// as the second result; frame's raw data is not in that body, so the
// caller passes frame again. Later calls return a raw-frame tag body for
// frame and false.
func (s *AudioState) MuxAudioTag(frame ADTSFrame, opts *AACMuxOptions) ([]byte, bool) {
	o := defaultAACMuxOptions
	if opts != nil {
		o = *opts
	}
	header := (o.SoundFormat << 4) | (o.SoundRate << 2) | (o.SoundSize << 1) | o.SoundType

	if !s.Sent {
		s.ASC = AudioSpecificConfig(frame.Profile, frame.SamplingFrequencyIndex, frame.ChannelConfiguration)
		s.Sent = true
		body := make([]byte, 0, 2+len(s.ASC))
		body = append(body, header, 0) // aac_packet_type = 0 (sequence header)
		body = append(body, s.ASC...)
		return body, true
	}

	body := make([]byte, 0, 2+len(frame.Raw))
	body = append(body, header, 1) // aac_packet_type = 1 (raw)
	body = append(body, frame.Raw...)
	return body, false
}
