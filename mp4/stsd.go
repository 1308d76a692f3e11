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

import "github.com/nivenly/rtmpgo/rtmp"

// parseStsd reads the sample description box for one track, filling
// in t.codec plus whatever decoder-config parameters (sps/pps, or
// sample rate/channels/asc) its entry type carries.
func (rd *Reader) parseStsd(t *track, stsd box) error {
	buf, err := readFull(rd.r, stsd)
	if err != nil {
		return err
	}
	if len(buf) < 8 {
		return rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: stsd too short")
	}
	count := u32(buf[4:8])
	if count == 0 {
		return rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: stsd has no sample entries")
	}
	// First entry only: fragmented/multi-codec tracks are out of scope.
	entryStart := 8
	if entryStart+8 > len(buf) {
		return rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: stsd entry truncated")
	}
	entrySize := int(u32(buf[entryStart : entryStart+4]))
	entryType := string(buf[entryStart+4 : entryStart+8])
	if entryStart+entrySize > len(buf) {
		entrySize = len(buf) - entryStart
	}
	entry := buf[entryStart : entryStart+entrySize]

	switch t.handler {
	case HandlerVideo:
		return rd.parseVisualSampleEntry(t, entryType, entry)
	case HandlerAudio:
		return rd.parseAudioSampleEntry(t, entryType, entry)
	}
	return nil
}

func (rd *Reader) parseVisualSampleEntry(t *track, entryType string, entry []byte) error {
	switch entryType {
	case "avc1":
		t.codec = CodecAVC
	case "hev1", "hvc1":
		t.codec = CodecHEVC
	case "av01":
		t.codec = CodecAV1
	default:
		return rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: unsupported video sample entry %q", entryType)
	}
	// VisualSampleEntry fixed fields occupy the first 78 bytes; any
	// avcC/hvcC/av1C config box follows as a child box.
	if len(entry) <= 86 {
		return nil
	}
	return walkBoxes(byteReaderAt(entry), 86, int64(len(entry)), func(b box) error {
		if b.is("avcC") {
			cfg, err := readFull(byteReaderAt(entry), b)
			if err != nil {
				return err
			}
			sps, pps := parseAVCC(cfg)
			t.sps, t.pps = sps, pps
		}
		return nil
	})
}

// parseAVCC extracts the first SPS and PPS NALU from an
// AVCDecoderConfigurationRecord.
func parseAVCC(cfg []byte) (sps, pps []byte) {
	if len(cfg) < 6 {
		return nil, nil
	}
	pos := 5
	numSPS := int(cfg[pos] & 0x1F)
	pos++
	for i := 0; i < numSPS && pos+2 <= len(cfg); i++ {
		l := int(u16(cfg[pos : pos+2]))
		pos += 2
		if pos+l > len(cfg) {
			break
		}
		if i == 0 {
			sps = append([]byte(nil), cfg[pos:pos+l]...)
		}
		pos += l
	}
	if pos >= len(cfg) {
		return sps, nil
	}
	numPPS := int(cfg[pos])
	pos++
	for i := 0; i < numPPS && pos+2 <= len(cfg); i++ {
		l := int(u16(cfg[pos : pos+2]))
		pos += 2
		if pos+l > len(cfg) {
			break
		}
		if i == 0 {
			pps = append([]byte(nil), cfg[pos:pos+l]...)
		}
		pos += l
	}
	return sps, pps
}

func (rd *Reader) parseAudioSampleEntry(t *track, entryType string, entry []byte) error {
	if entryType != "mp4a" {
		return rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: unsupported audio sample entry %q", entryType)
	}
	t.codec = CodecAAC
	// entry starts with the 8-byte box header and the 8-byte SampleEntry
	// header (6 reserved, 2 data_reference_index). AudioSampleEntry fixed
	// fields follow: 8 bytes reserved, 2 channelcount, 2 samplesize,
	// 2 pre_defined, 2 reserved, 4 samplerate (16.16), ending at 36.
	if len(entry) < 36 {
		return nil
	}
	base := 24
	t.channels = u16(entry[base : base+2])
	t.soundBits = u16(entry[base+2 : base+4])
	t.sampleRate = u32(entry[base+8:base+12]) >> 16

	if len(entry) <= 36 {
		return nil
	}
	return walkBoxes(byteReaderAt(entry), 36, int64(len(entry)), func(b box) error {
		if b.is("esds") {
			cfg, err := readFull(byteReaderAt(entry), b)
			if err != nil {
				return err
			}
			t.asc = parseEsdsASC(cfg)
		}
		return nil
	})
}

// parseEsdsASC walks an esds box's MPEG-4 descriptor tree far enough
// to find the DecoderSpecificInfo (tag 0x05) carrying the raw
// AudioSpecificConfig bytes. Descriptor length is the standard
// MPEG-4 expandable 1-4 byte form.
func parseEsdsASC(buf []byte) []byte {
	if len(buf) < 4 {
		return nil
	}
	return findDescriptor(buf[4:], 0x05) // skip the box's version+flags
}

// findDescriptor recursively searches an MPEG-4 descriptor tree for
// the first descriptor carrying wantTag, descending into ES_Descr
// (0x03) and DecoderConfigDescr (0x04) bodies.
func findDescriptor(buf []byte, wantTag byte) []byte {
	pos := 0
	for pos < len(buf) {
		tag := buf[pos]
		pos++
		length, n := readDescriptorLength(buf[pos:])
		pos += n
		if pos+length > len(buf) {
			return nil
		}
		body := buf[pos : pos+length]
		if tag == wantTag {
			return append([]byte(nil), body...)
		}
		switch tag {
		case 0x03: // ES_DescrTag: skip 3-byte ES_ID+flags, descend
			if len(body) > 3 {
				if found := findDescriptor(body[3:], wantTag); found != nil {
					return found
				}
			}
		case 0x04: // DecoderConfigDescrTag: skip 13-byte fixed header, descend
			if len(body) > 13 {
				if found := findDescriptor(body[13:], wantTag); found != nil {
					return found
				}
			}
		}
		pos += length
	}
	return nil
}

func readDescriptorLength(b []byte) (length, consumed int) {
	for i := 0; i < len(b) && i < 4; i++ {
		consumed++
		length = (length << 7) | int(b[i]&0x7F)
		if b[i]&0x80 == 0 {
			break
		}
	}
	return length, consumed
}

// byteReaderAt adapts an in-memory slice to io.ReaderAt so the generic
// walkBoxes/readFull helpers work on both file-backed and already
// buffered regions.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > int64(len(b)) {
		return 0, rtmp.NewError(rtmp.KindInputShape, rtmp.SystemIoInvalid, "mp4: read at %d out of range", off)
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, rtmp.NewError(rtmp.KindEndOfStream, rtmp.SystemFileEof, "mp4: short read")
	}
	return n, nil
}
