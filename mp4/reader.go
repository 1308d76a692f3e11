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
	"fmt"
	"io"

	"github.com/nivenly/rtmpgo/rtmp"
)

// HandlerType names the two handler kinds this reader understands,
//.
type HandlerType string

const (
	HandlerVideo HandlerType = "vide"
	HandlerAudio HandlerType = "soun"
)

// Codec identifies a track's coding format.
type Codec string

const (
	CodecAVC  Codec = "avc1"
	CodecHEVC Codec = "hevc"
	CodecAV1  Codec = "av01"
	CodecAAC  Codec = "mp4a"
)

// track holds everything the sample-table parse extracted for one trak.
type track struct {
	handler   HandlerType
	codec     Codec
	timescale uint32

	// Video
	sps, pps []byte

	// Audio
	sampleRate uint32
	channels   uint16
	soundBits  uint16
	asc        []byte

	samples []sampleEntry
	cursor  int
}

type sampleEntry struct {
	offset int64
	size   uint32
	dts    int64
	cts    int32
	key    bool
}

// Sample is one demuxed elementary-stream access unit.
type Sample struct {
	HandlerType HandlerType
	FrameType   string // "key" or "inter" for video; "" for audio
	FrameTrait  string // "sync" | "" — carried from stss, diagnostic only
	DTS, PTS    int64  // milliseconds
	Codec       Codec
	SampleRate  uint32 // audio only
	Channels    uint16 // audio only
	SoundBits   uint16 // audio only
	Payload     []byte
}

// Reader demuxes an MP4 file's moov-described samples in decode (DTS)
// order across tracks.
type Reader struct {
	r      io.ReaderAt
	tracks []*track
}

// Open walks r's top-level boxes until moov is found and parsed.
func Open(r io.ReaderAt, size int64) (*Reader, error) {
	rd := &Reader{r: r}
	var moovFound bool
	err := walkBoxes(r, 0, size, func(b box) error {
		switch {
		case b.is("moov"):
			moovFound = true
			return rd.parseMoov(b)
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	if !moovFound {
		return nil, rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: no moov box found")
	}
	return rd, nil
}

func (rd *Reader) parseMoov(moov box) error {
	return walkBoxes(rd.r, moov.start, moov.end, func(b box) error {
		if !b.is("trak") {
			return nil
		}
		t, err := rd.parseTrak(b)
		if err != nil {
			return err
		}
		if t != nil {
			rd.tracks = append(rd.tracks, t)
		}
		return nil
	})
}

func (rd *Reader) parseTrak(trak box) (*track, error) {
	t := &track{}
	var stbl box
	var haveStbl bool

	err := walkBoxes(rd.r, trak.start, trak.end, func(b box) error {
		if !b.is("mdia") {
			return nil
		}
		return walkBoxes(rd.r, b.start, b.end, func(m box) error {
			switch {
			case m.is("mdhd"):
				buf, err := readFull(rd.r, m)
				if err != nil {
					return err
				}
				version := buf[0]
				if version == 1 {
					t.timescale = u32(buf[20:24])
				} else {
					t.timescale = u32(buf[12:16])
				}
				return nil
			case m.is("hdlr"):
				buf, err := readFull(rd.r, m)
				if err != nil {
					return err
				}
				t.handler = HandlerType(buf[8:12])
				return nil
			case m.is("minf"):
				return walkBoxes(rd.r, m.start, m.end, func(mi box) error {
					if !mi.is("stbl") {
						return nil
					}
					stbl = mi
					haveStbl = true
					return nil
				})
			default:
				return nil
			}
		})
	})
	if err != nil {
		return nil, err
	}
	if t.handler != HandlerVideo && t.handler != HandlerAudio {
		// Hint tracks, timecode tracks, etc. are not a fatal error; the
		// caller simply never sees samples from them.
		return nil, nil
	}
	if !haveStbl {
		return nil, rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: trak missing stbl")
	}
	if err := rd.parseStbl(t, stbl); err != nil {
		return nil, err
	}
	return t, nil
}

type sttsEntry struct{ count, delta uint32 }
type stscEntry struct{ firstChunk, samplesPerChunk, sampleDescIndex uint32 }

func (rd *Reader) parseStbl(t *track, stbl box) error {
	var sizes []uint32
	var defaultSize uint32
	var chunkOffsets []int64
	var stsc []stscEntry
	var stts []sttsEntry
	var ctts []sttsEntry // reuses {count,delta} shape for {count,offset}
	var syncSamples map[uint32]bool

	err := walkBoxes(rd.r, stbl.start, stbl.end, func(b box) error {
		switch {
		case b.is("stsd"):
			return rd.parseStsd(t, b)
		case b.is("stts"):
			buf, err := readFull(rd.r, b)
			if err != nil {
				return err
			}
			n := u32(buf[4:8])
			for i := uint32(0); i < n; i++ {
				off := 8 + i*8
				stts = append(stts, sttsEntry{count: u32(buf[off : off+4]), delta: u32(buf[off+4 : off+8])})
			}
			return nil
		case b.is("ctts"):
			buf, err := readFull(rd.r, b)
			if err != nil {
				return err
			}
			n := u32(buf[4:8])
			for i := uint32(0); i < n; i++ {
				off := 8 + i*8
				ctts = append(ctts, sttsEntry{count: u32(buf[off : off+4]), delta: u32(buf[off+4 : off+8])})
			}
			return nil
		case b.is("stsz"):
			buf, err := readFull(rd.r, b)
			if err != nil {
				return err
			}
			defaultSize = u32(buf[4:8])
			n := u32(buf[8:12])
			if defaultSize == 0 {
				sizes = make([]uint32, n)
				for i := uint32(0); i < n; i++ {
					sizes[i] = u32(buf[12+i*4 : 16+i*4])
				}
			}
			return nil
		case b.is("stco"):
			buf, err := readFull(rd.r, b)
			if err != nil {
				return err
			}
			n := u32(buf[4:8])
			chunkOffsets = make([]int64, n)
			for i := uint32(0); i < n; i++ {
				chunkOffsets[i] = int64(u32(buf[8+i*4 : 12+i*4]))
			}
			return nil
		case b.is("co64"):
			buf, err := readFull(rd.r, b)
			if err != nil {
				return err
			}
			n := u32(buf[4:8])
			chunkOffsets = make([]int64, n)
			for i := uint32(0); i < n; i++ {
				off := 8 + i*8
				chunkOffsets[i] = int64(u32(buf[off:off+4]))<<32 | int64(u32(buf[off+4:off+8]))
			}
			return nil
		case b.is("stsc"):
			buf, err := readFull(rd.r, b)
			if err != nil {
				return err
			}
			n := u32(buf[4:8])
			for i := uint32(0); i < n; i++ {
				off := 8 + i*12
				stsc = append(stsc, stscEntry{
					firstChunk:      u32(buf[off : off+4]),
					samplesPerChunk: u32(buf[off+4 : off+8]),
					sampleDescIndex: u32(buf[off+8 : off+12]),
				})
			}
			return nil
		case b.is("stss"):
			buf, err := readFull(rd.r, b)
			if err != nil {
				return err
			}
			n := u32(buf[4:8])
			syncSamples = make(map[uint32]bool, n)
			for i := uint32(0); i < n; i++ {
				syncSamples[u32(buf[8+i*4:12+i*4])] = true
			}
			return nil
		default:
			return nil
		}
	})
	if err != nil {
		return err
	}

	totalSamples := 0
	for _, e := range stts {
		totalSamples += int(e.count)
	}
	if defaultSize != 0 {
		sizes = make([]uint32, totalSamples)
		for i := range sizes {
			sizes[i] = defaultSize
		}
	}
	if len(sizes) != totalSamples {
		return rtmp.NewError(rtmp.KindInputShape, rtmp.Mp4IllegalHandler, "mp4: stsz/stts sample count mismatch")
	}

	offsets, err := sampleOffsets(chunkOffsets, stsc, sizes)
	if err != nil {
		return err
	}

	dtsOf := expandDeltas(stts, totalSamples)
	ctsOf := expandDeltas(ctts, totalSamples) // zero-filled if ctts absent

	t.samples = make([]sampleEntry, totalSamples)
	var dts int64
	for i := 0; i < totalSamples; i++ {
		key := t.handler != HandlerVideo || syncSamples == nil || syncSamples[uint32(i+1)]
		t.samples[i] = sampleEntry{
			offset: offsets[i],
			size:   sizes[i],
			dts:    dts,
			cts:    int32(ctsOf[i]),
			key:    key,
		}
		dts += int64(dtsOf[i])
	}
	return nil
}

// expandDeltas turns a run-length-encoded {count, delta} list into a
// flat per-sample delta slice of length total.
func expandDeltas(entries []sttsEntry, total int) []uint32 {
	out := make([]uint32, 0, total)
	for _, e := range entries {
		for i := uint32(0); i < e.count; i++ {
			out = append(out, e.delta)
		}
	}
	for len(out) < total {
		out = append(out, 0)
	}
	return out
}

// sampleOffsets computes each sample's absolute file offset from the
// chunk offset table and the sample-to-chunk run list.
func sampleOffsets(chunkOffsets []int64, stsc []stscEntry, sizes []uint32) ([]int64, error) {
	if len(stsc) == 0 || len(chunkOffsets) == 0 {
		if len(sizes) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("mp4: missing stsc/stco")
	}
	offsets := make([]int64, len(sizes))
	sampleIdx := 0
	for run := 0; run < len(stsc); run++ {
		entry := stsc[run]
		lastChunk := uint32(len(chunkOffsets)) + 1
		if run+1 < len(stsc) {
			lastChunk = stsc[run+1].firstChunk
		}
		for chunk := entry.firstChunk; chunk < lastChunk; chunk++ {
			if int(chunk-1) >= len(chunkOffsets) {
				break
			}
			pos := chunkOffsets[chunk-1]
			for s := uint32(0); s < entry.samplesPerChunk; s++ {
				if sampleIdx >= len(sizes) {
					return offsets, nil
				}
				offsets[sampleIdx] = pos
				pos += int64(sizes[sampleIdx])
				sampleIdx++
			}
		}
	}
	return offsets, nil
}

// Next returns the pending sample with the lowest DTS across tracks
// (decode order), or SystemFileEof once every track is exhausted.
func (rd *Reader) Next() (Sample, error) {
	best := -1
	var bestDTS int64
	for i, t := range rd.tracks {
		if t.cursor >= len(t.samples) {
			continue
		}
		dts := t.samples[t.cursor].dts
		if best == -1 || dts < bestDTS {
			best = i
			bestDTS = dts
		}
	}
	if best == -1 {
		return Sample{}, rtmp.NewError(rtmp.KindEndOfStream, rtmp.SystemFileEof, "mp4: no more samples")
	}
	t := rd.tracks[best]
	e := t.samples[t.cursor]
	t.cursor++

	payload := make([]byte, e.size)
	if _, err := rd.r.ReadAt(payload, e.offset); err != nil {
		return Sample{}, rtmp.NewError(rtmp.KindTransport, rtmp.SystemIoInvalid, "mp4: read sample: %v", err)
	}

	s := Sample{
		HandlerType: t.handler,
		DTS:         scaleToMillis(e.dts, t.timescale),
		PTS:         scaleToMillis(e.dts+int64(e.cts), t.timescale),
		Codec:       t.codec,
		Payload:     payload,
	}
	if t.handler == HandlerVideo {
		if e.key {
			s.FrameType = "key"
			s.FrameTrait = "sync"
		} else {
			s.FrameType = "inter"
		}
	} else {
		s.SampleRate = t.sampleRate
		s.Channels = t.channels
		s.SoundBits = t.soundBits
	}
	return s, nil
}

func scaleToMillis(ticks int64, timescale uint32) int64 {
	if timescale == 0 {
		return ticks
	}
	return ticks * 1000 / int64(timescale)
}

// SPSAndPPS exposes the decoder-config parameter sets for the first
// video track, for callers that need to build an AVCDecoderConfigurationRecord
// (see media.AVCDecoderConfigurationRecord) before the first sample.
func (rd *Reader) SPSAndPPS() (sps, pps []byte, ok bool) {
	for _, t := range rd.tracks {
		if t.handler == HandlerVideo && t.sps != nil {
			return t.sps, t.pps, true
		}
	}
	return nil, nil, false
}

// AudioSpecificConfig exposes the first audio track's ASC, derived
// from its esds box.
func (rd *Reader) AudioSpecificConfig() ([]byte, bool) {
	for _, t := range rd.tracks {
		if t.handler == HandlerAudio && t.asc != nil {
			return t.asc, true
		}
	}
	return nil, false
}
