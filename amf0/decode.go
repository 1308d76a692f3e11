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

package amf0

import (
	"io"
	"math"
	"unicode/utf8"

	"github.com/gwuhaolin/livego/utils/pio"
)

// countingReader tracks how many bytes have been consumed so decode
// errors can report a byte offset via DecodeError.
type countingReader struct {
	r   io.Reader
	pos int
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.pos += n
	return n, err
}

func (c *countingReader) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c, buf); err != nil {
		return nil, unexpectedEnd(c.pos, err)
	}
	return buf, nil
}

// Decode reads one AMF0 value from r and returns it along with the number
// of bytes consumed.
func Decode(r io.Reader) (Value, int, error) {
	cr := &countingReader{r: r}
	v, err := decodeValue(cr)
	return v, cr.pos, err
}

// DecodeBatch decodes successive AMF0 values until r reports io.EOF. This
// is the shape RTMP command/data messages use: a flat sequence of values
// with no outer envelope.
func DecodeBatch(r io.Reader) ([]Value, error) {
	cr := &countingReader{r: r}
	var out []Value
	for {
		v, err := decodeValue(cr)
		if err != nil {
			if err == io.EOF {
				return out, nil
			}
			if de, ok := err.(*DecodeError); ok && de.Err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, v)
	}
}

func decodeValue(r *countingReader) (Value, error) {
	markerByte, err := r.readN(1)
	if err != nil {
		return nil, err
	}
	switch Marker(markerByte[0]) {
	case MarkerNumber:
		b, err := r.readN(8)
		if err != nil {
			return nil, err
		}
		bits := pio.U64BE(b)
		return math.Float64frombits(bits), nil
	case MarkerBoolean:
		b, err := r.readN(1)
		if err != nil {
			return nil, err
		}
		return b[0] != 0, nil
	case MarkerString:
		return decodeUTF8(r, 2)
	case MarkerLongString:
		s, err := decodeUTF8(r, 4)
		if err != nil {
			return nil, err
		}
		return LongString(s.(string)), nil
	case MarkerNull:
		return Null, nil
	case MarkerUndefined:
		return Undefined, nil
	case MarkerObject:
		entries, err := decodeKVList(r)
		if err != nil {
			return nil, err
		}
		return &Object{Entries: entries}, nil
	case MarkerEcmaArray:
		cb, err := r.readN(4)
		if err != nil {
			return nil, err
		}
		count := pio.U32BE(cb)
		entries, err := decodeKVList(r)
		if err != nil {
			return nil, err
		}
		return &EcmaArray{Count: count, Entries: entries}, nil
	case MarkerStrictArray:
		cb, err := r.readN(4)
		if err != nil {
			return nil, err
		}
		count := pio.U32BE(cb)
		items := make([]Value, 0, count)
		for i := uint32(0); i < count; i++ {
			v, err := decodeValue(r)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return &StrictArray{Items: items}, nil
	case MarkerDate:
		b, err := r.readN(10)
		if err != nil {
			return nil, err
		}
		millis := math.Float64frombits(pio.U64BE(b[:8]))
		zone := int16(pio.U16BE(b[8:10]))
		return Date{Millis: millis, TimeZone: zone}, nil
	case MarkerObjectEnd:
		// Only valid inside an object body; decodeKVList consumes it
		// directly. Seeing it here means the stream is malformed.
		return nil, malformedMarker(r.pos-1, markerByte[0])
	default:
		return nil, malformedMarker(r.pos-1, markerByte[0])
	}
}

// decodeKVList reads repeated {u16-key, value} pairs until it sees the
// empty-key + MarkerObjectEnd terminator.
func decodeKVList(r *countingReader) ([]KV, error) {
	var entries []KV
	for {
		key, err := decodeKey(r)
		if err != nil {
			return nil, err
		}
		if key == "" {
			end, err := r.readN(1)
			if err != nil {
				return nil, err
			}
			if Marker(end[0]) != MarkerObjectEnd {
				return nil, malformedMarker(r.pos-1, end[0])
			}
			return entries, nil
		}
		v, err := decodeValue(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, KV{Key: key, Value: v})
	}
}

func decodeKey(r *countingReader) (string, error) {
	lb, err := r.readN(2)
	if err != nil {
		return "", err
	}
	n := int(pio.U16BE(lb))
	if n == 0 {
		return "", nil
	}
	sb, err := r.readN(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(sb) {
		return "", utf8Error(r.pos - n)
	}
	return string(sb), nil
}

func decodeUTF8(r *countingReader, lenBytes int) (Value, error) {
	lb, err := r.readN(lenBytes)
	if err != nil {
		return nil, err
	}
	var n uint32
	if lenBytes == 2 {
		n = uint32(pio.U16BE(lb))
	} else {
		n = pio.U32BE(lb)
	}
	if n == 0 {
		return "", nil
	}
	sb, err := r.readN(int(n))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(sb) {
		return nil, utf8Error(r.pos - int(n))
	}
	return string(sb), nil
}
