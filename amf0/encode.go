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

	"github.com/gwuhaolin/livego/utils/pio"
)

// Encode writes v to w in AMF0 binary form and returns the number of bytes
// written. Returns an *EncodeError, never a panic, if v's dynamic type has
// no AMF0 representation.
func Encode(w io.Writer, v Value) (int, error) {
	buf, err := appendValue(make([]byte, 0, 16), v)
	if err != nil {
		return 0, err
	}
	return w.Write(buf)
}

// EncodeBatch writes a flat sequence of values, the shape RTMP command/
// data messages use.
func EncodeBatch(w io.Writer, vs ...Value) (int, error) {
	buf := make([]byte, 0, 64)
	for _, v := range vs {
		var err error
		buf, err = appendValue(buf, v)
		if err != nil {
			return 0, err
		}
	}
	return w.Write(buf)
}

// TotalSize returns the exact encoded length of v. It encodes v into a
// scratch buffer and returns that buffer's length. Returns -1 if v is
// not encodable.
func TotalSize(v Value) int {
	buf, err := appendValue(nil, v)
	if err != nil {
		return -1
	}
	return len(buf)
}

func appendValue(buf []byte, v Value) ([]byte, error) {
	switch t := v.(type) {
	case nil, nullType:
		return append(buf, byte(MarkerNull)), nil
	case undefinedType:
		return append(buf, byte(MarkerUndefined)), nil
	case bool:
		buf = append(buf, byte(MarkerBoolean))
		if t {
			return append(buf, 1), nil
		}
		return append(buf, 0), nil
	case float64:
		buf = append(buf, byte(MarkerNumber))
		return appendU64(buf, math.Float64bits(t)), nil
	case int:
		return appendValue(buf, float64(t))
	case string:
		buf = append(buf, byte(MarkerString))
		return appendString(buf, t, 2), nil
	case LongString:
		buf = append(buf, byte(MarkerLongString))
		return appendString(buf, string(t), 4), nil
	case Date:
		buf = append(buf, byte(MarkerDate))
		buf = appendU64(buf, math.Float64bits(t.Millis))
		return appendU16(buf, uint16(t.TimeZone)), nil
	case *Object:
		buf = append(buf, byte(MarkerObject))
		return appendKVList(buf, t.Entries)
	case *EcmaArray:
		buf = append(buf, byte(MarkerEcmaArray))
		buf = appendU32(buf, t.Count)
		return appendKVList(buf, t.Entries)
	case *StrictArray:
		buf = append(buf, byte(MarkerStrictArray))
		buf = appendU32(buf, uint32(len(t.Items)))
		for _, item := range t.Items {
			var err error
			buf, err = appendValue(buf, item)
			if err != nil {
				return nil, err
			}
		}
		return buf, nil
	default:
		return nil, unencodableType(v)
	}
}

func appendKVList(buf []byte, entries []KV) ([]byte, error) {
	for _, kv := range entries {
		buf = appendU16(buf, uint16(len(kv.Key)))
		buf = append(buf, kv.Key...)
		var err error
		buf, err = appendValue(buf, kv.Value)
		if err != nil {
			return nil, err
		}
	}
	buf = appendU16(buf, 0)
	return append(buf, byte(MarkerObjectEnd)), nil
}

func appendString(buf []byte, s string, lenBytes int) []byte {
	if lenBytes == 4 {
		buf = appendU32(buf, uint32(len(s)))
	} else {
		buf = appendU16(buf, uint16(len(s)))
	}
	return append(buf, s...)
}

func appendU16(buf []byte, v uint16) []byte {
	b := make([]byte, 2)
	pio.PutU16BE(b, v)
	return append(buf, b...)
}

func appendU32(buf []byte, v uint32) []byte {
	b := make([]byte, 4)
	pio.PutU32BE(b, v)
	return append(buf, b...)
}

func appendU64(buf []byte, v uint64) []byte {
	b := make([]byte, 8)
	pio.PutU64BE(b, v)
	return append(buf, b...)
}
