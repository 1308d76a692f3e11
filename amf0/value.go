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

// Package amf0 implements Action Message Format v0, the self-describing
// tagged value encoding carried by RTMP command and data messages.
package amf0

import "fmt"

// Marker is the one-byte type tag that prefixes every AMF0 value on the wire.
type Marker byte

const (
	MarkerNumber      Marker = 0x00
	MarkerBoolean     Marker = 0x01
	MarkerString      Marker = 0x02
	MarkerObject      Marker = 0x03
	MarkerMovieClip   Marker = 0x04
	MarkerNull        Marker = 0x05
	MarkerUndefined   Marker = 0x06
	MarkerReference   Marker = 0x07
	MarkerEcmaArray   Marker = 0x08
	MarkerObjectEnd   Marker = 0x09
	MarkerStrictArray Marker = 0x0A
	MarkerDate        Marker = 0x0B
	MarkerLongString  Marker = 0x0C
	MarkerUnsupported Marker = 0x0D
	MarkerXMLDocument Marker = 0x0F
	MarkerTypedObject Marker = 0x10
)

// KV is one key/value pair inside an Object or EcmaArray. Order is
// preserved and duplicate keys are tolerated on the wire, per the AMF0
// invariant that Object/EcmaArray round-trip byte-for-byte when keys are
// unique, and degrade gracefully (first-match lookup) when they are not.
type KV struct {
	Key   string
	Value Value
}

// Object is an AMF0 "object" value: an ordered, duplicate-tolerant
// sequence of key/value pairs terminated on the wire by an empty key and
// an MarkerObjectEnd marker.
type Object struct {
	Entries []KV
}

// Get returns the first value stored under key, if any.
func (o *Object) Get(key string) (Value, bool) {
	for _, kv := range o.Entries {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

// Set appends a new entry. It does not deduplicate existing keys, matching
// the wire's tolerance for duplicates.
func (o *Object) Set(key string, v Value) {
	o.Entries = append(o.Entries, KV{Key: key, Value: v})
}

// EcmaArray is an AMF0 "ecma-array": a declared element count (advisory —
// termination is the empty-key/end-marker, not the count) followed by an
// object-shaped body.
type EcmaArray struct {
	Count   uint32
	Entries []KV
}

func (a *EcmaArray) Get(key string) (Value, bool) {
	for _, kv := range a.Entries {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return nil, false
}

func (a *EcmaArray) Set(key string, v Value) {
	a.Entries = append(a.Entries, KV{Key: key, Value: v})
	a.Count = uint32(len(a.Entries))
}

// StrictArray is an AMF0 "strict-array": a u32 count followed by exactly
// that many values with no keys.
type StrictArray struct {
	Items []Value
}

// Date is an AMF0 date: milliseconds since epoch plus a (legacy, usually
// zero) timezone offset in minutes.
type Date struct {
	Millis   float64
	TimeZone int16
}

// LongString is a string whose length prefix on the wire is a u32 rather
// than a u16. A value written with the long-string marker decodes to
// LongString, not to a plain Go string.
type LongString string

// Null and Undefined are the two AMF0 sentinel types. Go nil is reserved
// for "absent"; these distinguish the two explicit wire markers.
type nullType struct{}
type undefinedType struct{}

var (
	Null      = nullType{}
	Undefined = undefinedType{}
)

// Value is the tagged union of all AMF0 value shapes. The dynamic type is
// always one of: float64, bool, string, LongString, nullType,
// undefinedType, *Object, *EcmaArray, *StrictArray, Date.
type Value interface{}

// MalformedMarker, UnexpectedEnd and Utf8Error are the decode failures
// named here.2.
type DecodeError struct {
	Kind string
	Pos  int
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("amf0: %s at byte %d: %v", e.Kind, e.Pos, e.Err)
	}
	return fmt.Sprintf("amf0: %s at byte %d", e.Kind, e.Pos)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func malformedMarker(pos int, m byte) error {
	return &DecodeError{Kind: "MalformedMarker", Pos: pos, Err: fmt.Errorf("marker 0x%02x", m)}
}

func unexpectedEnd(pos int, err error) error {
	return &DecodeError{Kind: "UnexpectedEnd", Pos: pos, Err: err}
}

func utf8Error(pos int) error {
	return &DecodeError{Kind: "Utf8Error", Pos: pos}
}

// EncodeError reports a Value that has no AMF0 wire representation —
// some dynamic type other than the ones Value documents.
type EncodeError struct {
	Type string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("amf0: cannot encode %s", e.Type)
}

func unencodableType(v Value) error {
	return &EncodeError{Type: fmt.Sprintf("%T", v)}
}
