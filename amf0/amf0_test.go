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
	"bytes"
	"testing"
)

func roundTrip(t *testing.T, v Value) Value {
	var buf bytes.Buffer
	if _, err := Encode(&buf, v); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, n, err := Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n == 0 {
		t.Fatalf("decode consumed 0 bytes")
	}
	return got
}

func TestRoundTripScalars(t *testing.T) {
	cases := []Value{
		float64(3.14),
		true,
		false,
		"hello",
		Null,
		Undefined,
	}
	for _, c := range cases {
		got := roundTrip(t, c)
		if got != c {
			t.Errorf("round trip %v: got %v", c, got)
		}
	}
}

func TestRoundTripObjectUniqueKeys(t *testing.T) {
	obj := &Object{}
	obj.Set("app", "live")
	obj.Set("flashVer", "FMLE/3.0")
	obj.Set("objectEncoding", float64(0))

	got := roundTrip(t, obj).(*Object)
	if len(got.Entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got.Entries))
	}
	for i, kv := range obj.Entries {
		if got.Entries[i].Key != kv.Key || got.Entries[i].Value != kv.Value {
			t.Errorf("entry %d mismatch: got %+v want %+v", i, got.Entries[i], kv)
		}
	}
}

func TestObjectDuplicateKeysPreserveOrder(t *testing.T) {
	obj := &Object{}
	obj.Set("level", "status")
	obj.Set("level", "warning")

	got := roundTrip(t, obj).(*Object)
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	v, ok := got.Get("level")
	if !ok || v != "status" {
		t.Errorf("Get should return first match, got %v", v)
	}
}

func TestDecodeConnectResult(t *testing.T) {
	// A typical connect reply: "_result", 1.0, {fmsVer, capabilities}, {level, code, objectEncoding}
	fmsInfo := &Object{}
	fmsInfo.Set("fmsVer", "FMS/3,0,1,123")
	fmsInfo.Set("capabilities", float64(31))

	evt := &Object{}
	evt.Set("level", "status")
	evt.Set("code", "NetConnection.Connect.Success")
	evt.Set("objectEncoding", float64(0))

	var buf bytes.Buffer
	if _, err := EncodeBatch(&buf, "_result", float64(1), fmsInfo, evt); err != nil {
		t.Fatalf("encode batch: %v", err)
	}

	values, err := DecodeBatch(&buf)
	if err != nil {
		t.Fatalf("decode batch: %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("expected 4 values, got %d", len(values))
	}
	if values[0] != "_result" {
		t.Errorf("command name: got %v", values[0])
	}
	gotEvt := values[3].(*Object)
	code, _ := gotEvt.Get("code")
	if code != "NetConnection.Connect.Success" {
		t.Errorf("code: got %v", code)
	}
}

func TestStrictArrayRoundTrip(t *testing.T) {
	arr := &StrictArray{Items: []Value{float64(1), "two", false}}
	got := roundTrip(t, arr).(*StrictArray)
	if len(got.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(got.Items))
	}
}

func TestTotalSizeMatchesEncodedLength(t *testing.T) {
	obj := &Object{}
	obj.Set("a", float64(1))
	obj.Set("b", "two")

	var buf bytes.Buffer
	n, err := Encode(&buf, obj)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := TotalSize(obj); got != n {
		t.Errorf("TotalSize=%d, encoded=%d", got, n)
	}
}

func TestMalformedMarker(t *testing.T) {
	_, _, err := Decode(bytes.NewReader([]byte{0x7F}))
	if err == nil {
		t.Fatal("expected malformed marker error")
	}
	var de *DecodeError
	if !asDecodeError(err, &de) || de.Kind != "MalformedMarker" {
		t.Errorf("expected MalformedMarker, got %v", err)
	}
}

func asDecodeError(err error, out **DecodeError) bool {
	de, ok := err.(*DecodeError)
	if ok {
		*out = de
	}
	return ok
}

func TestEncodeUnsupportedTypeReturnsError(t *testing.T) {
	var buf bytes.Buffer
	_, err := Encode(&buf, struct{ X int }{X: 1})
	if err == nil {
		t.Fatal("expected an error encoding an unsupported type")
	}
	if _, ok := err.(*EncodeError); !ok {
		t.Errorf("expected *EncodeError, got %T: %v", err, err)
	}
}

func TestEncodeBatchStopsOnUnsupportedType(t *testing.T) {
	var buf bytes.Buffer
	_, err := EncodeBatch(&buf, "ok", struct{}{}, "unreached")
	if err == nil {
		t.Fatal("expected an error from the unsupported value in the batch")
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing written on error, got %d bytes", buf.Len())
	}
}

func TestTotalSizeUnsupportedType(t *testing.T) {
	if got := TotalSize(struct{}{}); got != -1 {
		t.Errorf("TotalSize of an unsupported type: got %d want -1", got)
	}
}
