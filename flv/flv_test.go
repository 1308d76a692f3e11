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

package flv

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteHeader(&buf, true, true); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	audio, video, err := ReadHeader(&buf)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if !audio || !video {
		t.Fatalf("expected audio=true video=true, got audio=%v video=%v", audio, video)
	}
}

func TestHeaderBadMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{'X', 'X', 'X', 1, 5, 0, 0, 0, 9, 0, 0, 0, 0})
	if _, _, err := ReadHeader(buf); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestTagRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	want := Tag{Type: TypeVideo, Timestamp: 0x01020304, Body: []byte{0x17, 0x00, 0xAA, 0xBB}}
	if err := WriteTag(&buf, want); err != nil {
		t.Fatalf("WriteTag: %v", err)
	}
	got, err := ReadTag(&buf)
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if got.Type != want.Type || got.Timestamp != want.Timestamp || !bytes.Equal(got.Body, want.Body) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestIsKeyFrame(t *testing.T) {
	if !IsKeyFrame([]byte{0x17}) {
		t.Fatal("expected keyframe byte 0x17 to be a keyframe")
	}
	if IsKeyFrame([]byte{0x27}) {
		t.Fatal("expected byte 0x27 (inter frame) to not be a keyframe")
	}
}

func TestIsSequenceHeader(t *testing.T) {
	if !IsSequenceHeader([]byte{0x17, 0x00, 0, 0, 0}) {
		t.Fatal("expected AVC sequence header to be detected")
	}
	if IsSequenceHeader([]byte{0x17, 0x01, 0, 0, 0}) {
		t.Fatal("AVCPacketType 1 is not a sequence header")
	}
}
