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

package rtmp_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/nivenly/rtmpgo/internal/fixtureserver"
	. "github.com/nivenly/rtmpgo/rtmp"
)

func TestIntegrationPublishRoundTrip(t *testing.T) {
	srv, err := fixtureserver.New()
	if err != nil {
		t.Fatalf("fixtureserver.New: %v", err)
	}
	defer srv.Close()

	s, err := Dial(srv.Addr() + "/live/mystream")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	if err := s.ConnectApp(nil); err != nil {
		t.Fatalf("ConnectApp: %v", err)
	}
	if s.State() != StateAppConnected {
		t.Fatalf("state = %s, want AppConnected", s.State())
	}

	streamID, err := s.CreateStream()
	if err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if streamID == 0 {
		t.Fatalf("CreateStream returned stream id 0")
	}

	if err := s.Publish("mystream"); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if s.State() != StateStreamingPublish {
		t.Fatalf("state = %s, want Streaming(Publish)", s.State())
	}

	payload := []byte{0xAF, 0x01, 0xDE, 0xAD, 0xBE, 0xEF}
	if err := s.WritePacket(&Packet{TypeID: AudioMessageID, Timestamp: 42, Data: payload}); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	// Give the server's goroutine a moment to record the packet before
	// Close tears down the socket.
	waitUntil(t, func() bool { return len(srv.Published("mystream")) > 0 })

	got := srv.Published("mystream")
	if len(got) != 1 {
		t.Fatalf("published packets = %d, want 1", len(got))
	}
	if got[0].TypeID != AudioMessageID || !bytes.Equal(got[0].Data, payload) {
		t.Fatalf("published packet = %+v, want type=%d data=%x", got[0], AudioMessageID, payload)
	}
}

func TestIntegrationPlayRoundTrip(t *testing.T) {
	srv, err := fixtureserver.New()
	if err != nil {
		t.Fatalf("fixtureserver.New: %v", err)
	}
	srv.PlayPackets = []fixtureserver.Packet{
		{TypeID: VideoMessageID, Timestamp: 0, Data: []byte{0x17, 0x00, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03}},
		{TypeID: AudioMessageID, Timestamp: 10, Data: []byte{0xAF, 0x01, 0xAA, 0xBB}},
	}
	defer srv.Close()

	s, err := Dial(srv.Addr() + "/live/mystream")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	if err := s.ConnectApp(nil); err != nil {
		t.Fatalf("ConnectApp: %v", err)
	}
	if _, err := s.CreateStream(); err != nil {
		t.Fatalf("CreateStream: %v", err)
	}
	if err := s.Play("mystream"); err != nil {
		t.Fatalf("Play: %v", err)
	}

	for i, want := range srv.PlayPackets {
		p, err := s.ReadPacket()
		if err != nil {
			t.Fatalf("ReadPacket %d: %v", i, err)
		}
		if p.TypeID != want.TypeID || !bytes.Equal(p.Data, want.Data) {
			t.Fatalf("packet %d = %+v, want type=%d data=%x", i, p, want.TypeID, want.Data)
		}
		s.FreePacket(p)
	}
}

func TestIntegrationBandwidthCheck(t *testing.T) {
	srv, err := fixtureserver.New()
	if err != nil {
		t.Fatalf("fixtureserver.New: %v", err)
	}
	srv.RunBandwidthCheck = true
	defer srv.Close()

	s, err := Dial(srv.Addr() + "/live/mystream")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer s.Close()

	if err := s.ConnectApp(nil); err != nil {
		t.Fatalf("ConnectApp: %v", err)
	}

	result, err := s.BandwidthCheck()
	if err != nil {
		t.Fatalf("BandwidthCheck: %v", err)
	}
	if result.Duration <= 0 {
		t.Fatalf("BandwidthCheck duration = %v, want > 0", result.Duration)
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition never became true")
}
