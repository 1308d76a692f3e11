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

package rtmp

import (
	"bytes"
	"testing"

	"github.com/nivenly/rtmpgo/amf0"
)

func TestHandleCommandConnectResultParsesServerInfo(t *testing.T) {
	props := &amf0.Object{}
	props.Set("fmsVer", "FMS/3,0,1,123")
	props.Set("capabilities", float64(31))

	info := &amf0.Object{}
	info.Set("level", "status")
	info.Set("code", NetConnectionConnectSuccess)
	info.Set("objectEncoding", float64(0))

	var buf bytes.Buffer
	if _, err := amf0.EncodeBatch(&buf, CommandResult, float64(1), props, info); err != nil {
		t.Fatalf("EncodeBatch: %v", err)
	}

	s := NewSession()
	if err := s.handleCommand(&ChunkStream{TypeID: CommandMessageAMF0ID, Data: buf.Bytes()}); err != nil {
		t.Fatalf("handleCommand: %v", err)
	}

	if s.state != StateAppConnected {
		t.Errorf("state: got %s want %s", s.state, StateAppConnected)
	}
	got := s.Info()
	want := ServerInfo{Sig: "FMS/3,0,1,123", Major: 3, Minor: 0, Revision: 1, Build: 123}
	if got != want {
		t.Errorf("server info: got %+v want %+v", got, want)
	}
}

func TestParseFmsVer(t *testing.T) {
	cases := []struct {
		sig                            string
		major, minor, revision, build int
	}{
		{"FMS/3,5,3,888", 3, 5, 3, 888},
		{"FMS/3,0,1,123", 3, 0, 1, 123},
		{"FMLE/3.0", 0, 0, 0, 0},
		{"", 0, 0, 0, 0},
	}
	for _, c := range cases {
		major, minor, revision, build := parseFmsVer(c.sig)
		if major != c.major || minor != c.minor || revision != c.revision || build != c.build {
			t.Errorf("parseFmsVer(%q): got (%d,%d,%d,%d) want (%d,%d,%d,%d)",
				c.sig, major, minor, revision, build, c.major, c.minor, c.revision, c.build)
		}
	}
}
