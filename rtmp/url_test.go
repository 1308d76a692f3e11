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

import "testing"

func TestParseURLDefaults(t *testing.T) {
	u, err := ParseURL("rtmp://example.com/live/stream1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Host != "example.com" {
		t.Errorf("host: got %q", u.Host)
	}
	if u.Port != DefaultPort {
		t.Errorf("port: got %d want %d", u.Port, DefaultPort)
	}
	if u.App != "live" {
		t.Errorf("app: got %q", u.App)
	}
	if u.Stream != "stream1" {
		t.Errorf("stream: got %q", u.Stream)
	}
	if u.Vhost != "example.com" {
		t.Errorf("vhost: got %q", u.Vhost)
	}
}

func TestParseURLVhostOverridesTCUrl(t *testing.T) {
	u, err := ParseURL("rtmp://10.0.0.1:19350/app/stream?vhost=my.vhost.com")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.Vhost != "my.vhost.com" {
		t.Errorf("vhost: got %q", u.Vhost)
	}
	want := "rtmp://my.vhost.com:19350/app"
	if u.TCUrl != want {
		t.Errorf("tcUrl: got %q want %q", u.TCUrl, want)
	}
}

func TestParseURLNestedApp(t *testing.T) {
	u, err := ParseURL("rtmp://example.com/app/sub/stream")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if u.App != "app/sub" {
		t.Errorf("app: got %q", u.App)
	}
	if u.Stream != "stream" {
		t.Errorf("stream: got %q", u.Stream)
	}
}

func TestParseURLMissingStream(t *testing.T) {
	if _, err := ParseURL("rtmp://example.com/app"); err == nil {
		t.Fatal("expected error for missing stream")
	}
}
