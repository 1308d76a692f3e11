// Copyright © 2021 Kris Nóva <kris@nivenly.com>
// Copyright (c) 2017 吴浩麟
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
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nivenly/rtmpgo/internal/dnscache"
)

// URL is a parsed rtmp://host[:port]/app/stream[?query] address,
// grounded on urladdr.go's URLAddr.
type URL struct {
	raw    string
	TCUrl  string
	Host   string
	Vhost  string
	App    string
	Stream string
	Port   int
	Param  string
}

// ParseURL decomposes addr into its {tcUrl, host, vhost, app, stream,
// port, param} fields. vhost, when present as a ?vhost= query
// parameter, overrides host for the tcUrl composed for Connect.
func ParseURL(addr string) (*URL, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, newErr(KindInputShape, SystemIoInvalid, "parse url: %v", err)
	}
	if u.Scheme != "rtmp" && u.Scheme != "" {
		return nil, newErr(KindInputShape, SystemIoInvalid, "unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, newErr(KindInputShape, SystemIoInvalid, "missing host in %q", addr)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			port = n
		}
	}

	parts := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	if len(parts) < 2 {
		return nil, newErr(KindInputShape, SystemIoInvalid, "path %q must contain app/stream", u.Path)
	}
	app := strings.Join(parts[:len(parts)-1], "/")
	stream := parts[len(parts)-1]

	vhost := host
	if v := u.Query().Get("vhost"); v != "" {
		vhost = v
	}

	tcURL := fmt.Sprintf("rtmp://%s:%d/%s", vhost, port, app)

	return &URL{
		raw:    addr,
		TCUrl:  tcURL,
		Host:   host,
		Vhost:  vhost,
		App:    app,
		Stream: stream,
		Port:   port,
		Param:  u.RawQuery,
	}, nil
}

// SafeURL renders the address with the stream name as "..." so it is
// safe to log without leaking a stream key.
func (u *URL) SafeURL() string {
	return fmt.Sprintf("rtmp://%s:%d/%s/...", u.Host, u.Port, u.App)
}

func (u *URL) HostPort() string {
	return net.JoinHostPort(u.Host, strconv.Itoa(u.Port))
}

// Resolve looks up u.Host (via the process-wide dnscache) and dials a
// TCP connection with the given timeout. A lookup failure is reported
// as SYSTEM_DNS_RESOLVE.
func (u *URL) Resolve(timeout time.Duration) (net.Conn, error) {
	ip, err := dnscache.Resolve(u.Host)
	if err != nil {
		return nil, newErr(KindTransport, SystemDnsResolve, "resolve %s: %v", u.Host, err)
	}
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(u.Port))
	d := net.Dialer{Timeout: timeout}
	conn, err := d.Dial("tcp", addr)
	if err != nil {
		dnscache.Forget(u.Host)
		return nil, newErr(KindTransport, TransportError, "dial %s: %v", addr, err)
	}
	return conn, nil
}
