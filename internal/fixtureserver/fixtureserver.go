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

// Package fixtureserver is a minimal loopback RTMP server used only by
// this module's own tests. It answers the handshake and the connect /
// createStream / publish / play commands well enough to drive
// rtmp.Session end to end, adapted from gwuhaolin/livego's server.go,
// conn_server.go and core.go (ConnServer, HandshakeServer). Server-side
// behavior is out of scope for the library itself; this package exists
// purely so the client package can be exercised against a real TCP
// round trip instead of a hand-fed byte buffer.
package fixtureserver

import (
	"fmt"
	"net"
	"sync"

	"github.com/nivenly/rtmpgo/rtmp"
)

// Packet is one media/data message the server sends (via PlayPackets)
// or records (via Published), decoupled from rtmp.Packet so this
// package doesn't need a StreamID field callers don't care about.
type Packet struct {
	TypeID    uint32
	Timestamp uint32
	Data      []byte
}

// Server is a loopback RTMP responder. Its zero value is not usable;
// construct one with New.
type Server struct {
	ln net.Listener
	wg sync.WaitGroup

	// PlayPackets, if non-empty, is streamed in order to every session
	// immediately after it issues "play"; the session then keeps reading
	// from the client, and the server does not close the connection.
	PlayPackets []Packet

	// RunBandwidthCheck makes the server drive the onSrsBandwidthCheck
	// phase machine immediately after a successful "connect", matching
	// rtmp.Session.BandwidthCheck's expectation that the server (not
	// Play/Publish) initiates it.
	RunBandwidthCheck bool

	mu        sync.Mutex
	published map[string][]Packet
}

// New starts listening on the loopback interface on an OS-assigned
// port and begins accepting connections in the background.
func New() (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{ln: ln, published: make(map[string][]Packet)}
	s.wg.Add(1)
	go s.serve()
	return s, nil
}

// Addr returns the RTMP URL prefix ("rtmp://host:port") clients should
// dial; callers append "/app/stream".
func (s *Server) Addr() string {
	return fmt.Sprintf("rtmp://%s", s.ln.Addr().String())
}

// Close stops accepting new connections and waits for every in-flight
// session to return.
func (s *Server) Close() error {
	err := s.ln.Close()
	s.wg.Wait()
	return err
}

// Published returns the packets a "publish" session for streamName sent,
// for test assertions. Safe to call after the publishing Session closed.
func (s *Server) Published(streamName string) []Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Packet(nil), s.published[streamName]...)
}

func (s *Server) recordPublished(streamName string, p Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published[streamName] = append(s.published[streamName], p)
}

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			if err := s.handleConn(conn); err != nil {
				return
			}
		}()
	}
}

func (s *Server) handleConn(conn net.Conn) error {
	if err := handshakeServer(conn); err != nil {
		return err
	}
	rc := rtmp.NewConn(conn, 4096)
	return s.runSession(rc)
}
