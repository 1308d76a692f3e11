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

package fixtureserver

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gwuhaolin/livego/utils/pio"
)

// The handshake digest keys and responder, adapted from
// gwuhaolin/livego's core.go HandshakeServer. rtmp.Conn only exposes
// the client side of the handshake, so a fixture server answering real
// client dials needs its own copy of the same responder logic.
var (
	hsClientFullKey = []byte{
		'G', 'e', 'n', 'u', 'i', 'n', 'e', ' ', 'A', 'd', 'o', 'b', 'e', ' ',
		'F', 'l', 'a', 's', 'h', ' ', 'P', 'l', 'a', 'y', 'e', 'r', ' ',
		'0', '0', '1',
		0xF0, 0xEE, 0xC2, 0x4A, 0x80, 0x68, 0xBE, 0xE8, 0x2E, 0x00, 0xD0, 0xD1,
		0x02, 0x9E, 0x7E, 0x57, 0x6E, 0xEC, 0x5D, 0x2D, 0x29, 0x80, 0x6F, 0xAB,
		0x93, 0xB8, 0xE6, 0x36, 0xCF, 0xEB, 0x31, 0xAE,
	}
	hsServerFullKey = []byte{
		'G', 'e', 'n', 'u', 'i', 'n', 'e', ' ', 'A', 'd', 'o', 'b', 'e', ' ',
		'F', 'l', 'a', 's', 'h', ' ', 'M', 'e', 'd', 'i', 'a', ' ',
		'S', 'e', 'r', 'v', 'e', 'r', ' ',
		'0', '0', '1',
		0xF0, 0xEE, 0xC2, 0x4A, 0x80, 0x68, 0xBE, 0xE8, 0x2E, 0x00, 0xD0, 0xD1,
		0x02, 0x9E, 0x7E, 0x57, 0x6E, 0xEC, 0x5D, 0x2D, 0x29, 0x80, 0x6F, 0xAB,
		0x93, 0xB8, 0xE6, 0x36, 0xCF, 0xEB, 0x31, 0xAE,
	}
	hsClientPartialKey = hsClientFullKey[:30]
	hsServerPartialKey = hsServerFullKey[:36]
)

const (
	handshakeVersion = 3
	handshakeBlock   = 1536
	handshakeTimeout = 10 * time.Second
)

func hsMakeDigest(key, src []byte, gap int) []byte {
	h := hmac.New(sha256.New, key)
	if gap <= 0 {
		h.Write(src)
	} else {
		h.Write(src[:gap])
		h.Write(src[gap+32:])
	}
	return h.Sum(nil)
}

func hsCalcDigestPos(p []byte, base int) int {
	pos := 0
	for i := 0; i < 4; i++ {
		pos += int(p[base+i])
	}
	return (pos % 728) + base + 4
}

func hsFindDigest(p, key []byte, base int) int {
	gap := hsCalcDigestPos(p, base)
	digest := hsMakeDigest(key, p, gap)
	if !bytes.Equal(p[gap:gap+32], digest) {
		return -1
	}
	return gap
}

func hsParse1(p, peerKey, key []byte) (ok bool, digest []byte) {
	pos := hsFindDigest(p, peerKey, 772)
	if pos == -1 {
		pos = hsFindDigest(p, peerKey, 8)
		if pos == -1 {
			return false, nil
		}
	}
	return true, hsMakeDigest(key, p[pos:pos+32], -1)
}

func hsCreate01(p []byte, t, ver uint32, key []byte) {
	p[0] = handshakeVersion
	p1 := p[1:]
	rand.Read(p1[8:])
	pio.PutU32BE(p1[0:4], t)
	pio.PutU32BE(p1[4:8], ver)
	gap := hsCalcDigestPos(p1, 8)
	digest := hsMakeDigest(key, p1, gap)
	copy(p1[gap:], digest)
}

func hsCreate2(p, key []byte) {
	rand.Read(p)
	gap := len(p) - 32
	digest := hsMakeDigest(key, p, gap)
	copy(p[gap:], digest)
}

// handshakeServer plays the S side of the handshake against an already
// accepted net.Conn: read C0/C1, answer S0/S1/S2 (complex if C1 carries
// a valid digest, plain echo otherwise — rtmp.Session.Dial's simple
// fallback sends a fully random C1, not a zeroed version field, so the
// digest lookup itself decides the branch rather than C1's version
// word), then read C2. Grounded on gwuhaolin/livego's core.go
// Conn.HandshakeServer, adjusted for that fallback shape.
func handshakeServer(conn net.Conn) error {
	var buf [(1 + handshakeBlock*2) * 2]byte
	c0c1c2 := buf[:handshakeBlock*2+1]
	c0 := c0c1c2[:1]
	c1 := c0c1c2[1 : handshakeBlock+1]
	c0c1 := c0c1c2[:handshakeBlock+1]
	c2 := c0c1c2[handshakeBlock+1:]

	s0s1s2 := buf[handshakeBlock*2+1:]
	s0 := s0s1s2[:1]
	s1 := s0s1s2[1 : handshakeBlock+1]
	s0s1 := s0s1s2[:handshakeBlock+1]
	s2 := s0s1s2[handshakeBlock+1:]

	conn.SetDeadline(time.Now().Add(handshakeTimeout))
	if _, err := io.ReadFull(conn, c0c1); err != nil {
		return err
	}
	if c0[0] != handshakeVersion {
		return fmt.Errorf("fixtureserver: handshake version %d invalid", c0[0])
	}
	s0[0] = handshakeVersion

	if ok, digest := hsParse1(c1, hsClientPartialKey, hsServerFullKey); ok {
		now := uint32(time.Now().Unix())
		hsCreate01(s0s1, now, 0x0d0e0a0d, hsServerPartialKey)
		hsCreate2(s2, digest)
	} else {
		rand.Read(s1)
		copy(s2, c1)
	}

	if _, err := conn.Write(s0s1s2); err != nil {
		return err
	}
	if _, err := io.ReadFull(conn, c2); err != nil {
		return err
	}
	conn.SetDeadline(time.Time{})
	return nil
}
