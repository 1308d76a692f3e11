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
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"time"

	"github.com/gwuhaolin/livego/utils/pio"

	"github.com/nivenly/rtmpgo/internal/log"
)

// Adobe's well-known handshake key constants. Both are
// present in gwuhaolin/livego's core.go but only hsServerFullKey/
// hsClientPartialKey were ever exercised from the client side there
// (HandshakeServer verifies a client digest with hsClientPartialKey and
// signs its own with hsServerPartialKey). This module is the first to
// drive the client (hsCreate01 with hsClientPartialKey, hsParse1 against
// hsServerPartialKey) through the same helpers.
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
	// handshakeTimeout is the handshake deadline. Dial performs the
	// handshake before it returns the Session, so Session.SetTimeout
	// does not change it. gwuhaolin/livego's core.go hard-codes 5s;
	// this module uses a longer value instead.
	handshakeTimeout = 30 * time.Second
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

// hsParse1 looks for a valid digest in p (an S1 block) at the scheme-1
// offset (772) first, falling back to the scheme-0 offset (8). This
// mirrors gwuhaolin/livego's server-side hsParse1, which already probes
// both offsets; this module reuses it unchanged to validate S1 instead
// of C1.
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

// hsDigestBaseScheme0/1 are the two base offsets a complex-handshake
// digest may be computed from (hsCalcDigestPos adds a pseudo-random
// 0-727 gap on top). hsParse1 already probes both when reading a peer's
// block; hsCreate01 takes one explicitly so a client can choose which
// scheme to sign C1 with.
const (
	hsDigestBaseScheme0 = 8
	hsDigestBaseScheme1 = 772
)

func hsCreate01(p []byte, t, ver uint32, key []byte, base int) {
	p[0] = handshakeVersion
	p1 := p[1:]
	rand.Read(p1[8:])
	pio.PutU32BE(p1[0:4], t)
	pio.PutU32BE(p1[4:8], ver)
	gap := hsCalcDigestPos(p1, base)
	digest := hsMakeDigest(key, p1, gap)
	copy(p1[gap:], digest)
}

func hsCreate2(p, key []byte) {
	rand.Read(p)
	gap := len(p) - 32
	digest := hsMakeDigest(key, p, gap)
	copy(p[gap:], digest)
}

// handshakeSimple performs the plain (unsigned) handshake: random C1,
// verify S0, echo S1 back as C2, accept any S2.
func (c *Conn) handshakeSimple() error {
	var buf [(1 + handshakeBlock*2) * 2]byte
	c0c1c2 := buf[:handshakeBlock*2+1]
	c0c1 := c0c1c2[:handshakeBlock+1]
	s0s1s2 := buf[handshakeBlock*2+1:]

	c0c1[0] = handshakeVersion
	rand.Read(c0c1[1:])

	c.SetTimeout(handshakeTimeout)
	if _, err := c.rw.Write(c0c1); err != nil {
		return transportErr(err)
	}
	if err := c.rw.Flush(); err != nil {
		return transportErr(err)
	}
	if _, err := io.ReadFull(c.rw, s0s1s2); err != nil {
		return transportErr(err)
	}
	if s0s1s2[0] != handshakeVersion {
		return newErr(KindProtocol, HandshakeFailed, "unexpected S0 version %d", s0s1s2[0])
	}
	s1 := s0s1s2[1 : handshakeBlock+1]

	c2 := c0c1c2[handshakeBlock+1:]
	copy(c2, s1)
	if _, err := c.rw.Write(c2); err != nil {
		return transportErr(err)
	}
	if err := c.rw.Flush(); err != nil {
		return transportErr(err)
	}
	c.SetTimeout(0)
	return nil
}

// handshakeComplex performs the digest-signed handshake: C1 carries a
// digest signed with hsClientPartialKey, tried under scheme 0 first;
// if the resulting S1's digest fails verification against
// hsServerPartialKey, a fresh C1 is built and sent under scheme 1 and
// the exchange is retried once against the new S1 it produces. Only
// if both schemes fail does this return an error, so the caller can
// fall back to handshakeSimple.
func (c *Conn) handshakeComplex() error {
	var buf [(1 + handshakeBlock*2) * 2]byte
	c0c1c2 := buf[:handshakeBlock*2+1]
	s0s1s2 := buf[handshakeBlock*2+1:]
	c1 := c0c1c2[0 : handshakeBlock+1]
	c2 := c0c1c2[handshakeBlock+1:]

	c.SetTimeout(handshakeTimeout)
	defer c.SetTimeout(0)

	now := uint32(time.Now().Unix())
	var digest []byte
	var lastErr error
	for _, base := range []int{hsDigestBaseScheme0, hsDigestBaseScheme1} {
		hsCreate01(c1, now, 0x80000702, hsClientPartialKey, base)
		if _, err := c.rw.Write(c1); err != nil {
			return transportErr(err)
		}
		if err := c.rw.Flush(); err != nil {
			return transportErr(err)
		}
		if _, err := io.ReadFull(c.rw, s0s1s2); err != nil {
			return transportErr(err)
		}
		if s0s1s2[0] != handshakeVersion {
			return newErr(KindProtocol, HandshakeFailed, "unexpected S0 version %d", s0s1s2[0])
		}
		s1 := s0s1s2[1 : handshakeBlock+1]

		ok, d := hsParse1(s1, hsServerPartialKey, hsClientFullKey)
		if ok {
			digest = d
			break
		}
		lastErr = newErr(KindProtocol, HandshakeFailed, "S1 digest verification failed (scheme base %d)", base)
	}
	if digest == nil {
		return lastErr
	}

	hsCreate2(c2, digest)
	if _, err := c.rw.Write(c2); err != nil {
		return transportErr(err)
	}
	return c.rw.Flush()
}

// Handshake attempts the complex (digest) handshake on c first, rather
// than gating it behind a feature flag. A server that
// rejects the complex handshake mid-exchange has already consumed
// C0C1 on its own socket state, so a clean fallback to the simple form
// needs a fresh TCP connection rather than a retry on c; Session.Dial
// redials and calls handshakeSimple directly on the new connection
// when this returns an error.
func (c *Conn) Handshake() error {
	log.Debug(rtmpMessage("handshake.complex", hs))
	return c.handshakeComplex()
}

func transportErr(err error) error {
	return newErr(KindTransport, TransportError, "%v", err)
}
