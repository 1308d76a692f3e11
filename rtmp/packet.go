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

// Packet is a complete RTMP message handed out of Session.ReadPacket.
// The caller owns Data once it receives a Packet and must call
// Session.FreePacket when done with it.
type Packet struct {
	TypeID    uint32
	StreamID  uint32
	Timestamp uint32
	Data      []byte
}

// FreePacket drops the caller's reference to a Packet's buffer so it
// can be garbage collected. The session's pool.Pool is a bump
// allocator over one growing backing array, not a free-list — it
// recycles space by wrapping its write position, not by an explicit
// per-buffer release — so there is nothing to hand back here. Buffers
// handed to WritePacket, by contrast, are copied during chunking and
// may be discarded by the caller immediately on return.
func (s *Session) FreePacket(p *Packet) {
	if p == nil {
		return
	}
	p.Data = nil
}

// ServerInfo is parsed out of the connect command's _result information
// object: Sig is the raw fmsVer string, and Major/Minor/Revision/Build
// are parsed out of its "FMS/major,minor,revision,build"-style suffix
// when present (zero otherwise).
type ServerInfo struct {
	Sig      string
	Major    int
	Minor    int
	Revision int
	Build    int
}
