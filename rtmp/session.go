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
	"strconv"
	"strings"
	"time"

	"github.com/gwuhaolin/livego/utils/uid"

	"github.com/nivenly/rtmpgo/amf0"
	"github.com/nivenly/rtmpgo/internal/log"
	"github.com/nivenly/rtmpgo/internal/sessionid"
)

// State is the client state machine:
//
//	Created → Resolved → Connected → Handshaked → AppConnected → Streaming{Play|Publish} → Closed
type State int

const (
	StateCreated State = iota
	StateResolved
	StateConnected
	StateHandshaked
	StateAppConnected
	StateStreamingPlay
	StateStreamingPublish
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateResolved:
		return "Resolved"
	case StateConnected:
		return "Connected"
	case StateHandshaked:
		return "Handshaked"
	case StateAppConnected:
		return "AppConnected"
	case StateStreamingPlay:
		return "Streaming(Play)"
	case StateStreamingPublish:
		return "Streaming(Publish)"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Session is the typed, first-class handle design
// note (replacing the original source's opaque void-pointer session).
// It owns the socket, the chunk-stream table, and the per-session codec
// bookkeeping; created by Dial, destroyed by Close.
type Session struct {
	url  *URL
	conn *Conn

	state    State
	diagID   string
	uid      string
	timeout  time.Duration
	transID  int
	streamID uint32
	info     ServerInfo

	pending []*Packet // drained before the next socket read

	curCommand string
	metadata   *amf0.Object
}

// NewSession creates an unstarted Session. Call Dial to resolve and
// connect.
func NewSession() *Session {
	return &Session{
		state:   StateCreated,
		diagID:  sessionid.New(),
		uid:     uid.NewId(),
		timeout: 30 * time.Second,
		transID: 1,
	}
}

// SetTimeout overrides the read/write timeout applied to every
// blocking operation (default 30s).
func (s *Session) SetTimeout(d time.Duration) { s.timeout = d }

// SetChunkSize negotiates a new outgoing chunk size with the peer.
// Typically called once, right after ConnectApp.
func (s *Session) SetChunkSize(n uint32) error { return s.conn.SetChunkSize(n) }

// DiagID returns the session's diagnostic context identifier, analogous
// to a thread-local diagnostic context usable in log correlation.
func (s *Session) DiagID() string { return s.diagID }

// State returns the session's current state.
func (s *Session) State() State { return s.state }

// Info returns the server info parsed from the connect response.
func (s *Session) Info() ServerInfo { return s.info }

// Dial resolves addr, opens a TCP connection, and performs the RTMP
// handshake (complex, falling back to simple). It does not yet send
// the connect command; call ConnectApp for that.
func Dial(addr string) (*Session, error) {
	u, err := ParseURL(addr)
	if err != nil {
		return nil, err
	}
	s := NewSession()
	s.url = u
	s.state = StateResolved

	tcpConn, err := u.Resolve(s.timeout)
	if err != nil {
		return nil, err
	}
	s.conn = NewConn(tcpConn, 4096)
	s.state = StateConnected

	log.Info(rtmpMessage("dial "+u.SafeURL(), conn))
	if err := s.conn.Handshake(); err != nil {
		log.Debug(rtmpMessage("complex handshake failed, redialing for simple fallback: "+err.Error(), hs))
		s.conn.Close()

		redialed, derr := u.Resolve(s.timeout)
		if derr != nil {
			return nil, derr
		}
		s.conn = NewConn(redialed, 4096)
		if err := s.conn.handshakeSimple(); err != nil {
			s.conn.Close()
			return nil, err
		}
	}
	s.state = StateHandshaked
	return s, nil
}

// ConnectApp issues the NetConnection "connect" command and waits for
// its _result. extra augments the minimal command
// object {app, tcUrl, flashVer, objectEncoding:0}; entries in extra
// take precedence over the minimal defaults when keys collide.
func (s *Session) ConnectApp(extra map[string]amf0.Value) error {
	if s.state != StateHandshaked {
		return newErr(KindProtocol, ProtocolError, "ConnectApp called in state %s", s.state)
	}

	cmdObj := &amf0.Object{}
	cmdObj.Set("app", s.url.App)
	cmdObj.Set("tcUrl", s.url.TCUrl)
	cmdObj.Set("flashVer", "FMLE/3.0 (compatible; rtmpgo)")
	cmdObj.Set("objectEncoding", float64(0))
	for k, v := range extra {
		cmdObj.Set(k, v)
	}

	txID := s.nextTransID()
	if err := s.writeCommand(CommandConnect, txID, cmdObj); err != nil {
		return err
	}
	s.curCommand = CommandConnect

	for s.state != StateAppConnected {
		if err := s.routeOne(); err != nil {
			return err
		}
	}
	return nil
}

// CreateStream issues "createStream" and returns the server-assigned
// stream id.
func (s *Session) CreateStream() (uint32, error) {
	if s.state != StateAppConnected {
		return 0, newErr(KindProtocol, ProtocolError, "CreateStream called in state %s", s.state)
	}
	txID := s.nextTransID()
	if err := s.writeCommand(CommandCreateStream, txID, amf0.Null); err != nil {
		return 0, err
	}
	s.curCommand = CommandCreateStream
	s.streamID = 0
	for s.streamID == 0 {
		if err := s.routeOne(); err != nil {
			return 0, err
		}
	}
	return s.streamID, nil
}

// Play issues the NetStream "play" command on the created stream and
// transitions to Streaming(Play) on NetStream.Play.Start.
func (s *Session) Play(streamName string) error {
	if s.state != StateAppConnected {
		return newErr(KindProtocol, ProtocolError, "Play called in state %s", s.state)
	}
	txID := s.nextTransID()
	cs := s.newCommandChunk(CommandMessageAMF0ID)
	var buf bytes.Buffer
	if _, err := amf0.EncodeBatch(&buf, CommandPlay, float64(txID), amf0.Null, streamName); err != nil {
		return err
	}
	cs.Data = buf.Bytes()
	cs.Length = uint32(len(cs.Data))
	s.curCommand = CommandPlay
	if err := s.writeChunk(&cs); err != nil {
		return err
	}
	for s.state != StateStreamingPlay {
		if err := s.routeOne(); err != nil {
			return err
		}
	}
	return nil
}

// Publish issues "publish" with type "live" and transitions to
// Streaming(Publish) on NetStream.Publish.Start.
func (s *Session) Publish(streamName string) error {
	if s.state != StateAppConnected {
		return newErr(KindProtocol, ProtocolError, "Publish called in state %s", s.state)
	}
	txID := s.nextTransID()
	cs := s.newCommandChunk(CommandMessageAMF0ID)
	var buf bytes.Buffer
	if _, err := amf0.EncodeBatch(&buf, CommandPublish, float64(txID), amf0.Null, streamName, PublishTypeLive); err != nil {
		return err
	}
	cs.Data = buf.Bytes()
	cs.Length = uint32(len(cs.Data))
	s.curCommand = CommandPublish
	if err := s.writeChunk(&cs); err != nil {
		return err
	}
	for s.state != StateStreamingPublish {
		if err := s.routeOne(); err != nil {
			return err
		}
	}
	return nil
}

// WritePacket chunks and sends p on this session's created stream.
func (s *Session) WritePacket(p *Packet) error {
	cs := ChunkStream{
		Format:    0,
		CSID:      CSIDCommand,
		Timestamp: p.Timestamp,
		TypeID:    p.TypeID,
		StreamID:  s.streamID,
		Length:    uint32(len(p.Data)),
		Data:      p.Data,
	}
	return s.writeChunk(&cs)
}

// ReadPacket returns the next application-visible message: a pending
// aggregate sub-message if one is queued, otherwise the next message
// read off the socket (with protocol-control messages absorbed inline
// and type-22 aggregates disassembled and queued)
// ordering rule.
func (s *Session) ReadPacket() (*Packet, error) {
	for {
		if len(s.pending) > 0 {
			p := s.pending[0]
			s.pending = s.pending[1:]
			return p, nil
		}
		cs := ChunkStream{}
		s.conn.SetTimeout(s.timeout)
		if err := s.conn.Read(&cs); err != nil {
			return nil, transportErr(err)
		}
		s.conn.SetTimeout(0)

		switch cs.TypeID {
		case AggregateMessageID:
			pkts, err := disassembleAggregate(&cs)
			if err != nil {
				return nil, err
			}
			s.pending = append(s.pending, pkts...)
			continue
		case CommandMessageAMF0ID, CommandMessageAMF3ID:
			if err := s.handleCommand(&cs); err != nil {
				return nil, err
			}
			continue
		default:
			return &Packet{TypeID: cs.TypeID, StreamID: cs.StreamID, Timestamp: cs.Timestamp, Data: cs.Data}, nil
		}
	}
}

// Close tears down the TCP connection. Once a transport or protocol
// error has been returned the caller must call Close and discard the
// Session.
func (s *Session) Close() error {
	if s.state == StateClosed {
		return nil
	}
	s.state = StateClosed
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// routeOne reads exactly one message and feeds it through the state
// machine; used by ConnectApp/CreateStream/Play/Publish while waiting
// for their reply.
func (s *Session) routeOne() error {
	cs := ChunkStream{}
	s.conn.SetTimeout(s.timeout)
	if err := s.conn.Read(&cs); err != nil {
		return transportErr(err)
	}
	s.conn.SetTimeout(0)

	switch cs.TypeID {
	case AggregateMessageID:
		pkts, err := disassembleAggregate(&cs)
		if err != nil {
			return err
		}
		s.pending = append(s.pending, pkts...)
		return nil
	case CommandMessageAMF0ID, CommandMessageAMF3ID:
		return s.handleCommand(&cs)
	default:
		// Data/media arriving before the expected reply is queued,
		// "queue data until the result arrives".
		s.pending = append(s.pending, &Packet{TypeID: cs.TypeID, StreamID: cs.StreamID, Timestamp: cs.Timestamp, Data: cs.Data})
		return nil
	}
}

func (s *Session) handleCommand(cs *ChunkStream) error {
	values, err := amf0.DecodeBatch(bytes.NewReader(cs.Data))
	if err != nil {
		return newErr(KindInputShape, SystemIoInvalid, "decode command: %v", err)
	}
	if len(values) == 0 {
		return nil
	}
	name, _ := values[0].(string)

	for i, v := range values {
		switch t := v.(type) {
		case float64:
			if i == 1 && (name == CommandResult || name == CommandError) {
				if int(t) != s.transID && s.curCommand != CommandPublish {
					// Tx-ids are paired by id, not position; a
					// mismatch here is tolerated rather than fatal,
					// since some servers reuse ids loosely.
					log.Debug(rtmpMessage("tx id mismatch, continuing", ack))
				}
			}
			if i == 3 && name == CommandResult && s.curCommand == CommandCreateStream {
				s.streamID = uint32(t)
			}
		case *amf0.Object:
			code, _ := t.Get(ConnEventCode)
			codeStr, _ := code.(string)
			switch codeStr {
			case NetConnectionConnectSuccess:
				s.applyServerInfo(values)
				s.state = StateAppConnected
			case NetStreamPlayStart:
				s.state = StateStreamingPlay
			case NetStreamPublishStart:
				s.state = StateStreamingPublish
			}
		}
	}
	return nil
}

func (s *Session) applyServerInfo(values []amf0.Value) {
	for _, v := range values {
		obj, ok := v.(*amf0.Object)
		if !ok {
			continue
		}
		if sig, ok := obj.Get("fmsVer"); ok {
			if str, ok := sig.(string); ok {
				s.info.Sig = str
				s.info.Major, s.info.Minor, s.info.Revision, s.info.Build = parseFmsVer(str)
			}
		}
	}
}

// parseFmsVer extracts the version quad out of an fmsVer string shaped
// like "FMS/3,5,3,888" or "FMLE/3.0". Any segment that isn't a bare
// integer leaves the remaining fields at zero rather than erroring —
// this is an informational field, not a negotiated one.
func parseFmsVer(sig string) (major, minor, revision, build int) {
	_, version, ok := strings.Cut(sig, "/")
	if !ok {
		return 0, 0, 0, 0
	}
	parts := strings.Split(version, ",")
	nums := make([]int, 0, 4)
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			break
		}
		nums = append(nums, n)
	}
	for len(nums) < 4 {
		nums = append(nums, 0)
	}
	return nums[0], nums[1], nums[2], nums[3]
}

func (s *Session) nextTransID() int {
	s.transID++
	return s.transID
}

func (s *Session) newCommandChunk(typeID uint32) ChunkStream {
	return ChunkStream{
		Format:   0,
		CSID:     CSIDCommand,
		TypeID:   typeID,
		StreamID: s.streamID,
	}
}

func (s *Session) writeCommand(name string, txID int, args ...amf0.Value) error {
	cs := s.newCommandChunk(CommandMessageAMF0ID)
	var buf bytes.Buffer
	vals := append([]amf0.Value{name, float64(txID)}, args...)
	if _, err := amf0.EncodeBatch(&buf, vals...); err != nil {
		return err
	}
	cs.Data = buf.Bytes()
	cs.Length = uint32(len(cs.Data))
	return s.writeChunk(&cs)
}

func (s *Session) writeChunk(cs *ChunkStream) error {
	if err := s.conn.Write(cs); err != nil {
		return transportErr(err)
	}
	return s.conn.Flush()
}
