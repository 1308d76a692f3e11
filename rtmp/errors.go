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

import "fmt"

// Code is an integer error code ("Error codes. Integers
// ≥ 0 with 0 = success"). Code values are carried on Error so that callers
// that want to branch on the stable code can do so without string
// matching, while fmt.Stringer/error still gives a readable message.
type Code int

const (
	Success Code = 0

	AacRequiredAdts Code = iota + 100
	H264DropBeforeSpsPps
	H264DuplicatedSps
	H264DuplicatedPps
	SystemFileEof
	RtmpAggregate
	SystemDnsResolve
	FlvInvalidVideoTag
	Mp4IllegalHandler
	SystemIoInvalid

	ChunkTooLarge
	InconsistentReassembly
	UnknownProtocolControl
	HandshakeFailed
	Timeout
	ProtocolError
	TransportError
)

var codeNames = map[Code]string{
	AacRequiredAdts:        "AAC_REQUIRED_ADTS",
	H264DropBeforeSpsPps:   "H264_DROP_BEFORE_SPS_PPS",
	H264DuplicatedSps:      "H264_DUPLICATED_SPS",
	H264DuplicatedPps:      "H264_DUPLICATED_PPS",
	SystemFileEof:          "SYSTEM_FILE_EOF",
	RtmpAggregate:          "RTMP_AGGREGATE",
	SystemDnsResolve:       "SYSTEM_DNS_RESOLVE",
	FlvInvalidVideoTag:     "FLV_INVALID_VIDEO_TAG",
	Mp4IllegalHandler:      "MP4_ILLEGAL_HANDLER",
	SystemIoInvalid:        "SYSTEM_IO_INVALID",
	ChunkTooLarge:          "CHUNK_TOO_LARGE",
	InconsistentReassembly: "INCONSISTENT_REASSEMBLY",
	UnknownProtocolControl: "UNKNOWN_PROTOCOL_CONTROL",
	HandshakeFailed:        "HANDSHAKE_FAILED",
	Timeout:                "TIMEOUT",
	ProtocolError:          "PROTOCOL_ERROR",
	TransportError:         "TRANSPORT_ERROR",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("CODE_%d", int(c))
}

// Error carries a stable Code alongside a human message. Kind groups
// errors into the handful of kinds callers care about when deciding
// whether a Session must be closed.
type Error struct {
	Code Code
	Kind Kind
	Msg  string
}

// Kind classifies an Error.
type Kind int

const (
	KindRecoverableWarning Kind = iota
	KindInputShape
	KindProtocol
	KindTransport
	KindEndOfStream
)

func (e *Error) Error() string {
	return fmt.Sprintf("rtmp: %s: %s", e.Code, e.Msg)
}

func newErr(kind Kind, code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// NewError builds an *Error for use by packages outside rtmp (media,
// flv, mp4, inspect) that need to report one of this package's stable
// codes without duplicating the Error type.
func NewError(kind Kind, code Code, format string, args ...interface{}) *Error {
	return newErr(kind, code, format, args...)
}

// MustClose reports whether receiving this error means the caller must
// discard the Session: true for KindProtocol and KindTransport.
func (e *Error) MustClose() bool {
	return e.Kind == KindProtocol || e.Kind == KindTransport
}

// IsEndOfStream reports whether err is the SYSTEM_FILE_EOF sentinel,
// which callers should check for rather than log as an error.
func IsEndOfStream(err error) bool {
	e, ok := err.(*Error)
	return ok && e.Kind == KindEndOfStream
}
