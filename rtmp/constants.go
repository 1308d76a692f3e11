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

// Message type IDs.
const (
	SetChunkSizeMessageID              = 1
	AbortMessageID                     = 2
	AcknowledgementMessageID           = 3
	UserControlMessageID               = 4
	WindowAcknowledgementSizeMessageID = 5
	SetPeerBandwidthMessageID          = 6
	AudioMessageID                     = 8
	VideoMessageID                     = 9
	DataMessageAMF3ID                  = 15
	SharedObjectMessageAMF3ID          = 16
	CommandMessageAMF3ID               = 17
	DataMessageAMF0ID                  = 18
	SharedObjectMessageAMF0ID          = 19
	CommandMessageAMF0ID               = 20
	AggregateMessageID                 = 22
)

// User control event types, carried in a UserControlMessageID payload.
const (
	UserControlEventStreamBegin      = 0
	UserControlEventStreamEOF        = 1
	UserControlEventStreamDry        = 2
	UserControlEventSetBufferLength  = 3
	UserControlEventStreamIsRecorded = 4
	UserControlEventPingRequest      = 6
	UserControlEventPingResponse     = 7
)

// NetConnection/NetStream command names.
const (
	CommandConnect       = "connect"
	CommandCreateStream  = "createStream"
	CommandPlay          = "play"
	CommandPublish       = "publish"
	CommandDeleteStream  = "deleteStream"
	CommandReleaseStream = "releaseStream"
	CommandFCPublish     = "FCPublish"
	CommandOnBWDone      = "onBWDone"
	CommandOnStatus      = "onStatus"
	CommandResult        = "_result"
	CommandError         = "_error"
)

// ConnEventCode is the key inside a command's info-object that carries the
// NetConnection/NetStream status code.
const ConnEventCode = "code"

const (
	NetConnectionConnectSuccess = "NetConnection.Connect.Success"
	NetStreamPublishStart       = "NetStream.Publish.Start"
	NetStreamPlayStart          = "NetStream.Play.Start"
)

const (
	// DefaultChunkSize is the chunk size assumed before any
	// set_chunk_size message.
	DefaultChunkSize = 128
	// MaxChunkSize is the ChunkTooLarge threshold.
	MaxChunkSize = 65536
	// DefaultPort is used when a parsed URL omits one.
	DefaultPort = 1935
	// DefaultWindowAckSize mirrors common RTMP client defaults.
	DefaultWindowAckSize = 2500000
	// PublishTypeLive is the only publish-type this client issues.
	PublishTypeLive = "live"
)

// Well known chunk-stream IDs, assigned by message type so unrelated
// message kinds never share a chunk stream's compressed header state.
const (
	CSIDProtocolControl = 2
	CSIDCommand         = 3
	CSIDVideo           = 4
	CSIDAudio           = 5
	CSIDData            = 6
)
