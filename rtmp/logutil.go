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

// messageOperator tags a debug-log line with the direction or effect of
// the event it describes. This is this package's own debug convention,
// distinct from the STABLE packet format the inspect package emits.
type messageOperator string

const (
	rx   messageOperator = "[<- rx]"
	tx   messageOperator = "[tx ->]"
	ack  messageOperator = "[ack  ]"
	hs   messageOperator = "[hndshk]"
	pub  messageOperator = "[publsh]"
	play messageOperator = "[play  ]"
	conn messageOperator = "[conn  ]"
)

func rtmpMessage(place string, op messageOperator) string {
	return fmt.Sprintf("[rtmp] %s %s", op, place)
}

func typeIDString(x *ChunkStream) string {
	switch x.TypeID {
	case SetChunkSizeMessageID:
		return "set_chunk_size"
	case AbortMessageID:
		return "abort"
	case AcknowledgementMessageID:
		return "ack"
	case UserControlMessageID:
		return "user_control"
	case WindowAcknowledgementSizeMessageID:
		return "window_ack_size"
	case SetPeerBandwidthMessageID:
		return "set_peer_bw"
	case AudioMessageID:
		return "audio"
	case VideoMessageID:
		return "video"
	case DataMessageAMF0ID, DataMessageAMF3ID:
		return "data"
	case CommandMessageAMF0ID, CommandMessageAMF3ID:
		return "command"
	case SharedObjectMessageAMF0ID, SharedObjectMessageAMF3ID:
		return "shared_object"
	case AggregateMessageID:
		return "aggregate"
	default:
		return fmt.Sprintf("unknown(%d)", x.TypeID)
	}
}
