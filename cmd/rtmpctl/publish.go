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

package main

import (
	"io"
	"os"

	"github.com/nivenly/rtmpgo/flv"
	"github.com/nivenly/rtmpgo/rtmp"
)

// publishFLV reads path tag-by-tag and republishes each one on s
// verbatim, the simplest possible source for rtmpctl publish: a
// pre-muxed FLV file rather than raw AAC/H.264 (the media package is
// exercised by the library's own tests, not by this CLI).
func publishFLV(s *rtmp.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, _, err := flv.ReadHeader(f); err != nil {
		return err
	}

	for {
		tag, err := flv.ReadTag(f)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.WritePacket(&rtmp.Packet{TypeID: uint32(tag.Type), Timestamp: tag.Timestamp, Data: tag.Body}); err != nil {
			return err
		}
	}
}
