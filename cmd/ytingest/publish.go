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

// publishFLVFile republishes a pre-muxed FLV file tag-by-tag onto s.
func publishFLVFile(s *rtmp.Session, path string) error {
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
