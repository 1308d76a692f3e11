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

// Command ytingest resolves the RTMP ingest URL of a YouTube live
// broadcast and hands it to rtmp.Session.Publish, grounded on
// gwuhaolin/livego's client_youtube.go (which only authenticates; this
// module is the first caller to use the resulting service to look up a
// broadcast's ingest address and actually publish to it).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kris-nova/logger"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/nivenly/rtmpgo/internal/config"
	"github.com/nivenly/rtmpgo/rtmp"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: ytingest <broadcast-id> <flv-file>")
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2]); err != nil {
		logger.Critical("%v", err)
		os.Exit(1)
	}
}

func run(broadcastID, flvPath string) error {
	cliConfig, err := config.Load("")
	if err != nil {
		return err
	}
	if cliConfig.YouTubeToken == "" {
		return fmt.Errorf("no YouTube API key configured (set RTMPGO_YOUTUBE_TOKEN or config file's youtube_token)")
	}
	svc, err := youtube.NewService(context.Background(), option.WithAPIKey(cliConfig.YouTubeToken))
	if err != nil {
		return fmt.Errorf("unable to authenticate with YouTube: %v", err)
	}
	logger.Success("authenticated with YouTube")

	ingestURL, err := resolveIngestURL(svc, broadcastID)
	if err != nil {
		return err
	}
	logger.Info("resolved ingest url for broadcast %s", broadcastID)

	u, err := rtmp.ParseURL(ingestURL)
	if err != nil {
		return err
	}
	s, err := rtmp.Dial(ingestURL)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.ConnectApp(nil); err != nil {
		return err
	}
	if _, err := s.CreateStream(); err != nil {
		return err
	}
	if err := s.Publish(u.Stream); err != nil {
		return err
	}
	return publishFLVFile(s, flvPath)
}

// resolveIngestURL looks up broadcastID's bound live stream and
// composes its RTMP ingest address from the stream's cdn ingestion
// info, per the YouTube Live Streaming API's LiveStream resource.
func resolveIngestURL(svc *youtube.Service, broadcastID string) (string, error) {
	bcResp, err := svc.LiveBroadcasts.List([]string{"contentDetails"}).Id(broadcastID).Do()
	if err != nil {
		return "", fmt.Errorf("looking up broadcast %s: %v", broadcastID, err)
	}
	if len(bcResp.Items) == 0 {
		return "", fmt.Errorf("no broadcast found with id %s", broadcastID)
	}
	streamID := bcResp.Items[0].ContentDetails.BoundStreamId
	if streamID == "" {
		return "", fmt.Errorf("broadcast %s has no bound live stream", broadcastID)
	}

	streamResp, err := svc.LiveStreams.List([]string{"cdn"}).Id(streamID).Do()
	if err != nil {
		return "", fmt.Errorf("looking up stream %s: %v", streamID, err)
	}
	if len(streamResp.Items) == 0 {
		return "", fmt.Errorf("no live stream found with id %s", streamID)
	}
	ingest := streamResp.Items[0].Cdn.IngestionInfo
	if ingest == nil || ingest.IngestionAddress == "" {
		return "", fmt.Errorf("stream %s has no ingestion address yet", streamID)
	}
	return fmt.Sprintf("%s/%s", ingest.IngestionAddress, ingest.StreamName), nil
}
