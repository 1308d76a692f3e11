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

// Command rtmpctl is a thin CLI over the rtmp package, grounded on
// gwuhaolin/livego's cmd/main.go (urfave/cli/v2, a package-level flag
// set shared across subcommands).
package main

import (
	"fmt"
	"os"

	"github.com/kris-nova/logger"
	"github.com/urfave/cli/v2"

	"github.com/nivenly/rtmpgo/internal/bwstore"
	"github.com/nivenly/rtmpgo/internal/config"
	rtmplog "github.com/nivenly/rtmpgo/internal/log"
	"github.com/nivenly/rtmpgo/rtmp"
)

var (
	verbose    bool
	configPath string
	redisAddr  string

	cliConfig config.CLI

	globalFlags = []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Destination: &verbose},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &configPath},
	}
)

func main() {
	app := &cli.App{
		Name:  "rtmpctl",
		Usage: "publish, play, or bandwidth-test an RTMP stream",
		Flags: globalFlags,
		Before: func(c *cli.Context) error {
			if verbose {
				logger.BitwiseLevel = logger.LogEverything
				rtmplog.UseKrisNovaLogger()
			}
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cliConfig = loaded
			return nil
		},
		Commands: []*cli.Command{
			playCommand(),
			publishCommand(),
			bandwidthCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Critical("%v", err)
		os.Exit(1)
	}
}

// applySessionConfig applies the loaded config-file/env settings to a
// freshly dialed session, before any command is issued on it.
func applySessionConfig(s *rtmp.Session) error {
	if cliConfig.Timeout > 0 {
		s.SetTimeout(cliConfig.Timeout)
	}
	if cliConfig.ChunkSize > 0 {
		if err := s.SetChunkSize(cliConfig.ChunkSize); err != nil {
			return err
		}
	}
	return nil
}

func playCommand() *cli.Command {
	return &cli.Command{
		Name:      "play",
		Usage:     "connect to an RTMP URL and dump incoming packets",
		ArgsUsage: "<rtmp-url>",
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("usage: rtmpctl play <rtmp-url>")
			}
			s, err := dialAndPlay(c.Args().Get(0))
			if err != nil {
				return err
			}
			defer s.Close()

			for {
				p, err := s.ReadPacket()
				if err != nil {
					if rtmp.IsEndOfStream(err) {
						return nil
					}
					return err
				}
				logger.Info("packet type=%d ts=%d size=%d", p.TypeID, p.Timestamp, len(p.Data))
				s.FreePacket(p)
			}
		},
	}
}

func publishCommand() *cli.Command {
	var filePath string
	return &cli.Command{
		Name:      "publish",
		Usage:     "connect to an RTMP URL and publish an FLV file",
		ArgsUsage: "<rtmp-url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "flv", Destination: &filePath, Required: true},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("usage: rtmpctl publish --flv <file> <rtmp-url>")
			}
			u, err := rtmp.ParseURL(c.Args().Get(0))
			if err != nil {
				return err
			}
			s, err := rtmp.Dial(c.Args().Get(0))
			if err != nil {
				return err
			}
			defer s.Close()
			if err := applySessionConfig(s); err != nil {
				return err
			}
			if err := s.ConnectApp(nil); err != nil {
				return err
			}
			if _, err := s.CreateStream(); err != nil {
				return err
			}
			if err := s.Publish(u.Stream); err != nil {
				return err
			}
			return publishFLV(s, filePath)
		},
	}
}

func bandwidthCommand() *cli.Command {
	return &cli.Command{
		Name:      "bandwidth",
		Usage:     "run an onSrsBandwidthCheck against a server",
		ArgsUsage: "<rtmp-url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "redis", Destination: &redisAddr},
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return fmt.Errorf("usage: rtmpctl bandwidth <rtmp-url>")
			}
			u, err := rtmp.ParseURL(c.Args().Get(0))
			if err != nil {
				return err
			}
			s, err := rtmp.Dial(c.Args().Get(0))
			if err != nil {
				return err
			}
			defer s.Close()
			if err := applySessionConfig(s); err != nil {
				return err
			}
			if err := s.ConnectApp(nil); err != nil {
				return err
			}
			result, err := s.BandwidthCheck()
			if err != nil {
				return err
			}
			logger.Always("play=%.1fkbps publish=%.1fkbps duration=%s", result.PlayKbps, result.PublishKbps, result.Duration)

			if redisAddr == "" {
				redisAddr = cliConfig.RedisAddr
			}
			if redisAddr != "" {
				store := bwstore.NewStore(redisAddr, 0)
				defer store.Close()
				if err := store.Save(bwstore.Result{Host: u.Host, PlayKbps: result.PlayKbps, PublishKbps: result.PublishKbps}); err != nil {
					logger.Warning("bandwidth: failed to persist result: %v", err)
				}
			}
			return nil
		},
	}
}

func dialAndPlay(url string) (*rtmp.Session, error) {
	u, err := rtmp.ParseURL(url)
	if err != nil {
		return nil, err
	}
	s, err := rtmp.Dial(url)
	if err != nil {
		return nil, err
	}
	if err := applySessionConfig(s); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.ConnectApp(nil); err != nil {
		s.Close()
		return nil, err
	}
	if _, err := s.CreateStream(); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Play(u.Stream); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
