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

// Package config is cmd/rtmpctl's and cmd/ytingest's config-file
// layer, grounded on gwuhaolin/livego's configure/ package (same viper
// instance pattern, same mapstructure field tags).
package config

import (
	"time"

	"github.com/spf13/viper"
)

// CLI holds the settings cmd/rtmpctl and cmd/ytingest load from a
// config file and from RTMPGO_-prefixed environment variables, the
// environment taking priority (viper's own precedence rules).
type CLI struct {
	LogLevel     string        `mapstructure:"log_level"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ChunkSize    uint32        `mapstructure:"chunk_size"`
	RedisAddr    string        `mapstructure:"redis_addr"`
	YouTubeToken string        `mapstructure:"youtube_token"`
}

var defaultCLI = CLI{
	LogLevel:  "info",
	Timeout:   30 * time.Second,
	ChunkSize: 4096,
}

// Config is the process-wide viper instance, mirroring
// gwuhaolin/livego's package-level `Config = viper.New()`.
var Config = viper.New()

// Load reads path (if non-empty) plus any RTMPGO_-prefixed environment
// overrides into Config, and returns the decoded CLI. A missing
// config file is not an error — defaultCLI's values apply.
func Load(path string) (CLI, error) {
	Config.SetEnvPrefix("RTMPGO")
	Config.AutomaticEnv()
	for k, v := range map[string]interface{}{
		"log_level":     defaultCLI.LogLevel,
		"timeout":       defaultCLI.Timeout,
		"chunk_size":    defaultCLI.ChunkSize,
		"redis_addr":    defaultCLI.RedisAddr,
		"youtube_token": defaultCLI.YouTubeToken,
	} {
		Config.SetDefault(k, v)
	}

	if path != "" {
		Config.SetConfigFile(path)
		if err := Config.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return CLI{}, err
			}
		}
	}

	cli := defaultCLI
	if err := Config.Unmarshal(&cli); err != nil {
		return CLI{}, err
	}
	return cli, nil
}
