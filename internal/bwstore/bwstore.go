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

// Package bwstore optionally persists C10 bandwidth-test results to
// Redis, keyed by server host, so a CLI run can report "last measured"
// kbps without re-running the test. Disabled unless a caller provides
// a Store (no hidden global connection) "no hidden
// globals" design note.
package bwstore

import (
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v7"
)

// Result is the persisted shape of one bandwidth-test run.
type Result struct {
	Host         string    `json:"host"`
	PlayKbps     float64   `json:"play_kbps"`
	PublishKbps  float64   `json:"publish_kbps"`
	MeasuredAt   time.Time `json:"measured_at"`
}

// Store persists Results to Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore connects to a Redis instance at addr. ttl bounds how long a
// stored result stays valid; zero means no expiry.
func NewStore(addr string, ttl time.Duration) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
	}
}

func key(host string) string { return "rtmpgo:bandwidth:" + host }

// Save records r, keyed by r.Host.
func (s *Store) Save(r Result) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.client.Set(key(r.Host), b, s.ttl).Err()
}

// Load returns the last Result recorded for host, if any.
func (s *Store) Load(host string) (Result, bool, error) {
	b, err := s.client.Get(key(host)).Bytes()
	if err == redis.Nil {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return Result{}, false, err
	}
	return r, true, nil
}

// Close releases the underlying Redis connection.
func (s *Store) Close() error { return s.client.Close() }
