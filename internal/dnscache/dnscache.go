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

// Package dnscache caches resolved RTMP hostnames so that repeated
// Dials against the same server (the common case for a reconnecting
// publisher) don't pay a DNS round trip every time. The reference
// implementation this module draws from (srs_rtmp_dns_resolve)
// re-resolves unconditionally; caching here is an addition, not a
// regression.
package dnscache

import (
	"net"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	defaultExpiration = 5 * time.Minute
	cleanupInterval    = 10 * time.Minute
)

var c = cache.New(defaultExpiration, cleanupInterval)

// Resolve returns the first resolved IP for host, consulting the cache
// before doing a real lookup.
func Resolve(host string) (net.IP, error) {
	if v, ok := c.Get(host); ok {
		return v.(net.IP), nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	if len(ips) == 0 {
		return nil, &net.DNSError{Err: "no addresses found", Name: host}
	}
	ip := ips[0]
	c.Set(host, ip, cache.DefaultExpiration)
	return ip, nil
}

// Forget evicts host from the cache, e.g. after a connect failure that
// might be due to a stale address.
func Forget(host string) {
	c.Delete(host)
}
