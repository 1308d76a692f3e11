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

package inspect

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub fans a stream of C9's formatted one-line packet descriptions out
// to any number of websocket subscribers. It is a diagnostic sidecar,
// not part of the STABLE format contract — only the lines it carries
// are stable, not the transport.
type Hub struct {
	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn *websocket.Conn
	out  chan string
}

// NewHub builds a Hub that accepts upgrades from any origin, matching
// the diagnostic (not production-facing) nature of this endpoint.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		subs: make(map[*subscriber]struct{}),
	}
}

// ServeHTTP upgrades the connection and streams every line later
// passed to Publish until the client disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sub := &subscriber{conn: conn, out: make(chan string, 64)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
		conn.Close()
	}()

	for line := range sub.out {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}
}

// Publish fans line out to every currently attached subscriber.
// Subscribers whose outbound queue is full are dropped rather than
// allowed to stall the publisher.
func (h *Hub) Publish(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		select {
		case sub.out <- line:
		default:
			delete(h.subs, sub)
			close(sub.out)
		}
	}
}

// Close detaches every subscriber, closing their outbound queues.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		close(sub.out)
		delete(h.subs, sub)
	}
}
