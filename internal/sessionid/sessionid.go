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

// Package sessionid hands out the "thread-local diagnostic context
// identifier" named here — one UUID per Session, carried in
// every debug log line so a multi-session process can tell sessions
// apart in its logs.
package sessionid

import uuid "github.com/satori/go.uuid"

// New returns a fresh diagnostic identifier.
func New() string {
	return uuid.NewV4().String()
}
