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

// Package log is the seam between this module and a process-wide
// logger. The default sink is a no-op, so callers that never touch
// this package get silence; UseKrisNovaLogger switches it to
// github.com/kris-nova/logger, this module's ambient choice, and SetSink
// installs any other Sink a caller supplies.
package log

import "github.com/kris-nova/logger"

// Sink is the minimal leveled-logging contract this module writes
// through. It matches the subset of github.com/kris-nova/logger's
// package-level functions this module actually calls.
type Sink interface {
	Debug(format string, a ...interface{})
	Info(format string, a ...interface{})
	Warning(format string, a ...interface{})
	Critical(format string, a ...interface{})
	Success(format string, a ...interface{})
}

type noopSink struct{}

func (noopSink) Debug(string, ...interface{})    {}
func (noopSink) Info(string, ...interface{})     {}
func (noopSink) Warning(string, ...interface{})  {}
func (noopSink) Critical(string, ...interface{}) {}
func (noopSink) Success(string, ...interface{})  {}

type krisNovaSink struct{}

func (krisNovaSink) Debug(format string, a ...interface{})    { logger.Debug(format, a...) }
func (krisNovaSink) Info(format string, a ...interface{})     { logger.Info(format, a...) }
func (krisNovaSink) Warning(format string, a ...interface{})  { logger.Warning(format, a...) }
func (krisNovaSink) Critical(format string, a ...interface{}) { logger.Critical(format, a...) }
func (krisNovaSink) Success(format string, a ...interface{})  { logger.Success(format, a...) }

var sink Sink = noopSink{}

// SetSink installs s as the active sink. Passing nil restores the
// default no-op sink.
func SetSink(s Sink) {
	if s == nil {
		sink = noopSink{}
		return
	}
	sink = s
}

// UseKrisNovaLogger installs github.com/kris-nova/logger as the active
// sink, this module's ambient logger choice.
func UseKrisNovaLogger() {
	sink = krisNovaSink{}
}

func Debug(format string, a ...interface{})    { sink.Debug(format, a...) }
func Info(format string, a ...interface{})     { sink.Info(format, a...) }
func Warning(format string, a ...interface{})  { sink.Warning(format, a...) }
func Critical(format string, a ...interface{}) { sink.Critical(format, a...) }
func Success(format string, a ...interface{})  { sink.Success(format, a...) }
