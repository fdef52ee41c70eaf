/*
 * Copyright (c) "GraphBolt"
 * GraphBolt Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 */

// Package log defines the driver's internal logging contract. Components
// never log through fmt directly; they hold a Logger and tag every line
// with the component name (Bolt5, Pool, Router, Session, ...) and the
// logId of the object emitting it, so a single connection or session's
// trace can be grepped out of a noisy multi-session log.
package log

import "github.com/google/uuid"

// Component names used as the "name" argument across the driver.
const (
	Bolt5   = "bolt5"
	Pool    = "pool"
	Router  = "router"
	Session = "session"
	Driver  = "driver"
)

// Logger is the leveled sink every internal component writes through.
type Logger interface {
	Error(name string, id string, err error)
	Warnf(name string, id string, msg string, args ...any)
	Infof(name string, id string, msg string, args ...any)
	Debugf(name string, id string, msg string, args ...any)
}

// BoltLogger receives a trace of every raw Bolt message sent and received,
// independent of the leveled Logger above. It exists so that wire-protocol
// debugging can be turned on per-session without raising the global log
// level (spec.md §6 "logging": {level, sink} is the driver-wide knob; this
// is the finer-grained one, matching the teacher's SessionConfig.BoltLogger).
type BoltLogger interface {
	LogClientMessage(ctx, msg string, args ...any)
	LogServerMessage(ctx, msg string, args ...any)
}

// NewID returns a short correlation id used to tie together every log line
// about one connection or session, e.g. "a1b2c3d4".
func NewID() string {
	return uuid.NewString()[:8]
}

// Level controls which Logger calls actually reach the sink.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// ParseLevel accepts the spec.md §6 logging.level strings.
func ParseLevel(s string) Level {
	switch s {
	case "warn":
		return LevelWarn
	case "info":
		return LevelInfo
	case "debug":
		return LevelDebug
	default:
		return LevelError
	}
}

// Void discards everything; the default when no logging config is given.
var Void Logger = &voidLogger{}

type voidLogger struct{}

func (*voidLogger) Error(string, string, error)          {}
func (*voidLogger) Warnf(string, string, string, ...any)  {}
func (*voidLogger) Infof(string, string, string, ...any)  {}
func (*voidLogger) Debugf(string, string, string, ...any) {}
