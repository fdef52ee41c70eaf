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

package log

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger is the default Logger sink, backed by a zap.SugaredLogger.
// It satisfies spec.md §6's `logging: {level, sink}` driver config key:
// level picks the zapcore.Level, sink is the io.Writer logs are encoded to.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level Level
}

// NewZapLogger builds a ZapLogger writing JSON lines to w at the given
// level. Passing a nil w discards all output.
func NewZapLogger(level Level, w io.Writer) *ZapLogger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var syncer zapcore.WriteSyncer
	if w == nil {
		syncer = zapcore.AddSync(zapcore.Lock(zapcore.AddSync(io.Discard)))
	} else {
		syncer = zapcore.AddSync(w)
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), syncer, zapLevel(level))
	return &ZapLogger{
		sugar: zap.New(core).Sugar(),
		level: level,
	}
}

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func (z *ZapLogger) Error(name string, id string, err error) {
	z.sugar.Errorw(err.Error(), "component", name, "id", id)
}

func (z *ZapLogger) Warnf(name string, id string, msg string, args ...any) {
	z.sugar.Warnw(fmt.Sprintf(msg, args...), "component", name, "id", id)
}

func (z *ZapLogger) Infof(name string, id string, msg string, args ...any) {
	z.sugar.Infow(fmt.Sprintf(msg, args...), "component", name, "id", id)
}

func (z *ZapLogger) Debugf(name string, id string, msg string, args ...any) {
	z.sugar.Debugw(fmt.Sprintf(msg, args...), "component", name, "id", id)
}

// Sync flushes any buffered log entries; call before process exit.
func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}
