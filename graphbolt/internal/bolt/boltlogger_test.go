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

package bolt

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbolt/driver/graphbolt/internal/packstream"
)

// traceLogger is a minimal log.BoltLogger double that records every call.
type traceLogger struct {
	client []string
	server []string
}

func (l *traceLogger) LogClientMessage(ctx, msg string, args ...any) {
	l.client = append(l.client, msg)
}

func (l *traceLogger) LogServerMessage(ctx, msg string, args ...any) {
	l.server = append(l.server, msg)
}

func TestAppendMessageTracesToClientLogger(t *testing.T) {
	tl := &traceLogger{}
	o := &outgoing{chunker: newChunker(), boltLogger: tl}

	o.appendMessage(packstream.SigRun, "RETURN 1", map[string]any{}, map[string]any{})
	o.appendMessage(packstream.SigPull, map[string]any{"n": int64(-1)})

	assert.Equal(t, []string{"RUN", "PULL"}, tl.client)
}

func TestNextTracesServerMessagesToLogger(t *testing.T) {
	tl := &traceLogger{}

	var p packstream.Packer
	p.PackStructHeader(1, packstream.SigSuccess)
	require.NoError(t, p.PackValue(map[string]any{"fields": []any{"n"}}))
	raw := make([]byte, len(p.Buf))
	copy(raw, p.Buf)

	var c chunker
	c.writeMessage(raw)
	var buf bytes.Buffer
	require.NoError(t, c.flush(&buf))

	in := &incoming{r: bufio.NewReader(&buf), boltLogger: tl}
	require.NoError(t, in.next(responseHandler{onSuccess: onSuccessNoOp}))

	assert.Equal(t, []string{"SUCCESS"}, tl.server)
}
