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
	"errors"
	"io"
)

// maxChunkSize is the largest payload a single chunk may carry: a uint16
// length prefix tops out at 65535 (spec.md §4.2).
const maxChunkSize = 0xFFFF

// chunker splits one or more outgoing messages into length-prefixed chunks
// terminated by a zero-length chunk, writing the bytes to an io.Writer.
// It prefers fewer chunks: a message under maxChunkSize goes out as a
// single chunk.
type chunker struct {
	buf []byte
}

func newChunker() *chunker {
	return &chunker{buf: make([]byte, 0, 1024)}
}

// writeMessage appends msg's chunk sequence (including the terminator) to
// the chunker's internal buffer without flushing it; callers may queue
// several messages before a single Flush (Bolt allows pipelining ahead of
// responses, spec.md §4.3 "Ordering").
func (c *chunker) writeMessage(msg []byte) {
	for len(msg) > maxChunkSize {
		c.appendChunk(msg[:maxChunkSize])
		msg = msg[maxChunkSize:]
	}
	if len(msg) > 0 {
		c.appendChunk(msg)
	}
	c.buf = append(c.buf, 0, 0) // terminator
}

func (c *chunker) appendChunk(payload []byte) {
	n := len(payload)
	c.buf = append(c.buf, byte(n>>8), byte(n))
	c.buf = append(c.buf, payload...)
}

// flush writes everything queued so far to w and resets the buffer.
func (c *chunker) flush(w io.Writer) error {
	if len(c.buf) == 0 {
		return nil
	}
	_, err := w.Write(c.buf)
	c.buf = c.buf[:0]
	return err
}

func (c *chunker) isEmpty() bool {
	return len(c.buf) == 0
}

// errEmptyMessage is returned by the Bolt message layer (not the bare
// framer) when a fully reassembled message turns out to have zero bytes:
// the chunked-framing layer happily round-trips a zero-length payload
// (spec.md §8 "messages of length 0 ... survive a round trip"), but no
// real Bolt message is ever legitimately empty (every message starts with
// a struct marker), so the very first chunk of a message being the
// zero-length terminator is a protocol error one layer up, where the
// decoder tries and fails to find a struct marker (spec.md §8 "a
// zero-chunk-before-payload is rejected").
var errEmptyMessage = errors.New("bolt: empty message, expected a struct")

// readMessage blocks until one full message (all its chunks concatenated,
// terminator consumed) has been read from r. An immediate terminator
// (no chunks at all) yields a zero-length message rather than an error;
// it is up to the caller to decide whether an empty message is acceptable
// in context.
func readMessage(r io.Reader) ([]byte, error) {
	var msg []byte
	var hdr [2]byte
	for {
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, err
		}
		n := int(hdr[0])<<8 | int(hdr[1])
		if n == 0 {
			return msg, nil
		}
		chunk := make([]byte, n)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, err
		}
		msg = append(msg, chunk...)
	}
}
