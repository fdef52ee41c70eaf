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

	"github.com/graphbolt/driver/graphbolt/db"
)

// stream tracks one RUN's worth of server-side cursor state: the fields
// named by RUN's SUCCESS, the qid Bolt uses to address PULL/DISCARD at
// this cursor when it isn't the most recently opened one, and whatever
// records have been pulled but not yet handed to the caller
// (spec.md §4.8 "lazy, demand-driven result stream").
type stream struct {
	keys       []string
	qid        int64
	tfirst     int64
	fetchSize  int
	records    []*db.Record
	sum        *db.Summary
	err        error
	endOfBatch bool
	discarding bool
}

func (s *stream) Err() error {
	return s.err
}

func (s *stream) push(r *db.Record) {
	s.records = append(s.records, r)
}

func (s *stream) emptyRecords() {
	s.records = s.records[:0]
}

// bufferedNext returns a buffered record/summary/error if one is ready
// without needing to talk to the server; buffered == false means the
// caller must drive more I/O (pull the next batch or read a response).
func (s *stream) bufferedNext() (buffered bool, rec *db.Record, sum *db.Summary, err error) {
	if len(s.records) > 0 {
		rec = s.records[0]
		s.records = s.records[1:]
		return true, rec, nil, nil
	}
	if s.err != nil {
		return true, nil, nil, s.err
	}
	if s.sum != nil {
		return true, nil, s.sum, nil
	}
	return false, nil, nil, nil
}

// openstreams tracks the zero-or-one "current" stream (the one whose
// PULL/DISCARD responses arrive without an explicit qid) plus every
// other stream still open on the connection (spec.md §5 "at most one
// stream may be actively receiving PULL responses at a time").
type openstreams struct {
	curr   *stream
	others []*stream
	num    int
}

func (o *openstreams) reset() {
	o.curr = nil
	o.others = nil
	o.num = 0
}

func (o *openstreams) attach(s *stream) {
	o.curr = s
	o.num++
}

// detach moves the current stream into the "others" set, optionally
// recording its terminal summary or error first.
func (o *openstreams) detach(sum *db.Summary, err error) {
	if o.curr == nil {
		return
	}
	if sum != nil {
		o.curr.sum = sum
	}
	if err != nil {
		o.curr.err = err
	}
	o.others = append(o.others, o.curr)
	o.curr = nil
}

func (o *openstreams) pause() {
	if o.curr == nil {
		return
	}
	o.others = append(o.others, o.curr)
	o.curr = nil
}

func (o *openstreams) resume(s *stream) {
	o.remove(s)
	o.curr = s
}

func (o *openstreams) remove(s *stream) {
	if o.curr == s {
		o.curr = nil
		o.num--
		return
	}
	for i, other := range o.others {
		if other == s {
			o.others = append(o.others[:i], o.others[i+1:]...)
			o.num--
			return
		}
	}
}

var errUnknownStream = errors.New("bolt: stream does not belong to this connection")

// getUnsafe resolves a StreamHandle without regard to connection/scope
// ownership; callers must not set connection-level error state off of
// its result (mirrors the teacher's "Do NOT set b.err" convention).
func (o *openstreams) getUnsafe(h any) (*stream, error) {
	s, ok := h.(*stream)
	if !ok || s == nil {
		return nil, errUnknownStream
	}
	return s, nil
}

// isSafe confirms s is still tracked by this connection.
func (o *openstreams) isSafe(s *stream) error {
	if o.curr == s {
		return nil
	}
	for _, other := range o.others {
		if other == s {
			return nil
		}
	}
	return errUnknownStream
}
