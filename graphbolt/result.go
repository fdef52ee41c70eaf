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

package graphbolt

import (
	"context"

	"github.com/graphbolt/driver/graphbolt/db"
	idb "github.com/graphbolt/driver/graphbolt/internal/db"
)

// Result is the lazy, forward-only record stream of spec.md §4.8: records
// are pulled from the server in fetchSize batches as Next is called, not
// all at once, so a large result never has to fit in memory.
type Result struct {
	conn         idb.Connection
	streamHandle idb.StreamHandle
	cypher       string
	params       map[string]any

	keys    []string
	record  *db.Record
	summary *db.Summary
	err     error
}

func newResult(conn idb.Connection, streamHandle idb.StreamHandle, cypher string, params map[string]any) *Result {
	return &Result{conn: conn, streamHandle: streamHandle, cypher: cypher, params: params}
}

// Keys returns the result's field names, available as soon as RUN has been
// acknowledged by the server (before any record has been pulled).
func (r *Result) Keys() ([]string, error) {
	if r.keys != nil {
		return r.keys, nil
	}
	keys, err := r.conn.Keys(r.streamHandle)
	if err != nil {
		return nil, wrapError(err)
	}
	r.keys = keys
	return keys, nil
}

// Next advances to the next record, pulling a fresh batch from the server
// if the current one is exhausted. It returns false at end of stream or on
// error; call Err to distinguish the two.
func (r *Result) Next(ctx context.Context) bool {
	if r.err != nil || r.summary != nil {
		return false
	}
	rec, sum, err := r.conn.Next(ctx, r.streamHandle)
	if err != nil {
		r.err = wrapError(err)
		return false
	}
	if rec != nil {
		r.record = rec
		return true
	}
	r.summary = sum
	return false
}

// Record returns the record Next last advanced to, or nil before the first
// call to Next or after the stream has ended.
func (r *Result) Record() *db.Record {
	return r.record
}

// Err returns the first error encountered while streaming, if any.
func (r *Result) Err() error {
	return r.err
}

// Consume discards any unread records and returns the terminal Summary,
// per spec.md §4.8 "Consume: discard remaining records, return Summary".
func (r *Result) Consume(ctx context.Context) (*db.Summary, error) {
	if r.summary != nil {
		return r.summary, nil
	}
	sum, err := r.conn.Consume(ctx, r.streamHandle)
	if err != nil {
		r.err = wrapError(err)
		return nil, r.err
	}
	r.summary = sum
	return sum, nil
}

// Collect eagerly buffers every remaining record and returns them together
// with the terminal Summary, per spec.md §4.8 "Collect: buffer all
// remaining records, return them plus Summary".
func (r *Result) Collect(ctx context.Context) ([]*db.Record, *db.Summary, error) {
	var records []*db.Record
	if r.record != nil {
		records = append(records, r.record)
		r.record = nil
	}
	for r.Next(ctx) {
		records = append(records, r.record)
	}
	if r.err != nil {
		return nil, nil, r.err
	}
	// Next always sets either err or summary before returning false, so
	// r.summary is populated here.
	return records, r.summary, nil
}
