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
	"time"

	"github.com/graphbolt/driver/graphbolt/db"
	idb "github.com/graphbolt/driver/graphbolt/internal/db"
	"github.com/graphbolt/driver/graphbolt/log"
)

// fakeConn is a minimal idb.Connection double driving session/transaction/
// result tests without speaking real Bolt: one canned set of keys/records/
// summary, returned to every Run/RunTx regardless of the cypher text.
type fakeConn struct {
	keys    []string
	records []*db.Record
	summary *db.Summary
	bookmark string

	runErr    error
	beginErr  error
	commitErr error

	nextIdx    int
	alive      bool
	failed     bool
	birthdate  time.Time
	resetCalls int
	closed     bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{alive: true, birthdate: time.Now(), summary: &db.Summary{}}
}

func (f *fakeConn) Connect(context.Context, map[string]any, string, map[string]string) error { return nil }

func (f *fakeConn) TxBegin(context.Context, idb.TxConfig) (idb.TxHandle, error) {
	if f.beginErr != nil {
		return 0, f.beginErr
	}
	return idb.TxHandle(1), nil
}
func (f *fakeConn) TxCommit(context.Context, idb.TxHandle) error { return f.commitErr }
func (f *fakeConn) TxRollback(context.Context, idb.TxHandle) error { return nil }

func (f *fakeConn) Run(context.Context, idb.Command, idb.TxConfig) (idb.StreamHandle, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return "stream", nil
}
func (f *fakeConn) RunTx(context.Context, idb.TxHandle, idb.Command) (idb.StreamHandle, error) {
	if f.runErr != nil {
		return nil, f.runErr
	}
	return "stream", nil
}

func (f *fakeConn) Keys(idb.StreamHandle) ([]string, error) { return f.keys, nil }

func (f *fakeConn) Next(context.Context, idb.StreamHandle) (*db.Record, *db.Summary, error) {
	if f.nextIdx < len(f.records) {
		rec := f.records[f.nextIdx]
		f.nextIdx++
		return rec, nil, nil
	}
	return nil, f.summary, nil
}

func (f *fakeConn) Consume(context.Context, idb.StreamHandle) (*db.Summary, error) {
	f.nextIdx = len(f.records)
	return f.summary, nil
}

func (f *fakeConn) Buffer(context.Context, idb.StreamHandle) error { return nil }

func (f *fakeConn) Bookmark() string        { return f.bookmark }
func (f *fakeConn) ServerName() string      { return "fake" }
func (f *fakeConn) ServerVersion() string   { return "fake/1.0" }
func (f *fakeConn) Version() db.ProtocolVersion { return db.ProtocolVersion{Major: 5} }

func (f *fakeConn) IsAlive() bool  { return f.alive && !f.closed }
func (f *fakeConn) HasFailed() bool { return f.failed }
func (f *fakeConn) Birthdate() time.Time { return f.birthdate }
func (f *fakeConn) IdleDate() time.Time  { return time.Now() }

func (f *fakeConn) Reset(context.Context)      { f.resetCalls++ }
func (f *fakeConn) ForceReset(context.Context) {}
func (f *fakeConn) Close(context.Context)      { f.closed = true }

func (f *fakeConn) GetRoutingTable(context.Context, map[string]string, []string, string) (*idb.RoutingTable, error) {
	return nil, nil
}
func (f *fakeConn) SetBoltLogger(log.BoltLogger) {}
func (f *fakeConn) SelectDatabase(string)        {}
func (f *fakeConn) Database() string             { return "" }
