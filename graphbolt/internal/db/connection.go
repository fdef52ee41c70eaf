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

// Package db defines the internal, protocol-independent view of a server
// connection that sessions, the pool and the router program against
// (spec.md §3 "Connection"). The only implementation today is
// internal/bolt's Bolt connection, but nothing above this package knows
// that.
package db

import (
	"context"
	"time"

	"github.com/graphbolt/driver/graphbolt/db"
	"github.com/graphbolt/driver/graphbolt/log"
)

// AccessMode picks which server role (spec.md glossary) a session wants.
type AccessMode int

const (
	WriteMode AccessMode = iota
	ReadMode
)

type (
	// TxHandle identifies one explicit transaction on a Connection.
	TxHandle uint64
	// StreamHandle identifies one RUN's result stream on a Connection.
	StreamHandle any
)

// DefaultDatabase is the marker for "whatever database the server picks".
const DefaultDatabase = ""

// Command is one auto-commit or in-transaction RUN.
type Command struct {
	Cypher    string
	Params    map[string]any
	FetchSize int
}

// TxConfig carries the extra fields attached to BEGIN/RUN (spec.md §4.3).
type TxConfig struct {
	Mode             AccessMode
	Bookmarks        []string
	Timeout          time.Duration
	Meta             map[string]any
	ImpersonatedUser string
}

// RoutingTable is the cached (routers, readers, writers, expiresAt) tuple
// spec.md §3/§4.5 defines.
type RoutingTable struct {
	DatabaseName string
	TimeToLive   int
	Routers      []string
	Readers      []string
	Writers      []string
}

// Connection is an abstract, single-socket database server connection: one
// negotiated Bolt version, one state, zero-or-one in-flight result.
type Connection interface {
	Connect(ctx context.Context, auth map[string]any, userAgent string, routingContext map[string]string) error

	TxBegin(ctx context.Context, txConfig TxConfig) (TxHandle, error)
	TxCommit(ctx context.Context, tx TxHandle) error
	TxRollback(ctx context.Context, tx TxHandle) error
	Run(ctx context.Context, cmd Command, txConfig TxConfig) (StreamHandle, error)
	RunTx(ctx context.Context, tx TxHandle, cmd Command) (StreamHandle, error)

	Keys(streamHandle StreamHandle) ([]string, error)
	Next(ctx context.Context, streamHandle StreamHandle) (*db.Record, *db.Summary, error)
	Consume(ctx context.Context, streamHandle StreamHandle) (*db.Summary, error)
	Buffer(ctx context.Context, streamHandle StreamHandle) error

	Bookmark() string
	ServerName() string
	ServerVersion() string
	Version() db.ProtocolVersion

	IsAlive() bool
	HasFailed() bool
	Birthdate() time.Time
	IdleDate() time.Time

	Reset(ctx context.Context)
	ForceReset(ctx context.Context)
	Close(ctx context.Context)

	GetRoutingTable(ctx context.Context, routingContext map[string]string, bookmarks []string, database string) (*RoutingTable, error)
	SetBoltLogger(l log.BoltLogger)

	SelectDatabase(database string)
	Database() string
}

// DatabaseSelector is implemented by connections that support selecting a
// specific database (Bolt 4+); DefaultDatabase means "no selection made".
type DatabaseSelector interface {
	SelectDatabase(database string)
	Database() string
}
