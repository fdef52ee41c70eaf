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
	"math"
	"time"

	idb "github.com/graphbolt/driver/graphbolt/internal/db"
)

// ManagedTransaction is the handle a ManagedTransactionWork runs against: it
// may Run queries but, unlike ExplicitTransaction, cannot Commit/Rollback
// itself — the session's retry runner owns that decision (spec.md §4.7).
type ManagedTransaction interface {
	Run(ctx context.Context, cypher string, params map[string]any) (*Result, error)
}

// ManagedTransactionWork is the unit of work ExecuteRead/ExecuteWrite retry
// as a whole on failure.
type ManagedTransactionWork func(tx ManagedTransaction) (any, error)

// ExplicitTransaction is a transaction the caller drives directly: BEGIN on
// creation, then any number of Run calls, then exactly one of Commit or
// Rollback (Close rolls back if neither was called, matching the teacher's
// "unclosed explicit transaction is rolled back" convention).
type ExplicitTransaction interface {
	ManagedTransaction
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

// transaction is the shared implementation behind both ExplicitTransaction
// and ManagedTransaction; the managed case simply never exposes Commit/
// Rollback/Close to caller code.
type transaction struct {
	conn      idb.Connection
	txHandle  idb.TxHandle
	fetchSize int
	done      bool
	onClosed  func()
}

func (t *transaction) Run(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	streamHandle, err := t.conn.RunTx(ctx, t.txHandle, idb.Command{
		Cypher:    cypher,
		Params:    params,
		FetchSize: t.fetchSize,
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return newResult(t.conn, streamHandle, cypher, params), nil
}

func (t *transaction) Commit(ctx context.Context) error {
	if t.done {
		return &UsageError{Message: "transaction already closed"}
	}
	t.done = true
	err := t.conn.TxCommit(ctx, t.txHandle)
	if t.onClosed != nil {
		t.onClosed()
	}
	return wrapError(err)
}

func (t *transaction) Rollback(ctx context.Context) error {
	if t.done {
		return &UsageError{Message: "transaction already closed"}
	}
	t.done = true
	err := t.conn.TxRollback(ctx, t.txHandle)
	if t.onClosed != nil {
		t.onClosed()
	}
	return wrapError(err)
}

func (t *transaction) Close(ctx context.Context) error {
	if t.done {
		return nil
	}
	return t.Rollback(ctx)
}

// TransactionConfig carries the per-transaction knobs of spec.md §4.6
// (BEGIN's tx_timeout/tx_metadata fields).
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// TransactionConfigurer mutates a TransactionConfig; BeginTransaction,
// ExecuteRead/ExecuteWrite and Run all accept any number of these.
type TransactionConfigurer func(*TransactionConfig)

// WithTxTimeout overrides the server-side transaction timeout.
func WithTxTimeout(d time.Duration) TransactionConfigurer {
	return func(c *TransactionConfig) { c.Timeout = d }
}

// WithTxMetadata attaches metadata visible in the server's query log and
// to SHOW TRANSACTIONS.
func WithTxMetadata(meta map[string]any) TransactionConfigurer {
	return func(c *TransactionConfig) { c.Metadata = meta }
}

// noTxTimeout means "let the server decide", distinct from a caller-supplied
// zero duration which would mean "no timeout at all".
const noTxTimeout = time.Duration(math.MinInt64)

func defaultTransactionConfig() TransactionConfig {
	return TransactionConfig{Timeout: noTxTimeout}
}

func validateTransactionConfig(config TransactionConfig) error {
	if config.Timeout != noTxTimeout && config.Timeout < 0 {
		return &UsageError{Message: "negative transaction timeouts are not allowed"}
	}
	return nil
}
