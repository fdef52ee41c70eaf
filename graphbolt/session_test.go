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
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbolt/driver/graphbolt/db"
	idb "github.com/graphbolt/driver/graphbolt/internal/db"
	"github.com/graphbolt/driver/graphbolt/internal/pool"
	"github.com/graphbolt/driver/graphbolt/internal/urlutil"
)

// testDriver builds a direct (non-routed) Driver whose pool hands out
// connections from creator, for exercising Session/Transaction/Result
// without a real Bolt server.
func testDriver(creator func(ctx context.Context, address string) (idb.Connection, error)) *Driver {
	cfg := defaultConfig()
	p := pool.New(pool.Config{Creator: creator})
	return &Driver{
		target: urlutil.Target{Address: "a:7687"},
		config: cfg,
		pool:   p,
	}
}

func TestSessionRunStreamsRecordsThenSummary(t *testing.T) {
	conn := newFakeConn()
	conn.keys = []string{"n"}
	conn.records = []*db.Record{{Keys: []string{"n"}, Values: []any{int64(1)}}, {Keys: []string{"n"}, Values: []any{int64(2)}}}

	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	result, err := s.Run(context.Background(), "MATCH (n) RETURN n", nil)
	require.NoError(t, err)

	var got []any
	for result.Next(context.Background()) {
		v, _ := result.Record().Get(0)
		got = append(got, v)
	}
	require.NoError(t, result.Err())
	assert.Equal(t, []any{int64(1), int64(2)}, got)

	summary, err := result.Consume(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, summary)
}

func TestSessionRunRejectedWhileExplicitTxOpen(t *testing.T) {
	conn := newFakeConn()
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	_, err := s.BeginTransaction(context.Background())
	require.NoError(t, err)

	_, err = s.Run(context.Background(), "RETURN 1", nil)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestBeginTransactionRejectsSecondOpen(t *testing.T) {
	conn := newFakeConn()
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	_, err := s.BeginTransaction(context.Background())
	require.NoError(t, err)

	_, err = s.BeginTransaction(context.Background())
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestExplicitTransactionCommitUpdatesBookmarks(t *testing.T) {
	conn := newFakeConn()
	conn.bookmark = "bm-after-commit"
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	tx, err := s.BeginTransaction(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	assert.Equal(t, Bookmarks{"bm-after-commit"}, s.LastBookmarks())
}

func TestExplicitTransactionDoubleCommitErrors(t *testing.T) {
	conn := newFakeConn()
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	tx, err := s.BeginTransaction(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Commit(context.Background()))

	err = tx.Commit(context.Background())
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestExplicitTransactionCloseRollsBackIfOpen(t *testing.T) {
	conn := newFakeConn()
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	tx, err := s.BeginTransaction(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx.Close(context.Background()))

	// Closing again is a no-op, not an error.
	require.NoError(t, tx.Close(context.Background()))
}

func TestExecuteWriteRetriesOnRetriableFailure(t *testing.T) {
	var attempt int32
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) {
		conn := newFakeConn()
		if atomic.AddInt32(&attempt, 1) == 1 {
			conn.commitErr = &db.WireError{Code: "Neo.TransientError.Transaction.DeadlockDetected", Msg: "deadlock"}
		}
		return conn, nil
	})
	s := newSession(d, SessionConfig{})

	result, err := s.ExecuteWrite(context.Background(), func(tx ManagedTransaction) (any, error) {
		_, err := tx.Run(context.Background(), "CREATE (n)", nil)
		return "ok", err
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempt))
}

func TestExecuteWriteStopsOnNonRetriableFailure(t *testing.T) {
	var attempt int32
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) {
		atomic.AddInt32(&attempt, 1)
		conn := newFakeConn()
		conn.commitErr = &db.WireError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "bad cypher"}
		return conn, nil
	})
	s := newSession(d, SessionConfig{})

	_, err := s.ExecuteWrite(context.Background(), func(tx ManagedTransaction) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempt), "non-retriable failure must not retry")
}

func TestExecuteWriteExhaustsRetryBudget(t *testing.T) {
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) {
		conn := newFakeConn()
		conn.commitErr = &db.WireError{Code: "Neo.TransientError.Transaction.DeadlockDetected", Msg: "deadlock"}
		return conn, nil
	})
	d.config.MaxTransactionRetryTime = time.Millisecond
	s := newSession(d, SessionConfig{})

	_, err := s.ExecuteWrite(context.Background(), func(tx ManagedTransaction) (any, error) {
		return nil, nil
	})
	var limitErr *TransactionExecutionLimitError
	require.ErrorAs(t, err, &limitErr)
}

func TestExecuteReadRejectedWithOpenExplicitTx(t *testing.T) {
	conn := newFakeConn()
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	_, err := s.BeginTransaction(context.Background())
	require.NoError(t, err)

	_, err = s.ExecuteRead(context.Background(), func(tx ManagedTransaction) (any, error) { return nil, nil })
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestSessionCloseRollsBackPendingExplicitTx(t *testing.T) {
	conn := newFakeConn()
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	_, err := s.BeginTransaction(context.Background())
	require.NoError(t, err)

	require.NoError(t, s.Close(context.Background()))
	assert.Nil(t, s.explicitTx, "Close must clear the session's open transaction")
}

func TestSessionServerInfoEmptyBeforeFirstConnection(t *testing.T) {
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return newFakeConn(), nil })
	s := newSession(d, SessionConfig{})
	assert.Equal(t, db.ServerInfo{}, s.ServerInfo())
}

func TestSessionServerInfoReflectsLastAcquiredConnection(t *testing.T) {
	conn := newFakeConn()
	d := testDriver(func(ctx context.Context, address string) (idb.Connection, error) { return conn, nil })
	s := newSession(d, SessionConfig{})

	result, err := s.Run(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)
	_, _, err = result.Collect(context.Background())
	require.NoError(t, err)

	info := s.ServerInfo()
	assert.Equal(t, conn.ServerName(), info.Address)
	assert.Equal(t, conn.ServerVersion(), info.Agent)
	assert.Equal(t, conn.Version(), info.ProtocolVersion)
}
