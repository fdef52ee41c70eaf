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
	"errors"

	"github.com/graphbolt/driver/graphbolt/db"
	idb "github.com/graphbolt/driver/graphbolt/internal/db"
	"github.com/graphbolt/driver/graphbolt/internal/pool"
	"github.com/graphbolt/driver/graphbolt/log"
)

// AccessMode selects which cluster role a session's queries are routed to
// (spec.md glossary "Reader"/"Writer"); it has no effect on a direct
// (non-routed) driver beyond what is sent to the server in BEGIN/RUN.
type AccessMode int

const (
	AccessModeWrite AccessMode = AccessMode(idb.WriteMode)
	AccessModeRead  AccessMode = AccessMode(idb.ReadMode)
)

// FetchAll turns off batched fetching: the server is asked to stream every
// record in one PULL.
const FetchAll = -1

// FetchDefault lets the connection's own default (spec.md §4.8) apply.
const FetchDefault = 0

// SessionConfig configures a new Session; its zero value is a write-mode
// session against the default database with default fetch size.
type SessionConfig struct {
	AccessMode       AccessMode
	Bookmarks        Bookmarks
	DatabaseName     string
	FetchSize        int
	ImpersonatedUser string
	BoltLogger       log.BoltLogger
}

// Session is a logical, sequential connection to the database: cheap to
// create and close, but not safe for concurrent use by multiple goroutines
// (spec.md §5).
type Session interface {
	// LastBookmarks returns the bookmarks accumulated so far: the initial
	// set given at construction, updated after every committed write
	// (spec.md §4.6 "Bookmarks").
	LastBookmarks() Bookmarks
	// BeginTransaction starts an explicit transaction the caller drives to
	// Commit or Rollback itself.
	BeginTransaction(ctx context.Context, configurers ...TransactionConfigurer) (ExplicitTransaction, error)
	// ExecuteRead runs work in a read-mode managed transaction, retrying
	// the whole function on a retriable failure (spec.md §4.7).
	ExecuteRead(ctx context.Context, work ManagedTransactionWork, configurers ...TransactionConfigurer) (any, error)
	// ExecuteWrite runs work in a write-mode managed transaction, retrying
	// the whole function on a retriable failure (spec.md §4.7).
	ExecuteWrite(ctx context.Context, work ManagedTransactionWork, configurers ...TransactionConfigurer) (any, error)
	// Run executes an auto-commit query and returns its (lazy) Result.
	Run(ctx context.Context, cypher string, params map[string]any, configurers ...TransactionConfigurer) (*Result, error)
	// Close releases this session's held resources. A session must not be
	// used afterwards.
	Close(ctx context.Context) error
	// ServerInfo describes the server this session last talked to: its
	// address, agent string and negotiated Bolt protocol version. It
	// reports the zero value until the session has acquired a connection.
	ServerInfo() db.ServerInfo
}

type session struct {
	driver           *Driver
	defaultMode      idb.AccessMode
	bookmarks        []string
	databaseName     string
	impersonatedUser string
	fetchSize        int
	boltLogger       log.BoltLogger
	logId            string
	log              log.Logger

	explicitTx   *transaction
	autocommitTx *transaction

	lastServerInfo db.ServerInfo
}

func newSession(d *Driver, config SessionConfig) *session {
	logId := log.NewID()
	fetchSize := config.FetchSize
	if fetchSize == FetchDefault {
		fetchSize = d.config.FetchSize
	}
	d.config.Logger.Debugf(log.Session, logId, "created for database %q", config.DatabaseName)
	return &session{
		driver:           d,
		defaultMode:      idb.AccessMode(config.AccessMode),
		bookmarks:        cleanupBookmarks(config.Bookmarks),
		databaseName:     config.DatabaseName,
		impersonatedUser: config.ImpersonatedUser,
		fetchSize:        fetchSize,
		boltLogger:       config.BoltLogger,
		logId:            logId,
		log:              d.config.Logger,
	}
}

func (s *session) LastBookmarks() Bookmarks {
	if s.autocommitTx != nil {
		s.retrieveBookmarks(s.autocommitTx.conn)
	}
	return s.bookmarks
}

func (s *session) retrieveBookmarks(conn idb.Connection) {
	if conn == nil {
		return
	}
	if bm := conn.Bookmark(); bm != "" {
		s.bookmarks = []string{bm}
	}
}

// acquireConnection resolves the server for mode (direct address, or the
// router's current pick) and borrows a connection to it, selecting a
// non-default database if one was configured.
func (s *session) acquireConnection(ctx context.Context, mode idb.AccessMode) (idb.Connection, string, error) {
	address, err := s.driver.resolveServer(ctx, s.databaseName, s.bookmarks, mode)
	if err != nil {
		return nil, "", err
	}
	conn, err := s.driver.pool.Acquire(ctx, address)
	if err != nil {
		switch {
		case errors.Is(err, pool.ErrAcquireTimeout):
			return nil, address, &PoolAcquireTimeoutError{Address: address}
		case errors.Is(err, pool.ErrPoolClosed):
			return nil, address, &PoolClosedError{Address: address}
		}
		return nil, address, wrapError(err)
	}
	if s.boltLogger != nil {
		conn.SetBoltLogger(s.boltLogger)
	}
	if s.databaseName != idb.DefaultDatabase {
		selector, ok := conn.(idb.DatabaseSelector)
		if !ok {
			s.driver.pool.Release(ctx, address, conn)
			return nil, address, &UsageError{Message: "server does not support selecting a database"}
		}
		selector.SelectDatabase(s.databaseName)
	}
	s.lastServerInfo = db.ServerInfo{
		Address:         conn.ServerName(),
		Agent:           conn.ServerVersion(),
		ProtocolVersion: conn.Version(),
	}
	return conn, address, nil
}

// ServerInfo returns the address/agent/protocol version of the server this
// session last acquired a connection to, mirroring the diagnostic surface
// the teacher exposes via getServerInfo on its session type.
func (s *session) ServerInfo() db.ServerInfo {
	return s.lastServerInfo
}

func (s *session) BeginTransaction(ctx context.Context, configurers ...TransactionConfigurer) (ExplicitTransaction, error) {
	if s.explicitTx != nil {
		return nil, &UsageError{Message: "session already has an open transaction"}
	}
	s.closeAutocommit(ctx)

	config := defaultTransactionConfig()
	for _, c := range configurers {
		c(&config)
	}
	if err := validateTransactionConfig(config); err != nil {
		return nil, err
	}

	conn, address, err := s.acquireConnection(ctx, s.defaultMode)
	if err != nil {
		return nil, err
	}

	txHandle, err := conn.TxBegin(ctx, idb.TxConfig{
		Mode:             s.defaultMode,
		Bookmarks:        s.bookmarks,
		Timeout:          config.Timeout,
		Meta:             config.Metadata,
		ImpersonatedUser: s.impersonatedUser,
	})
	if err != nil {
		wrapped := wrapError(err)
		s.driver.forgetServer(ctx, address, wrapped)
		s.driver.pool.Release(ctx, address, conn)
		return nil, wrapped
	}

	tx := &transaction{conn: conn, txHandle: txHandle, fetchSize: s.fetchSize}
	tx.onClosed = func() {
		s.retrieveBookmarks(conn)
		s.driver.pool.Release(ctx, address, conn)
		s.explicitTx = nil
	}
	s.explicitTx = tx
	return tx, nil
}

func (s *session) closeAutocommit(ctx context.Context) {
	if s.autocommitTx == nil {
		return
	}
	tx := s.autocommitTx
	s.retrieveBookmarks(tx.conn)
	tx.onClosed()
	s.autocommitTx = nil
}

func (s *session) ExecuteRead(ctx context.Context, work ManagedTransactionWork, configurers ...TransactionConfigurer) (any, error) {
	return s.runRetriable(ctx, idb.ReadMode, work, configurers...)
}

func (s *session) ExecuteWrite(ctx context.Context, work ManagedTransactionWork, configurers ...TransactionConfigurer) (any, error) {
	return s.runRetriable(ctx, idb.WriteMode, work, configurers...)
}

func (s *session) runRetriable(ctx context.Context, mode idb.AccessMode, work ManagedTransactionWork, configurers ...TransactionConfigurer) (any, error) {
	if s.explicitTx != nil {
		return nil, &UsageError{Message: "session already has an open explicit transaction"}
	}
	s.closeAutocommit(ctx)

	config := defaultTransactionConfig()
	for _, c := range configurers {
		c(&config)
	}
	if err := validateTransactionConfig(config); err != nil {
		return nil, err
	}

	state := newRetryState(s.driver.config.MaxTransactionRetryTime)
	var result any
	for state.Continue(ctx) {
		var address string
		var err error
		result, address, err = s.executeTransactionFunction(ctx, mode, config, work)
		if err == nil {
			return result, nil
		}
		wrapped := wrapError(err)
		if address != "" {
			s.driver.forgetServer(ctx, address, wrapped)
		}
		state.OnFailure(wrapped)
		s.log.Debugf(log.Session, s.logId, "attempt %d failed: %s", state.Attempts(), wrapped)
	}
	return nil, retryExhausted(state)
}

func (s *session) executeTransactionFunction(ctx context.Context, mode idb.AccessMode, config TransactionConfig, work ManagedTransactionWork) (any, string, error) {
	conn, address, err := s.acquireConnection(ctx, mode)
	if err != nil {
		return nil, address, err
	}
	defer s.driver.pool.Release(ctx, address, conn)

	txHandle, err := conn.TxBegin(ctx, idb.TxConfig{
		Mode:             mode,
		Bookmarks:        s.bookmarks,
		Timeout:          config.Timeout,
		Meta:             config.Metadata,
		ImpersonatedUser: s.impersonatedUser,
	})
	if err != nil {
		return nil, address, err
	}

	tx := &transaction{conn: conn, txHandle: txHandle, fetchSize: s.fetchSize}
	result, workErr := work(tx)
	if workErr != nil {
		conn.Reset(ctx)
		return nil, address, workErr
	}

	if err := conn.TxCommit(ctx, txHandle); err != nil {
		return nil, address, err
	}
	s.retrieveBookmarks(conn)
	return result, address, nil
}

func (s *session) Run(ctx context.Context, cypher string, params map[string]any, configurers ...TransactionConfigurer) (*Result, error) {
	if s.explicitTx != nil {
		return nil, &UsageError{Message: "cannot run an auto-commit query while an explicit transaction is open"}
	}
	s.closeAutocommit(ctx)

	config := defaultTransactionConfig()
	for _, c := range configurers {
		c(&config)
	}
	if err := validateTransactionConfig(config); err != nil {
		return nil, err
	}

	conn, address, err := s.acquireConnection(ctx, s.defaultMode)
	if err != nil {
		return nil, err
	}

	streamHandle, err := conn.Run(ctx, idb.Command{
		Cypher:    cypher,
		Params:    params,
		FetchSize: s.fetchSize,
	}, idb.TxConfig{
		Mode:             s.defaultMode,
		Bookmarks:        s.bookmarks,
		Timeout:          config.Timeout,
		Meta:             config.Metadata,
		ImpersonatedUser: s.impersonatedUser,
	})
	if err != nil {
		wrapped := wrapError(err)
		s.driver.forgetServer(ctx, address, wrapped)
		s.driver.pool.Release(ctx, address, conn)
		return nil, wrapped
	}

	result := newResult(conn, streamHandle, cypher, params)
	s.autocommitTx = &transaction{conn: conn, txHandle: 0, fetchSize: s.fetchSize, onClosed: func() {
		s.driver.pool.Release(ctx, address, conn)
	}}
	return result, nil
}

func (s *session) Close(ctx context.Context) error {
	var txErr error
	if s.explicitTx != nil {
		txErr = s.explicitTx.Close(ctx)
	}
	s.closeAutocommit(ctx)
	s.log.Debugf(log.Session, s.logId, "closed")
	return txErr
}

// isRetriable classifies an already-wrapped error for retry.Classifier,
// per spec.md §4.7's "Retriable kinds: ServiceUnavailable, SessionExpired,
// TransientError except lock-client-stopped and terminated-by-user".
func isRetriable(err error) bool {
	var wireErr *db.WireError
	if errors.As(err, &wireErr) {
		return wireErr.IsRetriable()
	}
	switch err.(type) {
	case *ConnectivityError, *SessionExpiredError:
		return true
	}
	return false
}
