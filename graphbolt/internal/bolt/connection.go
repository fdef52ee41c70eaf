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

// Package bolt implements the wire-level Bolt connection (spec.md §4.2,
// §4.3): handshake, chunked framing, PackStream message encode/decode and
// the per-connection state machine, behind the internal/db.Connection
// interface the pool, router and sessions program against.
package bolt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/graphbolt/driver/graphbolt/db"
	idb "github.com/graphbolt/driver/graphbolt/internal/db"
	"github.com/graphbolt/driver/graphbolt/internal/packstream"
	"github.com/graphbolt/driver/graphbolt/log"
)

// connState is the per-connection state machine of spec.md §4.3.
type connState int

const (
	stateNegotiating connState = iota
	stateReady
	stateStreaming
	stateTx
	stateStreamingTx
	stateFailed
	stateDead
)

// defaultFetchSize is used whenever a caller asks for the "driver default"
// (fetchSize == 0), per spec.md §4.8.
const defaultFetchSize = 1000

// internalTx carries everything BEGIN/RUN needs to build its metadata map.
type internalTx struct {
	mode             idb.AccessMode
	bookmarks        []string
	timeout          time.Duration
	txMeta           map[string]any
	databaseName     string
	impersonatedUser string
}

func (t *internalTx) toMeta() map[string]any {
	meta := map[string]any{}
	if t == nil {
		return meta
	}
	if t.mode == idb.ReadMode {
		meta["mode"] = "r"
	}
	if len(t.bookmarks) > 0 {
		bms := make([]any, len(t.bookmarks))
		for i, b := range t.bookmarks {
			bms[i] = b
		}
		meta["bookmarks"] = bms
	}
	if ms := t.timeout.Milliseconds(); ms > 0 {
		meta["tx_timeout"] = ms
	}
	if len(t.txMeta) > 0 {
		meta["tx_metadata"] = t.txMeta
	}
	if t.databaseName != idb.DefaultDatabase {
		meta["db"] = t.databaseName
	}
	if t.impersonatedUser != "" {
		meta["imp_user"] = t.impersonatedUser
	}
	return meta
}

// connection is the concrete Bolt connection, implementing
// internal/db.Connection against a negotiated protocol version in the
// v3-v5 range spec.md §4.3 describes.
type connection struct {
	state        connState
	version      db.ProtocolVersion
	conn         net.Conn
	serverName   string
	queue        messageQueue
	connId       string
	logId        string
	serverVer    string
	bookmark     string
	birthDate    time.Time
	idleDate     time.Time
	log          log.Logger
	databaseName string
	err          error
	txId         idb.TxHandle
	lastQid      int64
	streams      openstreams
}

// newConnection wires up outgoing/incoming/messageQueue around conn and
// returns a connection in its pre-handshake state; callers must still call
// Connect before using it for anything else.
func newConnection(serverName string, conn net.Conn, version db.ProtocolVersion, logger log.Logger, boltLogger log.BoltLogger) *connection {
	now := time.Now()
	c := &connection{
		state:      stateNegotiating,
		version:    version,
		conn:       conn,
		serverName: serverName,
		birthDate:  now,
		idleDate:   now,
		log:        logger,
		lastQid:    -1,
	}
	in := &incoming{r: bufio.NewReader(conn), boltLogger: boltLogger}
	out := &outgoing{
		chunker:    newChunker(),
		packer:     packstream.Packer{},
		onErr:      func(err error) { c.setError(err, true) },
		boltLogger: boltLogger,
	}
	q := newMessageQueue(conn, in, out, c.onNextMessage, c.onNextMessageError)
	c.queue = q
	return c
}

func (c *connection) setError(err error, fatal bool) {
	if err == nil {
		return
	}
	if c.err == nil {
		c.err = err
		c.state = stateFailed
	}
	if fatal {
		c.state = stateDead
	}
	if c.streams.curr != nil {
		c.streams.detach(nil, err)
		c.checkStreams()
	}
	if we, ok := err.(*db.WireError); ok && we.Classification() == "ClientError" {
		c.log.Debugf(log.Bolt5, c.logId, "%s", err)
	} else {
		c.log.Error(log.Bolt5, c.logId, err)
	}
}

func isFatalError(err *db.WireError) bool {
	return err.Classification() == "DatabaseError" || err.IsAuthentication()
}

func (c *connection) checkStreams() {
	if c.streams.num <= 0 {
		switch c.state {
		case stateStreamingTx:
			c.state = stateTx
		case stateStreaming:
			c.state = stateReady
		}
	}
}

func (c *connection) assertState(allowed ...connState) error {
	if c.err != nil {
		return c.err
	}
	for _, a := range allowed {
		if c.state == a {
			return nil
		}
	}
	return fmt.Errorf("bolt: invalid state %d, expected one of %v", c.state, allowed)
}

func (c *connection) assertTxHandle(h idb.TxHandle) error {
	if h != c.txId {
		return errors.New("bolt: transaction out of scope")
	}
	return nil
}

func (c *connection) ServerName() string        { return c.serverName }
func (c *connection) ServerVersion() string      { return c.serverVer }
func (c *connection) Bookmark() string           { return c.bookmark }
func (c *connection) IsAlive() bool              { return c.state != stateDead }
func (c *connection) HasFailed() bool            { return c.state == stateFailed }
func (c *connection) Birthdate() time.Time       { return c.birthDate }
func (c *connection) IdleDate() time.Time        { return c.idleDate }
func (c *connection) Version() db.ProtocolVersion { return c.version }
func (c *connection) Database() string           { return c.databaseName }
func (c *connection) SelectDatabase(name string) { c.databaseName = name }
func (c *connection) SetBoltLogger(l log.BoltLogger) { c.queue.setBoltLogger(l) }

func (c *connection) onNextMessage()            { c.idleDate = time.Now() }
func (c *connection) onNextMessageError(err error) { c.setError(err, true) }

// Connect performs HELLO (and LOGON, on versions that split authentication
// out of HELLO) as described in spec.md §4.3's AUTHENTICATING state.
func (c *connection) Connect(ctx context.Context, auth map[string]any, userAgent string, routingContext map[string]string) error {
	if err := c.assertState(stateNegotiating); err != nil {
		return err
	}

	hello := map[string]any{"user_agent": userAgent}
	if len(routingContext) > 0 {
		rc := make(map[string]any, len(routingContext))
		for k, v := range routingContext {
			rc[k] = v
		}
		hello["routing"] = rc
	}

	splitAuth := c.version.Major > 5 || (c.version.Major == 5 && c.version.Minor >= 1)
	if !splitAuth {
		for k, v := range auth {
			if _, exists := hello[k]; !exists {
				hello[k] = v
			}
		}
	}

	c.queue.appendHello(hello, c.helloHandler())
	if splitAuth {
		c.queue.appendLogon(auth, c.expectedSuccessHandler(onSuccessNoOp))
	}
	c.queue.send(ctx)
	if c.err != nil {
		return c.err
	}
	if err := c.queue.receiveAll(ctx); err != nil {
		return err
	}
	if c.err != nil {
		return c.err
	}

	c.state = stateReady
	c.streams.reset()
	c.log.Infof(log.Bolt5, c.logId, "Connected")
	return nil
}

func (c *connection) helloHandler() responseHandler {
	return c.expectedSuccessHandler(func(s *success) {
		c.connId = s.connectionId
		c.serverVer = s.server
		c.logId = fmt.Sprintf("%s@%s", c.connId, c.serverName)
		c.queue.setLogId(c.logId)
	})
}

func (c *connection) expectedSuccessHandler(onSuccess func(*success)) responseHandler {
	return responseHandler{
		onSuccess: onSuccess,
		onFailure: func(e *db.WireError) { c.setError(e, isFatalError(e)) },
		onIgnored: onIgnoredNoOp,
		onUnknown: func(v any) { c.setError(fmt.Errorf("bolt: unexpected response %v", v), true) },
	}
}

func (c *connection) TxBegin(ctx context.Context, txConfig idb.TxConfig) (idb.TxHandle, error) {
	if c.state == stateStreaming {
		c.bufferStream(ctx)
		if c.err != nil {
			return 0, c.err
		}
	}
	c.streams.reset()

	if err := c.assertState(stateReady); err != nil {
		return 0, err
	}

	tx := internalTx{
		mode:             txConfig.Mode,
		bookmarks:        txConfig.Bookmarks,
		timeout:          txConfig.Timeout,
		txMeta:           txConfig.Meta,
		databaseName:     c.databaseName,
		impersonatedUser: txConfig.ImpersonatedUser,
	}
	c.queue.appendBegin(tx.toMeta(), c.expectedSuccessHandler(onSuccessNoOp))
	c.queue.send(ctx)
	if c.err != nil {
		return 0, c.err
	}
	if err := c.queue.receiveAll(ctx); err != nil {
		return 0, err
	}
	if c.err != nil {
		return 0, c.err
	}

	c.state = stateTx
	c.txId++
	return c.txId, nil
}

func (c *connection) TxCommit(ctx context.Context, txh idb.TxHandle) error {
	if err := c.assertTxHandle(txh); err != nil {
		return err
	}
	c.discardAllStreams(ctx)
	if c.err != nil {
		return c.err
	}
	if err := c.assertState(stateTx); err != nil {
		return err
	}
	c.queue.appendCommit(c.expectedSuccessHandler(func(s *success) {
		if s.bookmark != "" {
			c.bookmark = s.bookmark
		}
	}))
	c.queue.send(ctx)
	if c.err != nil {
		return c.err
	}
	if err := c.queue.receiveAll(ctx); err != nil {
		return err
	}
	if c.err != nil {
		return c.err
	}
	c.state = stateReady
	return nil
}

func (c *connection) TxRollback(ctx context.Context, txh idb.TxHandle) error {
	if err := c.assertTxHandle(txh); err != nil {
		return err
	}
	c.discardAllStreams(ctx)
	if c.err != nil {
		return c.err
	}
	if err := c.assertState(stateTx); err != nil {
		return err
	}
	c.queue.appendRollback(c.expectedSuccessHandler(onSuccessNoOp))
	c.queue.send(ctx)
	if c.err != nil {
		return c.err
	}
	if err := c.queue.receiveAll(ctx); err != nil {
		return err
	}
	if c.err != nil {
		return c.err
	}
	c.state = stateReady
	return nil
}

func (c *connection) discardAllStreams(ctx context.Context) {
	if c.state != stateStreaming && c.state != stateStreamingTx {
		return
	}
	c.discardStream(ctx)
	c.streams.reset()
	c.checkStreams()
}

func (c *connection) discardStream(ctx context.Context) {
	s := c.streams.curr
	if s == nil {
		return
	}
	s.discarding = true
	for {
		if err := c.queue.receiveAll(ctx); err != nil || c.err != nil {
			return
		}
		if s.sum != nil || s.err != nil {
			return
		}
		s.fetchSize = -1
		c.appendDiscard(s)
		c.queue.send(ctx)
		if c.err != nil {
			return
		}
	}
}

func (c *connection) appendDiscard(s *stream) {
	h := responseHandler{
		onIgnored: func(*ignored) {
			s.err = errors.New("bolt: stream interrupted while discarding")
			c.streams.remove(s)
			c.checkStreams()
		},
		onSuccess: func(succ *success) {
			if succ.hasMore {
				s.endOfBatch = true
				return
			}
			sum := c.extractSummary(succ, s)
			if sum.Bookmark != "" {
				c.bookmark = sum.Bookmark
			}
			s.sum = sum
			c.streams.remove(s)
			c.checkStreams()
		},
		onFailure: func(e *db.WireError) {
			s.err = e
			c.setError(e, isFatalError(e))
		},
		onUnknown: func(v any) { c.setError(fmt.Errorf("bolt: unexpected response %v", v), true) },
	}
	if c.state == stateStreamingTx && s.qid != c.lastQid {
		c.queue.appendDiscardNQid(s.fetchSize, s.qid, h)
	} else {
		c.queue.appendDiscardN(s.fetchSize, h)
	}
}

func (c *connection) bufferStream(ctx context.Context) {
	s := c.streams.curr
	if s == nil {
		return
	}
	for {
		if err := c.queue.receiveAll(ctx); err != nil || c.err != nil {
			return
		}
		if s.sum != nil || s.err != nil {
			return
		}
		if s.endOfBatch {
			s.fetchSize = -1
			c.appendPull(s)
			c.queue.send(ctx)
			if c.err != nil {
				return
			}
		}
	}
}

func (c *connection) pauseStream(ctx context.Context) {
	s := c.streams.curr
	if s == nil {
		return
	}
	if err := c.queue.receiveAll(ctx); err != nil || c.err != nil {
		return
	}
	if s.sum != nil || s.err != nil {
		return
	}
	if s.endOfBatch {
		c.streams.pause()
	}
}

func (c *connection) resumeStream(ctx context.Context, s *stream) {
	c.streams.resume(s)
	c.appendPull(s)
	c.queue.send(ctx)
}

func normalizeFetchSize(n int) int {
	switch {
	case n < 0:
		return -1
	case n == 0:
		return defaultFetchSize
	default:
		return n
	}
}

func (c *connection) run(ctx context.Context, cypher string, params map[string]any, rawFetchSize int, tx *internalTx) (*stream, error) {
	if c.state == stateStreaming {
		c.bufferStream(ctx)
		if c.err != nil {
			return nil, c.err
		}
	} else if c.state == stateStreamingTx {
		c.pauseStream(ctx)
		if c.err != nil {
			return nil, c.err
		}
	}

	if err := c.assertState(stateTx, stateReady, stateStreamingTx); err != nil {
		return nil, err
	}

	s := &stream{fetchSize: normalizeFetchSize(rawFetchSize)}
	c.queue.appendRun(cypher, params, tx.toMeta(), c.runHandler(s))
	c.queue.appendPullN(s.fetchSize, c.pullHandler(s))
	c.queue.send(ctx)
	if c.err != nil {
		return nil, c.err
	}
	if err := c.queue.receive(ctx); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}

	if c.state == stateReady {
		c.state = stateStreaming
	} else if c.state == stateTx {
		c.state = stateStreamingTx
	}
	return s, nil
}

func (c *connection) runHandler(s *stream) responseHandler {
	return c.expectedSuccessHandler(func(succ *success) {
		s.keys = succ.fields
		s.qid = succ.qid
		s.tfirst = succ.tfirst
		if succ.qid > -1 {
			c.lastQid = succ.qid
		}
		c.streams.attach(s)
	})
}

func (c *connection) Run(ctx context.Context, cmd idb.Command, txConfig idb.TxConfig) (idb.StreamHandle, error) {
	if err := c.assertState(stateStreaming, stateReady); err != nil {
		return nil, err
	}
	tx := internalTx{
		mode:             txConfig.Mode,
		bookmarks:        txConfig.Bookmarks,
		timeout:          txConfig.Timeout,
		txMeta:           txConfig.Meta,
		databaseName:     c.databaseName,
		impersonatedUser: txConfig.ImpersonatedUser,
	}
	return c.run(ctx, cmd.Cypher, cmd.Params, cmd.FetchSize, &tx)
}

func (c *connection) RunTx(ctx context.Context, txh idb.TxHandle, cmd idb.Command) (idb.StreamHandle, error) {
	if err := c.assertTxHandle(txh); err != nil {
		return nil, err
	}
	return c.run(ctx, cmd.Cypher, cmd.Params, cmd.FetchSize, nil)
}

func (c *connection) appendPull(s *stream) {
	h := c.pullHandler(s)
	if c.state == stateStreaming {
		c.queue.appendPullN(s.fetchSize, h)
		return
	}
	if s.qid == c.lastQid {
		c.queue.appendPullN(s.fetchSize, h)
	} else {
		c.queue.appendPullNQid(s.fetchSize, s.qid, h)
	}
}

func (c *connection) pullHandler(s *stream) responseHandler {
	return responseHandler{
		onRecord: func(r *db.Record) {
			if s.discarding {
				s.emptyRecords()
			} else {
				r.Keys = s.keys
				s.push(r)
			}
			c.queue.pushFront(c.pullHandler(s))
		},
		onIgnored: func(*ignored) {
			s.err = errors.New("bolt: stream interrupted while pulling")
			c.streams.remove(s)
			c.checkStreams()
		},
		onSuccess: func(succ *success) {
			if s.discarding {
				s.emptyRecords()
			}
			if succ.hasMore {
				s.endOfBatch = true
				return
			}
			sum := c.extractSummary(succ, s)
			if sum.Bookmark != "" {
				c.bookmark = sum.Bookmark
			}
			s.sum = sum
			c.streams.remove(s)
			c.checkStreams()
		},
		onFailure: func(e *db.WireError) {
			s.err = e
			c.setError(e, isFatalError(e))
		},
		onUnknown: func(v any) { c.setError(fmt.Errorf("bolt: unexpected response %v", v), true) },
	}
}

func (c *connection) extractSummary(succ *success, s *stream) *db.Summary {
	sum := succ.summary()
	sum.Agent = c.serverVer
	sum.Major = c.version.Major
	sum.Minor = c.version.Minor
	sum.ServerName = c.serverName
	sum.TFirst = s.tfirst
	return sum
}

func (c *connection) Keys(h idb.StreamHandle) ([]string, error) {
	s, err := c.streams.getUnsafe(h)
	if err != nil {
		return nil, err
	}
	return s.keys, nil
}

func (c *connection) Next(ctx context.Context, h idb.StreamHandle) (*db.Record, *db.Summary, error) {
	s, err := c.streams.getUnsafe(h)
	if err != nil {
		return nil, nil, err
	}
	for {
		buffered, rec, sum, err := s.bufferedNext()
		if buffered {
			return rec, sum, err
		}
		if s.endOfBatch {
			c.appendPull(s)
			c.queue.send(ctx)
			if c.err != nil {
				return nil, nil, c.err
			}
			s.endOfBatch = false
		}
		if c.queue.isEmpty() {
			return nil, nil, errors.New("bolt: no further results expected on this stream")
		}
		if err := c.queue.receive(ctx); err != nil {
			return nil, nil, err
		}
		if c.err != nil {
			return nil, nil, c.err
		}
	}
}

func (c *connection) Consume(ctx context.Context, h idb.StreamHandle) (*db.Summary, error) {
	s, err := c.streams.getUnsafe(h)
	if err != nil {
		return nil, err
	}
	if s.sum != nil || s.err != nil {
		return s.sum, s.err
	}
	if err := c.streams.isSafe(s); err != nil {
		return nil, err
	}
	if err := c.assertState(stateStreaming, stateStreamingTx); err != nil {
		return nil, err
	}
	if s != c.streams.curr {
		c.pauseStream(ctx)
		if c.err != nil {
			return nil, c.err
		}
		c.resumeStream(ctx, s)
	}
	c.discardStream(ctx)
	return s.sum, s.err
}

func (c *connection) Buffer(ctx context.Context, h idb.StreamHandle) error {
	s, err := c.streams.getUnsafe(h)
	if err != nil {
		return err
	}
	if s.sum != nil || s.err != nil {
		return s.Err()
	}
	if err := c.streams.isSafe(s); err != nil {
		return err
	}
	if err := c.assertState(stateStreaming, stateStreamingTx); err != nil {
		return err
	}
	if s != c.streams.curr {
		c.pauseStream(ctx)
		if c.err != nil {
			return c.err
		}
		c.resumeStream(ctx, s)
	}
	c.bufferStream(ctx)
	return s.Err()
}

// Reset recovers a FAILED connection back to READY; a no-op when the
// connection is already clean (spec.md §4.3 "RESET recovery").
func (c *connection) Reset(ctx context.Context) {
	defer func() {
		c.txId = 0
		c.bookmark = ""
		c.databaseName = idb.DefaultDatabase
		c.err = nil
		c.lastQid = -1
		c.streams.reset()
	}()
	if c.state == stateReady {
		return
	}
	c.ForceReset(ctx)
}

func (c *connection) ForceReset(ctx context.Context) {
	if c.state == stateDead {
		return
	}
	c.err = nil
	if err := c.queue.receiveAll(ctx); c.err != nil || err != nil {
		return
	}
	c.queue.appendReset(responseHandler{
		onSuccess: func(*success) { c.state = stateReady },
		onFailure: func(*db.WireError) { c.state = stateDead },
		onUnknown: func(any) { c.state = stateDead },
	})
	c.queue.send(ctx)
	if c.err != nil {
		return
	}
	_ = c.queue.receive(ctx)
}

// GetRoutingTable issues ROUTE (spec.md §4.5); only valid from READY.
func (c *connection) GetRoutingTable(ctx context.Context, routingContext map[string]string, bookmarks []string, database string) (*idb.RoutingTable, error) {
	if err := c.assertState(stateReady); err != nil {
		return nil, err
	}
	extras := map[string]any{}
	if database != idb.DefaultDatabase {
		extras["db"] = database
	}
	var table *idb.RoutingTable
	c.queue.appendRoute(routingContext, bookmarks, extras, c.expectedSuccessHandler(func(s *success) {
		table = s.routingTable
	}))
	c.queue.send(ctx)
	if c.err != nil {
		return nil, c.err
	}
	if err := c.queue.receiveAll(ctx); err != nil {
		return nil, err
	}
	if c.err != nil {
		return nil, c.err
	}
	return table, nil
}

func (c *connection) Close(ctx context.Context) {
	if c.state != stateDead {
		c.queue.appendGoodbye()
		c.queue.send(ctx)
	}
	_ = c.conn.Close()
	c.state = stateDead
}
