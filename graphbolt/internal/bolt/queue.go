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
	"context"
	"net"

	"github.com/graphbolt/driver/graphbolt/internal/packstream"
	"github.com/graphbolt/driver/graphbolt/log"
)

// messageQueue owns the outgoing/incoming halves of a connection and the
// FIFO of response handlers matching each message that was sent but not
// yet answered. Bolt allows pipelining: several appendX calls can be
// queued and sent before any of their responses are read, but responses
// always come back in send order (spec.md §4.3 "Ordering").
type messageQueue struct {
	conn    net.Conn
	in      *incoming
	out     *outgoing
	onNext  func()
	onErr   func(error)
	pending []responseHandler
}

func newMessageQueue(conn net.Conn, in *incoming, out *outgoing, onNext func(), onErr func(error)) messageQueue {
	return messageQueue{conn: conn, in: in, out: out, onNext: onNext, onErr: onErr}
}

func (q *messageQueue) setLogId(id string) {}

func (q *messageQueue) setBoltLogger(l log.BoltLogger) {
	q.in.boltLogger = l
	q.out.boltLogger = l
}

func (q *messageQueue) isEmpty() bool {
	return len(q.pending) == 0
}

// pushFront re-queues a handler ahead of everything else pending; used
// when a PULL handler needs to stay registered to receive more RECORDs
// after processing one (spec.md §4.8 "records are pulled in batches").
func (q *messageQueue) pushFront(h responseHandler) {
	q.pending = append([]responseHandler{h}, q.pending...)
}

func (q *messageQueue) queue(h responseHandler) {
	q.pending = append(q.pending, h)
}

// send flushes everything appended so far to the socket.
func (q *messageQueue) send(ctx context.Context) {
	if err := q.out.send(q.conn); err != nil {
		if q.onErr != nil {
			q.onErr(err)
		}
	}
}

// receive processes exactly one pending response.
func (q *messageQueue) receive(ctx context.Context) error {
	if len(q.pending) == 0 {
		return nil
	}
	h := q.pending[0]
	q.pending = q.pending[1:]
	if err := q.in.next(h); err != nil {
		if q.onErr != nil {
			q.onErr(err)
		}
		return err
	}
	if q.onNext != nil {
		q.onNext()
	}
	return nil
}

// receiveAll drains every currently pending response.
func (q *messageQueue) receiveAll(ctx context.Context) error {
	for len(q.pending) > 0 {
		if err := q.receive(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Message builders. Each queues the wire bytes (via outgoing) and the
// handler that will process its eventual response, mirroring the
// client→server set in spec.md §4.3.

func (q *messageQueue) appendHello(hello map[string]any, h responseHandler) {
	q.out.appendMessage(packstream.SigHello, hello)
	q.queue(h)
}

func (q *messageQueue) appendLogon(auth map[string]any, h responseHandler) {
	q.out.appendMessage(packstream.SigLogon, auth)
	q.queue(h)
}

func (q *messageQueue) appendBegin(meta map[string]any, h responseHandler) {
	q.out.appendMessage(packstream.SigBegin, meta)
	q.queue(h)
}

func (q *messageQueue) appendRun(cypher string, params map[string]any, meta map[string]any, h responseHandler) {
	if params == nil {
		params = map[string]any{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	q.out.appendMessage(packstream.SigRun, cypher, params, meta)
	q.queue(h)
}

func (q *messageQueue) appendPullN(n int, h responseHandler) {
	q.out.appendMessage(packstream.SigPull, map[string]any{"n": int64(n)})
	q.queue(h)
}

func (q *messageQueue) appendPullNQid(n int, qid int64, h responseHandler) {
	q.out.appendMessage(packstream.SigPull, map[string]any{"n": int64(n), "qid": qid})
	q.queue(h)
}

func (q *messageQueue) appendDiscardN(n int, h responseHandler) {
	q.out.appendMessage(packstream.SigDiscard, map[string]any{"n": int64(n)})
	q.queue(h)
}

func (q *messageQueue) appendDiscardNQid(n int, qid int64, h responseHandler) {
	q.out.appendMessage(packstream.SigDiscard, map[string]any{"n": int64(n), "qid": qid})
	q.queue(h)
}

func (q *messageQueue) appendCommit(h responseHandler) {
	q.out.appendMessage(packstream.SigCommit)
	q.queue(h)
}

func (q *messageQueue) appendRollback(h responseHandler) {
	q.out.appendMessage(packstream.SigRollback)
	q.queue(h)
}

func (q *messageQueue) appendReset(h responseHandler) {
	q.out.appendMessage(packstream.SigReset)
	q.queue(h)
}

func (q *messageQueue) appendRoute(routingContext map[string]string, bookmarks []string, extra map[string]any, h responseHandler) {
	ctxMap := make(map[string]any, len(routingContext))
	for k, v := range routingContext {
		ctxMap[k] = v
	}
	bms := make([]any, len(bookmarks))
	for i, b := range bookmarks {
		bms[i] = b
	}
	q.out.appendMessage(packstream.SigRoute, ctxMap, bms, extra)
	q.queue(h)
}

func (q *messageQueue) appendGoodbye() {
	q.out.appendMessage(packstream.SigGoodbye)
}
