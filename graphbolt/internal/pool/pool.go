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

// Package pool implements the per-address connection pool of spec.md §4.4:
// bounded size, FIFO acquire fairness, staleness/health eviction and a
// pluggable connection factory.
package pool

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"time"

	idb "github.com/graphbolt/driver/graphbolt/internal/db"
	"github.com/graphbolt/driver/graphbolt/log"
)

// ErrPoolClosed is returned by Acquire once Close has been called on the
// pool (or the specific address).
var ErrPoolClosed = errors.New("pool: closed")

// ErrAcquireTimeout is returned when no connection became available
// within the configured acquisitionTimeout.
var ErrAcquireTimeout = errors.New("pool: timed out acquiring a connection")

// Creator dials and authenticates a brand-new connection to address.
type Creator func(ctx context.Context, address string) (idb.Connection, error)

// Config carries the pool-wide knobs from spec.md §4.4.
type Config struct {
	MaxSize            int // 0 means unbounded
	AcquisitionTimeout time.Duration
	MaxLifetime        time.Duration // 0 means unbounded
	Creator            Creator
	Logger             log.Logger
}

const defaultAcquisitionTimeout = 60 * time.Second

// waiter is a single pending Acquire, parked in a per-address FIFO queue
// until a connection is released or room opens up to create a new one.
type waiter struct {
	ready chan struct{}
	conn  idb.Connection
	err   error
}

// addressPool is the per-address bookkeeping: idle connections, a count of
// ones currently checked out, and the FIFO of waiters (spec.md §4.4
// "Fairness is FIFO across waiters").
type addressPool struct {
	mu      sync.Mutex
	idle    []idb.Connection
	inUse   int
	waiters *list.List // of *waiter
	closed  bool
}

// Pool is the full set of per-address pools behind one driver instance.
type Pool struct {
	cfg Config

	mu        sync.Mutex
	addresses map[string]*addressPool
	closed    bool
}

// New constructs a Pool; cfg.Creator must be non-nil.
func New(cfg Config) *Pool {
	if cfg.AcquisitionTimeout <= 0 {
		cfg.AcquisitionTimeout = defaultAcquisitionTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Void
	}
	return &Pool{cfg: cfg, addresses: make(map[string]*addressPool)}
}

func (p *Pool) poolFor(address string) (*addressPool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrPoolClosed
	}
	ap, ok := p.addresses[address]
	if !ok {
		ap = &addressPool{waiters: list.New()}
		p.addresses[address] = ap
	}
	return ap, nil
}

func (p *Pool) isStale(conn idb.Connection) bool {
	if p.cfg.MaxLifetime <= 0 {
		return false
	}
	return time.Since(conn.Birthdate()) > p.cfg.MaxLifetime
}

// Acquire borrows a connection to address, creating one if under capacity
// or waiting in FIFO order otherwise (spec.md §4.4 "Acquire").
func (p *Pool) Acquire(ctx context.Context, address string) (idb.Connection, error) {
	ap, err := p.poolFor(address)
	if err != nil {
		return nil, err
	}

	for {
		ap.mu.Lock()
		if ap.closed {
			ap.mu.Unlock()
			return nil, ErrPoolClosed
		}

		// 1. Pop an idle entry, discarding stale or unhealthy ones.
		for len(ap.idle) > 0 {
			conn := ap.idle[len(ap.idle)-1]
			ap.idle = ap.idle[:len(ap.idle)-1]
			if p.isStale(conn) || !conn.IsAlive() {
				conn.Close(ctx)
				continue
			}
			ap.inUse++
			ap.mu.Unlock()
			return conn, nil
		}

		// 2. Room to create a new one.
		if p.cfg.MaxSize <= 0 || ap.inUse+len(ap.idle) < p.cfg.MaxSize {
			ap.inUse++
			ap.mu.Unlock()
			conn, err := p.cfg.Creator(ctx, address)
			if err != nil {
				ap.mu.Lock()
				ap.inUse--
				// The slot we reserved just freed up again; poke the oldest
				// waiter (if any) so it loops around instead of blocking
				// until acquisitionTimeout.
				front := ap.waiters.Front()
				if front != nil {
					ap.waiters.Remove(front)
					w := front.Value.(*waiter)
					close(w.ready)
				}
				ap.mu.Unlock()
				return nil, err
			}
			return conn, nil
		}

		// 3. Wait in FIFO order, bounded by acquisitionTimeout.
		w := &waiter{ready: make(chan struct{})}
		elem := ap.waiters.PushBack(w)
		ap.mu.Unlock()

		timer := time.NewTimer(p.cfg.AcquisitionTimeout)
		select {
		case <-w.ready:
			timer.Stop()
			if w.err != nil {
				return nil, w.err
			}
			if w.conn == nil {
				// Woken to retry the loop (e.g. pool grew); go around again.
				continue
			}
			return w.conn, nil
		case <-ctx.Done():
			timer.Stop()
			p.cancelWaiter(ap, elem)
			return nil, ctx.Err()
		case <-timer.C:
			p.cancelWaiter(ap, elem)
			return nil, ErrAcquireTimeout
		}
	}
}

// cancelWaiter removes elem from the queue if it is still there (it may
// already have been popped and handed a connection concurrently).
func (p *Pool) cancelWaiter(ap *addressPool, elem *list.Element) {
	ap.mu.Lock()
	defer ap.mu.Unlock()
	for e := ap.waiters.Front(); e != nil; e = e.Next() {
		if e == elem {
			ap.waiters.Remove(e)
			return
		}
	}
}

// wakeOne hands conn to the oldest waiter, or makes it idle if there is
// none. Must be called with ap.mu held; conn may be nil to just poke the
// oldest waiter to retry (used after inUse capacity frees up).
func (p *Pool) wakeOne(ap *addressPool, conn idb.Connection) {
	front := ap.waiters.Front()
	if front == nil {
		if conn != nil {
			ap.idle = append(ap.idle, conn)
		}
		return
	}
	ap.waiters.Remove(front)
	w := front.Value.(*waiter)
	w.conn = conn
	if conn != nil {
		ap.inUse++
	}
	close(w.ready)
}

// Release returns conn to its address pool, or closes it if poisoned/stale
// (spec.md §4.4 "Release").
func (p *Pool) Release(ctx context.Context, address string, conn idb.Connection) {
	ap, err := p.poolFor(address)
	if err != nil {
		conn.Close(ctx)
		return
	}

	ap.mu.Lock()
	ap.inUse--
	healthy := conn.IsAlive() && !conn.HasFailed() && !p.isStale(conn) && !ap.closed
	if !healthy {
		// A waiter may still be parked hoping capacity frees up; poke the
		// oldest one so it loops around and tries to create a replacement.
		front := ap.waiters.Front()
		if front != nil {
			ap.waiters.Remove(front)
			w := front.Value.(*waiter)
			close(w.ready)
		}
		ap.mu.Unlock()
		conn.Close(ctx)
		return
	}
	p.wakeOne(ap, conn)
	ap.mu.Unlock()
}

// CloseAddress drains waiters with an error, closes idle connections, and
// refuses future acquires for address. In-use connections close on Release.
func (p *Pool) CloseAddress(ctx context.Context, address string) {
	p.mu.Lock()
	ap, ok := p.addresses[address]
	p.mu.Unlock()
	if !ok {
		return
	}
	p.drainAddress(ctx, ap)
}

func (p *Pool) drainAddress(ctx context.Context, ap *addressPool) {
	ap.mu.Lock()
	ap.closed = true
	idle := ap.idle
	ap.idle = nil
	for e := ap.waiters.Front(); e != nil; e = e.Next() {
		w := e.Value.(*waiter)
		w.err = ErrPoolClosed
		close(w.ready)
	}
	ap.waiters.Init()
	ap.mu.Unlock()

	for _, conn := range idle {
		conn.Close(ctx)
	}
}

// Close drains and closes every address pool.
func (p *Pool) Close(ctx context.Context) {
	p.mu.Lock()
	p.closed = true
	addrs := make([]*addressPool, 0, len(p.addresses))
	for _, ap := range p.addresses {
		addrs = append(addrs, ap)
	}
	p.mu.Unlock()

	for _, ap := range addrs {
		p.drainAddress(ctx, ap)
	}
}
