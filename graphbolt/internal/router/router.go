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

// Package router implements the routing table cache and refresh provider
// of spec.md §4.5: per-database cached (routers, readers, writers,
// expiresAt), round-robin member selection, forget-on-failure and a
// single-flight refresh per database.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	idb "github.com/graphbolt/driver/graphbolt/internal/db"
	"github.com/graphbolt/driver/graphbolt/log"
)

// ErrNoRouters is returned when every known router has been forgotten and
// the seed resolver produces nothing usable either.
var ErrNoRouters = errors.New("router: no routers available")

// RouteFetcher asks one address for a fresh routing table via ROUTE
// (spec.md §4.5 point 2); address is the router being asked.
type RouteFetcher func(ctx context.Context, address string, routingContext map[string]string, bookmarks []string, database string) (*idb.RoutingTable, error)

// Resolver expands the user-supplied seed address into one or more
// candidate router addresses (spec.md §6 "hostnameResolver"); the default
// is the identity resolver (address -> [address]).
type Resolver func(seed string) []string

func IdentityResolver(seed string) []string { return []string{seed} }

// cachedTable is one database's cached routing table plus the round-robin
// cursors used to hand out readers/writers fairly.
type cachedTable struct {
	table      *idb.RoutingTable
	expiresAt  time.Time
	readCursor int
	writeCursor int
}

func (c *cachedTable) valid() bool {
	return c.table != nil && time.Now().Before(c.expiresAt)
}

// Table is the router's public view of one database's cached members.
type Table struct {
	Routers []string
	Readers []string
	Writers []string
}

// pendingRefresh lets concurrent callers asking for the same database join
// the single in-flight refresh instead of issuing their own ROUTE calls
// (spec.md §4.5 "the provider serialises concurrent refresh attempts so
// only one is in flight per database").
type pendingRefresh struct {
	done chan struct{}
	err  error
}

// Provider owns the routing tables for every database seen so far, keyed
// by database name (idb.DefaultDatabase for "whatever the server picks").
type Provider struct {
	mu       sync.Mutex
	tables   map[string]*cachedTable
	pending  map[string]*pendingRefresh
	seed     string
	resolver Resolver
	fetch    RouteFetcher
	logger   log.Logger

	routingContext map[string]string
}

// NewProvider constructs a Provider seeded with one address (the address
// the driver was constructed with); resolver defaults to IdentityResolver
// if nil.
func NewProvider(seed string, routingContext map[string]string, resolver Resolver, fetch RouteFetcher, logger log.Logger) *Provider {
	if resolver == nil {
		resolver = IdentityResolver
	}
	if logger == nil {
		logger = log.Void
	}
	return &Provider{
		tables:         make(map[string]*cachedTable),
		pending:        make(map[string]*pendingRefresh),
		seed:           seed,
		resolver:       resolver,
		fetch:          fetch,
		logger:         logger,
		routingContext: routingContext,
	}
}

// TableFor returns the cached table for database, refreshing it first if
// stale or missing (spec.md §4.5 point 1/2).
func (p *Provider) TableFor(ctx context.Context, database string, bookmarks []string) (Table, error) {
	p.mu.Lock()
	ct, ok := p.tables[database]
	if ok && ct.valid() {
		t := Table{Routers: ct.table.Routers, Readers: ct.table.Readers, Writers: ct.table.Writers}
		p.mu.Unlock()
		return t, nil
	}
	p.mu.Unlock()

	if err := p.refresh(ctx, database, bookmarks); err != nil {
		return Table{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	ct = p.tables[database]
	if ct == nil || ct.table == nil {
		return Table{}, ErrNoRouters
	}
	return Table{Routers: ct.table.Routers, Readers: ct.table.Readers, Writers: ct.table.Writers}, nil
}

// refresh performs (or joins) the single in-flight ROUTE attempt for
// database.
func (p *Provider) refresh(ctx context.Context, database string, bookmarks []string) error {
	p.mu.Lock()
	if pr, ok := p.pending[database]; ok {
		p.mu.Unlock()
		<-pr.done
		return pr.err
	}
	pr := &pendingRefresh{done: make(chan struct{})}
	p.pending[database] = pr
	p.mu.Unlock()

	err := p.doRefresh(ctx, database, bookmarks)

	p.mu.Lock()
	pr.err = err
	delete(p.pending, database)
	p.mu.Unlock()
	close(pr.done)
	return err
}

// candidateRouters returns the routers to try, in order: the currently
// cached routers (if any), falling back to resolving the seed address
// (spec.md §4.5 point 3).
func (p *Provider) candidateRouters(database string) []string {
	p.mu.Lock()
	ct, ok := p.tables[database]
	p.mu.Unlock()
	if ok && ct.table != nil && len(ct.table.Routers) > 0 {
		return ct.table.Routers
	}
	return p.resolver(p.seed)
}

func (p *Provider) doRefresh(ctx context.Context, database string, bookmarks []string) error {
	routers := p.candidateRouters(database)
	if len(routers) == 0 {
		return ErrNoRouters
	}

	for _, addr := range routers {
		table, err := p.fetch(ctx, addr, p.routingContext, bookmarks, database)
		if err != nil {
			p.logger.Warnf(log.Router, "", "router %s failed, forgetting: %s", addr, err)
			p.ForgetRouter(addr)
			continue
		}
		if len(table.Routers) < 1 || len(table.Readers) < 1 {
			p.logger.Warnf(log.Router, "", "router %s returned an incomplete table, ignoring", addr)
			continue
		}
		p.installTable(database, table)
		return nil
	}

	fallback := p.resolver(p.seed)
	for _, addr := range fallback {
		table, err := p.fetch(ctx, addr, p.routingContext, bookmarks, database)
		if err != nil {
			continue
		}
		if len(table.Routers) < 1 || len(table.Readers) < 1 {
			continue
		}
		p.installTable(database, table)
		return nil
	}

	return ErrNoRouters
}

func (p *Provider) installTable(database string, table *idb.RoutingTable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ttl := time.Duration(table.TimeToLive) * time.Second
	p.tables[database] = &cachedTable{table: table, expiresAt: time.Now().Add(ttl)}
}

// Select picks the next address for mode using round-robin over the
// cached table's matching role list.
func (p *Provider) Select(database string, mode idb.AccessMode) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ct, ok := p.tables[database]
	if !ok || ct.table == nil {
		return "", false
	}
	members := ct.table.Readers
	if mode == idb.WriteMode {
		members = ct.table.Writers
	}
	if len(members) == 0 {
		return "", false
	}
	if mode == idb.WriteMode {
		addr := members[ct.writeCursor%len(members)]
		ct.writeCursor++
		return addr, true
	}
	addr := members[ct.readCursor%len(members)]
	ct.readCursor++
	return addr, true
}

// ForgetRouter removes address from every cached database's router list;
// idempotent (spec.md §4.5 "forgetRouter(address) must be idempotent").
func (p *Provider) ForgetRouter(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ct := range p.tables {
		if ct.table == nil {
			continue
		}
		ct.table.Routers = removeAddress(ct.table.Routers, address)
	}
}

// ForgetWriter removes address from writers only, for NotALeader handling
// (spec.md §4.5 "NotALeader ... forget the address from writers only").
func (p *Provider) ForgetWriter(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ct := range p.tables {
		if ct.table == nil {
			continue
		}
		ct.table.Writers = removeAddress(ct.table.Writers, address)
	}
}

// Forget removes address from every role list and invalidates any table
// that no longer has any readers (ServiceUnavailable/SessionExpired/
// DatabaseUnavailable handling, spec.md §4.5).
func (p *Provider) Forget(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for db, ct := range p.tables {
		if ct.table == nil {
			continue
		}
		ct.table.Routers = removeAddress(ct.table.Routers, address)
		ct.table.Readers = removeAddress(ct.table.Readers, address)
		ct.table.Writers = removeAddress(ct.table.Writers, address)
		if len(ct.table.Readers) == 0 {
			delete(p.tables, db)
		}
	}
}

func removeAddress(addrs []string, target string) []string {
	out := addrs[:0]
	for _, a := range addrs {
		if a != target {
			out = append(out, a)
		}
	}
	return out
}
