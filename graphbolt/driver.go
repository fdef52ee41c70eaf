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

// Package graphbolt is a client-side driver for graph database servers that
// speak the Bolt wire protocol, in both direct and routed (clustered)
// deployments (spec.md §§4-6).
package graphbolt

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/graphbolt/driver/graphbolt/internal/bolt"
	idb "github.com/graphbolt/driver/graphbolt/internal/db"
	"github.com/graphbolt/driver/graphbolt/internal/pool"
	"github.com/graphbolt/driver/graphbolt/internal/router"
	"github.com/graphbolt/driver/graphbolt/internal/trust"
	"github.com/graphbolt/driver/graphbolt/internal/urlutil"
	"github.com/graphbolt/driver/graphbolt/log"
)

// Driver is the top-level entry point: one per application process per
// target deployment, shared across goroutines (spec.md §5 "the Driver and
// its Pool are safe for concurrent use").
type Driver struct {
	target     urlutil.Target
	config     *Config
	pool       *pool.Pool
	router     *router.Provider // nil for direct (non-routed) targets
	connector  *bolt.Connector
	knownHosts *trust.KnownHosts // nil unless KnownHostsPath is set
	logId      string
}

// NewDriver parses rawURL (spec.md §6 "URL scheme"), reconciles it with
// config, and returns a Driver ready to open sessions. No network I/O
// happens here; the first connection is made lazily on first use.
func NewDriver(rawURL string, auth AuthToken, configurers ...Configurer) (*Driver, error) {
	cfg := defaultConfig()
	for _, c := range configurers {
		c(cfg)
	}

	target, err := urlutil.Parse(rawURL)
	if err != nil {
		return nil, &UsageError{Message: err.Error()}
	}

	strategy, err := resolveTrust(cfg, target.Trust)
	if err != nil {
		return nil, err
	}
	cfg.Trust = strategy

	var knownHosts *trust.KnownHosts
	if cfg.KnownHostsPath != "" {
		knownHosts, err = trust.LoadKnownHosts(cfg.KnownHostsPath)
		if err != nil {
			return nil, &UsageError{Message: err.Error()}
		}
	}

	dialer := bolt.TCPDialer
	if target.Trust != urlutil.TrustNone || cfg.Encrypted {
		tlsCfg := cfg.TLSConfig
		if tlsCfg == nil {
			tlsCfg, err = trust.Config(cfg.Trust, cfg.TrustedCertificatePaths)
			if err != nil {
				return nil, &UsageError{Message: err.Error()}
			}
		}
		dialer = bolt.TLSDialer(tlsCfg)
		if knownHosts != nil {
			dialer = pinningDialer(dialer, knownHosts)
		}
	}

	logId := log.NewID()
	connector := &bolt.Connector{
		Dialer:    dialer,
		Logger:    cfg.Logger,
		UserAgent: cfg.UserAgent,
		Auth:      map[string]any(auth),
	}

	p := pool.New(pool.Config{
		MaxSize:            cfg.MaxConnectionPoolSize,
		AcquisitionTimeout: cfg.ConnectionAcquisitionTimeout,
		MaxLifetime:        cfg.MaxConnectionLifetime,
		Logger:             cfg.Logger,
		Creator: func(ctx context.Context, address string) (idb.Connection, error) {
			ctx, cancel := context.WithTimeout(ctx, cfg.ConnectionTimeout)
			defer cancel()
			return connector.Connect(ctx, address, target.RoutingContext)
		},
	})

	d := &Driver{
		target:     target,
		config:     cfg,
		pool:       p,
		connector:  connector,
		knownHosts: knownHosts,
		logId:      logId,
	}

	if target.Routing {
		d.router = router.NewProvider(target.Address, target.RoutingContext, cfg.Resolver, d.fetchRoutingTable, cfg.Logger)
	}

	cfg.Logger.Infof(log.Driver, logId, "created for %s (routing=%v)", target.Address, target.Routing)
	return d, nil
}

// pinningDialer wraps inner with known-hosts certificate pinning
// (spec.md §6 "Persisted state"): the first connection to an address
// pins its certificate's fingerprint, every subsequent one must match.
func pinningDialer(inner bolt.Dialer, knownHosts *trust.KnownHosts) bolt.Dialer {
	return func(ctx context.Context, address string) (net.Conn, error) {
		conn, err := inner(ctx, address)
		if err != nil {
			return nil, err
		}
		tlsConn, ok := conn.(*tls.Conn)
		if !ok {
			return conn, nil
		}
		certs := tlsConn.ConnectionState().PeerCertificates
		if len(certs) == 0 {
			_ = conn.Close()
			return nil, &UsageError{Message: "server presented no certificate to pin"}
		}
		fingerprint := trust.Fingerprint(certs[0].Raw)
		if pinned, ok := knownHosts.Lookup(address); ok {
			if pinned != fingerprint {
				_ = conn.Close()
				return nil, trust.ErrFingerprintMismatch
			}
			return conn, nil
		}
		if err := knownHosts.Pin(address, fingerprint); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}

// fetchRoutingTable is the router.RouteFetcher: it borrows a connection to
// address and issues ROUTE/a Bolt-native routing RUN through it (spec.md
// §4.5 point 2).
func (d *Driver) fetchRoutingTable(ctx context.Context, address string, routingContext map[string]string, bookmarks []string, database string) (*idb.RoutingTable, error) {
	conn, err := d.pool.Acquire(ctx, address)
	if err != nil {
		return nil, err
	}
	defer d.pool.Release(ctx, address, conn)
	return conn.GetRoutingTable(ctx, routingContext, bookmarks, database)
}

// resolveServer picks the address a session should connect to for mode:
// the single target address for a direct driver, or the router's current
// pick for a routed one (spec.md §4.5).
func (d *Driver) resolveServer(ctx context.Context, database string, bookmarks []string, mode idb.AccessMode) (string, error) {
	if d.router == nil {
		return d.target.Address, nil
	}
	if _, err := d.router.TableFor(ctx, database, bookmarks); err != nil {
		return "", &ConnectivityError{Message: "could not obtain a routing table", Cause: err}
	}
	addr, ok := d.router.Select(database, mode)
	if !ok {
		if mode == idb.WriteMode {
			return "", &SessionExpiredError{Message: "routing table has no writers for database " + describeDatabase(database)}
		}
		return "", &SessionExpiredError{Message: "routing table has no readers for database " + describeDatabase(database)}
	}
	return addr, nil
}

func describeDatabase(database string) string {
	if database == idb.DefaultDatabase {
		return "<default>"
	}
	return database
}

// forgetServer reacts to a connection-level failure against address,
// per spec.md §4.5's forget table: a NotALeader-derived SessionExpiredError
// only costs that address its writer role; anything else forgets it
// entirely so the next routing table refresh drops it.
func (d *Driver) forgetServer(ctx context.Context, address string, err error) {
	if d.router == nil {
		return
	}
	if _, ok := err.(*SessionExpiredError); ok {
		d.router.ForgetWriter(address)
		return
	}
	d.router.Forget(address)
	d.pool.CloseAddress(ctx, address)
}

// NewSession opens a logical session against this driver. A session is
// cheap but not safe for concurrent use (spec.md §5).
func (d *Driver) NewSession(config SessionConfig) Session {
	return newSession(d, config)
}

// VerifyConnectivity dials the target (or, when routing, a router) and
// confirms a Bolt handshake and authentication succeed, without running
// any query.
func (d *Driver) VerifyConnectivity(ctx context.Context) error {
	addr, err := d.resolveServer(ctx, idb.DefaultDatabase, nil, idb.ReadMode)
	if err != nil {
		return err
	}
	conn, err := d.pool.Acquire(ctx, addr)
	if err != nil {
		return wrapError(err)
	}
	d.pool.Release(ctx, addr, conn)
	return nil
}

// Close releases every pooled connection. The Driver must not be used
// afterwards.
func (d *Driver) Close(ctx context.Context) error {
	d.config.Logger.Debugf(log.Driver, d.logId, "closing")
	d.pool.Close(ctx)
	return nil
}

// Target returns the host:port this driver was constructed with (the seed
// router address for routed deployments).
func (d *Driver) Target() string { return d.target.Address }

// IsRouting reports whether this driver resolves a cluster routing table
// (a neo4j:// scheme) as opposed to connecting directly (bolt://).
func (d *Driver) IsRouting() bool { return d.target.Routing }
