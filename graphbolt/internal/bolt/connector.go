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
	"crypto/tls"
	"fmt"
	"net"

	idb "github.com/graphbolt/driver/graphbolt/internal/db"
	"github.com/graphbolt/driver/graphbolt/log"
)

// Dialer opens the transport-level connection to a Bolt server; TLS, if
// any, is applied before Connector ever sees the net.Conn (spec.md §6
// "bolt+s"/"bolt+ssc" vs plain "bolt" only differ in this step).
type Dialer func(ctx context.Context, address string) (net.Conn, error)

// TCPDialer is the default Dialer: a plain, unencrypted TCP connection.
func TCPDialer(ctx context.Context, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", address)
}

// TLSDialer wraps a TCP connection in TLS using cfg, for the "+s"/"+ssc"
// URL schemes (spec.md §6).
func TLSDialer(cfg *tls.Config) Dialer {
	return func(ctx context.Context, address string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			return nil, err
		}
		host, _, splitErr := net.SplitHostPort(address)
		if splitErr != nil {
			host = address
		}
		tlsCfg := cfg.Clone()
		if tlsCfg.ServerName == "" {
			tlsCfg.ServerName = host
		}
		tlsConn := tls.Client(conn, tlsCfg)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return tlsConn, nil
	}
}

// Connector dials, negotiates a Bolt version and authenticates a brand-new
// connection to one address. It is the factory function the pool (§4.4)
// calls whenever it needs to grow.
type Connector struct {
	Dialer    Dialer
	Logger    log.Logger
	UserAgent string
	Auth      map[string]any
}

// Connect produces one ready-to-use Connection bound to address.
func (c *Connector) Connect(ctx context.Context, address string, routingContext map[string]string) (idb.Connection, error) {
	dial := c.Dialer
	if dial == nil {
		dial = TCPDialer
	}
	conn, err := dial(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("bolt: dialing %s: %w", address, err)
	}

	version, err := negotiateVersion(conn)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger := c.Logger
	if logger == nil {
		logger = log.Void
	}
	bc := newConnection(address, conn, version, logger, nil)
	if err := bc.Connect(ctx, c.Auth, c.UserAgent, routingContext); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return bc, nil
}
