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

// Package urlutil parses the driver's connection URL (spec.md §6 "URL
// scheme"): which scheme selects routing vs. direct mode and which TLS
// trust posture, plus the routing context carried in the query string.
package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// TrustMode is the TLS trust posture a scheme (or explicit config)
// selects.
type TrustMode int

const (
	TrustNone TrustMode = iota
	TrustSystemCA
	TrustAnyCert
)

// Target is everything a parsed connection URL tells the driver.
type Target struct {
	Routing        bool
	Trust          TrustMode
	Address        string // host:port
	RoutingContext map[string]string
}

var schemes = map[string]struct {
	routing bool
	trust   TrustMode
}{
	"bolt":         {routing: false, trust: TrustNone},
	"bolt+s":       {routing: false, trust: TrustSystemCA},
	"bolt+ssc":     {routing: false, trust: TrustAnyCert},
	"neo4j":        {routing: true, trust: TrustNone},
	"neo4j+s":      {routing: true, trust: TrustSystemCA},
	"neo4j+ssc":    {routing: true, trust: TrustAnyCert},
	"bolt+routing": {routing: true, trust: TrustNone}, // legacy alias for neo4j://
}

const defaultPort = "7687"

// Parse validates rawURL against spec.md §6's scheme table and extracts
// the routing context from its query string. Query parameters are a
// ClientError-equivalent (returned as an error here) on direct schemes.
func Parse(rawURL string) (Target, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Target{}, fmt.Errorf("urlutil: invalid URL: %w", err)
	}

	scheme, ok := schemes[strings.ToLower(u.Scheme)]
	if !ok {
		return Target{}, fmt.Errorf("urlutil: unknown scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return Target{}, fmt.Errorf("urlutil: URL %q has no host", rawURL)
	}
	port := u.Port()
	if port == "" {
		port = defaultPort
	}

	routingContext := map[string]string{}
	if len(u.RawQuery) > 0 {
		if !scheme.routing {
			return Target{}, fmt.Errorf("urlutil: query parameters are not allowed on scheme %q", u.Scheme)
		}
		values, err := url.ParseQuery(u.RawQuery)
		if err != nil {
			return Target{}, fmt.Errorf("urlutil: invalid query string: %w", err)
		}
		for k, vs := range values {
			if len(vs) > 0 {
				routingContext[k] = vs[0]
			}
		}
	}

	return Target{
		Routing:        scheme.routing,
		Trust:          scheme.trust,
		Address:        host + ":" + port,
		RoutingContext: routingContext,
	}, nil
}
