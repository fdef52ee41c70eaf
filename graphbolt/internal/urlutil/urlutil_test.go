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

package urlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchemes(t *testing.T) {
	tests := []struct {
		url     string
		routing bool
		trust   TrustMode
	}{
		{"bolt://host:7687", false, TrustNone},
		{"bolt+s://host:7687", false, TrustSystemCA},
		{"bolt+ssc://host:7687", false, TrustAnyCert},
		{"neo4j://host:7687", true, TrustNone},
		{"neo4j+s://host:7687", true, TrustSystemCA},
		{"neo4j+ssc://host:7687", true, TrustAnyCert},
		{"bolt+routing://host:7687", true, TrustNone},
	}
	for _, tt := range tests {
		target, err := Parse(tt.url)
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.routing, target.Routing, tt.url)
		assert.Equal(t, tt.trust, target.Trust, tt.url)
	}
}

func TestParseDefaultsPort(t *testing.T) {
	target, err := Parse("bolt://host")
	require.NoError(t, err)
	assert.Equal(t, "host:7687", target.Address)
}

func TestParseKeepsExplicitPort(t *testing.T) {
	target, err := Parse("bolt://host:9999")
	require.NoError(t, err)
	assert.Equal(t, "host:9999", target.Address)
}

func TestParseUnknownScheme(t *testing.T) {
	_, err := Parse("http://host:7687")
	require.Error(t, err)
}

func TestParseMissingHost(t *testing.T) {
	_, err := Parse("bolt://")
	require.Error(t, err)
}

func TestParseRoutingContextOnRoutingScheme(t *testing.T) {
	target, err := Parse("neo4j://host:7687?region=us&policy=east")
	require.NoError(t, err)
	assert.Equal(t, "us", target.RoutingContext["region"])
	assert.Equal(t, "east", target.RoutingContext["policy"])
}

func TestParseRejectsQueryOnDirectScheme(t *testing.T) {
	_, err := Parse("bolt://host:7687?region=us")
	require.Error(t, err)
}

func TestParseInvalidURL(t *testing.T) {
	_, err := Parse("://bad")
	require.Error(t, err)
}
