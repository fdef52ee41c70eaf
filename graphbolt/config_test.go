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
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbolt/driver/graphbolt/internal/trust"
	"github.com/graphbolt/driver/graphbolt/internal/urlutil"
)

func TestResolveTrustUntouchedFollowsURL(t *testing.T) {
	cfg := defaultConfig()
	strategy, err := resolveTrust(cfg, urlutil.TrustAnyCert)
	require.NoError(t, err)
	assert.Equal(t, trust.TrustAllCertificates, strategy)
}

func TestResolveTrustNoURLConstraintKeepsConfig(t *testing.T) {
	cfg := defaultConfig()
	WithTrust(trust.TrustAllCertificates)(cfg)
	strategy, err := resolveTrust(cfg, urlutil.TrustNone)
	require.NoError(t, err)
	assert.Equal(t, trust.TrustAllCertificates, strategy)
}

func TestResolveTrustConflictingExplicitConfigErrors(t *testing.T) {
	cfg := defaultConfig()
	WithTrust(trust.TrustAllCertificates)(cfg)
	_, err := resolveTrust(cfg, urlutil.TrustSystemCA)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestResolveTrustExplicitAgreeingWithURLIsFine(t *testing.T) {
	cfg := defaultConfig()
	WithTrust(trust.TrustSystemCA)(cfg)
	strategy, err := resolveTrust(cfg, urlutil.TrustSystemCA)
	require.NoError(t, err)
	assert.Equal(t, trust.TrustSystemCA, strategy)
}

func TestLoadConfigYAML(t *testing.T) {
	yaml := `
encrypted: true
trust: TRUST_ALL_CERTIFICATES
maxConnectionPoolSize: 50
maxConnectionLifetime: 3600000
connectionAcquisitionTimeout: 5000
connectionTimeout: 2000
maxTransactionRetryTime: 15000
userAgent: custom-agent/1.0
logging:
  level: debug
`
	cfg, err := LoadConfigYAML(strings.NewReader(yaml))
	require.NoError(t, err)
	assert.True(t, cfg.Encrypted)
	assert.Equal(t, trust.TrustAllCertificates, cfg.Trust)
	assert.Equal(t, 50, cfg.MaxConnectionPoolSize)
	assert.Equal(t, time.Hour, cfg.MaxConnectionLifetime)
	assert.Equal(t, 5*time.Second, cfg.ConnectionAcquisitionTimeout)
	assert.Equal(t, 2*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, 15*time.Second, cfg.MaxTransactionRetryTime)
	assert.Equal(t, "custom-agent/1.0", cfg.UserAgent)
}

func TestLoadConfigYAMLUnknownTrust(t *testing.T) {
	_, err := LoadConfigYAML(strings.NewReader("trust: NOT_A_REAL_STRATEGY\n"))
	require.Error(t, err)
}

func TestLoadConfigYAMLDefaultsWhenEmpty(t *testing.T) {
	cfg, err := LoadConfigYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, trust.TrustSystemCA, cfg.Trust)
	assert.Equal(t, defaultFetchSize, cfg.FetchSize)
}

func TestWithFetchSizeOverridesDefault(t *testing.T) {
	cfg := defaultConfig()
	WithFetchSize(500)(cfg)
	assert.Equal(t, 500, cfg.FetchSize)
}
