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
	"crypto/tls"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/graphbolt/driver/graphbolt/internal/trust"
	"github.com/graphbolt/driver/graphbolt/internal/urlutil"
	"github.com/graphbolt/driver/graphbolt/log"
	"gopkg.in/yaml.v3"
)

// Config holds every driver-wide knob from spec.md §6 "Driver
// configuration". Its zero value is unusable: NewDriver starts from the
// defaults and applies functional-option Configurers to them, and
// LoadConfigYAML returns a defaulted Config with the YAML values applied.
type Config struct {
	Encrypted                bool
	Trust                    trust.Strategy
	TrustedCertificatePaths  []string
	TLSConfig                *tls.Config
	MaxConnectionPoolSize    int
	MaxConnectionLifetime    time.Duration
	ConnectionAcquisitionTimeout time.Duration
	ConnectionTimeout        time.Duration
	MaxTransactionRetryTime  time.Duration
	FetchSize                int
	UserAgent                string
	Resolver                 func(seed string) []string
	Logger                   log.Logger
	KnownHostsPath           string

	// trustExplicit is set by WithTrust so resolveTrust can tell a
	// deliberate override apart from the untouched default, and reject
	// the case where it disagrees with a scheme that already fixes trust.
	trustExplicit bool
}

const (
	defaultMaxConnectionLifetime = time.Hour
	defaultAcquisitionTimeout    = 60 * time.Second
	defaultConnectionTimeout     = 30 * time.Second
	defaultMaxRetryTime          = 30 * time.Second
	defaultFetchSize             = 1000
	driverName                   = "graphbolt-go"
	driverVersion                = "1.0.0"
)

// defaultConfig matches spec.md §6's stated defaults.
func defaultConfig() *Config {
	return &Config{
		Trust:                        trust.TrustSystemCA,
		MaxConnectionLifetime:        defaultMaxConnectionLifetime,
		ConnectionAcquisitionTimeout: defaultAcquisitionTimeout,
		ConnectionTimeout:            defaultConnectionTimeout,
		MaxTransactionRetryTime:      defaultMaxRetryTime,
		FetchSize:                    defaultFetchSize,
		UserAgent:                    fmt.Sprintf("%s/%s", driverName, driverVersion),
		Logger:                       log.Void,
	}
}

// Configurer mutates a Config; NewDriver accepts any number of these,
// following the teacher's functional-option idiom for SessionConfig and
// TransactionConfig.
type Configurer func(*Config)

// WithMaxConnectionPoolSize sets the per-address cap (spec.md
// "maxConnectionPoolSize"); 0 means unbounded.
func WithMaxConnectionPoolSize(n int) Configurer {
	return func(c *Config) { c.MaxConnectionPoolSize = n }
}

// WithMaxConnectionLifetime sets the per-connection age limit.
func WithMaxConnectionLifetime(d time.Duration) Configurer {
	return func(c *Config) { c.MaxConnectionLifetime = d }
}

// WithConnectionAcquisitionTimeout bounds pool waiting.
func WithConnectionAcquisitionTimeout(d time.Duration) Configurer {
	return func(c *Config) { c.ConnectionAcquisitionTimeout = d }
}

// WithConnectionTimeout bounds TCP+TLS+handshake+init.
func WithConnectionTimeout(d time.Duration) Configurer {
	return func(c *Config) { c.ConnectionTimeout = d }
}

// WithMaxTransactionRetryTime bounds managed-transaction retry.
func WithMaxTransactionRetryTime(d time.Duration) Configurer {
	return func(c *Config) { c.MaxTransactionRetryTime = d }
}

// WithFetchSize sets the driver-wide default batch size for PULL; sessions
// may override it via SessionConfig.FetchSize.
func WithFetchSize(n int) Configurer {
	return func(c *Config) { c.FetchSize = n }
}

// WithUserAgent overrides the default "<driver-name>/<version>" agent
// string sent in HELLO.
func WithUserAgent(agent string) Configurer {
	return func(c *Config) { c.UserAgent = agent }
}

// WithResolver installs a custom seed→addresses expansion used when every
// known router has been forgotten (spec.md §6 "resolver").
func WithResolver(resolver func(seed string) []string) Configurer {
	return func(c *Config) { c.Resolver = resolver }
}

// WithLogging installs a Logger at the given level (spec.md §6 "logging:
// {level, sink}"); sink defaults to os.Stderr when w is nil.
func WithLogging(level log.Level, w io.Writer) Configurer {
	return func(c *Config) {
		if w == nil {
			w = os.Stderr
		}
		c.Logger = log.NewZapLogger(level, w)
	}
}

// WithTrust selects a TLS trust strategy explicitly; mixing this with a
// URL scheme that already fixes trust (bolt+s/+ssc, neo4j+s/+ssc) is a
// ClientError, surfaced by NewDriver.
func WithTrust(strategy trust.Strategy, customCAPaths ...string) Configurer {
	return func(c *Config) {
		c.Trust = strategy
		c.TrustedCertificatePaths = customCAPaths
		c.trustExplicit = true
	}
}

// WithKnownHostsFile enables certificate-fingerprint pinning against path
// (spec.md §6 "Persisted state").
func WithKnownHostsFile(path string) Configurer {
	return func(c *Config) { c.KnownHostsPath = path }
}

// yamlConfig mirrors Config's externally-configurable fields for
// LoadConfigYAML; duration fields are read as milliseconds, per spec.md
// §6's `maxConnectionLifetime`/etc being specified in ms.
type yamlConfig struct {
	Encrypted                    bool     `yaml:"encrypted"`
	Trust                        string   `yaml:"trust"`
	TrustedCertificates          []string `yaml:"trustedCertificates"`
	MaxConnectionPoolSize        int      `yaml:"maxConnectionPoolSize"`
	MaxConnectionLifetimeMs      int64    `yaml:"maxConnectionLifetime"`
	ConnectionAcquisitionTimeoutMs int64  `yaml:"connectionAcquisitionTimeout"`
	ConnectionTimeoutMs          int64    `yaml:"connectionTimeout"`
	MaxTransactionRetryTimeMs    int64    `yaml:"maxTransactionRetryTime"`
	UserAgent                    string   `yaml:"userAgent"`
	Logging                      struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfigYAML reads a YAML document in the shape spec.md §6 describes
// and returns the resulting Config. NewDriver does not take a *Config
// directly; it only accepts Configurers.
func LoadConfigYAML(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("graphbolt: reading config: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return nil, fmt.Errorf("graphbolt: parsing config yaml: %w", err)
	}

	cfg := defaultConfig()
	cfg.Encrypted = yc.Encrypted
	if yc.Trust != "" {
		strategy, err := parseTrustString(yc.Trust)
		if err != nil {
			return nil, err
		}
		cfg.Trust = strategy
	}
	cfg.TrustedCertificatePaths = yc.TrustedCertificates
	if yc.MaxConnectionPoolSize != 0 {
		cfg.MaxConnectionPoolSize = yc.MaxConnectionPoolSize
	}
	if yc.MaxConnectionLifetimeMs != 0 {
		cfg.MaxConnectionLifetime = time.Duration(yc.MaxConnectionLifetimeMs) * time.Millisecond
	}
	if yc.ConnectionAcquisitionTimeoutMs != 0 {
		cfg.ConnectionAcquisitionTimeout = time.Duration(yc.ConnectionAcquisitionTimeoutMs) * time.Millisecond
	}
	if yc.ConnectionTimeoutMs != 0 {
		cfg.ConnectionTimeout = time.Duration(yc.ConnectionTimeoutMs) * time.Millisecond
	}
	if yc.MaxTransactionRetryTimeMs != 0 {
		cfg.MaxTransactionRetryTime = time.Duration(yc.MaxTransactionRetryTimeMs) * time.Millisecond
	}
	if yc.UserAgent != "" {
		cfg.UserAgent = yc.UserAgent
	}
	if yc.Logging.Level != "" {
		cfg.Logger = log.NewZapLogger(log.ParseLevel(yc.Logging.Level), os.Stderr)
	}
	return cfg, nil
}

func parseTrustString(s string) (trust.Strategy, error) {
	switch s {
	case "TRUST_SYSTEM_CA_SIGNED_CERTIFICATES":
		return trust.TrustSystemCA, nil
	case "TRUST_CUSTOM_CA_SIGNED_CERTIFICATES":
		return trust.TrustCustomCA, nil
	case "TRUST_ALL_CERTIFICATES":
		return trust.TrustAllCertificates, nil
	default:
		return 0, fmt.Errorf("graphbolt: unknown trust strategy %q", s)
	}
}

// resolveTrust reconciles the URL scheme's fixed trust posture (if any)
// with explicit config, erroring on conflicting combinations (spec.md §6
// "mixing URL and config is a ClientError").
func resolveTrust(cfg *Config, urlTrust urlutil.TrustMode) (trust.Strategy, error) {
	if urlTrust == urlutil.TrustNone {
		return cfg.Trust, nil
	}
	fixed := trust.TrustSystemCA
	if urlTrust == urlutil.TrustAnyCert {
		fixed = trust.TrustAllCertificates
	}
	if cfg.trustExplicit && cfg.Trust != fixed {
		return 0, &UsageError{Message: "the URL scheme already fixes a TLS trust strategy; it cannot be combined with an explicit, conflicting WithTrust option"}
	}
	return fixed, nil
}
