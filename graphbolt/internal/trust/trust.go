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

// Package trust builds the tls.Config for each of spec.md §6's trust
// strategies and implements the known-hosts file format used to pin
// individual server certificates by fingerprint.
package trust

import (
	"bufio"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Strategy is one of spec.md §6's `trust` config values.
type Strategy int

const (
	TrustSystemCA Strategy = iota
	TrustCustomCA
	TrustAllCertificates
)

// Config builds a *tls.Config for strategy; customCAPaths is only consulted
// for TrustCustomCA, matching `trustedCertificates` in spec.md §6.
func Config(strategy Strategy, customCAPaths []string) (*tls.Config, error) {
	switch strategy {
	case TrustSystemCA:
		return &tls.Config{MinVersion: tls.VersionTLS12}, nil
	case TrustAllCertificates:
		return &tls.Config{MinVersion: tls.VersionTLS12, InsecureSkipVerify: true}, nil
	case TrustCustomCA:
		pool := x509.NewCertPool()
		for _, path := range customCAPaths {
			pem, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("trust: reading CA %s: %w", path, err)
			}
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("trust: no certificates found in %s", path)
			}
		}
		return &tls.Config{MinVersion: tls.VersionTLS12, RootCAs: pool}, nil
	default:
		return nil, fmt.Errorf("trust: unknown strategy %d", strategy)
	}
}

// Fingerprint returns the blake2b-256 hash of a DER-encoded certificate,
// hex-encoded, for known-hosts pinning.
func Fingerprint(derCert []byte) string {
	sum := blake2b.Sum256(derCert)
	return hex.EncodeToString(sum[:])
}

// KnownHosts is an in-memory, file-backed address→fingerprint pin store
// using the line format of spec.md §6 "Persisted state": one record per
// line, `address<SPACE>fingerprint-hex`, `#` comments, blank lines ignored,
// duplicates tolerated (loading keeps the last record for an address, and
// Pin overwrites the in-memory entry).
type KnownHosts struct {
	mu      sync.RWMutex
	path    string
	entries map[string]string
}

// LoadKnownHosts reads path if it exists; a missing file is not an error
// (an empty store is returned, matching "no persisted state by default").
func LoadKnownHosts(path string) (*KnownHosts, error) {
	kh := &KnownHosts{path: path, entries: make(map[string]string)}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return kh, nil
	}
	if err != nil {
		return nil, fmt.Errorf("trust: opening known-hosts %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		kh.entries[fields[0]] = fields[1]
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("trust: reading known-hosts %s: %w", path, err)
	}
	return kh, nil
}

// Lookup returns the pinned fingerprint for address, if any.
func (kh *KnownHosts) Lookup(address string) (string, bool) {
	kh.mu.RLock()
	defer kh.mu.RUnlock()
	fp, ok := kh.entries[address]
	return fp, ok
}

// Pin records (or overwrites) address's fingerprint in memory and appends
// a record to the backing file.
func (kh *KnownHosts) Pin(address, fingerprint string) error {
	kh.mu.Lock()
	kh.entries[address] = fingerprint
	kh.mu.Unlock()

	f, err := os.OpenFile(kh.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("trust: opening known-hosts %s for append: %w", kh.path, err)
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%s %s\n", address, fingerprint)
	return err
}

// ErrFingerprintMismatch is returned by the driver's pinning dialer when a
// server presents a certificate whose fingerprint doesn't match the pinned one.
var ErrFingerprintMismatch = fmt.Errorf("trust: server certificate fingerprint does not match pinned known-hosts entry")
