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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTransactionConfigUsesSentinelTimeout(t *testing.T) {
	config := defaultTransactionConfig()
	assert.Equal(t, noTxTimeout, config.Timeout)
	assert.NoError(t, validateTransactionConfig(config))
}

func TestWithTxTimeoutOverridesSentinel(t *testing.T) {
	config := defaultTransactionConfig()
	WithTxTimeout(5 * time.Second)(&config)
	assert.Equal(t, 5*time.Second, config.Timeout)
}

func TestWithTxMetadataSetsMetadata(t *testing.T) {
	config := defaultTransactionConfig()
	meta := map[string]any{"app": "test"}
	WithTxMetadata(meta)(&config)
	assert.Equal(t, meta, config.Metadata)
}

func TestValidateTransactionConfigRejectsNegativeTimeout(t *testing.T) {
	config := TransactionConfig{Timeout: -time.Second}
	err := validateTransactionConfig(config)
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
}

func TestValidateTransactionConfigAllowsSentinel(t *testing.T) {
	config := defaultTransactionConfig()
	assert.NoError(t, validateTransactionConfig(config))
}

func TestTransactionRunAfterDoneStillReachesConnection(t *testing.T) {
	conn := newFakeConn()
	conn.keys = []string{"x"}
	tx := &transaction{conn: conn, txHandle: 1}

	result, err := tx.Run(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)
	keys, err := result.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, keys)
}

func TestTransactionRollbackCallsOnClosedOnce(t *testing.T) {
	conn := newFakeConn()
	var closedCalls int
	tx := &transaction{conn: conn, txHandle: 1, onClosed: func() { closedCalls++ }}

	require.NoError(t, tx.Rollback(context.Background()))
	assert.Equal(t, 1, closedCalls)

	err := tx.Rollback(context.Background())
	var usageErr *UsageError
	require.ErrorAs(t, err, &usageErr)
	assert.Equal(t, 1, closedCalls, "a second Rollback must not re-invoke onClosed")
}
