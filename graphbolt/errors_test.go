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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbolt/driver/graphbolt/db"
)

func TestWrapErrorDatabaseUnavailable(t *testing.T) {
	wire := &db.WireError{Code: "Neo.TransientError.General.DatabaseUnavailable", Msg: "down"}
	got := wrapError(wire)
	var connErr *ConnectivityError
	require.ErrorAs(t, got, &connErr)
	assert.Equal(t, wire, connErr.Unwrap())
}

func TestWrapErrorNotALeader(t *testing.T) {
	wire := &db.WireError{Code: "Neo.ClientError.Cluster.NotALeader", Msg: "not a leader"}
	got := wrapError(wire)
	var sessErr *SessionExpiredError
	require.ErrorAs(t, got, &sessErr)
	assert.Equal(t, wire, sessErr.Unwrap())
}

func TestWrapErrorPassesThroughOtherWireErrors(t *testing.T) {
	wire := &db.WireError{Code: "Neo.ClientError.Statement.SyntaxError", Msg: "bad cypher"}
	got := wrapError(wire)
	assert.Same(t, wire, got)
}

func TestWrapErrorNil(t *testing.T) {
	assert.Nil(t, wrapError(nil))
}

func TestWrapErrorNonWireError(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, wrapError(plain))
}

func TestTransactionExecutionLimitErrorMessage(t *testing.T) {
	err := newTransactionExecutionLimit([]error{errors.New("a"), errors.New("b")}, nil)
	assert.Contains(t, err.Error(), "2 attempt")
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, errors.New("b"), err.Unwrap())
}

func TestTransactionExecutionLimitErrorEmpty(t *testing.T) {
	err := newTransactionExecutionLimit(nil, nil)
	assert.Nil(t, err.Unwrap())
	assert.NotEmpty(t, err.Error())
}

func TestCombineAllErrorsNone(t *testing.T) {
	assert.Nil(t, combineAllErrors())
	assert.Nil(t, combineAllErrors(nil, nil))
}

func TestCombineAllErrorsOne(t *testing.T) {
	e := errors.New("solo")
	assert.Equal(t, e, combineAllErrors(nil, e))
}

func TestCombineAllErrorsMultiple(t *testing.T) {
	err := combineAllErrors(errors.New("first"), errors.New("second"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "first")
	assert.Contains(t, err.Error(), "second")
}

func TestConnectivityErrorMessageWithServer(t *testing.T) {
	err := &ConnectivityError{Server: "a:7687", Message: "unreachable"}
	assert.Contains(t, err.Error(), "a:7687")
	assert.Contains(t, err.Error(), "unreachable")
}

func TestUsageErrorMessage(t *testing.T) {
	err := &UsageError{Message: "bad usage"}
	assert.Equal(t, "bad usage", err.Error())
}
