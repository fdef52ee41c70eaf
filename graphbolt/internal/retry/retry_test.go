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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRetriable = errors.New("retriable")
var errFatal = errors.New("fatal")

func alwaysRetry(err error) bool { return err == errRetriable }

func TestContinueFirstAttemptAlwaysProceeds(t *testing.T) {
	s := NewState(time.Second, alwaysRetry)
	assert.True(t, s.Continue(context.Background()))
	assert.Equal(t, 1, s.Attempts())
}

func TestContinueStopsOnNonRetriableError(t *testing.T) {
	s := NewState(time.Second, alwaysRetry)
	require.True(t, s.Continue(context.Background()))
	s.OnFailure(errFatal)
	assert.False(t, s.Continue(context.Background()))
}

func TestContinueRetriesWithinBudget(t *testing.T) {
	s := NewState(time.Second, alwaysRetry)
	s.sleep = func(context.Context, time.Duration) error { return nil } // skip real sleeping
	require.True(t, s.Continue(context.Background()))
	s.OnFailure(errRetriable)
	assert.True(t, s.Continue(context.Background()))
	assert.Equal(t, 2, s.Attempts())
}

func TestContinueStopsWhenBudgetExhausted(t *testing.T) {
	s := NewState(time.Millisecond, alwaysRetry)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	require.True(t, s.Continue(context.Background()))
	time.Sleep(2 * time.Millisecond)
	s.OnFailure(errRetriable)
	assert.False(t, s.Continue(context.Background()))
}

func TestContinueStopsWhenContextCancelled(t *testing.T) {
	s := NewState(time.Minute, alwaysRetry)
	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, s.Continue(ctx))
	s.OnFailure(errRetriable)
	cancel()
	assert.False(t, s.Continue(ctx))
}

func TestNewStateDefaultsBudget(t *testing.T) {
	s := NewState(0, alwaysRetry)
	assert.Equal(t, DefaultMaxRetryTime, s.budget)
}

func TestLastErr(t *testing.T) {
	s := NewState(time.Second, alwaysRetry)
	assert.Nil(t, s.LastErr())
	s.OnFailure(errRetriable)
	assert.Equal(t, errRetriable, s.LastErr())
}

func TestJitteredDelayCappedByRemainingBudget(t *testing.T) {
	s := NewState(time.Second, alwaysRetry)
	s.nextDelay = time.Hour
	d := s.jitteredDelay(100 * time.Millisecond)
	assert.LessOrEqual(t, d, 50*time.Millisecond)
}
