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
	"time"

	"github.com/graphbolt/driver/graphbolt/internal/retry"
)

// sessionRetryState adapts internal/retry.State to the session runner: it
// delegates the backoff/budget timing to State but also keeps the full
// per-attempt error history, since TransactionExecutionLimitError (spec.md
// §4.7) reports every attempt, not just the last one.
type sessionRetryState struct {
	state  *retry.State
	errs   []error
	causes []error
}

func newRetryState(budget time.Duration) *sessionRetryState {
	return &sessionRetryState{state: retry.NewState(budget, isRetriable)}
}

func (s *sessionRetryState) Continue(ctx context.Context) bool {
	return s.state.Continue(ctx)
}

func (s *sessionRetryState) OnFailure(err error) {
	s.state.OnFailure(err)
	s.errs = append(s.errs, err)
	if cause := unwrapCause(err); cause != nil {
		s.causes = append(s.causes, cause)
	}
}

func (s *sessionRetryState) Attempts() int { return s.state.Attempts() }

func unwrapCause(err error) error {
	type unwrapper interface{ Unwrap() error }
	if u, ok := err.(unwrapper); ok {
		return u.Unwrap()
	}
	return nil
}

// retryExhausted builds the terminal error once a retry loop's budget runs
// out: a TransactionExecutionLimitError if at least one attempt failed with
// a retriable error, otherwise the single non-retriable error as-is.
func retryExhausted(state *sessionRetryState) error {
	if len(state.errs) == 0 {
		return &UsageError{Message: "transaction retry loop ended without any attempt"}
	}
	last := state.errs[len(state.errs)-1]
	if !isRetriable(last) {
		return last
	}
	return newTransactionExecutionLimit(state.errs, state.causes)
}
