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
	"fmt"
	"strings"

	"github.com/graphbolt/driver/graphbolt/db"
)

// UsageError indicates the driver was used incorrectly: an invalid
// configuration, a session with two open transactions, an already
// consumed result, and similar programmer mistakes.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// ConnectivityError means the driver could not reach a usable server, or
// lost connectivity partway through. It wraps DatabaseUnavailable server
// errors and routing-table failures; pool acquisition failures have their
// own PoolAcquireTimeoutError/PoolClosedError types and SessionExpired has
// SessionExpiredError.
type ConnectivityError struct {
	Server  string
	Message string
	Cause   error
}

func (e *ConnectivityError) Error() string {
	if e.Server == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (server %s)", e.Message, e.Server)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Cause
}

// PoolAcquireTimeoutError is returned when a connection pool could not
// produce a connection within its acquisition timeout (spec.md §4.4).
type PoolAcquireTimeoutError struct {
	Address string
}

func (e *PoolAcquireTimeoutError) Error() string {
	return fmt.Sprintf("timed out acquiring a connection to %s", e.Address)
}

// PoolClosedError is returned when a session tries to acquire a connection
// from a pool that has been closed.
type PoolClosedError struct {
	Address string
}

func (e *PoolClosedError) Error() string {
	return fmt.Sprintf("connection pool for %s is closed", e.Address)
}

// SessionExpiredError means the server this session was routed to is no
// longer usable for the requested access mode: either it lost leadership
// (NotALeader, remapped per spec.md §4.5) or routing accepted a table
// without writers and a write was attempted against it.
type SessionExpiredError struct {
	Server  string
	Message string
	Cause   error
}

func (e *SessionExpiredError) Error() string {
	if e.Server == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (server %s)", e.Message, e.Server)
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Cause
}

// TransactionExecutionLimitError is the terminal error of a managed
// transaction function whose retry budget (spec.md §4.7
// maxTransactionRetryTime) was exhausted. Errs holds every attempt's error
// in order; Causes holds non-nil underlying causes in the same order so the
// chain stays inspectable instead of collapsing to the last message only.
type TransactionExecutionLimitError struct {
	Errs   []error
	Causes []error
}

func newTransactionExecutionLimit(errs, causes []error) *TransactionExecutionLimitError {
	return &TransactionExecutionLimitError{Errs: errs, Causes: causes}
}

func (e *TransactionExecutionLimitError) Error() string {
	if len(e.Errs) == 0 {
		return "transaction retry time limit exceeded"
	}
	last := e.Errs[len(e.Errs)-1]
	return fmt.Sprintf("transaction retry time limit exceeded after %d attempt(s), last error: %s", len(e.Errs), last)
}

func (e *TransactionExecutionLimitError) Unwrap() error {
	if len(e.Errs) == 0 {
		return nil
	}
	return e.Errs[len(e.Errs)-1]
}

// wrapError normalizes a wire-level error into the public error taxonomy.
// A *db.WireError that is not already a recognized driver error passes
// through unchanged: its Classification()/Category() already carry enough
// information for callers that want to branch on it (spec.md §7).
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	var wireErr *db.WireError
	if errors.As(err, &wireErr) {
		if wireErr.IsDatabaseUnavailable() {
			return &ConnectivityError{Message: "database unavailable", Cause: wireErr}
		}
		if wireErr.IsNotALeader() {
			return &SessionExpiredError{Message: "server is no longer the writer for this database", Cause: wireErr}
		}
		return wireErr
	}
	return err
}

// combineAllErrors joins any number of non-nil errors into one, matching
// the teacher's Close() behavior of best-effort cleanup that still
// surfaces everything that went wrong.
func combineAllErrors(errs ...error) error {
	msgs := make([]string, 0, len(errs))
	var first error
	for _, err := range errs {
		if err == nil {
			continue
		}
		if first == nil {
			first = err
		}
		msgs = append(msgs, err.Error())
	}
	if len(msgs) == 0 {
		return nil
	}
	if len(msgs) == 1 {
		return first
	}
	return errors.New(strings.Join(msgs, "; "))
}
