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

package bolt

import (
	"io"

	"github.com/graphbolt/driver/graphbolt/internal/packstream"
	"github.com/graphbolt/driver/graphbolt/log"
)

// outgoing turns client messages into PackStream-encoded, chunked bytes
// queued up for a single flush, matching the teacher's split between a
// Packer (value encoding) and a chunker (framing).
type outgoing struct {
	chunker    *chunker
	packer     packstream.Packer
	onErr      func(error)
	boltLogger log.BoltLogger
}

func (o *outgoing) appendMessage(sig byte, fields ...any) {
	o.packer.Reset()
	o.packer.PackStructHeader(len(fields), sig)
	for _, f := range fields {
		if err := o.packer.PackValue(f); err != nil {
			if o.onErr != nil {
				o.onErr(err)
			}
			return
		}
	}
	msg := make([]byte, len(o.packer.Buf))
	copy(msg, o.packer.Buf)
	o.chunker.writeMessage(msg)
	if o.boltLogger != nil {
		o.boltLogger.LogClientMessage("", clientMessageName(sig), fields...)
	}
}

// clientMessageName maps a request struct signature to the name it is
// known by on the wire, for BoltLogger tracing.
func clientMessageName(sig byte) string {
	switch sig {
	case packstream.SigHello:
		return "HELLO"
	case packstream.SigLogon:
		return "LOGON"
	case packstream.SigGoodbye:
		return "GOODBYE"
	case packstream.SigReset:
		return "RESET"
	case packstream.SigRun:
		return "RUN"
	case packstream.SigDiscard:
		return "DISCARD"
	case packstream.SigPull:
		return "PULL"
	case packstream.SigBegin:
		return "BEGIN"
	case packstream.SigCommit:
		return "COMMIT"
	case packstream.SigRollback:
		return "ROLLBACK"
	case packstream.SigRoute:
		return "ROUTE"
	default:
		return "UNKNOWN"
	}
}

func (o *outgoing) send(w io.Writer) error {
	return o.chunker.flush(w)
}

func (o *outgoing) isEmpty() bool {
	return o.chunker.isEmpty()
}
