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
	"bufio"
	"fmt"

	"github.com/graphbolt/driver/graphbolt/db"
	"github.com/graphbolt/driver/graphbolt/internal/packstream"
	"github.com/graphbolt/driver/graphbolt/log"
)

// incoming reads and decodes one Bolt response message at a time off a
// buffered reader, dispatching the hydrated value to a responseHandler.
type incoming struct {
	r          *bufio.Reader
	unpacker   packstream.Unpacker
	boltLogger log.BoltLogger
}

func newIncoming(r *bufio.Reader) *incoming {
	return &incoming{r: r}
}

// next reads one full message and dispatches it to h.
func (in *incoming) next(h responseHandler) error {
	raw, err := readMessage(in.r)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		return errEmptyMessage
	}

	in.unpacker.Reset(raw)
	decoded, err := in.unpacker.UnpackValue()
	if err != nil {
		return err
	}
	s, ok := decoded.(*packstream.Struct)
	if !ok {
		if h.onUnknown != nil {
			h.onUnknown(decoded)
		}
		return nil
	}

	switch s.Sig {
	case packstream.SigSuccess:
		if len(s.Fields) != 1 {
			return fmt.Errorf("bolt: SUCCESS expects 1 field, got %d", len(s.Fields))
		}
		hv, err := packstream.Hydrate(s.Fields[0])
		if err != nil {
			return err
		}
		meta, _ := hv.(map[string]any)
		succ := newSuccess(meta)
		if in.boltLogger != nil {
			in.boltLogger.LogServerMessage("", "SUCCESS", meta)
		}
		if h.onSuccess != nil {
			h.onSuccess(succ)
		}
	case packstream.SigRecord:
		if len(s.Fields) != 1 {
			return fmt.Errorf("bolt: RECORD expects 1 field, got %d", len(s.Fields))
		}
		hv, err := packstream.Hydrate(s.Fields[0])
		if err != nil {
			return err
		}
		values, _ := hv.([]any)
		rec := &db.Record{Values: values}
		if in.boltLogger != nil {
			in.boltLogger.LogServerMessage("", "RECORD", values)
		}
		if h.onRecord != nil {
			h.onRecord(rec)
		}
	case packstream.SigFailure:
		if len(s.Fields) != 1 {
			return fmt.Errorf("bolt: FAILURE expects 1 field, got %d", len(s.Fields))
		}
		hv, err := packstream.Hydrate(s.Fields[0])
		if err != nil {
			return err
		}
		meta, _ := hv.(map[string]any)
		code, _ := meta["code"].(string)
		msg, _ := meta["message"].(string)
		if in.boltLogger != nil {
			in.boltLogger.LogServerMessage("", "FAILURE", code, msg)
		}
		if h.onFailure != nil {
			h.onFailure(&db.WireError{Code: code, Msg: msg})
		}
	case packstream.SigIgnored:
		if in.boltLogger != nil {
			in.boltLogger.LogServerMessage("", "IGNORED")
		}
		if h.onIgnored != nil {
			h.onIgnored(&ignored{})
		}
	default:
		if h.onUnknown != nil {
			h.onUnknown(s)
		}
	}
	return nil
}
