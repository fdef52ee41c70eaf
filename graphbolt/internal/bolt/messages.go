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
	"github.com/graphbolt/driver/graphbolt/db"
	idb "github.com/graphbolt/driver/graphbolt/internal/db"
)

// success is the hydrated form of a SUCCESS message; not every field is
// populated by every SUCCESS (spec.md §4.3 lists which fields appear on
// which response).
type success struct {
	fields             []string
	qid                int64
	bookmark           string
	hasMore            bool
	tfirst             int64
	tlast              int64
	stats              map[string]any
	plan               map[string]any
	profile            map[string]any
	notifications      []any
	server             string
	connectionId       string
	dbName             string
	routingTable       *idb.RoutingTable
	configurationHints map[string]any
	raw                map[string]any
}

func newSuccess(meta map[string]any) *success {
	s := &success{hasMore: false, qid: -1, raw: meta}
	if v, ok := meta["fields"].([]any); ok {
		s.fields = make([]string, len(v))
		for i, f := range v {
			s.fields[i], _ = f.(string)
		}
	}
	if v, ok := meta["qid"].(int64); ok {
		s.qid = v
	}
	if v, ok := meta["bookmark"].(string); ok {
		s.bookmark = v
	}
	if v, ok := meta["has_more"].(bool); ok {
		s.hasMore = v
	}
	if v, ok := meta["t_first"].(int64); ok {
		s.tfirst = v
	}
	if v, ok := meta["t_last"].(int64); ok {
		s.tlast = v
	}
	if v, ok := meta["stats"].(map[string]any); ok {
		s.stats = v
	}
	if v, ok := meta["plan"].(map[string]any); ok {
		s.plan = v
	}
	if v, ok := meta["profile"].(map[string]any); ok {
		s.profile = v
	}
	if v, ok := meta["notifications"].([]any); ok {
		s.notifications = v
	}
	if v, ok := meta["server"].(string); ok {
		s.server = v
	}
	if v, ok := meta["connection_id"].(string); ok {
		s.connectionId = v
	}
	if v, ok := meta["db"].(string); ok {
		s.dbName = v
	}
	if v, ok := meta["hints"].(map[string]any); ok {
		s.configurationHints = v
	}
	if rt, ok := meta["rt"].(map[string]any); ok {
		s.routingTable = decodeRoutingTable(rt)
	}
	return s
}

func decodeRoutingTable(m map[string]any) *idb.RoutingTable {
	rt := &idb.RoutingTable{}
	if ttl, ok := m["ttl"].(int64); ok {
		rt.TimeToLive = int(ttl)
	}
	if db, ok := m["db"].(string); ok {
		rt.DatabaseName = db
	}
	servers, _ := m["servers"].([]any)
	for _, raw := range servers {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		role, _ := entry["role"].(string)
		addrsRaw, _ := entry["addresses"].([]any)
		addrs := make([]string, 0, len(addrsRaw))
		for _, a := range addrsRaw {
			if s, ok := a.(string); ok {
				addrs = append(addrs, s)
			}
		}
		switch role {
		case "ROUTE":
			rt.Routers = addrs
		case "READ":
			rt.Readers = addrs
		case "WRITE":
			rt.Writers = addrs
		}
	}
	return rt
}

// summary converts a terminal SUCCESS's metadata into a public db.Summary.
func (s *success) summary() *db.Summary {
	sum := &db.Summary{
		Bookmark:             s.bookmark,
		ResultAvailableAfter: s.tfirst,
		ResultConsumedAfter:  s.tlast,
		Database:             s.dbName,
	}
	if s.stats != nil {
		sum.Counters = decodeCounters(s.stats)
	}
	if t, ok := s.raw["type"].(string); ok {
		sum.StmtType = decodeStatementType(t)
	}
	sum.Plan = s.plan
	sum.Profile = s.profile
	for _, n := range s.notifications {
		if m, ok := n.(map[string]any); ok {
			sum.Notifications = append(sum.Notifications, decodeNotification(m))
		}
	}
	return sum
}

func decodeStatementType(t string) db.StatementType {
	switch t {
	case "r":
		return db.StatementTypeRead
	case "w":
		return db.StatementTypeWrite
	case "rw":
		return db.StatementTypeReadWrite
	case "s":
		return db.StatementTypeSchemaWrite
	default:
		return db.StatementTypeUnknown
	}
}

func decodeCounters(stats map[string]any) db.Counters {
	get := func(key string) int {
		if v, ok := stats[key].(int64); ok {
			return int(v)
		}
		return 0
	}
	return db.Counters{
		NodesCreated:         get("nodes-created"),
		NodesDeleted:         get("nodes-deleted"),
		RelationshipsCreated: get("relationships-created"),
		RelationshipsDeleted: get("relationships-deleted"),
		PropertiesSet:        get("properties-set"),
		LabelsAdded:          get("labels-added"),
		LabelsRemoved:        get("labels-removed"),
		IndexesAdded:         get("indexes-added"),
		IndexesRemoved:       get("indexes-removed"),
		ConstraintsAdded:     get("constraints-added"),
		ConstraintsRemoved:   get("constraints-removed"),
		SystemUpdates:        get("system-updates"),
	}
}

func decodeNotification(m map[string]any) db.Notification {
	str := func(k string) string {
		v, _ := m[k].(string)
		return v
	}
	return db.Notification{
		Code:        str("code"),
		Title:       str("title"),
		Description: str("description"),
		Severity:    str("severity"),
		Category:    str("category"),
	}
}

// ignored is the hydrated form of an IGNORED message.
type ignored struct{}

// responseHandler dispatches one server response message to whichever of
// its callbacks matches. Exactly one of onSuccess/onRecord/onFailure/
// onIgnored/onUnknown runs per response (spec.md §4.3 server→client set).
type responseHandler struct {
	onSuccess func(*success)
	onRecord  func(*db.Record)
	onFailure func(*db.WireError)
	onIgnored func(*ignored)
	onUnknown func(any)
}

func onSuccessNoOp(*success) {}
func onIgnoredNoOp(*ignored) {}
