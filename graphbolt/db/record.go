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

package db

import "fmt"

// Record is one row of a result, a fixed-size ordered tuple with named
// fields shared across all records of the same stream.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value at the given index.
func (r *Record) Get(index int) (any, bool) {
	if index < 0 || index >= len(r.Values) {
		return nil, false
	}
	return r.Values[index], true
}

// GetByName returns the value for the named field, erroring with the
// available field names when the name is unknown.
func (r *Record) GetByName(name string) (any, error) {
	for i, k := range r.Keys {
		if k == name {
			return r.Values[i], nil
		}
	}
	return nil, fmt.Errorf("unknown field %q, available fields: %v", name, r.Keys)
}

// Counters summarizes the graph mutations a query performed.
type Counters struct {
	NodesCreated         int
	NodesDeleted         int
	RelationshipsCreated int
	RelationshipsDeleted int
	PropertiesSet        int
	LabelsAdded          int
	LabelsRemoved        int
	IndexesAdded         int
	IndexesRemoved       int
	ConstraintsAdded     int
	ConstraintsRemoved   int
	SystemUpdates        int
}

// ContainsUpdates reports whether any counter other than SystemUpdates is
// non-zero.
func (c Counters) ContainsUpdates() bool {
	return c.NodesCreated > 0 || c.NodesDeleted > 0 ||
		c.RelationshipsCreated > 0 || c.RelationshipsDeleted > 0 ||
		c.PropertiesSet > 0 || c.LabelsAdded > 0 || c.LabelsRemoved > 0 ||
		c.IndexesAdded > 0 || c.IndexesRemoved > 0 ||
		c.ConstraintsAdded > 0 || c.ConstraintsRemoved > 0
}

// StatementType classifies the kind of statement that was run.
type StatementType int

const (
	StatementTypeUnknown StatementType = iota
	StatementTypeRead
	StatementTypeWrite
	StatementTypeReadWrite
	StatementTypeSchemaWrite
)

// Notification is a server-emitted warning/hint about a query.
type Notification struct {
	Code        string
	Title       string
	Description string
	Severity    string
	Category    string
	Position    *InputPosition
}

// InputPosition locates a notification within the submitted query text.
type InputPosition struct {
	Offset, Line, Column int
}

// ServerInfo describes the server that produced a Summary.
type ServerInfo struct {
	Address         string
	Agent           string
	ProtocolVersion ProtocolVersion
}

// Summary is the terminal metadata of a completed result stream.
type Summary struct {
	Bookmark             string
	Query                string
	Params               map[string]any
	StmtType             StatementType
	Counters             Counters
	Plan                 map[string]any
	Profile              map[string]any
	Notifications        []Notification
	ResultAvailableAfter int64 // ms
	ResultConsumedAfter  int64 // ms
	Database             string
	Agent                string
	Major, Minor         int
	ServerName           string
	TFirst               int64
}

// Server returns summary information about the server that ran the query.
func (s *Summary) Server() ServerInfo {
	return ServerInfo{
		Address:         s.ServerName,
		Agent:           s.Agent,
		ProtocolVersion: ProtocolVersion{Major: s.Major, Minor: s.Minor},
	}
}
