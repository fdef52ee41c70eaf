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

// Package db holds the wire-level value types shared between the internal
// Bolt connection and the public session/result API. A Value on the wire is
// represented as a plain Go any: nil, bool, int64, float64, []byte, string,
// []any, map[string]any or one of the graph types below. There is no boxed
// variant type; the PackStream codec dispatches on Go's own dynamic typing.
package db

import "strconv"

// Node is a labeled, identity-bearing vertex.
type Node struct {
	Id        int64
	ElementId string
	Labels    []string
	Props     map[string]any
}

// Relationship connects two nodes by identity and carries a type.
type Relationship struct {
	Id             int64
	ElementId      string
	StartId        int64
	StartElementId string
	EndId          int64
	EndElementId   string
	Type           string
	Props          map[string]any
}

// UnboundRelationship lacks endpoint identities; it only appears nested
// inside a Path encoding, where the endpoints are supplied by the segment.
type UnboundRelationship struct {
	Id        int64
	ElementId string
	Type      string
	Props     map[string]any
}

// Bind attaches endpoints to an UnboundRelationship, producing a full
// Relationship for a given traversal direction.
func (u *UnboundRelationship) Bind(start, end Node) Relationship {
	return Relationship{
		Id:             u.Id,
		ElementId:      u.ElementId,
		StartId:        start.Id,
		StartElementId: start.ElementId,
		EndId:          end.Id,
		EndElementId:   end.ElementId,
		Type:           u.Type,
		Props:          u.Props,
	}
}

// PathSegment is one hop of a Path. Start and End follow the direction of
// travel; Rel is bound to its own start and end nodes, so comparing
// Rel.StartId with Start.Id tells which way it points relative to travel.
type PathSegment struct {
	Start Node
	Rel   Relationship
	End   Node
}

// Path is an ordered walk through the graph: a start node, an end node and
// the segments connecting them, in order.
type Path struct {
	Nodes    []Node
	RelNodes []Relationship
	Segments []PathSegment
}

// Point2D is a planar point in a given spatial reference system.
type Point2D struct {
	SpatialRefId uint32
	X, Y         float64
}

// Point3D is a spatial point in a given spatial reference system.
type Point3D struct {
	SpatialRefId uint32
	X, Y, Z      float64
}

// ProtocolVersion is the negotiated Bolt version.
type ProtocolVersion struct {
	Major, Minor int
}

func (v ProtocolVersion) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}
