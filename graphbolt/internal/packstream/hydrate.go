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

package packstream

import (
	"fmt"

	"github.com/graphbolt/driver/graphbolt/db"
)

// Hydrate turns a decoded Struct into the graph/temporal type its signature
// names, recursing into nested lists/maps/structs along the way. Field
// count mismatches and unknown signatures are reported exactly as spec.md
// §4.1 requires ("Field counts must match the signature; mismatch is a
// protocol error").
func Hydrate(v any) (any, error) {
	switch val := v.(type) {
	case *Struct:
		return hydrateStruct(val)
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			h, err := Hydrate(e)
			if err != nil {
				return nil, err
			}
			out[i] = h
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			h, err := Hydrate(e)
			if err != nil {
				return nil, err
			}
			out[k] = h
		}
		return out, nil
	default:
		return v, nil
	}
}

func arity(s *Struct, n int) error {
	if len(s.Fields) != n {
		return errStructArity(s.Sig, n, len(s.Fields))
	}
	return nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	i, _ := v.(int64)
	return i
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asStringSlice(v any) []string {
	l, _ := v.([]any)
	out := make([]string, len(l))
	for i, e := range l {
		out[i] = asString(e)
	}
	return out
}

func hydrateStruct(s *Struct) (any, error) {
	switch s.Sig {
	case SigNode:
		if err := arity(s, 4); err != nil {
			// Bolt 5.0 nodes carry 4 fields (id, labels, props, element_id
			// added in 5.x); be lenient and accept either 3 or 4.
			if err2 := arity(s, 3); err2 != nil {
				return nil, err
			}
		}
		props, err := Hydrate(s.Fields[2])
		if err != nil {
			return nil, err
		}
		n := db.Node{
			Id:     asInt(s.Fields[0]),
			Labels: asStringSlice(s.Fields[1]),
			Props:  asMap(props),
		}
		if len(s.Fields) > 3 {
			n.ElementId = asString(s.Fields[3])
		}
		return n, nil

	case SigRelationship:
		if len(s.Fields) != 5 && len(s.Fields) != 8 {
			return nil, errStructArity(s.Sig, 5, len(s.Fields))
		}
		props, err := Hydrate(s.Fields[4])
		if err != nil {
			return nil, err
		}
		r := db.Relationship{
			Id:      asInt(s.Fields[0]),
			StartId: asInt(s.Fields[1]),
			EndId:   asInt(s.Fields[2]),
			Type:    asString(s.Fields[3]),
			Props:   asMap(props),
		}
		if len(s.Fields) == 8 {
			r.ElementId = asString(s.Fields[5])
			r.StartElementId = asString(s.Fields[6])
			r.EndElementId = asString(s.Fields[7])
		}
		return r, nil

	case SigUnboundRelationship:
		if len(s.Fields) != 3 && len(s.Fields) != 4 {
			return nil, errStructArity(s.Sig, 3, len(s.Fields))
		}
		props, err := Hydrate(s.Fields[2])
		if err != nil {
			return nil, err
		}
		return db.UnboundRelationship{
			Id:    asInt(s.Fields[0]),
			Type:  asString(s.Fields[1]),
			Props: asMap(props),
		}, nil

	case SigPath:
		if err := arity(s, 3); err != nil {
			return nil, err
		}
		return hydratePath(s)

	case SigDate:
		if err := arity(s, 1); err != nil {
			return nil, err
		}
		return db.Date{Days: asInt(s.Fields[0])}, nil

	case SigTime:
		if err := arity(s, 2); err != nil {
			return nil, err
		}
		return db.Time{NanosOfDay: asInt(s.Fields[0]), OffsetSeconds: int(asInt(s.Fields[1]))}, nil

	case SigLocalTime:
		if err := arity(s, 1); err != nil {
			return nil, err
		}
		return db.LocalTime{NanosOfDay: asInt(s.Fields[0])}, nil

	case SigDateTimeOffset:
		if err := arity(s, 3); err != nil {
			return nil, err
		}
		return db.DateTime{
			Seconds:       asInt(s.Fields[0]),
			Nanos:         int(asInt(s.Fields[1])),
			OffsetSeconds: int(asInt(s.Fields[2])),
		}, nil

	case SigDateTimeZoneId:
		if err := arity(s, 3); err != nil {
			return nil, err
		}
		return db.DateTime{
			Seconds:  asInt(s.Fields[0]),
			Nanos:    int(asInt(s.Fields[1])),
			ZoneName: asString(s.Fields[2]),
		}, nil

	case SigLocalDateTime:
		if err := arity(s, 2); err != nil {
			return nil, err
		}
		return db.LocalDateTime{Seconds: asInt(s.Fields[0]), Nanos: int(asInt(s.Fields[1]))}, nil

	case SigDuration:
		if err := arity(s, 4); err != nil {
			return nil, err
		}
		return db.Duration{
			Months:  asInt(s.Fields[0]),
			Days:    asInt(s.Fields[1]),
			Seconds: asInt(s.Fields[2]),
			Nanos:   int(asInt(s.Fields[3])),
		}, nil

	case SigPoint2D:
		if err := arity(s, 3); err != nil {
			return nil, err
		}
		x, _ := s.Fields[1].(float64)
		y, _ := s.Fields[2].(float64)
		return db.Point2D{SpatialRefId: uint32(asInt(s.Fields[0])), X: x, Y: y}, nil

	case SigPoint3D:
		if err := arity(s, 4); err != nil {
			return nil, err
		}
		x, _ := s.Fields[1].(float64)
		y, _ := s.Fields[2].(float64)
		z, _ := s.Fields[3].(float64)
		return db.Point3D{SpatialRefId: uint32(asInt(s.Fields[0])), X: x, Y: y, Z: z}, nil

	default:
		return nil, errUnknownSignature(s.Sig)
	}
}

func hydratePath(s *Struct) (db.Path, error) {
	nodesRaw, ok := s.Fields[0].([]any)
	if !ok {
		return db.Path{}, fmt.Errorf("packstream: path nodes field is not a list")
	}
	relsRaw, ok := s.Fields[1].([]any)
	if !ok {
		return db.Path{}, fmt.Errorf("packstream: path relationships field is not a list")
	}
	idsRaw, ok := s.Fields[2].([]any)
	if !ok {
		return db.Path{}, fmt.Errorf("packstream: path sequence field is not a list")
	}

	nodes := make([]db.Node, len(nodesRaw))
	for i, n := range nodesRaw {
		hv, err := Hydrate(n)
		if err != nil {
			return db.Path{}, err
		}
		node, ok := hv.(db.Node)
		if !ok {
			return db.Path{}, fmt.Errorf("packstream: path node entry is not a Node")
		}
		nodes[i] = node
	}

	rels := make([]db.UnboundRelationship, len(relsRaw))
	for i, r := range relsRaw {
		hv, err := Hydrate(r)
		if err != nil {
			return db.Path{}, err
		}
		rel, ok := hv.(db.UnboundRelationship)
		if !ok {
			return db.Path{}, fmt.Errorf("packstream: path relationship entry is not an UnboundRelationship")
		}
		rels[i] = rel
	}

	ids := make([]int64, len(idsRaw))
	for i, id := range idsRaw {
		ids[i] = asInt(id)
	}

	path := db.Path{Nodes: nodes}
	if len(nodes) == 0 {
		return path, nil
	}

	curr := nodes[0]
	segments := make([]db.PathSegment, 0, len(ids)/2)
	boundRels := make([]db.Relationship, 0, len(ids)/2)
	for i := 0; i+1 < len(ids); i += 2 {
		relIdx := ids[i]
		nodeIdx := ids[i+1]

		var next db.Node
		if nodeIdx >= 0 {
			next = nodes[nodeIdx]
		} else {
			next = nodes[-nodeIdx]
		}

		var rel db.Relationship
		if relIdx >= 0 {
			rel = rels[relIdx-1].Bind(curr, next)
		} else {
			rel = rels[-relIdx-1].Bind(next, curr)
		}
		segments = append(segments, db.PathSegment{Start: curr, Rel: rel, End: next})
		boundRels = append(boundRels, rel)
		curr = next
	}

	path.Segments = segments
	path.RelNodes = boundRels
	return path, nil
}
