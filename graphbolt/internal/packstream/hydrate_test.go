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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphbolt/driver/graphbolt/db"
)

func TestHydrateNodePre5x(t *testing.T) {
	s := &Struct{Sig: SigNode, Fields: []any{int64(1), []any{"Person"}, map[string]any{"name": "a"}}}
	got, err := Hydrate(s)
	require.NoError(t, err)
	n := got.(db.Node)
	assert.Equal(t, int64(1), n.Id)
	assert.Equal(t, []string{"Person"}, n.Labels)
	assert.Equal(t, "", n.ElementId)
}

func TestHydrateNodeWithElementId(t *testing.T) {
	s := &Struct{Sig: SigNode, Fields: []any{int64(1), []any{"Person"}, map[string]any{}, "4:abc:1"}}
	got, err := Hydrate(s)
	require.NoError(t, err)
	n := got.(db.Node)
	assert.Equal(t, "4:abc:1", n.ElementId)
}

func TestHydrateRelationshipFiveFields(t *testing.T) {
	s := &Struct{Sig: SigRelationship, Fields: []any{int64(1), int64(2), int64(3), "KNOWS", map[string]any{"since": int64(2020)}}}
	got, err := Hydrate(s)
	require.NoError(t, err)
	r := got.(db.Relationship)
	assert.Equal(t, int64(1), r.Id)
	assert.Equal(t, int64(2), r.StartId)
	assert.Equal(t, int64(3), r.EndId)
	assert.Equal(t, "KNOWS", r.Type)
	assert.Equal(t, int64(2020), r.Props["since"])
	assert.Equal(t, "", r.ElementId)
}

func TestHydrateRelationshipEightFields(t *testing.T) {
	s := &Struct{Sig: SigRelationship, Fields: []any{
		int64(1), int64(2), int64(3), "KNOWS", map[string]any{},
		"5:rel:1", "4:node:2", "4:node:3",
	}}
	got, err := Hydrate(s)
	require.NoError(t, err)
	r := got.(db.Relationship)
	assert.Equal(t, "5:rel:1", r.ElementId)
	assert.Equal(t, "4:node:2", r.StartElementId)
	assert.Equal(t, "4:node:3", r.EndElementId)
}

func TestHydrateRelationshipWrongArity(t *testing.T) {
	s := &Struct{Sig: SigRelationship, Fields: []any{int64(1), int64(2), int64(3)}}
	_, err := Hydrate(s)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, KindStructArityMismatch, decErr.Kind)
}

func TestHydrateUnboundRelationship(t *testing.T) {
	s := &Struct{Sig: SigUnboundRelationship, Fields: []any{int64(9), "KNOWS", map[string]any{}}}
	got, err := Hydrate(s)
	require.NoError(t, err)
	u := got.(db.UnboundRelationship)
	assert.Equal(t, int64(9), u.Id)
	assert.Equal(t, "KNOWS", u.Type)
}

func TestHydrateUnknownSignature(t *testing.T) {
	s := &Struct{Sig: 0xAA, Fields: []any{}}
	_, err := Hydrate(s)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.Equal(t, KindUnknownStructSignature, decErr.Kind)
}
