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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoAuth(t *testing.T) {
	assert.Equal(t, AuthToken{"scheme": "none"}, NoAuth())
}

func TestBasicAuthWithoutRealm(t *testing.T) {
	token := BasicAuth("neo4j", "secret", "")
	assert.Equal(t, "basic", token["scheme"])
	assert.Equal(t, "neo4j", token["principal"])
	assert.Equal(t, "secret", token["credentials"])
	_, hasRealm := token["realm"]
	assert.False(t, hasRealm)
}

func TestBasicAuthWithRealm(t *testing.T) {
	token := BasicAuth("neo4j", "secret", "ldap")
	assert.Equal(t, "ldap", token["realm"])
}

func TestBearerAuth(t *testing.T) {
	token := BearerAuth("jwt-token")
	assert.Equal(t, "bearer", token["scheme"])
	assert.Equal(t, "jwt-token", token["credentials"])
}

func TestCustomAuthOmitsEmptyFields(t *testing.T) {
	token := CustomAuth("custom-scheme", "principal", "creds", "", nil)
	_, hasRealm := token["realm"]
	assert.False(t, hasRealm)
	_, hasParams := token["parameters"]
	assert.False(t, hasParams)
}

func TestCustomAuthIncludesRealmAndParameters(t *testing.T) {
	params := map[string]any{"region": "us"}
	token := CustomAuth("custom-scheme", "principal", "creds", "realm", params)
	assert.Equal(t, "realm", token["realm"])
	assert.Equal(t, params, token["parameters"])
}
