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

// AuthToken is the {scheme, principal, credentials, realm?, parameters?}
// map carried in HELLO/LOGON (spec.md §4.3 "Authentication"). It is sent
// to the server as-is, so callers that need a scheme this package doesn't
// build a helper for can still construct one by hand.
type AuthToken map[string]any

// NoAuth builds the "none" scheme token, for servers with authentication
// disabled.
func NoAuth() AuthToken {
	return AuthToken{"scheme": "none"}
}

// BasicAuth builds the "basic" scheme token. realm is optional; pass "" to
// omit it.
func BasicAuth(username, password, realm string) AuthToken {
	token := AuthToken{
		"scheme":      "basic",
		"principal":   username,
		"credentials": password,
	}
	if realm != "" {
		token["realm"] = realm
	}
	return token
}

// KerberosAuth builds the "kerberos" scheme token from a base64-encoded
// ticket.
func KerberosAuth(ticket string) AuthToken {
	return AuthToken{"scheme": "kerberos", "principal": "", "credentials": ticket}
}

// BearerAuth builds a token-based scheme, used for single sign-on
// providers (spec.md §4.3 "custom" scheme values).
func BearerAuth(token string) AuthToken {
	return AuthToken{"scheme": "bearer", "credentials": token}
}

// CustomAuth builds an arbitrary scheme token with optional realm and
// parameters, for auth providers the built-in helpers don't cover.
func CustomAuth(scheme, principal, credentials, realm string, parameters map[string]any) AuthToken {
	token := AuthToken{
		"scheme":      scheme,
		"principal":   principal,
		"credentials": credentials,
	}
	if realm != "" {
		token["realm"] = realm
	}
	if len(parameters) > 0 {
		token["parameters"] = parameters
	}
	return token
}
