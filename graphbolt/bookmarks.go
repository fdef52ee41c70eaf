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

// Bookmarks is an opaque set of causal-consistency tokens a session
// accumulates across committed writes (spec.md §5 "Bookmarks accumulate
// monotonically in a session across committed writes").
type Bookmarks []string

// BookmarksFromRaw wraps externally obtained bookmark strings, e.g. ones
// handed back by Session.LastBookmarks on another session.
func BookmarksFromRaw(raw ...string) Bookmarks {
	return cleanupBookmarks(raw)
}

// cleanupBookmarks drops empty strings so a caller's mistake doesn't
// silently become a malformed BEGIN/RUN bookmarks list.
func cleanupBookmarks(bookmarks []string) []string {
	cleaned := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b != "" {
			cleaned = append(cleaned, b)
		}
	}
	return cleaned
}
