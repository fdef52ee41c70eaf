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

func TestBookmarksFromRawDropsEmpty(t *testing.T) {
	bm := BookmarksFromRaw("bm-1", "", "bm-2")
	assert.Equal(t, Bookmarks{"bm-1", "bm-2"}, bm)
}

func TestBookmarksFromRawEmptyInput(t *testing.T) {
	bm := BookmarksFromRaw()
	assert.Empty(t, bm)
}

func TestCleanupBookmarksAllEmpty(t *testing.T) {
	assert.Empty(t, cleanupBookmarks([]string{"", ""}))
}
