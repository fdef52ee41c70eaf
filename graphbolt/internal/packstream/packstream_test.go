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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundtrip(t *testing.T, v any) any {
	t.Helper()
	var p Packer
	require.NoError(t, p.PackValue(v))
	var u Unpacker
	u.Reset(p.Buf)
	got, err := u.UnpackValue()
	require.NoError(t, err)
	assert.True(t, u.Done())
	return got
}

func TestPackValueRoundtrip(t *testing.T) {
	cases := []any{
		nil,
		true,
		false,
		int64(0),
		int64(127),
		int64(-16),
		int64(-17),
		int64(128),
		int64(-129),
		int64(32767),
		int64(-32768),
		int64(1 << 40),
		3.14159,
		"",
		"hello",
		strings.Repeat("x", 200),
		[]byte{1, 2, 3},
		[]any{int64(1), "two", nil},
		map[string]any{"a": int64(1), "b": "two"},
	}
	for _, c := range cases {
		got := roundtrip(t, c)
		assert.Equal(t, c, got)
	}
}

func TestPackIntShortestForm(t *testing.T) {
	tests := []struct {
		v       int64
		wantLen int
	}{
		{0, 1},
		{127, 1},
		{-16, 1},
		{-17, 2},   // markerInt8 + 1 byte
		{128, 3},   // markerInt16 + 2 bytes (128 exceeds int8's range)
		{32767, 3}, // markerInt16 + 2 bytes
	}
	for _, tt := range tests {
		var p Packer
		p.PackInt(tt.v)
		assert.Equal(t, tt.wantLen, len(p.Buf), "value %d", tt.v)
	}
}

func TestPackStringShortestForm(t *testing.T) {
	var p Packer
	p.PackString("hi")
	require.Len(t, p.Buf, 3) // tiny-string marker + 2 bytes
	assert.Equal(t, byte(markerTinyString+2), p.Buf[0])
}

func TestUnpackerDecodesNonShortestForm(t *testing.T) {
	// A tiny int (0) re-encoded the long way via Int32 marker must still
	// decode, since decoding accepts any valid encoding.
	buf := []byte{markerInt32, 0, 0, 0, 0}
	var u Unpacker
	u.Reset(buf)
	v, err := u.UnpackValue()
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestUnpackerTruncatedInput(t *testing.T) {
	var u Unpacker
	u.Reset([]byte{markerString8, 5, 'h', 'i'}) // claims 5 bytes, only has 2
	_, err := u.UnpackValue()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindTruncatedInput, de.Kind)
}

func TestUnpackerUnknownMarker(t *testing.T) {
	var u Unpacker
	u.Reset([]byte{0xC5}) // unused marker
	_, err := u.UnpackValue()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindUnknownMarker, de.Kind)
}

func TestUnpackerInvalidUtf8(t *testing.T) {
	var u Unpacker
	u.Reset([]byte{byte(markerTinyString + 1), 0xFF})
	_, err := u.UnpackValue()
	require.Error(t, err)
	var de *DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, KindInvalidUtf8, de.Kind)
}

func TestPackValueUnsupportedType(t *testing.T) {
	var p Packer
	err := p.PackValue(struct{ X int }{1})
	require.Error(t, err)
}

func TestUnpackStructHeader(t *testing.T) {
	var p Packer
	p.PackStructHeader(2, SigNode)
	p.PackInt(1)
	p.PackString("Person")

	var u Unpacker
	u.Reset(p.Buf)
	v, err := u.UnpackValue()
	require.NoError(t, err)
	s, ok := v.(*Struct)
	require.True(t, ok)
	assert.Equal(t, byte(SigNode), s.Sig)
	assert.Equal(t, []any{int64(1), "Person"}, s.Fields)
}

func TestPackerReset(t *testing.T) {
	var p Packer
	p.PackInt(42)
	assert.NotEmpty(t, p.Buf)
	p.Reset()
	assert.Empty(t, p.Buf)
}
