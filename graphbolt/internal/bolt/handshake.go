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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/graphbolt/driver/graphbolt/db"
)

// magicPreamble is the four bytes that open every Bolt connection,
// identifying the protocol before any version is agreed (spec.md §4.2
// "Handshake").
var magicPreamble = [4]byte{0x60, 0x60, 0xB0, 0x17}

// supportedVersions lists the versions this driver proposes, most
// preferred first; the handshake only ever sends the first four (zero
// padded if there are fewer), matching the wire format's fixed slot count.
var supportedVersions = []db.ProtocolVersion{
	{Major: 5, Minor: 4},
	{Major: 5, Minor: 0},
	{Major: 4, Minor: 4},
	{Major: 3, Minor: 0},
}

// errNoCommonVersion is returned when the server rejects every proposal
// (replies with 0x00000000), which spec.md §4.2 treats as a protocol error
// that closes the connection.
var errNoCommonVersion = errors.New("bolt: server has no version in common with this driver")

// negotiateVersion performs the handshake over conn and returns the agreed
// protocol version. The caller owns closing conn on error.
func negotiateVersion(conn net.Conn) (db.ProtocolVersion, error) {
	proposals := supportedVersions
	if len(proposals) > 4 {
		proposals = proposals[:4]
	}

	buf := make([]byte, 4+4*4)
	copy(buf[:4], magicPreamble[:])
	for i, v := range proposals {
		binary.BigEndian.PutUint32(buf[4+i*4:], encodeVersion(v))
	}
	if _, err := conn.Write(buf); err != nil {
		return db.ProtocolVersion{}, fmt.Errorf("bolt: writing handshake: %w", err)
	}

	var resp [4]byte
	if _, err := io.ReadFull(conn, resp[:]); err != nil {
		return db.ProtocolVersion{}, fmt.Errorf("bolt: reading handshake response: %w", err)
	}
	agreed := binary.BigEndian.Uint32(resp[:])
	if agreed == 0 {
		return db.ProtocolVersion{}, errNoCommonVersion
	}
	return decodeVersion(agreed), nil
}

// encodeVersion packs a version as the wire expects: minor in the second
// byte from the right, major in the third, both zero elsewhere.
func encodeVersion(v db.ProtocolVersion) uint32 {
	return uint32(v.Minor)<<8 | uint32(v.Major)<<16
}

func decodeVersion(raw uint32) db.ProtocolVersion {
	return db.ProtocolVersion{
		Major: int((raw >> 16) & 0xFF),
		Minor: int((raw >> 8) & 0xFF),
	}
}
