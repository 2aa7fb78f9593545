// Copyright 2011 The LevelDB-Go and Pebble Authors. All rights reserved. Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Package crc implements the checksums used by the record wire format: a
// masked CRC-32C (Castagnoli) over header/payload bytes, and a CRC-16
// (CCITT) over a reconstructed blob's leading and trailing partial-block
// runs.
package crc

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// CRC implements the masked CRC-32C algorithm used throughout the record
// format: the checksum is stored "masked", i.e. rotated right by 15 bits
// and offset by maskDelta (see Value). The mask is a one-to-one mapping of
// uint32 values, which Unmask inverts exactly.
type CRC uint32

// New returns the result of adding the bytes of b to the zero CRC.
func New(b []byte) CRC {
	return CRC(0).Update(b)
}

// Update adds the bytes of b to the CRC.
func (c CRC) Update(b []byte) CRC {
	return CRC(crc32.Update(uint32(c), table, b))
}

// Value returns the masked CRC.
func (c CRC) Value() uint32 {
	return uint32(c>>15|c<<17) + maskDelta
}

// maskDelta is the constant from the LevelDB/RocksDB masked-CRC scheme:
// mask(x) = ((x >> 15) | (x << 17)) + maskDelta (mod 2^32).
const maskDelta = 0xa282ead8

// Unmask is the inverse of Value: given a stored (masked) checksum, it
// recovers the CRC of the underlying bytes.
func Unmask(masked uint32) CRC {
	rot := masked - maskDelta
	return CRC(rot>>17 | rot<<15)
}
