// Package postcard implements the wire format the plugin ABI uses for every
// request and response payload: LEB128-style unsigned varints, zigzag
// varints for signed integers, and length-prefixed strings/vecs/maps/options
// built on top of them.
package postcard

import "fmt"

// ErrMalformed describes truncated or out-of-range input. The decoders in
// this package report such input through an ok=false result and do not
// return this value. Decode failures are a plugin bug, not a
// caller-actionable condition; callers log and fall back to an empty
// result (spec §7).
var ErrMalformed = fmt.Errorf("postcard: malformed input")

// PutUvarint appends the LEB128 encoding of v to buf and returns the result.
func PutUvarint(buf []byte, v uint64) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// Uvarint reads a LEB128-encoded unsigned integer from buf, returning the
// value and the number of bytes consumed. It returns (0, 0) on truncated
// input.
func Uvarint(buf []byte) (uint64, int) {
	var v uint64
	var shift uint
	for i := 0; i < len(buf); i++ {
		b := buf[i]
		if shift >= 64 {
			return 0, 0
		}
		v |= uint64(b&0x7f) << shift
		if b < 0x80 {
			return v, i + 1
		}
		shift += 7
	}
	return 0, 0
}

// zigzagEncode maps a signed integer to its zigzag unsigned representation:
// (n << 1) ^ (n >> 63).
func zigzagEncode(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

// zigzagDecode inverts zigzagEncode.
func zigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

// PutVarint appends the zigzag+LEB128 encoding of a signed integer.
func PutVarint(buf []byte, n int64) []byte {
	return PutUvarint(buf, zigzagEncode(n))
}

// Varint reads a zigzag+LEB128-encoded signed integer.
func Varint(buf []byte) (int64, int) {
	u, n := Uvarint(buf)
	if n == 0 {
		return 0, 0
	}
	return zigzagDecode(u), n
}
