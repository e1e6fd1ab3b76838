package wal

// ============================================================================
// Line Hashing
// Responsibility: compute and render the xxh64 hash of an encoded event
// line: line_hash = xxh64(line_bytes, seed=0), 16 lowercase hex digits.
// ============================================================================

import (
	"encoding/hex"

	"github.com/cespare/xxhash/v2"
)

// lineHash returns the 16-character lowercase hex xxh64 digest of line
// (the encoded event bytes, excluding the trailing newline).
func lineHash(line []byte) string {
	sum := xxhash.Sum64(line)
	var buf [8]byte
	buf[0] = byte(sum >> 56)
	buf[1] = byte(sum >> 48)
	buf[2] = byte(sum >> 40)
	buf[3] = byte(sum >> 32)
	buf[4] = byte(sum >> 24)
	buf[5] = byte(sum >> 16)
	buf[6] = byte(sum >> 8)
	buf[7] = byte(sum)
	return hex.EncodeToString(buf[:])
}
