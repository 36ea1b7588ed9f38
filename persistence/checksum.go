package persistence

import (
	"fmt"
	"hash/crc32"
)

// Sections are checksummed with CRC32 (IEEE polynomial): fast, hardware
// accelerated, and good enough for detecting storage corruption. It is
// not cryptographically secure and does not defend against tampering.

// CalculateChecksum calculates the CRC32 checksum of data.
func CalculateChecksum(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// ChecksumMismatchError is returned when a stored section's checksum
// does not match its payload.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// IsChecksumMismatch reports whether err is a checksum mismatch.
func IsChecksumMismatch(err error) bool {
	_, ok := err.(*ChecksumMismatchError)
	return ok
}
