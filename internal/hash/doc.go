// Package hash provides hardware-accelerated hashing for data integrity.
//
// S3 uploads carry CRC32-Castagnoli (CRC32C) checksums, which is the
// algorithm the S3 API validates server-side. Snapshot section
// envelopes use CRC32-IEEE instead; see the persistence package.
//
// For one-shot checksums:
//
//	checksum := hash.CRC32C(data)
//
// For streaming checksums:
//
//	h := hash.NewCRC32C()
//	h.Write(chunk1)
//	h.Write(chunk2)
//	checksum := h.Sum32()
package hash
