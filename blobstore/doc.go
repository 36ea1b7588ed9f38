// Package blobstore provides storage abstraction for taggo's snapshot
// objects (index sections and manifests).
//
// BlobStore is the interface for reading and writing named data blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with atomic rename-based writes
//   - MemoryStore: In-memory store for testing
//   - s3.Store: Amazon S3 with multipart uploads and CRC32C checksums
//   - minio.Store: MinIO and other S3-compatible object stores
//
// # Custom Implementations
//
// Implement the BlobStore interface to support custom storage backends:
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for streaming writes
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Put must be atomic: a reader either sees the previous content or the
// new content, never a mix. Snapshot consistency depends on it, as the
// manifest is written last and names the section objects it commits.
package blobstore
