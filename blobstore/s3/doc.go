// Package s3 provides Amazon S3 implementations of blobstore.BlobStore
// for taggo snapshots.
//
// Store is a plain S3-backed store for single-writer layouts.
// DDBCommitStore layers a DynamoDB commit log on top for atomic
// manifest versioning with concurrent writers. ExpressStore targets
// S3 Express One Zone directory buckets.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	store := s3blob.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "indexes/products/")
//
//	err = idx.SaveSnapshot(ctx, store)
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for large sections
//   - CRC32C upload checksums
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
