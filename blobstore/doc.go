// Package blobstore provides storage abstraction for arena snapshots.
//
// Store is the interface for reading and writing snapshot blobs.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with atomic renames
//   - MemoryStore: In-memory store for testing
//   - s3.Store: Amazon S3 with range reads and parallel uploads
//   - s3.DDBSlotStore: S3 plus DynamoDB for atomic CURRENT updates
//   - minio.Store: MinIO and other S3-compatible systems
//
// # Custom Implementations
//
// Implement the Store interface to support custom storage backends:
//
//	type Store interface {
//	    Open(ctx, name) (Blob, error)            // Open for reading
//	    Create(ctx, name) (WritableBlob, error)  // Create for streaming writes
//	    Put(ctx, name, data) error               // Atomic write
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
