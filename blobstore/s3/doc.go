// Package s3 provides an S3 implementation of the blobstore.Store interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("states/"),
//	)
//
//	mgr, err := snapshot.NewManager(store, snapshot.WithSlots(10))
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads with CRC32C validation for large snapshots
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - DDBSlotStore for atomic CURRENT updates with concurrent writers
package s3
