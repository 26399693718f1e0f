// Package vfs provides a versioned storage engine for a hierarchical tree of
// named resources (files and folders) persisted in relational storage.
//
// Every resource lives in up to three projections of the same logical tree:
// the offline projection is the mutable working copy edited by projects, the
// online projection holds what has been published, and the backup projection
// is an append-only archive of historical versions. A Router maps a project id
// to its projection; every read and write is routed through it.
//
// The Store type wires the components together from functional options:
//
//	store, err := vfs.New(
//		vfs.WithConnectionProvider(memory.NewProvider()),
//		vfs.WithIdAllocator(memory.NewIdAllocator()),
//	)
//
// Resource metadata, file content, and properties are written with separate
// storage calls. No operation spans projections atomically; callers that need
// compensation after a partial failure must provide it themselves.
//
// Backends for the ConnectionProvider live under repo/ (memory, postgres).
// File content can optionally be offloaded to a BlobStore from storage/
// (memory, filesystem, S3).
package vfs
