// Package archive provides core.DocumentArchive implementations for keeping
// rendered proposal documents beyond the run store's retention window: an
// in-process store for tests and demos, a filesystem store for single-node
// deployments, and an S3-compatible object store.
package archive
