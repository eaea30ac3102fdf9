// Package simpleasset manages shared, reference-counted binary assets
// attached to arbitrary owning records.
//
// An Asset is ingested once (normalized, optionally compressed, written to a
// blob store, then recorded), referenced from any number of owning-record
// fields as an ordered identifier list, and garbage-collected at commit time
// when its reference counter reaches zero. Non-public assets are served
// through time-bucketed HMAC-signed URLs so a fetch needs no live
// authorization check while a leaked link stays valid only for a bounded
// window.
//
// The package is storage- and persistence-agnostic: blob stores implement
// BlobStore (memory, filesystem and S3 backends ship in storage/), asset
// records persist through Repository (memory and Postgres in repo/), and the
// commit-time Collector consumes an explicit ChangeSet so it works with any
// transaction manager able to expose before/after reference lists.
package simpleasset
