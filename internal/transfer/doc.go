// Package transfer moves whole files between the local disk and a drive.
//
// Uploader runs the multipart upload protocol: it checks for a rapid upload
// with the content fingerprints from pkg/proofcode, uploads parts in order,
// refreshes expired part URLs, and completes the file. With a SessionStore it
// records progress in SQLite so an interrupted upload resumes at the first
// unconfirmed part.
//
// Downloader writes to a .partial file, verifies the SHA-1 content hash, and
// renames into place. Manager runs several transfers concurrently.
package transfer
