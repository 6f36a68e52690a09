// Package upload implements the client-side batch upload pipeline.
//
// Files enter a Session, which keeps an ordered queue of Items, renders a
// preview for each, and fills capture time and camera details in the
// background. Queue changes are pure State transitions applied under the
// session lock, so late metadata can never clobber an item that was removed
// or edited in the meantime.
//
// A Submitter walks the queue in fixed-size batches with a pause between
// batches, uploads each batch concurrently, and records a per-item outcome.
// Items that succeeded are never sent again; calling Submit once more retries
// everything else.
package upload
