// Package reembed provides the batch embedding job: it selects service
// records that need a vector, composes their text, embeds them in
// concurrent batches and stores the results.
//
// This package supports bounded per-batch concurrency, pacing between
// batches, retry with exponential backoff for transient provider errors,
// a failure ledger, checkpoints after every batch and progress reporting.
package reembed
