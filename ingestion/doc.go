// Package ingestion loads service records into a record store.
//
// The Pipeline writes batches of records and, when configured with
// WithEmbedOnImport, embeds freshly imported records in the background on a
// worker pool. Embedding at import time is best-effort: failures are logged
// and left for the batch embedding job.
//
// The Importer reads a JSON document from disk and feeds it to a Pipeline
// in fixed-size batches, recording progress after every batch so an
// interrupted import resumes where it stopped.
package ingestion
