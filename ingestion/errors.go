package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a record store is not provided.
	ErrStoreRequired = errors.New("record store required")

	// ErrPipelineRequired is returned when an importer is built without a pipeline.
	ErrPipelineRequired = errors.New("pipeline required")

	// ErrInvalidDocument is returned when an import file is neither a
	// {"services": [...]} object nor a bare array of records.
	ErrInvalidDocument = errors.New("invalid import document")
)
