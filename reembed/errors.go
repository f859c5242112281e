package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrStoreRequired is returned when a record store is not provided.
	ErrStoreRequired = errors.New("record store required")

	// ErrClientRequired is returned when an embedding client is not provided.
	ErrClientRequired = errors.New("embedding client required")

	// ErrInvalidConfig wraps job configuration errors.
	ErrInvalidConfig = errors.New("invalid job config")
)
