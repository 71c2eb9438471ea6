package lookup

import "errors"

var (
	// ErrEmptyBatch is returned when no identifiers remain after normalization.
	ErrEmptyBatch = errors.New("no valid identifiers provided")

	// ErrBatchTooLarge is returned when a batch exceeds the configured limit.
	ErrBatchTooLarge = errors.New("too many identifiers in batch")
)
