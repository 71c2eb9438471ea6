package book

import "context"

// MetadataSource fetches book metadata from an external API.
// Each implementation handles its own rate limiting and response caching,
// and transforms the upstream payload into the common Metadata format.
type MetadataSource interface {
	// Name returns the human-readable name of the source (e.g., "googlebooks").
	Name() string

	// Lookup retrieves book metadata for the given ISBN.
	// Returns nil, nil if the book was not found (allows other sources to try).
	// Returns nil, error for actual errors (network issues, bad responses).
	Lookup(ctx context.Context, isbn string) (*Metadata, error)
}

// ImageSource resolves a cover image URL for an ISBN.
// Same contract shape as MetadataSource: each implementation owns its
// rate limiting and caching.
type ImageSource interface {
	// Name returns the human-readable name of the source.
	Name() string

	// Resolve returns a usable cover image URL for the given ISBN.
	// Returns "", nil if the source has no cover for this ISBN.
	Resolve(ctx context.Context, isbn string) (string, error)
}
