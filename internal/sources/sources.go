package sources

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/lepinkainen/cataloger/internal/book"
	"github.com/lepinkainen/cataloger/internal/cache"
	"github.com/lepinkainen/cataloger/internal/ratelimit"
)

// Options configures the source waterfalls.
type Options struct {
	// ISBNdbAPIKey enables the ISBNdb metadata source when non-empty.
	ISBNdbAPIKey string
	// GoogleBooksAPIKey raises the Google Books quota when non-empty.
	GoogleBooksAPIKey string
}

// Build assembles the metadata and image waterfalls in priority order.
// Adding or reordering sources is a change here, not in the waterfall code.
// Missing credentials degrade to a reduced source list rather than an error.
func Build(db *cache.DB, limiters *ratelimit.Registry, opts Options) ([]book.MetadataSource, []book.ImageSource) {
	google := NewGoogleBooks(db, limiters.Get("googlebooks"), opts.GoogleBooksAPIKey)
	openlib := NewOpenLibrary(db, limiters.Get("openlibrary"))
	bookcover := NewBookcover(db, limiters.Get("bookcover"))

	var metadata []book.MetadataSource
	if opts.ISBNdbAPIKey != "" {
		metadata = append(metadata, NewISBNdb(db, limiters.Get("isbndb"), opts.ISBNdbAPIKey))
	} else {
		slog.Info("ISBNdb API key not configured, skipping ISBNdb source")
	}
	metadata = append(metadata, google, openlib)

	images := []book.ImageSource{bookcover, google, openlib}

	return metadata, images
}

// retryAfter parses an integer Retry-After header, zero when absent or
// malformed.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
