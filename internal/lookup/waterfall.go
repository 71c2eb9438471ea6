package lookup

import (
	"context"
	"log/slog"

	"github.com/lepinkainen/cataloger/internal/book"
	apierrors "github.com/lepinkainen/cataloger/internal/errors"
)

// ErrTagNotFound is the per-record error tag set when every metadata source
// is exhausted without a usable result.
const ErrTagNotFound = "not found"

// fetchMetadata walks the metadata sources in priority order and accepts
// the first result with a usable title. Source errors are absorbed and
// logged; the next source gets its turn. No cross-source merging: the
// winning source supplies the whole record, keeping provenance simple.
func (o *Orchestrator) fetchMetadata(ctx context.Context, isbn string) (*book.Metadata, string) {
	for _, src := range o.metadata {
		meta, err := src.Lookup(ctx, isbn)
		if err != nil {
			if apierrors.IsRateLimitError(err) {
				slog.Warn("Metadata source over quota", "source", src.Name(), "isbn", isbn, "error", err)
			} else {
				slog.Warn("Metadata source failed", "source", src.Name(), "isbn", isbn, "error", err)
			}
			continue
		}
		if meta.Usable() {
			slog.Debug("Metadata source hit", "source", src.Name(), "isbn", isbn)
			return meta, src.Name()
		}
	}
	return nil, ""
}

// resolveImage walks the image sources in priority order and accepts the
// first non-empty cover URL. Same waterfall shape as fetchMetadata with an
// independent source list and success criterion.
func (o *Orchestrator) resolveImage(ctx context.Context, isbn string) (string, string) {
	for _, src := range o.images {
		url, err := src.Resolve(ctx, isbn)
		if err != nil {
			slog.Warn("Image source failed", "source", src.Name(), "isbn", isbn, "error", err)
			continue
		}
		if url != "" {
			slog.Debug("Image source hit", "source", src.Name(), "isbn", isbn)
			return url, src.Name()
		}
	}
	return "", ""
}
