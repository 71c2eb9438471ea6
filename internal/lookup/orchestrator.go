// Package lookup drives the metadata and image waterfalls over a batch of
// identifiers with bounded concurrency and per-identifier failure isolation.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/cataloger/internal/book"
)

const (
	// DefaultBatchLimit caps the number of identifiers per batch.
	DefaultBatchLimit = 100
	// DefaultConcurrency is the number of identifiers in flight at once.
	// The per-source rate limiters bound request rate; this bounds how many
	// identifiers compete for those limiters at any moment.
	DefaultConcurrency = 5
)

// Config holds orchestrator tuning knobs.
type Config struct {
	// BatchLimit is the maximum batch size after normalization (default 100).
	BatchLimit int
	// Concurrency is the maximum number of identifiers in flight (default 5).
	Concurrency int
}

// Orchestrator fans a batch of identifiers out to the metadata and image
// waterfalls and reassembles results in input order.
type Orchestrator struct {
	metadata    []book.MetadataSource
	images      []book.ImageSource
	batchLimit  int
	concurrency int
}

// New creates an orchestrator over the given source waterfalls.
func New(metadata []book.MetadataSource, images []book.ImageSource, cfg Config) *Orchestrator {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = DefaultBatchLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	return &Orchestrator{
		metadata:    metadata,
		images:      images,
		batchLimit:  cfg.BatchLimit,
		concurrency: cfg.Concurrency,
	}
}

// BatchLimit returns the configured maximum batch size.
func (o *Orchestrator) BatchLimit() int {
	return o.batchLimit
}

// Lookup normalizes the raw identifiers and processes the batch.
// Output order always matches input order regardless of completion order:
// each result is written to its identifier's slot, never appended.
// One identifier's total failure never affects another's processing.
func (o *Orchestrator) Lookup(ctx context.Context, rawIDs []string) ([]book.Record, error) {
	isbns := book.NormalizeISBNs(rawIDs)
	if len(isbns) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(isbns) > o.batchLimit {
		return nil, fmt.Errorf("%w: %d identifiers (limit %d)", ErrBatchTooLarge, len(isbns), o.batchLimit)
	}

	records := make([]book.Record, len(isbns))

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, isbn := range isbns {
		g.Go(func() error {
			records[i] = o.lookupOne(ctx, isbn)
			return nil
		})
	}
	// Workers never return errors; failures live in each record's Errors.
	_ = g.Wait()

	return records, nil
}

// lookupOne runs the two waterfalls for a single identifier. They are
// independent lookups sharing only the cache and rate limiters, so they
// run concurrently rather than sequentially.
func (o *Orchestrator) lookupOne(ctx context.Context, isbn string) book.Record {
	var (
		meta       *book.Metadata
		metaSource string
		imageURL   string
		imgSource  string
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		meta, metaSource = o.fetchMetadata(ctx, isbn)
	}()
	go func() {
		defer wg.Done()
		imageURL, imgSource = o.resolveImage(ctx, isbn)
	}()
	wg.Wait()

	rec := book.Record{
		Identifier:  isbn,
		ImageURL:    imageURL,
		ImageSource: imgSource,
	}
	if meta != nil {
		rec.Title = meta.Title
		rec.Author = strings.Join(meta.Authors, ", ")
		rec.Description = meta.Description
		rec.Genres = meta.Genres
		rec.PageCount = meta.PageCount
		rec.Price = meta.Price
		rec.SourceUsed = metaSource
	} else {
		rec.Errors = append(rec.Errors, ErrTagNotFound)
	}
	return rec
}
