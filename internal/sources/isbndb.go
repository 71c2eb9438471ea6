package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lepinkainen/cataloger/internal/book"
	"github.com/lepinkainen/cataloger/internal/cache"
	apierrors "github.com/lepinkainen/cataloger/internal/errors"
	"github.com/lepinkainen/cataloger/internal/ratelimit"
)

const defaultISBNdbBaseURL = "https://api2.isbndb.com"

// ISBNdb is a metadata source backed by the ISBNdb API. It requires an API
// key; the source builder leaves it out of the waterfall when no key is
// configured.
type ISBNdb struct {
	client  *http.Client
	cache   *cache.DB
	limiter *ratelimit.Limiter
	baseURL string
	apiKey  string
}

var _ book.MetadataSource = (*ISBNdb)(nil)

// NewISBNdb creates an ISBNdb client with the given API key.
func NewISBNdb(db *cache.DB, limiter *ratelimit.Limiter, apiKey string) *ISBNdb {
	return &ISBNdb{
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   db,
		limiter: limiter,
		baseURL: defaultISBNdbBaseURL,
		apiKey:  apiKey,
	}
}

// Name returns the source name.
func (e *ISBNdb) Name() string {
	return "isbndb"
}

// isbndbBookResponse matches the ISBNdb API response structure.
type isbndbBookResponse struct {
	Book struct {
		Title    string   `json:"title"`
		ISBN     string   `json:"isbn"`
		ISBN13   string   `json:"isbn13"`
		Pages    *int     `json:"pages"`
		MSRP     *float64 `json:"msrp"`
		Overview string   `json:"overview"`
		Synopsis string   `json:"synopsis"`
		Authors  []string `json:"authors"`
		Subjects []string `json:"subjects"`
	} `json:"book"`
}

type cachedISBNdbBook struct {
	Metadata *book.Metadata `json:"metadata"`
	NotFound bool           `json:"not_found"`
}

// Lookup fetches book metadata from the ISBNdb API by ISBN.
func (e *ISBNdb) Lookup(ctx context.Context, isbn string) (*book.Metadata, error) {
	if e.apiKey == "" {
		return nil, nil
	}

	cached, _, err := cache.GetOrFetchWithTTL(e.cache, "isbndb_cache", isbn,
		func() (*cachedISBNdbBook, error) {
			return e.fetchBook(ctx, isbn)
		},
		cache.SelectNegativeTTL(func(b *cachedISBNdbBook) bool {
			return b.NotFound
		}))
	if err != nil {
		return nil, err
	}
	if cached.NotFound {
		return nil, nil
	}
	return cached.Metadata, nil
}

func (e *ISBNdb) fetchBook(ctx context.Context, isbn string) (*cachedISBNdbBook, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/book/%s", e.baseURL, isbn)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return &cachedISBNdbBook{NotFound: true}, nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("ISBNdb API key invalid or expired")
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apierrors.NewRateLimitErrorWithRetry("isbndb",
			fmt.Sprintf("ISBNdb API rate limited for ISBN %s", isbn), retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result isbndbBookResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	b := result.Book
	if b.Title == "" && b.ISBN == "" && b.ISBN13 == "" {
		return &cachedISBNdbBook{NotFound: true}, nil
	}

	meta := &book.Metadata{
		Title:   b.Title,
		Authors: b.Authors,
	}
	if b.Synopsis != "" {
		meta.Description = b.Synopsis
	} else if b.Overview != "" {
		meta.Description = b.Overview
	}
	if b.Pages != nil && *b.Pages > 0 {
		meta.PageCount = *b.Pages
	}
	if b.MSRP != nil && *b.MSRP > 0 {
		meta.Price = fmt.Sprintf("%.2f", *b.MSRP)
	}
	// Filter out the generic "Subjects" entry the API sometimes returns.
	for _, s := range b.Subjects {
		if s != "" && s != "Subjects" {
			meta.Genres = append(meta.Genres, s)
		}
	}

	return &cachedISBNdbBook{Metadata: meta}, nil
}
