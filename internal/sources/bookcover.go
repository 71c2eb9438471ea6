package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lepinkainen/cataloger/internal/book"
	"github.com/lepinkainen/cataloger/internal/cache"
	"github.com/lepinkainen/cataloger/internal/ratelimit"
)

const defaultBookcoverBaseURL = "https://bookcover.longitood.com"

// Bookcover is a cover image source backed by the Bookcover API, which
// resolves Goodreads cover images by ISBN. Highest quality covers, so it
// sits first in the image waterfall.
type Bookcover struct {
	client  *http.Client
	cache   *cache.DB
	limiter *ratelimit.Limiter
	baseURL string
}

var _ book.ImageSource = (*Bookcover)(nil)

// NewBookcover creates a Bookcover API client.
func NewBookcover(db *cache.DB, limiter *ratelimit.Limiter) *Bookcover {
	return &Bookcover{
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   db,
		limiter: limiter,
		baseURL: defaultBookcoverBaseURL,
	}
}

// Name returns the source name.
func (b *Bookcover) Name() string {
	return "bookcover"
}

type bookcoverResponse struct {
	URL string `json:"url"`
}

// Resolve returns the Goodreads cover URL for an ISBN, or "" if the
// Bookcover API has none.
func (b *Bookcover) Resolve(ctx context.Context, isbn string) (string, error) {
	cached, _, err := cache.GetOrFetchWithTTL(b.cache, "bookcover_cache", isbn,
		func() (*cachedCover, error) {
			return b.fetchCover(ctx, isbn)
		},
		cache.SelectNegativeTTL(func(c *cachedCover) bool {
			return c.NotFound
		}))
	if err != nil {
		return "", err
	}
	if cached.NotFound {
		return "", nil
	}
	return cached.URL, nil
}

func (b *Bookcover) fetchCover(ctx context.Context, isbn string) (*cachedCover, error) {
	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/bookcover?isbn=%s", b.baseURL, isbn)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bookcover API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return &cachedCover{NotFound: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bookcover API returned status %d for ISBN %s", resp.StatusCode, isbn)
	}

	var result bookcoverResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode bookcover response: %w", err)
	}

	if result.URL == "" {
		return &cachedCover{NotFound: true}, nil
	}

	slog.Debug("Bookcover API hit", "isbn", isbn)
	return &cachedCover{URL: result.URL}, nil
}
