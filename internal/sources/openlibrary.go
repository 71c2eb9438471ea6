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

const (
	defaultOpenLibraryBaseURL   = "https://openlibrary.org"
	defaultOpenLibraryCoversURL = "https://covers.openlibrary.org"
)

// OpenLibrary is both a metadata source (books API) and a cover image
// source (covers service). The covers service is a separate host with its
// own cache table, but shares the source's rate limiter.
type OpenLibrary struct {
	client    *http.Client
	cache     *cache.DB
	limiter   *ratelimit.Limiter
	baseURL   string
	coversURL string
}

var (
	_ book.MetadataSource = (*OpenLibrary)(nil)
	_ book.ImageSource    = (*OpenLibrary)(nil)
)

// NewOpenLibrary creates an Open Library client.
func NewOpenLibrary(db *cache.DB, limiter *ratelimit.Limiter) *OpenLibrary {
	return &OpenLibrary{
		client:    &http.Client{Timeout: 10 * time.Second},
		cache:     db,
		limiter:   limiter,
		baseURL:   defaultOpenLibraryBaseURL,
		coversURL: defaultOpenLibraryCoversURL,
	}
}

// Name returns the source name.
func (o *OpenLibrary) Name() string {
	return "openlibrary"
}

// openLibraryBook matches the jscmd=data books API response.
type openLibraryBook struct {
	Title   string `json:"title"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Subjects []struct {
		Name string `json:"name"`
	} `json:"subjects"`
	NumberOfPages int `json:"number_of_pages"`
}

type cachedOLBook struct {
	Book     *openLibraryBook `json:"book"`
	NotFound bool             `json:"not_found"`
}

// Lookup fetches book metadata from the Open Library books API by ISBN.
func (o *OpenLibrary) Lookup(ctx context.Context, isbn string) (*book.Metadata, error) {
	cached, _, err := cache.GetOrFetchWithTTL(o.cache, "openlibrary_cache", isbn,
		func() (*cachedOLBook, error) {
			return o.fetchBook(ctx, isbn)
		},
		cache.SelectNegativeTTL(func(b *cachedOLBook) bool {
			return b.NotFound
		}))
	if err != nil {
		return nil, err
	}
	if cached.NotFound {
		return nil, nil
	}

	ol := cached.Book
	meta := &book.Metadata{
		Title:     ol.Title,
		PageCount: ol.NumberOfPages,
	}
	for _, a := range ol.Authors {
		if a.Name != "" {
			meta.Authors = append(meta.Authors, a.Name)
		}
	}
	for _, s := range ol.Subjects {
		if s.Name != "" {
			meta.Genres = append(meta.Genres, s.Name)
		}
	}
	return meta, nil
}

func (o *OpenLibrary) fetchBook(ctx context.Context, isbn string) (*cachedOLBook, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	// jscmd=data gives title, authors, subjects and page count in one call.
	url := fmt.Sprintf("%s/api/books?bibkeys=ISBN:%s&format=json&jscmd=data", o.baseURL, isbn)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openLibrary API request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openLibrary API returned status %d for ISBN %s", resp.StatusCode, isbn)
	}

	var result map[string]openLibraryBook
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode OpenLibrary response: %w", err)
	}

	olBook, ok := result["ISBN:"+isbn]
	if !ok || olBook.Title == "" {
		return &cachedOLBook{NotFound: true}, nil
	}

	return &cachedOLBook{Book: &olBook}, nil
}

// cachedCover records whether the covers service has an image for an ISBN.
type cachedCover struct {
	URL      string `json:"url"`
	NotFound bool   `json:"not_found"`
}

// Resolve returns the Open Library covers URL for an ISBN after verifying
// the covers service actually has an image (default=false makes it 404
// instead of serving a placeholder).
func (o *OpenLibrary) Resolve(ctx context.Context, isbn string) (string, error) {
	cached, _, err := cache.GetOrFetchWithTTL(o.cache, "olcovers_cache", isbn,
		func() (*cachedCover, error) {
			return o.checkCover(ctx, isbn)
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

func (o *OpenLibrary) checkCover(ctx context.Context, isbn string) (*cachedCover, error) {
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/b/isbn/%s-L.jpg", o.coversURL, isbn)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url+"?default=false", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("covers request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("No Open Library cover", "isbn", isbn)
		return &cachedCover{NotFound: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("covers service returned status %d for ISBN %s", resp.StatusCode, isbn)
	}

	return &cachedCover{URL: url}, nil
}
