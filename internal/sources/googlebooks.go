// Package sources contains the external metadata and cover image source
// clients used by the lookup waterfalls. Each client owns its rate limiting
// and response caching; the waterfall only sees the common source interfaces.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/cataloger/internal/book"
	"github.com/lepinkainen/cataloger/internal/cache"
	apierrors "github.com/lepinkainen/cataloger/internal/errors"
	"github.com/lepinkainen/cataloger/internal/ratelimit"
)

const defaultGoogleBooksBaseURL = "https://www.googleapis.com/books/v1"

// GoogleBooks is both a metadata source and a cover image source (via the
// volume's thumbnail links). Both facets share one cached volume lookup, so
// an identifier's metadata and image waterfalls cost one upstream request.
type GoogleBooks struct {
	client  *http.Client
	cache   *cache.DB
	limiter *ratelimit.Limiter
	baseURL string
	apiKey  string
}

// Compile-time checks that GoogleBooks implements both source interfaces.
var (
	_ book.MetadataSource = (*GoogleBooks)(nil)
	_ book.ImageSource    = (*GoogleBooks)(nil)
)

// NewGoogleBooks creates a Google Books client. The API key is optional;
// without it the public quota applies.
func NewGoogleBooks(db *cache.DB, limiter *ratelimit.Limiter, apiKey string) *GoogleBooks {
	return &GoogleBooks{
		client:  &http.Client{Timeout: 10 * time.Second},
		cache:   db,
		limiter: limiter,
		baseURL: defaultGoogleBooksBaseURL,
		apiKey:  apiKey,
	}
}

// Name returns the source name.
func (g *GoogleBooks) Name() string {
	return "googlebooks"
}

// googleVolume matches the Google Books API volume structure.
type googleVolume struct {
	VolumeInfo struct {
		Title       string   `json:"title"`
		Authors     []string `json:"authors"`
		Description string   `json:"description"`
		Categories  []string `json:"categories"`
		PageCount   int      `json:"pageCount"`
		ImageLinks  struct {
			Thumbnail      string `json:"thumbnail"`
			SmallThumbnail string `json:"smallThumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
	SaleInfo struct {
		ListPrice struct {
			Amount float64 `json:"amount"`
		} `json:"listPrice"`
	} `json:"saleInfo"`
}

type googleVolumesResponse struct {
	TotalItems int            `json:"totalItems"`
	Items      []googleVolume `json:"items"`
}

// cachedVolume wraps a volume with a not-found marker for negative caching.
type cachedVolume struct {
	Volume   *googleVolume `json:"volume"`
	NotFound bool          `json:"not_found"`
}

// Lookup fetches book metadata from the Google Books API by ISBN.
func (g *GoogleBooks) Lookup(ctx context.Context, isbn string) (*book.Metadata, error) {
	vol, err := g.volume(ctx, isbn)
	if err != nil {
		return nil, err
	}
	if vol.NotFound {
		return nil, nil
	}

	info := vol.Volume.VolumeInfo
	meta := &book.Metadata{
		Title:       info.Title,
		Authors:     info.Authors,
		Description: info.Description,
		Genres:      info.Categories,
		PageCount:   info.PageCount,
	}
	if amount := vol.Volume.SaleInfo.ListPrice.Amount; amount > 0 {
		meta.Price = fmt.Sprintf("%.2f", amount)
	}
	return meta, nil
}

// Resolve returns the volume's thumbnail URL, upgraded to a larger zoom
// level when possible.
func (g *GoogleBooks) Resolve(ctx context.Context, isbn string) (string, error) {
	vol, err := g.volume(ctx, isbn)
	if err != nil {
		return "", err
	}
	if vol.NotFound {
		return "", nil
	}

	links := vol.Volume.VolumeInfo.ImageLinks
	thumb := links.Thumbnail
	if thumb == "" {
		thumb = links.SmallThumbnail
	}
	if thumb == "" {
		return "", nil
	}
	// The thumbnail endpoint serves a bigger image at zoom=3.
	return strings.Replace(thumb, "zoom=1", "zoom=3", 1), nil
}

// volume returns the cached volume for an ISBN, fetching it on miss.
func (g *GoogleBooks) volume(ctx context.Context, isbn string) (*cachedVolume, error) {
	cached, _, err := cache.GetOrFetchWithTTL(g.cache, "googlebooks_cache", isbn,
		func() (*cachedVolume, error) {
			return g.fetchVolume(ctx, isbn)
		},
		cache.SelectNegativeTTL(func(v *cachedVolume) bool {
			return v.NotFound
		}))
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func (g *GoogleBooks) fetchVolume(ctx context.Context, isbn string) (*cachedVolume, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	url := fmt.Sprintf("%s/volumes?q=isbn:%s", g.baseURL, isbn)
	if g.apiKey != "" {
		url = fmt.Sprintf("%s&key=%s", url, g.apiKey)
	}

	slog.Debug("Fetching volume from Google Books", "isbn", isbn)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google Books API request failed for ISBN %s: %w", isbn, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, apierrors.NewRateLimitErrorWithRetry("googlebooks",
			fmt.Sprintf("google Books API rate limited for ISBN %s", isbn), retryAfter(resp))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google Books API returned status %d for ISBN %s", resp.StatusCode, isbn)
	}

	var result googleVolumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode Google Books response for ISBN %s: %w", isbn, err)
	}

	if result.TotalItems == 0 || len(result.Items) == 0 {
		return &cachedVolume{NotFound: true}, nil
	}

	return &cachedVolume{Volume: &result.Items[0]}, nil
}
