// Package bundle downloads resolved cover images and packages them into
// zip archives for download, optionally together with the catalog CSV.
package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/lepinkainen/cataloger/internal/book"
)

const (
	// DefaultConcurrency bounds parallel image downloads. Covers live on
	// different hosts than the lookup APIs, so this is independent of the
	// source rate limiters.
	DefaultConcurrency = 4

	// minImageBytes rejects tiny responses that are error pages, not covers.
	minImageBytes = 1000
)

// Packager downloads cover images and assembles archives.
type Packager struct {
	client      *http.Client
	concurrency int
	logger      *slog.Logger
}

// Option configures a Packager.
type Option func(*Packager)

// WithClient overrides the HTTP client, for tests.
func WithClient(client *http.Client) Option {
	return func(p *Packager) {
		p.client = client
	}
}

// WithConcurrency sets the parallel download limit.
func WithConcurrency(n int) Option {
	return func(p *Packager) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Packager) {
		p.logger = logger
	}
}

// New creates a Packager.
func New(opts ...Option) *Packager {
	p := &Packager{
		client:      &http.Client{Timeout: 15 * time.Second},
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ImageZip downloads every record's resolved cover and returns a zip of
// them, each named <identifier>.jpg. Records without an image URL and
// failed downloads are simply absent from the archive, never placeholders.
func (p *Packager) ImageZip(ctx context.Context, books []book.Record) ([]byte, error) {
	images := p.downloadAll(ctx, books)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i := range books {
		if images[i] == nil {
			continue
		}
		if err := addFile(zw, books[i].Identifier+".jpg", images[i]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize image archive: %w", err)
	}
	return buf.Bytes(), nil
}

// CombinedZip returns a zip holding the catalog CSV plus all downloaded
// covers under images/.
func (p *Packager) CombinedZip(ctx context.Context, csvData []byte, books []book.Record) ([]byte, error) {
	images := p.downloadAll(ctx, books)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	if err := addFile(zw, "catalog.csv", csvData); err != nil {
		return nil, err
	}
	for i := range books {
		if images[i] == nil {
			continue
		}
		if err := addFile(zw, "images/"+books[i].Identifier+".jpg", images[i]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// downloadAll fetches covers with bounded concurrency. The result slice is
// indexed like books; entries without an image or with a failed download
// are nil. Download failures are non-fatal by design: one bad cover never
// sinks the rest of the bundle.
func (p *Packager) downloadAll(ctx context.Context, books []book.Record) [][]byte {
	images := make([][]byte, len(books))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range books {
		if books[i].ImageURL == "" {
			continue
		}
		g.Go(func() error {
			data, err := p.download(ctx, books[i].ImageURL)
			if err != nil {
				p.logger.Debug("Image download failed", "isbn", books[i].Identifier, "url", books[i].ImageURL, "error", err)
				return nil
			}
			images[i] = data
			return nil
		})
	}
	_ = g.Wait()

	return images
}

// download fetches one cover and re-encodes it as JPEG. Decoding through
// imaging doubles as validation: HTML error pages and truncated payloads
// fail here instead of ending up in the archive.
func (p *Packager) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d downloading image", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}

	if len(data) < minImageBytes || strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, fmt.Errorf("response is not a usable image (%d bytes, %s)", len(data), resp.Header.Get("Content-Type"))
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func addFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", name, err)
	}
	return nil
}
