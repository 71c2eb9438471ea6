package bundle

import (
	"archive/zip"
	"bytes"
	"context"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/cataloger/internal/book"
)

// testJPEG renders a gradient image so the encoded payload comfortably
// clears the minimum size check.
func testJPEG(t *testing.T) []byte {
	t.Helper()

	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	require.Greater(t, buf.Len(), minImageBytes)
	return buf.Bytes()
}

func zipEntries(t *testing.T, data []byte) map[string][]byte {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string][]byte)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		var buf bytes.Buffer
		_, err = buf.ReadFrom(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = buf.Bytes()
	}
	return entries
}

func TestImageZip(t *testing.T) {
	jpeg := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpeg)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	books := []book.Record{
		{Identifier: "9780134190440", ImageURL: srv.URL + "/good.jpg"},
		{Identifier: "0000000000000", ImageURL: srv.URL + "/missing.jpg"},
		{Identifier: "9780321635365"}, // no cover resolved
	}

	p := New()
	data, err := p.ImageZip(context.Background(), books)
	require.NoError(t, err)

	entries := zipEntries(t, data)
	require.Len(t, entries, 1, "failed downloads and coverless records are skipped, never placeholders")
	img, ok := entries["9780134190440.jpg"]
	require.True(t, ok)

	_, err = imaging.Decode(bytes.NewReader(img))
	assert.NoError(t, err, "archived entry should be a decodable JPEG")
}

func TestCombinedZip(t *testing.T) {
	jpeg := testJPEG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(jpeg)
	}))
	t.Cleanup(srv.Close)

	books := []book.Record{{Identifier: "9780134190440", ImageURL: srv.URL + "/cover.jpg"}}
	csvData := []byte("Item Name\nThe Go Programming Language\n")

	p := New()
	data, err := p.CombinedZip(context.Background(), csvData, books)
	require.NoError(t, err)

	entries := zipEntries(t, data)
	require.Len(t, entries, 2)
	assert.Equal(t, csvData, entries["catalog.csv"])
	_, ok := entries["images/9780134190440.jpg"]
	assert.True(t, ok)
}

func TestDownloadRejectsTinyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("nope"))
	}))
	t.Cleanup(srv.Close)

	p := New()
	_, err := p.download(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a usable image")
}

func TestDownloadRejectsHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write(bytes.Repeat([]byte("<html>error page</html>"), 100))
	}))
	t.Cleanup(srv.Close)

	p := New()
	_, err := p.download(context.Background(), srv.URL)
	assert.Error(t, err, "an HTML error page is not a cover no matter its size")
}

func TestDownloadRejectsUndecodableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write(bytes.Repeat([]byte{0xde, 0xad}, 1000))
	}))
	t.Cleanup(srv.Close)

	p := New()
	_, err := p.download(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestImageZipEmptyBatch(t *testing.T) {
	p := New()
	data, err := p.ImageZip(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, zipEntries(t, data), "an empty batch yields a valid empty archive")
}
