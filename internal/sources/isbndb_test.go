package sources

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestISBNdbLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/book/9780134190440", r.URL.Path)
		fmt.Fprint(w, `{
			"book": {
				"title": "The Go Programming Language",
				"isbn13": "9780134190440",
				"pages": 380,
				"msrp": 39.99,
				"synopsis": "The authoritative resource.",
				"authors": ["Alan A. A. Donovan", "Brian W. Kernighan"],
				"subjects": ["Computers", "Subjects"]
			}
		}`)
	}))
	t.Cleanup(srv.Close)

	e := NewISBNdb(nil, nil, "test-key")
	e.baseURL = srv.URL

	meta, err := e.Lookup(context.Background(), "9780134190440")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "The Go Programming Language", meta.Title)
	assert.Equal(t, "The authoritative resource.", meta.Description)
	assert.Equal(t, 380, meta.PageCount)
	assert.Equal(t, "39.99", meta.Price)
	assert.Equal(t, []string{"Computers"}, meta.Genres, "the placeholder subject should be filtered out")
}

func TestISBNdbLookupWithoutAPIKey(t *testing.T) {
	e := NewISBNdb(nil, nil, "")
	e.baseURL = "http://never-called.invalid"

	meta, err := e.Lookup(context.Background(), "9780134190440")
	require.NoError(t, err)
	assert.Nil(t, meta, "without an API key the source reports not found")
}

func TestISBNdbLookupNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	e := NewISBNdb(nil, nil, "test-key")
	e.baseURL = srv.URL

	meta, err := e.Lookup(context.Background(), "0000000000000")
	require.NoError(t, err)
	assert.Nil(t, meta)
}

func TestISBNdbLookupUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	e := NewISBNdb(nil, nil, "expired-key")
	e.baseURL = srv.URL

	_, err := e.Lookup(context.Background(), "9780134190440")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid or expired")
}

func TestISBNdbLookupOverviewFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"book": {"title": "Some Book", "isbn13": "123", "overview": "An overview."}}`)
	}))
	t.Cleanup(srv.Close)

	e := NewISBNdb(nil, nil, "test-key")
	e.baseURL = srv.URL

	meta, err := e.Lookup(context.Background(), "1234567890123")
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "An overview.", meta.Description)
}
