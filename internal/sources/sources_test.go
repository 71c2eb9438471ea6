package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/cataloger/internal/ratelimit"
)

func TestBuildWithoutISBNdbKey(t *testing.T) {
	metadata, images := Build(nil, ratelimit.NewRegistry(), Options{})

	require.Len(t, metadata, 2)
	assert.Equal(t, "googlebooks", metadata[0].Name())
	assert.Equal(t, "openlibrary", metadata[1].Name())

	require.Len(t, images, 3)
	assert.Equal(t, "bookcover", images[0].Name())
	assert.Equal(t, "googlebooks", images[1].Name())
	assert.Equal(t, "openlibrary", images[2].Name())
}

func TestBuildWithISBNdbKey(t *testing.T) {
	metadata, _ := Build(nil, ratelimit.NewRegistry(), Options{ISBNdbAPIKey: "key"})

	require.Len(t, metadata, 3)
	assert.Equal(t, "isbndb", metadata[0].Name(), "ISBNdb leads the metadata waterfall when configured")
	assert.Equal(t, "googlebooks", metadata[1].Name())
	assert.Equal(t, "openlibrary", metadata[2].Name())
}
