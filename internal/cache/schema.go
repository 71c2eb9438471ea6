package cache

// SQL schemas for cache tables, one table per external source.
// All cache tables use "cache_key" as the primary key column and store
// the entry's own TTL so negative results can expire sooner.

// GoogleBooksSchema defines the schema for the Google Books volume cache
const GoogleBooksSchema = `
CREATE TABLE IF NOT EXISTS googlebooks_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL DEFAULT 604800
);

CREATE INDEX IF NOT EXISTS idx_googlebooks_cached_at ON googlebooks_cache(cached_at);
`

// OpenLibrarySchema defines the schema for the Open Library book cache
const OpenLibrarySchema = `
CREATE TABLE IF NOT EXISTS openlibrary_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL DEFAULT 604800
);

CREATE INDEX IF NOT EXISTS idx_openlibrary_cached_at ON openlibrary_cache(cached_at);
`

// ISBNdbSchema defines the schema for the ISBNdb book cache
const ISBNdbSchema = `
CREATE TABLE IF NOT EXISTS isbndb_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL DEFAULT 604800
);

CREATE INDEX IF NOT EXISTS idx_isbndb_cached_at ON isbndb_cache(cached_at);
`

// BookcoverSchema defines the schema for the Bookcover API cover URL cache
const BookcoverSchema = `
CREATE TABLE IF NOT EXISTS bookcover_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL DEFAULT 604800
);

CREATE INDEX IF NOT EXISTS idx_bookcover_cached_at ON bookcover_cache(cached_at);
`

// OpenLibraryCoversSchema defines the schema for the Open Library cover
// reachability cache
const OpenLibraryCoversSchema = `
CREATE TABLE IF NOT EXISTS olcovers_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	ttl_seconds INTEGER NOT NULL DEFAULT 604800
);

CREATE INDEX IF NOT EXISTS idx_olcovers_cached_at ON olcovers_cache(cached_at);
`

// AllSchemas contains all cache table schemas for easy initialization
var AllSchemas = []string{
	GoogleBooksSchema,
	OpenLibrarySchema,
	ISBNdbSchema,
	BookcoverSchema,
	OpenLibraryCoversSchema,
}

// ValidTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidTableNames = map[string]bool{
	"googlebooks_cache": true,
	"openlibrary_cache": true,
	"isbndb_cache":      true,
	"bookcover_cache":   true,
	"olcovers_cache":    true,
}
