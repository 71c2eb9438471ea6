// Package book defines the core book record model and the interfaces
// implemented by external metadata and cover image sources.
package book

// Record represents the lookup result for a single identifier.
// A record with an empty Errors list always has at least Title set;
// a failed record keeps whatever partial fields a fallback source supplied.
type Record struct {
	Identifier  string   `json:"identifier"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	Genres      []string `json:"genres"`
	PageCount   int      `json:"page_count"`
	Price       string   `json:"price"`
	ImageURL    string   `json:"image_url"`
	SourceUsed  string   `json:"source_used"`
	ImageSource string   `json:"image_source"`
	Errors      []string `json:"errors"`
}

// Found reports whether the lookup succeeded for this record.
func (r *Record) Found() bool {
	return len(r.Errors) == 0
}

// Metadata contains book metadata extracted from a single external source.
// Records are never assembled from more than one metadata source, so the
// fields here map one-to-one onto Record fields.
type Metadata struct {
	Title       string
	Authors     []string
	Description string
	Genres      []string
	PageCount   int
	Price       string
}

// Usable reports whether the metadata is sufficient to satisfy a lookup.
// The waterfall accepts the first source whose result has a title.
func (m *Metadata) Usable() bool {
	return m != nil && m.Title != ""
}
