// Package catalog renders book records into the Square POS catalog import
// CSV format. The exporter is a pure mapping: one record in, one row out,
// in input order, failed lookups included.
package catalog

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/lepinkainen/cataloger/internal/book"
)

// Columns builds the full Square import header list. The enable, quantity,
// stock alert and price columns are named per store location, so the
// location string is part of the schema.
func Columns(location string) []string {
	return []string{
		"Token",
		"Item Name",
		"Customer-facing Name",
		"Variation Name",
		"SKU",
		"Description",
		"Categories",
		"Reporting Category",
		"SEO Title",
		"SEO Description",
		"Permalink",
		"GTIN",
		"Square Online Item Visibility",
		"Item Type",
		"Weight (lb)",
		"Social Media Link Title",
		"Social Media Link Description",
		"Shipping Enabled",
		"Self-serve Ordering Enabled",
		"Delivery Enabled",
		"Pickup Enabled",
		"Price",
		"Online Sale Price",
		"Archived",
		"Sellable",
		"Contains Alcohol",
		"Stockable",
		"Skip Detail Screen in POS",
		"Option Name 1",
		"Option Value 1",
		fmt.Sprintf("Enabled %s", location),
		fmt.Sprintf("Current Quantity %s", location),
		fmt.Sprintf("New Quantity %s", location),
		fmt.Sprintf("Stock Alert Enabled %s", location),
		fmt.Sprintf("Stock Alert Count %s", location),
		fmt.Sprintf("Price %s", location),
	}
}

// row maps a single record onto the Square columns. Deterministic column
// order; the identifier lands in both the SKU and GTIN columns; price is
// emitted only when known.
func row(rec *book.Record, location string, columns []string) []string {
	itemName := rec.Title
	if rec.Author != "" && rec.Title != "" {
		itemName = fmt.Sprintf("%s by %s", rec.Title, rec.Author)
	}

	values := map[string]string{
		"Item Name":                     itemName,
		"Variation Name":                "Regular",
		"SKU":                           rec.Identifier,
		"Description":                   rec.Description,
		"Categories":                    "Books",
		"Reporting Category":            "Books",
		"GTIN":                          rec.Identifier,
		"Square Online Item Visibility": "visible",
		"Item Type":                     "Physical good",
		"Shipping Enabled":              "Y",
		"Pickup Enabled":                "Y",
		fmt.Sprintf("Enabled %s", location): "Y",
	}
	if rec.Price != "" {
		values["Price"] = rec.Price
	}

	out := make([]string, len(columns))
	for i, col := range columns {
		out[i] = values[col]
	}
	return out
}

// Write renders all records to w as a Square import CSV. Every record
// produces exactly one row, failed lookups included (their optional
// columns stay blank), so the row count always matches the batch size.
func Write(w io.Writer, books []book.Record, location string) error {
	columns := Columns(location)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := range books {
		if err := cw.Write(row(&books[i], location, columns)); err != nil {
			return fmt.Errorf("failed to write CSV row for %s: %w", books[i].Identifier, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// Bytes renders the catalog CSV in memory, for HTTP download responses.
func Bytes(books []book.Record, location string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, books, location); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
