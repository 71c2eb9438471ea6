package book

import "strings"

// NormalizeISBN strips hyphens and spaces from a single ISBN.
func NormalizeISBN(isbn string) string {
	normalized := strings.ReplaceAll(isbn, "-", "")
	normalized = strings.ReplaceAll(normalized, " ", "")
	return normalized
}

// NormalizeISBNs cleans a batch of raw identifier strings: trims whitespace,
// strips hyphens, drops blanks and drops duplicates while preserving
// first-seen order. Checksum validity is not checked - a malformed
// identifier simply fails all sources downstream.
func NormalizeISBNs(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	isbns := make([]string, 0, len(raw))

	for _, r := range raw {
		cleaned := NormalizeISBN(strings.TrimSpace(r))
		if cleaned == "" || seen[cleaned] {
			continue
		}
		seen[cleaned] = true
		isbns = append(isbns, cleaned)
	}

	return isbns
}
