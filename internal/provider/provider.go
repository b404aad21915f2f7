// Package provider wraps the external services the menu pipeline talks to:
// the image search API, the ordered chain of LLM providers, and a plain
// HTTP fetcher for the image proxy.
package provider

import "context"

// SearchResult is the first image hit for a query. URL is empty when the
// search returned nothing usable.
type SearchResult struct {
	Query string
	URL   string
	Field string // which result field the URL came from, e.g. "link"
}

// ImageSearcher is the interface for image search backends.
type ImageSearcher interface {
	// SearchImage returns the best image URL for a query. A query with no
	// results is not an error.
	SearchImage(ctx context.Context, query string) (*SearchResult, error)

	// Name returns a human-readable name for the provider.
	Name() string
}
