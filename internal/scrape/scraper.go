// Package scrape fetches live marketplace listings for a search query.
package scrape

import (
	"context"

	"github.com/cassidypignatello/bangun/internal/marketplace"
	"github.com/cassidypignatello/bangun/internal/model"
)

// Scraper fetches raw marketplace listings for a search query. maxResults
// caps the returned slice; implementations may fetch more for filtering.
type Scraper interface {
	Search(ctx context.Context, query string, maxResults int) ([]marketplace.RawListing, error)
	// Source labels decisions built from this scraper's listings.
	Source() model.PriceSource
}
