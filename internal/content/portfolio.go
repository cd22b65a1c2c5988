package content

import (
	"context"
	"fmt"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/models"
	"github.com/starford/sitedesk/internal/project"
	"github.com/starford/sitedesk/internal/storage"
)

// PortfolioRepository manages articles.json.
type PortfolioRepository struct {
	index *storage.IndexStore[models.PortfolioItem]
}

// NewPortfolioRepository creates a PortfolioRepository on store.
func NewPortfolioRepository(store storage.Provider) *PortfolioRepository {
	return &PortfolioRepository{
		index: storage.NewIndexStore(store, project.PortfolioIndexPath,
			func(it models.PortfolioItem) string { return it.URL }),
	}
}

// Save upserts the item keyed by URL. An existing item is updated with the
// fields in carries and keeps the others. Callers must ensure Title and URL
// are non-empty.
func (r *PortfolioRepository) Save(_ context.Context, in models.PortfolioInput) error {
	if err := r.index.Merge(in.URL, in.Item(), in.Fields()); err != nil {
		return fmt.Errorf("content: save item %s: %w", in.URL, err)
	}
	return nil
}

// List returns the items in on-disk order.
func (r *PortfolioRepository) List(_ context.Context) []models.PortfolioItem {
	return r.index.Load()
}

// Delete removes every item with url.
func (r *PortfolioRepository) Delete(_ context.Context, url string) error {
	removed, err := r.index.Remove(url)
	if err != nil {
		return fmt.Errorf("content: delete item %s: %w", url, err)
	}
	if !removed {
		return fmt.Errorf("content: item %s: %w", url, apperr.ErrNotFound)
	}
	return nil
}
