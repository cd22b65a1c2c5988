// Package content implements the blog and portfolio repositories over the
// project's JSON indexes and the service that fronts them.
package content

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/models"
	"github.com/starford/sitedesk/internal/project"
	"github.com/starford/sitedesk/internal/storage"
)

// BlogRepository manages data/blog.json and the Markdown body paired with
// each post.
type BlogRepository struct {
	store storage.Provider
	index *storage.IndexStore[models.BlogPost]
}

// NewBlogRepository creates a BlogRepository on store.
func NewBlogRepository(store storage.Provider) *BlogRepository {
	return &BlogRepository{
		store: store,
		index: storage.NewIndexStore(store, project.BlogIndexPath,
			func(p models.BlogPost) string { return p.Slug }),
	}
}

// Save writes the Markdown body and upserts the index record, fully
// replacing any post with the same slug. Callers must ensure Title and
// Slug are non-empty.
func (r *BlogRepository) Save(_ context.Context, in models.BlogInput) error {
	mdPath := project.MarkdownPath(in.Slug)
	if err := r.store.Write(mdPath, []byte(in.Content)); err != nil {
		return fmt.Errorf("content: write markdown: %w", err)
	}
	post := models.BlogPost{
		Slug:     in.Slug,
		Title:    in.Title,
		Summary:  in.Summary,
		Date:     in.Date,
		Tags:     models.ParseTags(in.TagsRaw),
		Markdown: mdPath,
	}
	if err := r.index.Upsert(in.Slug, post); err != nil {
		return fmt.Errorf("content: save post %s: %w", in.Slug, err)
	}
	return nil
}

// List returns the posts in on-disk order.
func (r *BlogRepository) List(_ context.Context) []models.BlogPost {
	return r.index.Load()
}

// Get returns the first post with slug and its Markdown body. A missing
// body file yields empty content.
func (r *BlogRepository) Get(_ context.Context, slug string) (models.BlogPost, string, error) {
	for _, p := range r.index.Load() {
		if p.Slug != slug {
			continue
		}
		mdPath := p.Markdown
		if mdPath == "" {
			mdPath = project.MarkdownPath(slug)
		}
		data, err := r.store.Read(mdPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return p, "", fmt.Errorf("content: read markdown: %w", err)
		}
		return p, string(data), nil
	}
	return models.BlogPost{}, "", fmt.Errorf("content: post %s: %w", slug, apperr.ErrNotFound)
}

// Delete removes every index record with slug and then the Markdown body.
// Failing to delete the body does not fail the operation.
func (r *BlogRepository) Delete(_ context.Context, slug string) error {
	removed, err := r.index.Remove(slug)
	if err != nil {
		return fmt.Errorf("content: delete post %s: %w", slug, err)
	}
	if !removed {
		return fmt.Errorf("content: post %s: %w", slug, apperr.ErrNotFound)
	}
	_ = r.store.Delete(project.MarkdownPath(slug))
	return nil
}
