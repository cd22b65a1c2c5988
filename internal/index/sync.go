package index

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/starford/sitedesk/internal/checksum"
	"github.com/starford/sitedesk/internal/markdown"
	"github.com/starford/sitedesk/internal/models"
	"github.com/starford/sitedesk/internal/project"
	"github.com/starford/sitedesk/internal/storage"
)

// Source lists the authoritative records. *content.Service satisfies it.
type Source interface {
	ListBlogPosts(ctx context.Context) []models.BlogPost
	ListPortfolioItems(ctx context.Context) []models.PortfolioItem
}

// Change describes one mirror mutation made by Sync.
type Change struct {
	Kind string // "indexed" or "removed"
	Key  string
}

// Indexer keeps the mirror in step with the current project.
type Indexer struct {
	mu     sync.Mutex
	db     ContentIndex
	src    Source
	store  storage.Provider
	logger *slog.Logger
}

// NewIndexer creates an Indexer. store must resolve paths against the
// current project root.
func NewIndexer(db ContentIndex, src Source, store storage.Provider, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{db: db, src: src, store: store, logger: logger}
}

// Sync brings the mirror up to date:
//   - new or changed records are upserted
//   - entries no longer present in the JSON indexes are removed
//
// Only the first record per key is mirrored, matching the record the
// repositories act on.
func (ix *Indexer) Sync(ctx context.Context) ([]Change, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	checksums, err := ix.db.AllChecksums()
	if err != nil {
		return nil, err
	}

	var changes []Change
	seen := make(map[string]struct{})
	apply := func(row EntryRow, body string, keywords []string) {
		seen[row.Key] = struct{}{}
		if checksums[row.Key] == row.Checksum {
			return
		}
		if err := ix.db.UpsertEntry(row, body, keywords); err != nil {
			ix.logger.Warn("sync: index failed", slog.String("key", row.Key), slog.String("error", err.Error()))
			return
		}
		ix.logger.Debug("sync: indexed", slog.String("key", row.Key))
		changes = append(changes, Change{Kind: "indexed", Key: row.Key})
	}

	for _, p := range ix.src.ListBlogPosts(ctx) {
		key := BlogKey(p.Slug)
		if _, dup := seen[key]; dup || p.Slug == "" {
			continue
		}
		row, body, keywords := ix.blogEntry(p)
		apply(row, body, keywords)
	}
	for _, it := range ix.src.ListPortfolioItems(ctx) {
		key := PortfolioKey(it.URL)
		if _, dup := seen[key]; dup || it.URL == "" {
			continue
		}
		apply(portfolioEntry(it), it.Summary, nil)
	}

	for k := range checksums {
		if _, ok := seen[k]; ok {
			continue
		}
		if err := ix.db.DeleteEntry(k); err != nil {
			ix.logger.Warn("sync: delete failed", slog.String("key", k), slog.String("error", err.Error()))
			continue
		}
		ix.logger.Debug("sync: removed stale", slog.String("key", k))
		changes = append(changes, Change{Kind: "removed", Key: k})
	}

	return changes, ctx.Err()
}

func (ix *Indexer) blogEntry(p models.BlogPost) (EntryRow, string, []string) {
	mdPath := p.Markdown
	if mdPath == "" {
		mdPath = project.MarkdownPath(p.Slug)
	}
	raw, err := ix.store.Read(mdPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		ix.logger.Warn("sync: read markdown failed", slog.String("path", mdPath), slog.String("error", err.Error()))
	}

	doc := markdown.Parse(raw)
	title := p.Title
	if title == "" {
		title = doc.Title
	}
	summary := p.Summary
	if summary == "" {
		summary = markdown.Excerpt(string(raw), markdown.ExcerptLen)
	}

	return EntryRow{
		Key:       BlogKey(p.Slug),
		Kind:      KindBlog,
		Ref:       p.Slug,
		Title:     title,
		Summary:   summary,
		Date:      p.Date,
		Tags:      p.Tags,
		Checksum:  recordChecksum(p, raw),
		UpdatedAt: time.Now(),
	}, markdown.PlainText([]byte(doc.Body)), doc.Tags
}

func portfolioEntry(it models.PortfolioItem) EntryRow {
	return EntryRow{
		Key:       PortfolioKey(it.URL),
		Kind:      KindPortfolio,
		Ref:       it.URL,
		Title:     it.Title,
		Summary:   it.Summary,
		Date:      it.Date,
		Tags:      it.Tags,
		Checksum:  recordChecksum(it, nil),
		UpdatedAt: time.Now(),
	}
}

func recordChecksum(rec any, body []byte) string {
	data, _ := json.Marshal(rec)
	return checksum.Sum(append(data, body...))
}
