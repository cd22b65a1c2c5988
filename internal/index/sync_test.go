package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/sitedesk/internal/models"
)

func TestSync_MirrorsBothIndexes(t *testing.T) {
	_, _, svc, ix, db := indexerTestEnv(t)
	ctx := context.Background()
	svc.SaveBlogPost(ctx, models.BlogInput{Title: "Go tips", Slug: "go-tips", TagsRaw: "go", Content: "# Go\n\nuse #generics wisely"})
	svc.SavePortfolioItem(ctx, models.PortfolioInput{Title: "Site", URL: "https://site", TagsRaw: models.String("go, web")})

	changes, err := ix.Sync(ctx)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(changes) != 2 {
		t.Errorf("changes = %+v", changes)
	}

	e, _ := db.GetEntry(BlogKey("go-tips"))
	if e == nil || e.Title != "Go tips" || e.Summary == "" {
		t.Errorf("blog entry = %+v", e)
	}
	tags, _ := db.Tags()
	if len(tags) != 2 || tags[0].Tag != "go" || tags[0].Count != 2 {
		t.Errorf("tags = %+v", tags)
	}
	if results, _ := db.Search("wisely", 10); len(results) != 1 {
		t.Errorf("body not searchable: %+v", results)
	}
}

func TestSync_UnchangedIsNoop(t *testing.T) {
	_, _, svc, ix, _ := indexerTestEnv(t)
	ctx := context.Background()
	svc.SaveBlogPost(ctx, models.BlogInput{Title: "T", Slug: "t", Content: "x"})
	_, _ = ix.Sync(ctx)

	changes, err := ix.Sync(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 0 {
		t.Errorf("second sync changed %+v", changes)
	}
}

func TestSync_RemovesDeleted(t *testing.T) {
	_, _, svc, ix, db := indexerTestEnv(t)
	ctx := context.Background()
	svc.SaveBlogPost(ctx, models.BlogInput{Title: "T", Slug: "t", Content: "x"})
	_, _ = ix.Sync(ctx)

	svc.DeleteBlogPost(ctx, "t")
	changes, _ := ix.Sync(ctx)
	if len(changes) != 1 || changes[0] != (Change{Kind: "removed", Key: BlogKey("t")}) {
		t.Errorf("changes = %+v", changes)
	}
	if cs, _ := db.GetChecksum(BlogKey("t")); cs != "" {
		t.Error("deleted post still mirrored")
	}
}

func TestSync_CorruptIndexEmptiesMirror(t *testing.T) {
	root, _, svc, ix, db := indexerTestEnv(t)
	ctx := context.Background()
	svc.SaveBlogPost(ctx, models.BlogInput{Title: "T", Slug: "t", Content: "x"})
	_, _ = ix.Sync(ctx)

	_ = os.WriteFile(filepath.Join(root, "data", "blog.json"), []byte("{oops"), 0o644)
	if _, err := ix.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	if cs, _ := db.GetChecksum(BlogKey("t")); cs != "" {
		t.Error("corrupt index should read as empty")
	}
}

func TestSync_DuplicateKeysMirrorFirst(t *testing.T) {
	root, _, _, ix, db := indexerTestEnv(t)
	_ = os.WriteFile(filepath.Join(root, "articles.json"), []byte(`[
  {"title": "First", "url": "https://dup", "tags": []},
  {"title": "Second", "url": "https://dup", "tags": []}
]`), 0o644)

	if _, err := ix.Sync(context.Background()); err != nil {
		t.Fatal(err)
	}
	e, _ := db.GetEntry(PortfolioKey("https://dup"))
	if e == nil || e.Title != "First" {
		t.Errorf("entry = %+v", e)
	}
}
