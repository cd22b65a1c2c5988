package content

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/models"
	"github.com/starford/sitedesk/internal/storage"
	"github.com/starford/sitedesk/internal/testutil"
)

func testPortfolio(t *testing.T) (*PortfolioRepository, string) {
	t.Helper()
	root, pctx := testutil.TestProject(t)
	return NewPortfolioRepository(storage.NewFS(pctx.Root)), root
}

func TestPortfolioSave_RoundTrip(t *testing.T) {
	repo, _ := testPortfolio(t)
	ctx := context.Background()

	err := repo.Save(ctx, models.PortfolioInput{
		Title: "Site", URL: "https://example.com", Date: models.String("2024-02-02"),
		TagsRaw: models.String("design , go"), Cover: models.String("/img.png"), Summary: models.String("s"),
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	items := repo.List(ctx)
	if len(items) != 1 {
		t.Fatalf("len = %d", len(items))
	}
	it := items[0]
	if it.Title != "Site" || it.URL != "https://example.com" || it.Cover != "/img.png" || it.Summary != "s" {
		t.Errorf("item = %#v", it)
	}
	if len(it.Tags) != 2 || it.Tags[0] != "design" || it.Tags[1] != "go" {
		t.Errorf("tags = %v", it.Tags)
	}
}

func TestPortfolioSave_UpdateMergesFields(t *testing.T) {
	repo, _ := testPortfolio(t)
	ctx := context.Background()
	url := "https://example.com"

	_ = repo.Save(ctx, models.PortfolioInput{
		Title: "Old", URL: url, Date: models.String("2024-01-01"),
		Cover: models.String("/c.png"), Summary: models.String("keep"),
	})
	_ = repo.Save(ctx, models.PortfolioInput{Title: "New", URL: url, TagsRaw: models.String("a")})

	items := repo.List(ctx)
	if len(items) != 1 {
		t.Fatalf("len = %d", len(items))
	}
	it := items[0]
	if it.Title != "New" || len(it.Tags) != 1 {
		t.Errorf("new fields not applied: %#v", it)
	}
	if it.Cover != "/c.png" || it.Summary != "keep" || it.Date != "2024-01-01" {
		t.Errorf("stored fields lost on merge: %#v", it)
	}
}

func TestPortfolioSave_PreservesFieldsWrittenByBuild(t *testing.T) {
	repo, root := testPortfolio(t)
	ctx := context.Background()
	testutil.WriteFile(t, root, "articles.json",
		`[{"title":"T","url":"https://x","tags":["a"],"cover":"https://x/og.png"}]`)

	_ = repo.Save(ctx, models.PortfolioInput{Title: "T2", URL: "https://x", TagsRaw: models.String("a")})
	if got := repo.List(ctx)[0].Cover; got != "https://x/og.png" {
		t.Errorf("cover = %q", got)
	}
}

func TestPortfolioSave_UpdateWithoutTagsKeepsTags(t *testing.T) {
	repo, _ := testPortfolio(t)
	ctx := context.Background()
	url := "https://example.com"

	_ = repo.Save(ctx, models.PortfolioInput{
		Title: "T", URL: url, TagsRaw: models.String("a, b"),
		Summary: models.String("s"), Cover: models.String("/c"),
	})
	_ = repo.Save(ctx, models.PortfolioInput{Title: "T2", URL: url})

	it := repo.List(ctx)[0]
	if it.Title != "T2" {
		t.Errorf("title = %q", it.Title)
	}
	if len(it.Tags) != 2 || it.Tags[0] != "a" || it.Tags[1] != "b" {
		t.Errorf("tags = %v, want [a b]", it.Tags)
	}
	if it.Summary != "s" || it.Cover != "/c" {
		t.Errorf("item = %#v", it)
	}
}

func TestPortfolioSave_EmptyFieldClearsStoredValue(t *testing.T) {
	repo, _ := testPortfolio(t)
	ctx := context.Background()
	url := "https://example.com"

	_ = repo.Save(ctx, models.PortfolioInput{
		Title: "T", URL: url, TagsRaw: models.String("a"),
		Summary: models.String("s"), Cover: models.String("/c"),
	})
	_ = repo.Save(ctx, models.PortfolioInput{
		Title: "T", URL: url, Summary: models.String(""), TagsRaw: models.String(""),
	})

	it := repo.List(ctx)[0]
	if it.Summary != "" || len(it.Tags) != 0 {
		t.Errorf("summary/tags not cleared: %#v", it)
	}
	if it.Cover != "/c" {
		t.Errorf("cover = %q, want /c", it.Cover)
	}
}

func TestPortfolioSave_WritesEveryField(t *testing.T) {
	repo, root := testPortfolio(t)
	_ = repo.Save(context.Background(), models.PortfolioInput{Title: "Y", URL: "https://y"})

	want := `[
  {
    "title": "Y",
    "url": "https://y",
    "date": "",
    "tags": [],
    "summary": "",
    "cover": ""
  }
]`
	if got := testutil.ReadFile(t, root, "articles.json"); got != want {
		t.Errorf("articles.json =\n%s\nwant\n%s", got, want)
	}
}

func TestPortfolioDelete(t *testing.T) {
	repo, root := testPortfolio(t)
	ctx := context.Background()
	_ = repo.Save(ctx, models.PortfolioInput{Title: "T", URL: "https://x"})

	before := testutil.ReadFile(t, root, "articles.json")
	if err := repo.Delete(ctx, "https://nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("miss err = %v", err)
	}
	if after := testutil.ReadFile(t, root, "articles.json"); after != before {
		t.Error("index changed on delete miss")
	}

	if err := repo.Delete(ctx, "https://x"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := testutil.ReadFile(t, root, "articles.json"); got != "[]" {
		t.Errorf("index = %q, want []", got)
	}
}
