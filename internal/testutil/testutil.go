// Package testutil provides shared test helpers for setting up projects and
// index databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/sitedesk/internal/index"
	"github.com/starford/sitedesk/internal/project"
)

// TestDB creates a temporary SQLite index that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "sitedesk-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestProject creates a temporary project root with empty indexes and a
// Context pointing at it.
func TestProject(t *testing.T) (string, *project.Context) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "data", "blog", "markdown"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, idx := range []string{project.BlogIndexPath, project.PortfolioIndexPath} {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(idx)), []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	pctx, err := project.NewContext(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, pctx
}

// WriteFile writes content to root/rel, creating parent directories.
func WriteFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// ReadFile returns the content of root/rel or fails the test.
func ReadFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
