// Package project owns the current project root and the on-disk layout of a
// sitedesk project, and scaffolds new projects.
package project

import (
	"fmt"
	"path/filepath"
	"sync"
)

// Layout of a project, relative to its root. Paths use forward slashes.
const (
	BlogIndexPath      = "data/blog.json"
	MarkdownDir        = "data/blog/markdown"
	PortfolioIndexPath = "articles.json"
	DistDir            = "dist"
	TemplatesDir       = "templates"
	StaticDir          = "static"
)

// MarkdownPath returns the root-relative path of the Markdown body for slug.
func MarkdownPath(slug string) string {
	return MarkdownDir + "/" + slug + ".md"
}

// Context holds the current project root. Every consumer resolves paths
// through Root at call time, so a Switch redirects all subsequent I/O.
type Context struct {
	mu   sync.RWMutex
	root string
	subs []chan string
}

// NewContext creates a Context rooted at root (made absolute).
func NewContext(root string) (*Context, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("project: resolve root: %w", err)
	}
	return &Context{root: abs}, nil
}

// Root returns the current absolute project root.
func (c *Context) Root() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.root
}

// Abs resolves a root-relative slash path against the current root.
func (c *Context) Abs(rel string) string {
	return filepath.Join(c.Root(), filepath.FromSlash(rel))
}

// Switch makes path the current root and notifies subscribers.
// Subscribers that have not consumed the previous notification only see
// the latest root.
func (c *Context) Switch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("project: resolve root: %w", err)
	}
	c.mu.Lock()
	c.root = abs
	subs := append([]chan string(nil), c.subs...)
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- abs:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel that receives the new root after every Switch.
func (c *Context) Subscribe() <-chan string {
	ch := make(chan string, 1)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}
