package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sitedesk/internal/build"
	"github.com/starford/sitedesk/internal/content"
	"github.com/starford/sitedesk/internal/index"
)

// BuildStarter starts site builds.
type BuildStarter interface {
	Start(ctx context.Context) (string, <-chan build.Outcome, error)
}

// Previewer starts the local preview server.
type Previewer interface {
	Start(root string) (url string, alreadyRunning bool, err error)
}

// Index answers search and tag queries.
type Index interface {
	Search(query string, limit int) ([]index.SearchResult, error)
	Tags() ([]index.TagCount, error)
	ByTag(tag string) ([]index.EntryRow, error)
}

// FolderOpener opens a folder in the platform file manager.
type FolderOpener interface {
	Open(target string) error
}

// Deps are the collaborators the router serves. Service is required; a nil
// Builder, Preview, Index or Opener disables the matching routes, and a nil
// Events handler leaves /events unmounted.
type Deps struct {
	Service   *content.Service
	Builder   BuildStarter
	Preview   Previewer
	Index     Index
	Opener    FolderOpener
	Events    http.Handler
	Log       content.Notifier
	BuildDone func(build.Outcome)
}

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
func NewRouter(deps Deps, authEnabled bool, token string) chi.Router {
	h := NewHandler(deps)
	ah := NewAttachmentHandler(deps.Service.Root)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Blog.
	r.Get("/blog", h.ListBlogPosts)
	r.Post("/blog", h.SaveBlogPost)
	r.Get("/blog/{slug}", h.GetBlogPost)
	r.Get("/blog/{slug}/preview", h.PreviewBlogPost)
	r.Delete("/blog/{slug}", h.DeleteBlogPost)

	// Portfolio.
	r.Get("/portfolio", h.ListPortfolioItems)
	r.Post("/portfolio", h.SavePortfolioItem)
	r.Delete("/portfolio", h.DeletePortfolioItem)

	// Project.
	r.Get("/project", h.GetProject)
	r.Post("/project", h.CreateProject)
	if deps.Opener != nil {
		r.Post("/project/open", h.OpenProjectFolder)
	}

	// Build and preview.
	if deps.Builder != nil {
		r.Post("/build", h.Build)
	}
	if deps.Preview != nil {
		r.Post("/preview", h.StartPreview)
	}

	// Search and tags.
	if deps.Index != nil {
		r.Get("/search", h.Search)
		r.Get("/tags", h.Tags)
		r.Get("/tags/{tag}", h.ByTag)
	}

	// Attachments.
	r.Post("/attachments", ah.Upload)
	r.Get("/attachments/{filename}", ah.ServeFile)

	if deps.Events != nil {
		r.Get("/events", deps.Events.ServeHTTP)
	}

	return r
}
