package content

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/models"
	"github.com/starford/sitedesk/internal/project"
	"github.com/starford/sitedesk/internal/storage"
)

// Event kinds published after successful mutations.
const (
	EventBlogSaved        = "blog.saved"
	EventBlogDeleted      = "blog.deleted"
	EventPortfolioSaved   = "portfolio.saved"
	EventPortfolioDeleted = "portfolio.deleted"
	EventProjectCreated   = "project.created"
)

// Notifier is the one-way channel towards the UI.
type Notifier interface {
	Log(message string)
	PublishContentEvent(kind, key string)
}

type nopNotifier struct{}

func (nopNotifier) Log(string)                         {}
func (nopNotifier) PublishContentEvent(string, string) {}

// BlogPostDetail is a post together with its Markdown body.
type BlogPostDetail struct {
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary,omitempty"`
	Date     string   `json:"date,omitempty"`
	Tags     []string `json:"tags"`
	Markdown string   `json:"markdown"`
	Content  string   `json:"content"`
}

// Service fronts the repositories and the scaffolder. Mutations are
// serialized so each read-modify-write of an index runs to completion
// before the next starts. Every mutation returns a models.Result.
type Service struct {
	mu        sync.Mutex
	pctx      *project.Context
	blog      *BlogRepository
	portfolio *PortfolioRepository
	scaffold  *project.Scaffolder
	notify    Notifier
	logger    *slog.Logger
	onChange  func()
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithNotifier routes log lines and change events to n.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) { s.notify = n }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = l }
}

// WithChangeHook registers fn to run after every successful mutation.
func WithChangeHook(fn func()) ServiceOption {
	return func(s *Service) { s.onChange = fn }
}

// NewService wires the repositories for pctx.
func NewService(pctx *project.Context, scaffold *project.Scaffolder, opts ...ServiceOption) *Service {
	store := storage.NewFS(pctx.Root)
	s := &Service{
		pctx:      pctx,
		blog:      NewBlogRepository(store),
		portfolio: NewPortfolioRepository(store),
		scaffold:  scaffold,
		notify:    nopNotifier{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the current project root.
func (s *Service) Root() string {
	return s.pctx.Root()
}

// SaveBlogPost validates and saves a post.
func (s *Service) SaveBlogPost(ctx context.Context, in models.BlogInput) models.Result {
	if err := validateBlogInput(in); err != nil {
		return models.Fail(err, "title and slug are required: "+err.Error())
	}
	s.mu.Lock()
	err := s.blog.Save(ctx, in)
	s.mu.Unlock()
	if err != nil {
		return s.ioFailure("save blog post", err)
	}
	s.changed(EventBlogSaved, in.Slug, "blog post saved: "+in.Title)
	return models.OK("Saved successfully")
}

// ListBlogPosts returns every post in on-disk order.
func (s *Service) ListBlogPosts(ctx context.Context) []models.BlogPost {
	return s.blog.List(ctx)
}

// GetBlogPost returns a post and its Markdown body.
func (s *Service) GetBlogPost(ctx context.Context, slug string) (*BlogPostDetail, error) {
	post, body, err := s.blog.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &BlogPostDetail{
		Slug:     post.Slug,
		Title:    post.Title,
		Summary:  post.Summary,
		Date:     post.Date,
		Tags:     post.Tags,
		Markdown: post.Markdown,
		Content:  body,
	}, nil
}

// DeleteBlogPost removes a post and its Markdown body.
func (s *Service) DeleteBlogPost(ctx context.Context, slug string) models.Result {
	s.mu.Lock()
	err := s.blog.Delete(ctx, slug)
	s.mu.Unlock()
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Fail(err, "Article not found")
	}
	if err != nil {
		return s.ioFailure("delete blog post", err)
	}
	s.changed(EventBlogDeleted, slug, "blog post deleted: "+slug)
	return models.OK("Deleted successfully")
}

// SavePortfolioItem validates and saves an item.
func (s *Service) SavePortfolioItem(ctx context.Context, in models.PortfolioInput) models.Result {
	if err := validatePortfolioInput(in); err != nil {
		return models.Fail(err, "title and url are required: "+err.Error())
	}
	s.mu.Lock()
	err := s.portfolio.Save(ctx, in)
	s.mu.Unlock()
	if err != nil {
		return s.ioFailure("save portfolio item", err)
	}
	s.changed(EventPortfolioSaved, in.URL, "portfolio item saved: "+in.Title)
	return models.OK("Saved successfully")
}

// ListPortfolioItems returns every item in on-disk order.
func (s *Service) ListPortfolioItems(ctx context.Context) []models.PortfolioItem {
	return s.portfolio.List(ctx)
}

// DeletePortfolioItem removes an item by URL.
func (s *Service) DeletePortfolioItem(ctx context.Context, url string) models.Result {
	s.mu.Lock()
	err := s.portfolio.Delete(ctx, url)
	s.mu.Unlock()
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Fail(err, "Item not found")
	}
	if err != nil {
		return s.ioFailure("delete portfolio item", err)
	}
	s.changed(EventPortfolioDeleted, url, "portfolio item deleted: "+url)
	return models.OK("Deleted successfully")
}

// CreateProject scaffolds parent/name and switches to it.
func (s *Service) CreateProject(ctx context.Context, name, parent string) models.Result {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(parent) == "" {
		return models.Fail(apperr.ErrValidation, "project name and parent folder are required")
	}
	s.mu.Lock()
	path, err := s.scaffold.Create(ctx, name, parent)
	s.mu.Unlock()
	switch {
	case errors.Is(err, apperr.ErrAlreadyExists):
		return models.Fail(err, "the target folder already exists")
	case errors.Is(err, apperr.ErrValidation):
		return models.Fail(err, err.Error())
	case err != nil:
		return s.ioFailure("create project", err)
	}
	s.changed(EventProjectCreated, path, "switched project: "+path)
	res := models.OK("Project created")
	res.Path = path
	return res
}

func (s *Service) changed(kind, key, logLine string) {
	s.notify.Log(logLine)
	s.notify.PublishContentEvent(kind, key)
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Service) ioFailure(op string, err error) models.Result {
	s.logger.Error(op+" failed", slog.String("root", s.pctx.Root()), slog.String("error", err.Error()))
	return models.Fail(err, err.Error())
}
