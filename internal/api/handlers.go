package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/build"
	"github.com/starford/sitedesk/internal/content"
	"github.com/starford/sitedesk/internal/markdown"
	"github.com/starford/sitedesk/internal/models"
)

const maxBodyBytes = 10 << 20

// Handler holds API route handlers.
type Handler struct {
	deps Deps
}

// NewHandler creates a new Handler.
func NewHandler(deps Deps) *Handler {
	return &Handler{deps: deps}
}

func (h *Handler) svc() *content.Service { return h.deps.Service }

func (h *Handler) log(msg string) {
	if h.deps.Log != nil {
		h.deps.Log.Log(msg)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeResult(w, models.Fail(apperr.ErrValidation, "invalid JSON body"))
		return false
	}
	return true
}

// pathParam returns a URL parameter with percent-encoding removed.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

// ListBlogPosts handles GET /api/blog.
//
//	@Summary		List blog posts in index order, or newest first with sort=date
//	@Tags			blog
//	@Produce		json
//	@Param			sort	query		string	false	"Display order"	Enums(date)
//	@Success		200		{array}		models.BlogPost
//	@Security		BearerAuth
//	@Router			/blog [get]
func (h *Handler) ListBlogPosts(w http.ResponseWriter, r *http.Request) {
	posts := h.svc().ListBlogPosts(r.Context())
	if r.URL.Query().Get("sort") == "date" {
		sort.SliceStable(posts, func(i, j int) bool { return posts[i].Date > posts[j].Date })
	}
	writeJSON(w, http.StatusOK, posts)
}

// SaveBlogPost handles POST /api/blog.
//
//	@Summary		Create or replace a blog post
//	@Tags			blog
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.BlogInput	true	"Post"
//	@Success		200		{object}	models.Result
//	@Failure		400		{object}	models.Result
//	@Security		BearerAuth
//	@Router			/blog [post]
func (h *Handler) SaveBlogPost(w http.ResponseWriter, r *http.Request) {
	var in models.BlogInput
	if !decode(w, r, &in) {
		return
	}
	writeResult(w, h.svc().SaveBlogPost(r.Context(), in))
}

// GetBlogPost handles GET /api/blog/{slug}.
//
//	@Summary		Get a post with its Markdown body
//	@Tags			blog
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	BlogPostDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blog/{slug} [get]
func (h *Handler) GetBlogPost(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	post, err := h.svc().GetBlogPost(r.Context(), slug)
	if err != nil {
		h.writeLookupError(w, "get blog post", slug, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// PreviewBlogPost handles GET /api/blog/{slug}/preview.
//
//	@Summary		Render a post body to HTML
//	@Tags			blog
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	BlogPreviewResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/blog/{slug}/preview [get]
func (h *Handler) PreviewBlogPost(w http.ResponseWriter, r *http.Request) {
	slug := pathParam(r, "slug")
	post, err := h.svc().GetBlogPost(r.Context(), slug)
	if err != nil {
		h.writeLookupError(w, "preview blog post", slug, err)
		return
	}
	html, err := markdown.Render([]byte(post.Content))
	if err != nil {
		slog.Error("render markdown failed", slog.String("slug", slug), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, BlogPreviewResponse{Slug: slug, HTML: html})
}

// DeleteBlogPost handles DELETE /api/blog/{slug}.
//
//	@Summary		Delete a post and its Markdown body
//	@Tags			blog
//	@Produce		json
//	@Param			slug	path		string	true	"Post slug"
//	@Success		200		{object}	models.Result
//	@Failure		404		{object}	models.Result
//	@Security		BearerAuth
//	@Router			/blog/{slug} [delete]
func (h *Handler) DeleteBlogPost(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.svc().DeleteBlogPost(r.Context(), pathParam(r, "slug")))
}

// ListPortfolioItems handles GET /api/portfolio.
//
//	@Summary		List portfolio items in index order
//	@Tags			portfolio
//	@Produce		json
//	@Success		200	{array}	models.PortfolioItem
//	@Security		BearerAuth
//	@Router			/portfolio [get]
func (h *Handler) ListPortfolioItems(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc().ListPortfolioItems(r.Context()))
}

// SavePortfolioItem handles POST /api/portfolio.
//
//	@Summary		Create or update a portfolio item
//	@Tags			portfolio
//	@Accept			json
//	@Produce		json
//	@Param			body	body		models.PortfolioInput	true	"Item"
//	@Success		200		{object}	models.Result
//	@Failure		400		{object}	models.Result
//	@Security		BearerAuth
//	@Router			/portfolio [post]
func (h *Handler) SavePortfolioItem(w http.ResponseWriter, r *http.Request) {
	var in models.PortfolioInput
	if !decode(w, r, &in) {
		return
	}
	writeResult(w, h.svc().SavePortfolioItem(r.Context(), in))
}

// DeletePortfolioItem handles DELETE /api/portfolio?url=.
//
//	@Summary		Delete a portfolio item by URL
//	@Tags			portfolio
//	@Produce		json
//	@Param			url	query		string	true	"Item URL"
//	@Success		200	{object}	models.Result
//	@Failure		404	{object}	models.Result
//	@Security		BearerAuth
//	@Router			/portfolio [delete]
func (h *Handler) DeletePortfolioItem(w http.ResponseWriter, r *http.Request) {
	u := r.URL.Query().Get("url")
	if u == "" {
		writeResult(w, models.Fail(apperr.ErrValidation, "query parameter 'url' is required"))
		return
	}
	writeResult(w, h.svc().DeletePortfolioItem(r.Context(), u))
}

// GetProject handles GET /api/project.
//
//	@Summary		Current project root
//	@Tags			project
//	@Produce		json
//	@Success		200	{object}	ProjectResponse
//	@Security		BearerAuth
//	@Router			/project [get]
func (h *Handler) GetProject(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ProjectResponse{Root: h.svc().Root()})
}

// CreateProject handles POST /api/project.
//
//	@Summary		Scaffold a new project and switch to it
//	@Tags			project
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateProjectRequest	true	"Project"
//	@Success		200		{object}	models.Result
//	@Failure		400		{object}	models.Result
//	@Failure		409		{object}	models.Result
//	@Security		BearerAuth
//	@Router			/project [post]
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if !decode(w, r, &req) {
		return
	}
	err := validation.ValidateStruct(&req,
		validation.Field(&req.Name, validation.Required),
		validation.Field(&req.Parent, validation.Required),
	)
	if err != nil {
		writeResult(w, models.Fail(fmt.Errorf("%w: %v", apperr.ErrValidation, err), err.Error()))
		return
	}
	writeResult(w, h.svc().CreateProject(r.Context(), req.Name, req.Parent))
}

// OpenProjectFolder handles POST /api/project/open.
//
//	@Summary		Open the project folder in the file manager
//	@Tags			project
//	@Produce		json
//	@Success		200	{object}	models.Result
//	@Security		BearerAuth
//	@Router			/project/open [post]
func (h *Handler) OpenProjectFolder(w http.ResponseWriter, _ *http.Request) {
	root := h.svc().Root()
	if err := h.deps.Opener.Open(root); err != nil {
		slog.Error("open folder failed", slog.String("root", root), slog.String("error", err.Error()))
		writeResult(w, models.Fail(err, err.Error()))
		return
	}
	h.log("opened folder: " + root)
	res := models.OK("Opened folder")
	res.Path = root
	writeResult(w, res)
}

// Build handles POST /api/build.
//
//	@Summary		Run the site build in the project root
//	@Tags			build
//	@Produce		json
//	@Param			wait	query		bool	false	"Block until the build finishes"
//	@Success		200		{object}	build.Outcome
//	@Success		202		{object}	BuildStartedResponse
//	@Failure		409		{object}	models.Result
//	@Security		BearerAuth
//	@Router			/build [post]
func (h *Handler) Build(w http.ResponseWriter, r *http.Request) {
	// The run outlives the request.
	id, done, err := h.deps.Builder.Start(context.WithoutCancel(r.Context()))
	if err != nil {
		writeResult(w, models.Fail(err, "a build is already running"))
		return
	}

	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		go h.finishBuild(done)
		writeJSON(w, http.StatusAccepted, BuildStartedResponse{RunID: id})
		return
	}

	select {
	case out := <-done:
		if h.deps.BuildDone != nil {
			h.deps.BuildDone(out)
		}
		writeJSON(w, http.StatusOK, out)
	case <-r.Context().Done():
		go h.finishBuild(done)
	}
}

func (h *Handler) finishBuild(done <-chan build.Outcome) {
	out := <-done
	if h.deps.BuildDone != nil {
		h.deps.BuildDone(out)
	}
}

// StartPreview handles POST /api/preview.
//
//	@Summary		Serve the built site locally and open the browser
//	@Tags			preview
//	@Produce		json
//	@Success		200	{object}	PreviewResponse
//	@Failure		409	{object}	models.Result
//	@Security		BearerAuth
//	@Router			/preview [post]
func (h *Handler) StartPreview(w http.ResponseWriter, _ *http.Request) {
	u, already, err := h.deps.Preview.Start(h.svc().Root())
	if err != nil {
		if !errors.Is(err, apperr.ErrBuildFirst) {
			slog.Error("start preview failed", slog.String("error", err.Error()))
		}
		writeResult(w, models.Fail(err, err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, PreviewResponse{Success: true, URL: u, AlreadyRunning: already})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across posts and portfolio items
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.deps.Index.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Tags handles GET /api/tags.
//
//	@Summary		All tags with usage counts
//	@Tags			tags
//	@Produce		json
//	@Success		200	{object}	TagsResponse
//	@Security		BearerAuth
//	@Router			/tags [get]
func (h *Handler) Tags(w http.ResponseWriter, _ *http.Request) {
	tags, err := h.deps.Index.Tags()
	if err != nil {
		slog.Error("tags failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TagsResponse{Tags: tags})
}

// ByTag handles GET /api/tags/{tag}.
//
//	@Summary		Posts and items carrying a tag
//	@Tags			tags
//	@Produce		json
//	@Param			tag	path		string	true	"Tag"
//	@Success		200	{object}	TagEntriesResponse
//	@Security		BearerAuth
//	@Router			/tags/{tag} [get]
func (h *Handler) ByTag(w http.ResponseWriter, r *http.Request) {
	tag := pathParam(r, "tag")
	entries, err := h.deps.Index.ByTag(tag)
	if err != nil {
		slog.Error("by tag failed", slog.String("tag", tag), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, TagEntriesResponse{Tag: tag, Entries: entries})
}

func (h *Handler) writeLookupError(w http.ResponseWriter, op, key string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	slog.Error(op+" failed", slog.String("key", key), slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
}
