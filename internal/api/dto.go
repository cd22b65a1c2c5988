package api

import (
	"github.com/starford/sitedesk/internal/content"
	"github.com/starford/sitedesk/internal/index"
)

// BlogPostDetail is a post with its Markdown body.
type BlogPostDetail = content.BlogPostDetail

// CreateProjectRequest is the request body for scaffolding a project.
type CreateProjectRequest struct {
	Name   string `json:"name" example:"my-site" validate:"required"`
	Parent string `json:"parent" example:"/home/me/sites" validate:"required"`
}

// ProjectResponse describes the current project.
type ProjectResponse struct {
	Root string `json:"root" example:"/home/me/sites/my-site" validate:"required"`
}

// BlogPreviewResponse is the rendered HTML of a post body.
type BlogPreviewResponse struct {
	Slug string `json:"slug" example:"hello" validate:"required"`
	HTML string `json:"html" example:"<h1>Hello</h1>" validate:"required"`
}

// BuildStartedResponse is returned when a build is started without waiting.
type BuildStartedResponse struct {
	RunID string `json:"run_id" example:"1b4e28ba-2fa1-11d2-883f-0016d3cca427" validate:"required"`
}

// PreviewResponse is returned after starting the preview server.
type PreviewResponse struct {
	Success        bool   `json:"success"`
	URL            string `json:"url" example:"http://127.0.0.1:53211"`
	AlreadyRunning bool   `json:"already_running"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// TagsResponse wraps the tag cloud.
type TagsResponse struct {
	Tags []index.TagCount `json:"tags" validate:"required"`
}

// TagEntriesResponse lists the entries carrying one tag.
type TagEntriesResponse struct {
	Tag     string           `json:"tag" example:"go" validate:"required"`
	Entries []index.EntryRow `json:"entries" validate:"required"`
}

// AttachmentUploadResponse is returned after a successful attachment upload.
type AttachmentUploadResponse struct {
	Filename string `json:"filename" example:"image.png" validate:"required"`
	Size     int64  `json:"size" example:"12345" validate:"required"`
	URL      string `json:"url" example:"/uploads/image.png" validate:"required"`
}
