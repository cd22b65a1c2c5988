// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the site content tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/content"
	"github.com/starford/sitedesk/internal/index"
	"github.com/starford/sitedesk/internal/models"
)

const formatURI = "sitedesk://content-format"

// Searcher is the part of the content index the search tool needs.
type Searcher interface {
	Search(query string, limit int) ([]index.SearchResult, error)
}

// Server wraps the MCP server with the content tools.
type Server struct {
	mcp *server.MCPServer
	svc *content.Service
	idx Searcher
}

// New creates a new MCP server with all content tools registered.
// search_content is only registered when idx is non-nil.
func New(svc *content.Service, idx Searcher) *Server {
	s := &Server{svc: svc, idx: idx}

	s.mcp = server.NewMCPServer(
		"Sitedesk",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_blog_posts",
		mcp.WithDescription("List every blog post record from data/blog.json in on-disk order."),
	), s.listBlogPosts)

	s.mcp.AddTool(mcp.NewTool("get_blog_post",
		mcp.WithDescription("Read a blog post record together with its Markdown body."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of the post")),
	), s.getBlogPost)

	s.mcp.AddTool(mcp.NewTool("save_blog_post",
		mcp.WithDescription("Create or fully replace a blog post. "+
			"Read the contract first via the get_content_contract tool or the "+formatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Post title")),
		mcp.WithString("slug", mcp.Required(), mcp.Description("URL slug, also the Markdown file name")),
		mcp.WithString("content", mcp.Description("Markdown body")),
		mcp.WithString("date", mcp.Description("Publication date, YYYY-MM-DD")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("summary", mcp.Description("Short summary shown in listings")),
	), s.saveBlogPost)

	s.mcp.AddTool(mcp.NewTool("delete_blog_post",
		mcp.WithDescription("Delete a blog post record and its Markdown body."),
		mcp.WithString("slug", mcp.Required(), mcp.Description("Slug of the post")),
	), s.deleteBlogPost)

	s.mcp.AddTool(mcp.NewTool("list_portfolio_items",
		mcp.WithDescription("List every portfolio item from articles.json."),
	), s.listPortfolioItems)

	s.mcp.AddTool(mcp.NewTool("save_portfolio_item",
		mcp.WithDescription("Create or merge a portfolio item keyed by URL. "+
			"Fields left out keep their stored value; an empty string clears one."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Item title")),
		mcp.WithString("url", mcp.Required(), mcp.Description("External article URL")),
		mcp.WithString("date", mcp.Description("Publication date, YYYY-MM-DD")),
		mcp.WithString("tags", mcp.Description("Comma-separated tags")),
		mcp.WithString("cover", mcp.Description("Cover image path or URL")),
		mcp.WithString("summary", mcp.Description("Short summary")),
	), s.savePortfolioItem)

	s.mcp.AddTool(mcp.NewTool("delete_portfolio_item",
		mcp.WithDescription("Delete a portfolio item by URL."),
		mcp.WithString("url", mcp.Required(), mcp.Description("URL of the item")),
	), s.deletePortfolioItem)

	if idx != nil {
		s.mcp.AddTool(mcp.NewTool("search_content",
			mcp.WithDescription("Full-text search through blog posts and portfolio items."),
			mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
		), s.searchContent)
	}

	s.mcp.AddTool(mcp.NewTool("get_content_contract",
		mcp.WithDescription("Returns the content format contract. "+
			"Call this before saving posts or portfolio items."),
	), s.getContentContract)

	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Content Format Contract",
			mcp.WithResourceDescription("Layout and field rules for blog posts and portfolio items."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContentFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func outcome(r models.Result) (*mcp.CallToolResult, error) {
	if !r.Success {
		return mcp.NewToolResultError(r.Message), nil
	}
	return mcp.NewToolResultText(r.Message), nil
}

func (s *Server) listBlogPosts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListBlogPosts(ctx))
}

func (s *Server) getBlogPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.GetBlogPost(ctx, slug)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", slug)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(post)
}

func (s *Server) saveBlogPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcome(s.svc.SaveBlogPost(ctx, models.BlogInput{
		Title:   title,
		Slug:    slug,
		Date:    req.GetString("date", ""),
		TagsRaw: req.GetString("tags", ""),
		Summary: req.GetString("summary", ""),
		Content: req.GetString("content", ""),
	}))
}

func (s *Server) deleteBlogPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcome(s.svc.DeleteBlogPost(ctx, slug))
}

func (s *Server) listPortfolioItems(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.ListPortfolioItems(ctx))
}

func (s *Server) savePortfolioItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcome(s.svc.SavePortfolioItem(ctx, models.PortfolioInput{
		Title:   title,
		URL:     url,
		Date:    optionalString(req, "date"),
		TagsRaw: optionalString(req, "tags"),
		Cover:   optionalString(req, "cover"),
		Summary: optionalString(req, "summary"),
	}))
}

// optionalString returns nil when key was not passed.
func optionalString(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key].(string)
	if !ok {
		return nil
	}
	return &v
}

func (s *Server) deletePortfolioItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return outcome(s.svc.DeletePortfolioItem(ctx, url))
}

func (s *Server) searchContent(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := s.idx.Search(query, 20)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return jsonResult(results)
}

func (s *Server) getContentContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(ContentFormatContract), nil
}

func (s *Server) readContentFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     ContentFormatContract,
		},
	}, nil
}
