// Package models defines the domain types for sitedesk.
package models

import (
	"encoding/json"
	"strings"
)

// BlogPost is one record of data/blog.json.
type BlogPost struct {
	Slug     string   `json:"slug"`
	Title    string   `json:"title"`
	Summary  string   `json:"summary"`
	Date     string   `json:"date"`
	Tags     []string `json:"tags"`
	Markdown string   `json:"markdown"`
}

// PortfolioItem is one record of articles.json.
type PortfolioItem struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Date    string   `json:"date"`
	Tags    []string `json:"tags"`
	Summary string   `json:"summary"`
	Cover   string   `json:"cover"`
}

// BlogInput is the form payload for saving a blog post.
// TagsRaw is the comma-separated tag string as typed by the user.
type BlogInput struct {
	Title   string `json:"title"`
	Slug    string `json:"slug"`
	Date    string `json:"date"`
	TagsRaw string `json:"tags"`
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// PortfolioInput is the form payload for saving a portfolio item.
// A nil optional field was not sent and keeps its stored value on update;
// a non-nil one overwrites it, even when empty.
type PortfolioInput struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Date    *string `json:"date,omitempty"`
	TagsRaw *string `json:"tags,omitempty"`
	Cover   *string `json:"cover,omitempty"`
	Summary *string `json:"summary,omitempty"`
}

// Item builds the record for in. Fields not sent are empty.
func (in PortfolioInput) Item() PortfolioItem {
	return PortfolioItem{
		Title:   in.Title,
		URL:     in.URL,
		Date:    deref(in.Date),
		Tags:    ParseTags(deref(in.TagsRaw)),
		Summary: deref(in.Summary),
		Cover:   deref(in.Cover),
	}
}

// Fields returns the JSON names of the record fields in carries.
func (in PortfolioInput) Fields() []string {
	names := []string{"title", "url"}
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"date", in.Date},
		{"tags", in.TagsRaw},
		{"cover", in.Cover},
		{"summary", in.Summary},
	} {
		if f.v != nil {
			names = append(names, f.name)
		}
	}
	return names
}

// String returns a pointer to s, for optional input fields.
func String(s string) *string {
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// Result is the structured outcome returned by every content operation.
// The underlying error, if any, is kept for callers that need to classify
// the failure and is not serialized.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Path    string `json:"path,omitempty"`

	err error
}

// Err returns the error behind a failed Result.
func (r Result) Err() error {
	return r.err
}

// OK returns a successful Result.
func OK(message string) Result {
	return Result{Success: true, Message: message}
}

// Fail returns a failed Result carrying message and the causing error.
func Fail(err error, message string) Result {
	return Result{Success: false, Message: message, err: err}
}

// ParseTags splits a comma-separated tag string, trimming whitespace and
// dropping empty entries. The result is never nil.
func ParseTags(raw string) []string {
	out := []string{}
	for _, t := range strings.Split(raw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// UnmarshalJSON defaults a missing tags field to an empty list.
func (p *BlogPost) UnmarshalJSON(data []byte) error {
	type plain BlogPost
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	*p = BlogPost(v)
	return nil
}

// UnmarshalJSON defaults a missing tags field to an empty list.
func (p *PortfolioItem) UnmarshalJSON(data []byte) error {
	type plain PortfolioItem
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Tags == nil {
		v.Tags = []string{}
	}
	*p = PortfolioItem(v)
	return nil
}
