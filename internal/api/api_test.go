package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/sitedesk/internal/apperr"
	"github.com/starford/sitedesk/internal/build"
	"github.com/starford/sitedesk/internal/content"
	"github.com/starford/sitedesk/internal/index"
	"github.com/starford/sitedesk/internal/models"
	"github.com/starford/sitedesk/internal/project"
	"github.com/starford/sitedesk/internal/storage"
	"github.com/starford/sitedesk/internal/testutil"
)

type fakeBuilder struct {
	out  build.Outcome
	busy bool
}

func (f *fakeBuilder) Start(context.Context) (string, <-chan build.Outcome, error) {
	if f.busy {
		return "", nil, apperr.ErrConflict
	}
	ch := make(chan build.Outcome, 1)
	f.out.RunID = "run-1"
	ch <- f.out
	close(ch)
	return "run-1", ch, nil
}

type fakePreview struct {
	url     string
	started []string
}

func (f *fakePreview) Start(root string) (string, bool, error) {
	if _, err := os.Stat(filepath.Join(root, "dist")); err != nil {
		return "", false, apperr.ErrBuildFirst
	}
	f.started = append(f.started, root)
	return f.url, len(f.started) > 1, nil
}

type fakeOpener struct{ opened []string }

func (f *fakeOpener) Open(target string) error {
	f.opened = append(f.opened, target)
	return nil
}

type testEnv struct {
	root    string
	svc     *content.Service
	router  http.Handler
	builder *fakeBuilder
	preview *fakePreview
	opener  *fakeOpener
	indexer *index.Indexer
}

// newTestEnv sets up a temp project, SQLite index, service, and router.
// An empty authToken means auth is disabled.
func newTestEnv(t *testing.T, authToken string) *testEnv {
	t.Helper()
	root, pctx := testutil.TestProject(t)
	resources := fstest.MapFS{"templates/base.html": {Data: []byte("<html></html>")}}
	svc := content.NewService(pctx, project.NewScaffolder(pctx, resources, nil))

	db := testutil.TestDB(t)
	env := &testEnv{
		root:    root,
		svc:     svc,
		builder: &fakeBuilder{out: build.Outcome{Success: true}},
		preview: &fakePreview{url: "http://127.0.0.1:9999"},
		opener:  &fakeOpener{},
		indexer: index.NewIndexer(db, svc, storage.NewFS(pctx.Root), nil),
	}

	// Minimal SSE handler stub that writes headers and blocks until the
	// request context ends.
	events := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		<-r.Context().Done()
	})

	env.router = NewRouter(Deps{
		Service: svc,
		Builder: env.builder,
		Preview: env.preview,
		Index:   db,
		Opener:  env.opener,
		Events:  events,
	}, authToken != "", authToken)
	return env
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, rd)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) models.Result {
	t.Helper()
	var res models.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v (%s)", err, w.Body.String())
	}
	return res
}

func TestSaveAndGetBlogPost(t *testing.T) {
	env := newTestEnv(t, "")

	w := do(t, env.router, http.MethodPost, "/blog", map[string]string{
		"title": "Hello", "slug": "hello", "date": "2024-05-01", "tags": "go, web", "content": "# Hello\nWorld",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save status = %d, body = %s", w.Code, w.Body.String())
	}
	if res := decodeResult(t, w); !res.Success || res.Message != "Saved successfully" {
		t.Errorf("result = %+v", res)
	}

	w = do(t, env.router, http.MethodGet, "/blog/hello", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var post BlogPostDetail
	_ = json.Unmarshal(w.Body.Bytes(), &post)
	if post.Title != "Hello" || post.Content != "# Hello\nWorld" || len(post.Tags) != 2 {
		t.Errorf("post = %+v", post)
	}
	if post.Markdown != "data/blog/markdown/hello.md" {
		t.Errorf("markdown = %q", post.Markdown)
	}
}

func TestSaveBlogPost_Validation(t *testing.T) {
	env := newTestEnv(t, "")

	w := do(t, env.router, http.MethodPost, "/blog", map[string]string{"title": "No slug"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing slug = %d, want 400", w.Code)
	}
	if res := decodeResult(t, w); res.Success {
		t.Error("expected failure result")
	}

	req := httptest.NewRequest(http.MethodPost, "/blog", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad json = %d, want 400", rec.Code)
	}
}

func TestListBlogPosts_SortByDate(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.svc.SaveBlogPost(ctx, models.BlogInput{Title: "Old", Slug: "old", Date: "2023-01-01"})
	env.svc.SaveBlogPost(ctx, models.BlogInput{Title: "New", Slug: "new", Date: "2024-01-01"})

	var posts []models.BlogPost
	w := do(t, env.router, http.MethodGet, "/blog", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &posts)
	if len(posts) != 2 || posts[0].Slug != "old" {
		t.Errorf("index order = %+v", posts)
	}

	w = do(t, env.router, http.MethodGet, "/blog?sort=date", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &posts)
	if len(posts) != 2 || posts[0].Slug != "new" {
		t.Errorf("date order = %+v", posts)
	}

	// Display sorting never rewrites the index.
	if got := env.svc.ListBlogPosts(ctx); got[0].Slug != "old" {
		t.Error("index reordered on disk")
	}
}

func TestListBlogPosts_EmptyIsArray(t *testing.T) {
	env := newTestEnv(t, "")
	w := do(t, env.router, http.MethodGet, "/blog", nil)
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", w.Body.String())
	}
}

func TestDeleteBlogPost(t *testing.T) {
	env := newTestEnv(t, "")
	env.svc.SaveBlogPost(context.Background(), models.BlogInput{Title: "T", Slug: "t", Content: "x"})

	w := do(t, env.router, http.MethodDelete, "/blog/missing", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("delete missing = %d, want 404", w.Code)
	}
	if res := decodeResult(t, w); res.Message != "Article not found" {
		t.Errorf("message = %q", res.Message)
	}

	w = do(t, env.router, http.MethodDelete, "/blog/t", nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete = %d", w.Code)
	}
	if _, err := os.Stat(filepath.Join(env.root, "data", "blog", "markdown", "t.md")); err == nil {
		t.Error("markdown body not deleted")
	}
}

func TestGetBlogPost_NotFound(t *testing.T) {
	env := newTestEnv(t, "")
	w := do(t, env.router, http.MethodGet, "/blog/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing post = %d, want 404", w.Code)
	}
}

func TestPreviewBlogPost(t *testing.T) {
	env := newTestEnv(t, "")
	env.svc.SaveBlogPost(context.Background(), models.BlogInput{Title: "T", Slug: "t", Content: "# Heading\n\n~~old~~"})

	w := do(t, env.router, http.MethodGet, "/blog/t/preview", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview = %d", w.Code)
	}
	var resp BlogPreviewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !strings.Contains(resp.HTML, "<h1>Heading</h1>") || !strings.Contains(resp.HTML, "<del>old</del>") {
		t.Errorf("html = %q", resp.HTML)
	}
}

func TestPortfolioEndpoints(t *testing.T) {
	env := newTestEnv(t, "")
	u := "https://example.com/work"

	w := do(t, env.router, http.MethodPost, "/portfolio", map[string]string{
		"title": "Work", "url": u, "cover": "/img/c.png", "tags": "design",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("save = %d, %s", w.Code, w.Body.String())
	}
	// Update without cover keeps the stored cover.
	_ = do(t, env.router, http.MethodPost, "/portfolio", map[string]string{"title": "Work 2", "url": u})

	var items []models.PortfolioItem
	w = do(t, env.router, http.MethodGet, "/portfolio", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 1 || items[0].Title != "Work 2" || items[0].Cover != "/img/c.png" {
		t.Errorf("items = %+v", items)
	}
	if len(items) == 1 && (len(items[0].Tags) != 1 || items[0].Tags[0] != "design") {
		t.Errorf("tags = %v, want [design]", items[0].Tags)
	}

	// An empty cover clears it.
	_ = do(t, env.router, http.MethodPost, "/portfolio", map[string]string{"title": "Work 2", "url": u, "cover": ""})
	w = do(t, env.router, http.MethodGet, "/portfolio", nil)
	items = nil
	_ = json.Unmarshal(w.Body.Bytes(), &items)
	if len(items) != 1 || items[0].Cover != "" || len(items[0].Tags) != 1 {
		t.Errorf("after clearing cover = %+v", items)
	}

	w = do(t, env.router, http.MethodDelete, "/portfolio", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("delete without url = %d, want 400", w.Code)
	}
	w = do(t, env.router, http.MethodDelete, "/portfolio?url="+url.QueryEscape("https://nope"), nil)
	if res := decodeResult(t, w); w.Code != http.StatusNotFound || res.Message != "Item not found" {
		t.Errorf("delete missing = %d %+v", w.Code, res)
	}
	w = do(t, env.router, http.MethodDelete, "/portfolio?url="+url.QueryEscape(u), nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete = %d", w.Code)
	}
}

func TestProjectEndpoints(t *testing.T) {
	env := newTestEnv(t, "")

	var proj ProjectResponse
	w := do(t, env.router, http.MethodGet, "/project", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &proj)
	if proj.Root != env.root {
		t.Errorf("root = %q, want %q", proj.Root, env.root)
	}

	w = do(t, env.router, http.MethodPost, "/project", map[string]string{"name": "site"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing parent = %d, want 400", w.Code)
	}

	parent := t.TempDir()
	w = do(t, env.router, http.MethodPost, "/project", CreateProjectRequest{Name: "site", Parent: parent})
	res := decodeResult(t, w)
	if w.Code != http.StatusOK || res.Path != filepath.Join(parent, "site") {
		t.Fatalf("create = %d %+v", w.Code, res)
	}
	if env.svc.Root() != res.Path {
		t.Errorf("root not switched: %q", env.svc.Root())
	}

	w = do(t, env.router, http.MethodPost, "/project", CreateProjectRequest{Name: "site", Parent: parent})
	if w.Code != http.StatusConflict {
		t.Errorf("collision = %d, want 409", w.Code)
	}

	w = do(t, env.router, http.MethodPost, "/project/open", nil)
	if w.Code != http.StatusOK || len(env.opener.opened) != 1 || env.opener.opened[0] != res.Path {
		t.Errorf("open = %d, opened %v", w.Code, env.opener.opened)
	}
}

func TestBuildEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	w := do(t, env.router, http.MethodPost, "/build?wait=true", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("build wait = %d", w.Code)
	}
	var out build.Outcome
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if !out.Success || out.RunID != "run-1" {
		t.Errorf("outcome = %+v", out)
	}

	w = do(t, env.router, http.MethodPost, "/build", nil)
	if w.Code != http.StatusAccepted {
		t.Errorf("build async = %d, want 202", w.Code)
	}

	env.builder.busy = true
	w = do(t, env.router, http.MethodPost, "/build", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("busy build = %d, want 409", w.Code)
	}
}

func TestPreviewEndpoint(t *testing.T) {
	env := newTestEnv(t, "")

	w := do(t, env.router, http.MethodPost, "/preview", nil)
	if w.Code != http.StatusConflict {
		t.Errorf("no dist = %d, want 409", w.Code)
	}
	if res := decodeResult(t, w); res.Success {
		t.Error("expected failure before build")
	}

	_ = os.MkdirAll(filepath.Join(env.root, "dist"), 0o755)
	w = do(t, env.router, http.MethodPost, "/preview", nil)
	var resp PreviewResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.URL != env.preview.url || resp.AlreadyRunning {
		t.Errorf("preview = %d %+v", w.Code, resp)
	}
	w = do(t, env.router, http.MethodPost, "/preview", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.AlreadyRunning {
		t.Error("second start should report already running")
	}
}

func TestSearchAndTags(t *testing.T) {
	env := newTestEnv(t, "")
	ctx := context.Background()
	env.svc.SaveBlogPost(ctx, models.BlogInput{Title: "Go", Slug: "go", TagsRaw: "go", Content: "uniqueword here"})
	env.svc.SavePortfolioItem(ctx, models.PortfolioInput{Title: "Site", URL: "https://s", TagsRaw: models.String("go, web")})
	if _, err := env.indexer.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	var sr SearchResponse
	w := do(t, env.router, http.MethodGet, "/search?q=uniqueword", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &sr)
	if len(sr.Results) != 1 || sr.Results[0].Ref != "go" {
		t.Errorf("search = %+v", sr)
	}

	var tr TagsResponse
	w = do(t, env.router, http.MethodGet, "/tags", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &tr)
	if len(tr.Tags) != 2 || tr.Tags[0].Tag != "go" || tr.Tags[0].Count != 2 {
		t.Errorf("tags = %+v", tr)
	}

	var te TagEntriesResponse
	w = do(t, env.router, http.MethodGet, "/tags/web", nil)
	_ = json.Unmarshal(w.Body.Bytes(), &te)
	if len(te.Entries) != 1 || te.Entries[0].Kind != index.KindPortfolio {
		t.Errorf("by tag = %+v", te)
	}
}

func TestSearchMissingQuery(t *testing.T) {
	env := newTestEnv(t, "")
	w := do(t, env.router, http.MethodGet, "/search", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("search no query = %d, want 400", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	env := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/blog", nil)
	req.Header.Set("Authorization", "Bearer secret123")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	env := newTestEnv(t, "secret123")
	w := do(t, env.router, http.MethodGet, "/blog", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	env := newTestEnv(t, "secret123")

	req := httptest.NewRequest(http.MethodGet, "/blog", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthProtected(t *testing.T) {
	env := newTestEnv(t, "secret")
	w := do(t, env.router, http.MethodGet, "/events", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_AuthDisabled(t *testing.T) {
	env := newTestEnv(t, "")

	// The SSE handler blocks, so the request context is cancelled shortly.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("SSE = %d, want 200", w.Code)
	}
}

// Attachment tests.

func uploadFile(t *testing.T, router http.Handler, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = io.Copy(part, bytes.NewReader(content))
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndServeAttachment(t *testing.T) {
	env := newTestEnv(t, "")

	w := uploadFile(t, env.router, "test.png", []byte("fake-png-data"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d, body = %s", w.Code, w.Body.String())
	}
	var resp AttachmentUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Filename != "test.png" || resp.URL != "/uploads/test.png" {
		t.Errorf("resp = %+v", resp)
	}

	data, err := os.ReadFile(filepath.Join(env.root, "static", "uploads", "test.png"))
	if err != nil {
		t.Fatalf("file not on disk: %v", err)
	}
	if string(data) != "fake-png-data" {
		t.Errorf("content mismatch")
	}

	w = do(t, env.router, http.MethodGet, "/attachments/test.png", nil)
	if w.Code != http.StatusOK || w.Body.String() != "fake-png-data" {
		t.Errorf("serve = %d %q", w.Code, w.Body.String())
	}
}

func TestUploadAttachment_CollisionGetsGeneratedName(t *testing.T) {
	env := newTestEnv(t, "")
	_ = uploadFile(t, env.router, "dup.png", []byte("first"))

	w := uploadFile(t, env.router, "dup.png", []byte("second"))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload = %d", w.Code)
	}
	var resp AttachmentUploadResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Filename == "dup.png" || !strings.HasSuffix(resp.Filename, ".png") {
		t.Errorf("filename = %q", resp.Filename)
	}
	first, _ := os.ReadFile(filepath.Join(env.root, "static", "uploads", "dup.png"))
	if string(first) != "first" {
		t.Error("existing upload overwritten")
	}
}

func TestGeneratedName(t *testing.T) {
	if got := generatedName("photo.JPG"); !strings.HasSuffix(got, ".jpg") {
		t.Errorf("generatedName = %q", got)
	}
	if got := generatedName("weird.t x t"); strings.Contains(got, " ") {
		t.Errorf("generatedName kept unsafe ext: %q", got)
	}
	if generatedName("a.png") == generatedName("a.png") {
		t.Error("names should be unique")
	}
}

func TestServeAttachment_NotFound(t *testing.T) {
	root := t.TempDir()
	ah := NewAttachmentHandler(func() string { return root })
	r := chi.NewRouter()
	r.Get("/attachments/{filename}", ah.ServeFile)

	w := do(t, r, http.MethodGet, "/attachments/nope.png", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing attachment = %d, want 404", w.Code)
	}
}

func TestServeAttachment_TraversalBlocked(t *testing.T) {
	root := t.TempDir()
	ah := NewAttachmentHandler(func() string { return root })
	r := chi.NewRouter()
	r.Get("/attachments/{filename}", ah.ServeFile)

	for _, name := range []string{"../secret.md", "..%2F..%2Fetc%2Fpasswd"} {
		w := do(t, r, http.MethodGet, "/attachments/"+name, nil)
		// chi may not route the traversal paths at all (404), or the handler rejects (400).
		if w.Code == http.StatusOK {
			t.Errorf("traversal %q should not return 200", name)
		}
	}
}

func TestUploadAttachment_AuthProtected(t *testing.T) {
	env := newTestEnv(t, "secret")
	w := uploadFile(t, env.router, "x.png", []byte("data"))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("upload no auth = %d, want 401", w.Code)
	}
}

func TestUploadAttachment_MissingFileField(t *testing.T) {
	env := newTestEnv(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("wrong", "data")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/attachments", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing field = %d, want 400", w.Code)
	}
}
