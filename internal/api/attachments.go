package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/starford/sitedesk/internal/project"
)

const (
	uploadsDir     = project.StaticDir + "/uploads"
	maxUploadBytes = 50 << 20 // 50 MB
)

// AttachmentHandler stores uploaded images and files under the project's
// static/uploads directory, which the build copies into the site.
type AttachmentHandler struct {
	root func() string
}

// NewAttachmentHandler creates a handler that resolves the project root on
// every request.
func NewAttachmentHandler(root func() string) *AttachmentHandler {
	return &AttachmentHandler{root: root}
}

func (h *AttachmentHandler) uploadsPath() string {
	return filepath.Join(h.root(), filepath.FromSlash(uploadsDir))
}

// safeName validates that the filename is a plain name (no path separators,
// no traversal) and returns the absolute path under the uploads dir.
func (h *AttachmentHandler) safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Clean(name)
	if cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	dir := h.uploadsPath()
	abs := filepath.Join(dir, cleaned)
	if !strings.HasPrefix(abs, dir+string(os.PathSeparator)) {
		return "", fmt.Errorf("path escapes uploads directory")
	}
	return abs, nil
}

// generatedName returns a collision-free name keeping the extension of the
// uploaded file when it is a short alphanumeric suffix.
func generatedName(original string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(original, `\`, "/")))
	if len(ext) < 2 || len(ext) > 10 || strings.IndexFunc(ext[1:], notAlnum) >= 0 {
		ext = ""
	}
	return uuid.NewString() + ext
}

func notAlnum(r rune) bool {
	return (r < 'a' || r > 'z') && (r < '0' || r > '9')
}

// ServeFile handles GET /api/attachments/{filename}.
func (h *AttachmentHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	abs, err := h.safeName(filename)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, statErr := os.Stat(abs); errors.Is(statErr, os.ErrNotExist) {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, abs)
}

// Upload handles POST /api/attachments (multipart/form-data, field "file").
// Names that are unsafe or already taken are replaced by a generated one.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name := header.Filename
	abs, err := h.safeName(name)
	if err == nil {
		if _, statErr := os.Stat(abs); statErr == nil {
			err = fmt.Errorf("%s already exists", name)
		}
	}
	if err != nil {
		name = generatedName(header.Filename)
		abs = filepath.Join(h.uploadsPath(), name)
	}

	if err := os.MkdirAll(h.uploadsPath(), 0o755); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create uploads dir"))
		return
	}

	dst, err := os.OpenFile(abs, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to create file"))
		return
	}
	defer dst.Close()

	written, err := io.Copy(dst, file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to write file"))
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentUploadResponse{
		Filename: name,
		Size:     written,
		URL:      "/uploads/" + name,
	})
}
