package project

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/sitedesk/internal/apperr"
)

// bundledDirs are copied from the resources FS into every new project.
var bundledDirs = []string{TemplatesDir, StaticDir}

// Scaffolder creates new project trees and switches the Context to them.
type Scaffolder struct {
	pctx      *Context
	resources fs.FS // may be nil: projects are then created without templates
	logger    *slog.Logger
}

// NewScaffolder creates a Scaffolder. In production resources comes from
// os.DirFS of the application's resource directory; tests use fstest.MapFS.
func NewScaffolder(pctx *Context, resources fs.FS, logger *slog.Logger) *Scaffolder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scaffolder{pctx: pctx, resources: resources, logger: logger}
}

// Create builds parent/name, copies bundled templates and static assets,
// writes empty indexes and switches the current project to it.
// A partially created tree is left in place when a later step fails.
func (s *Scaffolder) Create(ctx context.Context, name, parent string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	target, err := filepath.Abs(filepath.Join(parent, name))
	if err != nil {
		return "", fmt.Errorf("project: resolve target: %w", err)
	}

	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("project: %s: %w", target, apperr.ErrAlreadyExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("project: stat target: %w", err)
	}

	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("project: create target: %w", err)
	}

	for _, dir := range bundledDirs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := s.copyBundled(dir, filepath.Join(target, dir)); err != nil {
			s.logger.Debug("scaffold: bundled dir skipped",
				slog.String("dir", dir), slog.String("error", err.Error()))
		}
	}

	if err := os.MkdirAll(filepath.Join(target, filepath.FromSlash(MarkdownDir)), 0o755); err != nil {
		return "", fmt.Errorf("project: create markdown dir: %w", err)
	}
	for _, idx := range []string{BlogIndexPath, PortfolioIndexPath} {
		p := filepath.Join(target, filepath.FromSlash(idx))
		if err := os.WriteFile(p, []byte("[]"), 0o644); err != nil {
			return "", fmt.Errorf("project: init %s: %w", idx, err)
		}
	}

	if err := s.pctx.Switch(target); err != nil {
		return "", err
	}
	s.logger.Info("scaffold: project created", slog.String("path", target))
	return target, nil
}

// copyBundled copies the resources subtree src into dest. A missing source
// is reported as an error that the caller treats as optional.
func (s *Scaffolder) copyBundled(src, dest string) error {
	if s.resources == nil {
		return fmt.Errorf("no resources configured")
	}
	return fs.WalkDir(s.resources, src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(p, src), "/")
		out := filepath.Join(dest, filepath.FromSlash(rel))
		if d.IsDir() {
			return os.MkdirAll(out, 0o755)
		}
		data, err := fs.ReadFile(s.resources, p)
		if err != nil {
			return err
		}
		return os.WriteFile(out, data, 0o644)
	})
}

func validateName(name string) error {
	cleaned := filepath.Clean(name)
	if name == "" || cleaned != filepath.Base(cleaned) || cleaned == "." || cleaned == ".." ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("project: invalid name %q: %w", name, apperr.ErrValidation)
	}
	return nil
}
