package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/sitedesk/internal/project"
)

const debounce = 200 * time.Millisecond

// ChangeCallback is called with the mirror changes of each watcher-driven
// sync that changed something.
type ChangeCallback func(changes []Change)

// watchedDirs are the root-relative directories holding the files the
// mirror depends on. The root itself holds articles.json.
var watchedDirs = []string{".", "data", "data/blog", project.MarkdownDir}

// Watch watches the current project's index files and Markdown bodies and
// resyncs the mirror after changes until ctx is cancelled. A project switch
// moves the watches to the new root and triggers a full resync.
func (ix *Indexer) Watch(ctx context.Context, pctx *project.Context, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	switches := pctx.Subscribe()
	root := pctx.Root()
	watched := addProjectDirs(w, root)
	ix.logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			timerCh = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			ix.logger.Info("watcher: stopped")
			return nil

		case newRoot := <-switches:
			for _, dir := range watched {
				_ = w.Remove(dir)
			}
			root = newRoot
			watched = addProjectDirs(w, root)
			ix.logger.Info("watcher: project switched", slog.String("root", root))
			schedule()

		case <-timerCh:
			changes, err := ix.Sync(ctx)
			if err != nil {
				ix.logger.Warn("watcher: sync failed", slog.String("error", err.Error()))
				continue
			}
			if len(changes) > 0 && cb != nil {
				cb(changes)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			rel, relErr := filepath.Rel(root, ev.Name)
			if relErr != nil {
				continue
			}
			rel = filepath.ToSlash(rel)

			// Directories in the layout may appear after the watch started.
			if ev.Op&fsnotify.Create != 0 && isWatchedDir(rel) {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					watched = append(watched, addProjectDirsUnder(w, root, rel)...)
					schedule()
					continue
				}
			}

			if relevant(rel) {
				ix.logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", ev.Op.String()))
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			ix.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// relevant reports whether a root-relative path affects the mirror.
func relevant(rel string) bool {
	switch {
	case rel == project.BlogIndexPath, rel == project.PortfolioIndexPath:
		return true
	case strings.HasPrefix(rel, project.MarkdownDir+"/") && strings.HasSuffix(rel, ".md"):
		return !strings.Contains(strings.TrimPrefix(rel, project.MarkdownDir+"/"), "/")
	}
	return false
}

func isWatchedDir(rel string) bool {
	for _, d := range watchedDirs {
		if d == rel {
			return true
		}
	}
	return false
}

// addProjectDirs watches every layout directory that exists under root.
func addProjectDirs(w *fsnotify.Watcher, root string) []string {
	return addProjectDirsUnder(w, root, ".")
}

// addProjectDirsUnder watches the layout directories at or below rel.
func addProjectDirsUnder(w *fsnotify.Watcher, root, rel string) []string {
	var added []string
	for _, d := range watchedDirs {
		if rel != "." && d != rel && !strings.HasPrefix(d, rel+"/") {
			continue
		}
		abs := filepath.Join(root, filepath.FromSlash(d))
		if info, err := os.Stat(abs); err != nil || !info.IsDir() {
			continue
		}
		if err := w.Add(abs); err == nil {
			added = append(added, abs)
		}
	}
	return added
}
