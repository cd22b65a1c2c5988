package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/starford/sitedesk/internal/build"
	"github.com/starford/sitedesk/internal/content"
	"github.com/starford/sitedesk/internal/index"
	"github.com/starford/sitedesk/internal/project"
	"github.com/starford/sitedesk/internal/storage"
)

// core holds the components every command shares.
type core struct {
	cfg       *Config
	logger    *slog.Logger
	logFile   io.Closer
	pctx      *project.Context
	scaffold  *project.Scaffolder
	db        *index.DB
	indexer   *index.Indexer
	service   *content.Service
	resources string
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// openLogFile opens the rotating log file described by lf.
var openLogFile = func(lf LogFileConfig) io.WriteCloser {
	return &lumberjack.Logger{
		Filename:   lf.Path,
		MaxSize:    lf.MaxSizeMB,
		MaxBackups: lf.MaxBackups,
		MaxAge:     lf.MaxAgeDays,
	}
}

// newLogger builds the JSON logger. When a log file is configured the
// handler writes to both out and a rotating file.
func newLogger(cfg *Config, out io.Writer) (*slog.Logger, io.Closer) {
	var closer io.Closer
	if lf := cfg.App.LogFile; lf.Path != "" {
		rotating := openLogFile(lf)
		out = io.MultiWriter(out, rotating)
		closer = rotating
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	return logger, closer
}

// newCore opens the index and wires the project, content and indexer
// components. notifier may be nil.
func newCore(app *application, notifier content.Notifier) (_ *core, err error) {
	cfg := app.config
	logger, logFile := newLogger(cfg, app.logOutput)
	defer func() {
		if err != nil && logFile != nil {
			_ = logFile.Close()
		}
	}()
	slog.SetDefault(logger)

	root := cfg.Project.Root
	if app.projectRoot != "" {
		root = app.projectRoot
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		root = wd
	}
	pctx, err := project.NewContext(root)
	if err != nil {
		return nil, err
	}

	resources, err := filepath.Abs(cfg.Project.Resources)
	if err != nil {
		return nil, fmt.Errorf("resolve resources: %w", err)
	}

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("project_root", pctx.Root()),
		slog.String("resources", resources),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init index: %w", err)
	}

	c := &core{
		cfg:       cfg,
		logger:    logger,
		logFile:   logFile,
		pctx:      pctx,
		scaffold:  project.NewScaffolder(pctx, os.DirFS(resources), logger),
		db:        db,
		resources: resources,
	}

	svcOpts := []content.ServiceOption{
		content.WithLogger(logger),
		content.WithChangeHook(c.syncIndex),
	}
	if notifier != nil {
		svcOpts = append(svcOpts, content.WithNotifier(notifier))
	}
	c.service = content.NewService(pctx, c.scaffold, svcOpts...)
	c.indexer = index.NewIndexer(db, c.service, storage.NewFS(pctx.Root), logger)

	if _, err := c.indexer.Sync(context.Background()); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	return c, nil
}

func (c *core) syncIndex() {
	if _, err := c.indexer.Sync(context.Background()); err != nil {
		c.logger.Warn("index sync failed", slog.String("error", err.Error()))
	}
}

// newBuildRunner runs the configured script from the resources directory
// with the current project root as working directory.
func (c *core) newBuildRunner(sink build.Sink) *build.Runner {
	script := c.cfg.Build.Script
	if !filepath.IsAbs(script) {
		script = filepath.Join(c.resources, script)
	}
	return build.NewRunner(c.pctx.Root,
		build.WithCommand(c.cfg.Build.Interpreter, script),
		build.WithSink(sink),
		build.WithLogger(c.logger),
	)
}

func (c *core) close() {
	if err := c.db.Close(); err != nil {
		c.logger.Warn("close index", slog.String("error", err.Error()))
	}
	if c.logFile != nil {
		_ = c.logFile.Close()
	}
}
