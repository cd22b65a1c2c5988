// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/sitedesk/internal/api"
	"github.com/starford/sitedesk/internal/build"
	"github.com/starford/sitedesk/internal/desktop"
	"github.com/starford/sitedesk/internal/index"
	"github.com/starford/sitedesk/internal/mcpserver"
	"github.com/starford/sitedesk/internal/preview"
	"github.com/starford/sitedesk/internal/sse"
)

// EventBuildFinished is published on the event stream after every build.
const EventBuildFinished = "build.finished"

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// SSE broker doubles as the log sink for content, build and preview.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	c, err := newCore(app, broker)
	if err != nil {
		return err
	}
	defer c.close()
	logger := c.logger

	runner := c.newBuildRunner(broker)

	opener := desktop.NewSystem()
	previewOpts := []preview.Option{
		preview.WithHost(cfg.Preview.Host),
		preview.WithSink(broker),
		preview.WithLogger(logger),
	}
	if cfg.Preview.OpenBrowser {
		previewOpts = append(previewOpts, preview.WithOpener(opener))
	}
	previewSrv := preview.NewServer(previewOpts...)

	apiRouter := api.NewRouter(api.Deps{
		Service: c.service,
		Builder: runner,
		Preview: previewSrv,
		Index:   c.db,
		Opener:  opener,
		Events:  broker,
		Log:     broker,
		BuildDone: func(out build.Outcome) {
			broker.Publish(sse.Event{Type: EventBuildFinished, Data: out})
		},
	}, cfg.Auth.AuthEnabled(), cfg.Auth.Token)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := c.db.Ping(); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Keep the index in step with edits made outside the app.
	g.Go(func() error {
		err := c.indexer.Watch(gCtx, c.pctx, func(changes []index.Change) {
			for _, ch := range changes {
				broker.PublishContentEvent("index."+ch.Kind, ch.Key)
			}
		})
		if err != nil {
			logger.Error("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := previewSrv.Close(shutdownCtx); err != nil {
			logger.Error("preview server shutdown error", slog.String("error", err.Error()))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// lineSink writes each log line to w.
type lineSink struct {
	w io.Writer
}

func (s lineSink) Log(line string) {
	_, _ = fmt.Fprintln(s.w, line)
}

// RunBuild runs the site build once in the project root and prints its
// output to out.
func RunBuild(ctx context.Context, out io.Writer, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := newCore(app, nil)
	if err != nil {
		return err
	}
	defer c.close()

	runner := c.newBuildRunner(lineSink{w: out})
	_, done, err := runner.Start(ctx)
	if err != nil {
		return err
	}
	res := <-done
	if !res.Success {
		if res.Message != "" {
			return fmt.Errorf("build failed: %s", res.Message)
		}
		return fmt.Errorf("build failed with exit code %d", res.ExitCode)
	}
	return nil
}

// CreateProject scaffolds parent/name from the bundled resources.
func CreateProject(ctx context.Context, name, parent string, opts ...Option) (string, error) {
	app, err := newApplication(opts)
	if err != nil {
		return "", err
	}
	c, err := newCore(app, nil)
	if err != nil {
		return "", err
	}
	defer c.close()

	res := c.service.CreateProject(ctx, name, parent)
	if !res.Success {
		return "", fmt.Errorf("%s: %w", res.Message, res.Err())
	}
	return res.Path, nil
}

// ServeMCP serves the content tools over stdio. Logs go to the configured
// log output, never to stdout, which carries the protocol.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := newCore(app, nil)
	if err != nil {
		return err
	}
	defer c.close()

	c.logger.Info("MCP server starting on stdio", slog.String("project_root", c.pctx.Root()))
	return mcpserver.New(c.service, c.db).ServeStdio()
}
