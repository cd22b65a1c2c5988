// Package build runs the site's build script in the current project and
// streams its output to the log sink.
package build

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/sitedesk/internal/apperr"
)

// FinishedLine is logged after every run that started.
const FinishedLine = "--- build finished ---"

// Sink receives human-readable log lines.
type Sink interface {
	Log(message string)
}

type nopSink struct{}

func (nopSink) Log(string) {}

// Outcome is the completion signal of one run.
type Outcome struct {
	RunID    string        `json:"run_id"`
	Success  bool          `json:"success"`
	ExitCode int           `json:"exit_code"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Runner launches `<interpreter> <script>` with the working directory set to
// the project root resolved at start time. Only one run is active at a time.
type Runner struct {
	root        func() string
	interpreter string
	script      string
	sink        Sink
	logger      *slog.Logger

	mu      sync.Mutex
	running string
}

// Option configures a Runner.
type Option func(*Runner)

// WithCommand sets the interpreter and script.
func WithCommand(interpreter, script string) Option {
	return func(r *Runner) {
		r.interpreter = interpreter
		r.script = script
	}
}

// WithSink routes output lines to s.
func WithSink(s Sink) Option {
	return func(r *Runner) { r.sink = s }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. root is called on every Start.
func NewRunner(root func() string, opts ...Option) *Runner {
	r := &Runner{
		root:        root,
		interpreter: "python3",
		script:      "build.py",
		sink:        nopSink{},
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Running returns the ID of the active run, or "".
func (r *Runner) Running() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches a run and returns immediately. The channel receives exactly
// one Outcome and is then closed. A second Start while a run is active fails
// with apperr.ErrConflict.
func (r *Runner) Start(ctx context.Context) (string, <-chan Outcome, error) {
	r.mu.Lock()
	if r.running != "" {
		id := r.running
		r.mu.Unlock()
		return "", nil, fmt.Errorf("build: run %s in progress: %w", id, apperr.ErrConflict)
	}
	id := uuid.NewString()
	r.running = id
	r.mu.Unlock()

	done := make(chan Outcome, 1)
	root := r.root()

	cmd := exec.CommandContext(ctx, r.interpreter, r.script)
	cmd.Dir = root
	stdout, err := cmd.StdoutPipe()
	var stderr io.ReadCloser
	if err == nil {
		stderr, err = cmd.StderrPipe()
	}
	if err == nil {
		err = cmd.Start()
	}
	if err != nil {
		r.finish(done, Outcome{RunID: id, ExitCode: -1, Message: "build failed to start: " + err.Error()})
		r.sink.Log("build failed to start: " + err.Error())
		r.logger.Error("build: launch failed", slog.String("run_id", id), slog.String("error", err.Error()))
		return id, done, nil
	}

	r.logger.Info("build: started", slog.String("run_id", id), slog.String("root", root))
	go r.wait(cmd, id, stdout, stderr, done)
	return id, done, nil
}

func (r *Runner) wait(cmd *exec.Cmd, id string, stdout, stderr io.Reader, done chan<- Outcome) {
	start := time.Now()

	// Both pipes must be drained before Wait closes them.
	var g errgroup.Group
	g.Go(func() error { return r.stream(stdout, "") })
	g.Go(func() error { return r.stream(stderr, "Error: ") })
	if err := g.Wait(); err != nil {
		r.logger.Warn("build: output read failed", slog.String("run_id", id), slog.String("error", err.Error()))
	}

	waitErr := cmd.Wait()
	r.sink.Log(FinishedLine)

	out := Outcome{RunID: id, Success: waitErr == nil, Duration: time.Since(start)}
	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
	case errors.As(waitErr, &exitErr):
		out.ExitCode = exitErr.ExitCode()
		out.Message = fmt.Sprintf("build exited with code %d", out.ExitCode)
	default:
		out.ExitCode = -1
		out.Message = waitErr.Error()
	}

	r.logger.Info("build: finished", slog.String("run_id", id),
		slog.Bool("success", out.Success), slog.Int("exit_code", out.ExitCode),
		slog.Duration("duration", out.Duration))
	r.finish(done, out)
}

func (r *Runner) stream(rd io.Reader, prefix string) error {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		r.sink.Log(prefix + sc.Text())
	}
	return sc.Err()
}

func (r *Runner) finish(done chan<- Outcome, out Outcome) {
	r.mu.Lock()
	r.running = ""
	r.mu.Unlock()
	done <- out
	close(done)
}
