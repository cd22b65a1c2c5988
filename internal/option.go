package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config      *Config
	projectRoot string
	logOutput   io.Writer
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithProjectRoot overrides project.root from the configuration.
func WithProjectRoot(root string) Option {
	return func(a *application) {
		a.projectRoot = root
	}
}

// WithLogOutput sets where the JSON log is written. Defaults to stdout.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}
