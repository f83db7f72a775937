package gen

import (
	"errors"
	"go/token"
	"runtime"

	"github.com/spf13/afero"
)

// DefaultHeader is the comment written at the top of every generated file.
const DefaultHeader = "Code generated by uow. DO NOT EDIT."

// Config holds the configuration of a generation run.
type Config struct {
	// Package is the name of the generated package.
	Package string
	// Target is the directory the files are written to.
	Target string
	// Header is the comment at the top of each generated file.
	Header string
	// Workers bounds the number of files rendered concurrently.
	Workers int
	// Fs is the file system the files are written to.
	Fs afero.Fs
}

// Option configures code generation.
type Option func(*Config) error

// WithPackage sets the name of the generated package.
func WithPackage(name string) Option {
	return func(c *Config) error {
		if !token.IsIdentifier(name) {
			return NewConfigError("Package", name, "package must be a valid identifier")
		}
		c.Package = name
		return nil
	}
}

// WithTarget sets the output directory.
func WithTarget(dir string) Option {
	return func(c *Config) error {
		if dir == "" {
			return NewConfigError("Target", nil, "target directory cannot be empty")
		}
		c.Target = dir
		return nil
	}
}

// WithHeader sets the file header comment.
func WithHeader(header string) Option {
	return func(c *Config) error {
		c.Header = header
		return nil
	}
}

// WithWorkers sets the number of parallel workers.
func WithWorkers(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return NewConfigError("Workers", n, "workers must be positive")
		}
		c.Workers = n
		return nil
	}
}

// WithFs sets the file system the generated files are written to.
func WithFs(fs afero.Fs) Option {
	return func(c *Config) error {
		if fs == nil {
			return NewConfigError("Fs", nil, "file system cannot be nil")
		}
		c.Fs = fs
		return nil
	}
}

// Apply applies options to the config.
// It returns the first error encountered.
func (c *Config) Apply(opts ...Option) error {
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return err
		}
	}
	return nil
}

// ApplyAll applies options and collects all errors.
func (c *Config) ApplyAll(opts ...Option) error {
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewConfig creates a new Config with the given options.
func NewConfig(opts ...Option) (*Config, error) {
	c := &Config{
		Package: "model",
		Target:  "model",
		Header:  DefaultHeader,
		Workers: runtime.GOMAXPROCS(0),
		Fs:      afero.NewOsFs(),
	}
	if err := c.Apply(opts...); err != nil {
		return nil, err
	}
	return c, nil
}
