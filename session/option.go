package session

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Option configures a Session.
type Option func(*options) error

type options struct {
	logger         *slog.Logger
	parallelism    int
	concurrent     bool
	expireOnCommit bool
	onCommit       []CommitHook
	onRollback     []RollbackHook
}

func defaultOptions() *options {
	return &options{
		logger:         slog.Default(),
		parallelism:    1,
		expireOnCommit: true,
	}
}

// WithLogger sets the logger of the session and of its flushes.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) error {
		if l == nil {
			return errors.New("session: nil logger")
		}
		o.logger = l
		return nil
	}
}

// WithParallelism sets the maximum number of independent batches of a
// flush wave that are executed concurrently. It has an effect only with
// WithConcurrency.
func WithParallelism(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return fmt.Errorf("session: parallelism must be positive, got %d", n)
		}
		o.parallelism = n
		return nil
	}
}

// WithConcurrency reports the transactions of the driver as safe for
// statements from several goroutines.
func WithConcurrency() Option {
	return func(o *options) error {
		o.concurrent = true
		return nil
	}
}

// WithExpireOnCommit sets whether Commit releases all instances from the
// session. It defaults to true.
func WithExpireOnCommit(expire bool) Option {
	return func(o *options) error {
		o.expireOnCommit = expire
		return nil
	}
}

// WithCommitHook appends commit middlewares. The first hook is the
// outermost.
func WithCommitHook(hooks ...CommitHook) Option {
	return func(o *options) error {
		o.onCommit = append(o.onCommit, hooks...)
		return nil
	}
}

// WithRollbackHook appends rollback middlewares. The first hook is the
// outermost.
func WithRollbackHook(hooks ...RollbackHook) Option {
	return func(o *options) error {
		o.onRollback = append(o.onRollback, hooks...)
		return nil
	}
}

// Config is the file representation of the session options.
//
//	parallelism: 4
//	concurrent: true
//	expire_on_commit: false
type Config struct {
	Parallelism    int   `yaml:"parallelism" mapstructure:"parallelism"`
	Concurrent     bool  `yaml:"concurrent" mapstructure:"concurrent"`
	ExpireOnCommit *bool `yaml:"expire_on_commit" mapstructure:"expire_on_commit"`
}

// ReadConfig decodes a YAML configuration. Unknown keys are rejected.
func ReadConfig(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	c := &Config{}
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("session: decode config: %w", err)
	}
	return c, nil
}

// LoadConfig reads the YAML configuration file at path.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("session: open config: %w", err)
	}
	defer f.Close()
	return ReadConfig(f)
}

// Options returns the options described by c.
func (c *Config) Options() []Option {
	var opts []Option
	if c.Parallelism != 0 {
		opts = append(opts, WithParallelism(c.Parallelism))
	}
	if c.Concurrent {
		opts = append(opts, WithConcurrency())
	}
	if c.ExpireOnCommit != nil {
		opts = append(opts, WithExpireOnCommit(*c.ExpireOnCommit))
	}
	return opts
}
