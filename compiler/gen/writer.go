package gen

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/dave/jennifer/jen"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Writer renders generated files and writes them to the target directory
// of a config, in parallel.
type Writer struct {
	cfg *Config

	mu      sync.Mutex
	metrics WriterMetrics
}

// WriterMetrics tracks generation output.
type WriterMetrics struct {
	FilesGenerated int
	TotalBytes     int64
}

// NewWriter creates a new writer for the given config.
func NewWriter(cfg *Config) *Writer {
	return &Writer{cfg: cfg}
}

// Metrics returns the generation metrics.
func (w *Writer) Metrics() WriterMetrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// fileTask represents a single file generation task.
type fileTask struct {
	name   string // output file name, relative to the target.
	entity string // entity name, if the file belongs to one.
	build  func() (*jen.File, error)
}

// WriteAll renders and writes all files. It returns the paths of the
// written files, sorted.
func (w *Writer) WriteAll(ctx context.Context, files []fileTask) ([]string, error) {
	if err := w.cfg.Fs.MkdirAll(w.cfg.Target, 0o755); err != nil {
		return nil, fmt.Errorf("gen: create output directory: %w", err)
	}
	var (
		mu    sync.Mutex
		paths = make([]string, 0, len(files))
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.cfg.Workers)
	for _, f := range files {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path, err := w.writeFile(f)
			if err != nil {
				return &GenerationError{Entity: f.entity, File: f.name, Cause: err}
			}
			mu.Lock()
			paths = append(paths, path)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// writeFile renders and writes a single file.
func (w *Writer) writeFile(f fileTask) (string, error) {
	jf, err := f.build()
	if err != nil {
		return "", err
	}
	if w.cfg.Header != "" {
		jf.HeaderComment(w.cfg.Header)
	}
	var buf bytes.Buffer
	if err := jf.Render(&buf); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	path := filepath.Join(w.cfg.Target, f.name)
	if err := afero.WriteFile(w.cfg.Fs, path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	w.mu.Lock()
	w.metrics.FilesGenerated++
	w.metrics.TotalBytes += int64(buf.Len())
	w.mu.Unlock()
	return path, nil
}
