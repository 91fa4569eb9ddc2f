// Package store persists homogeneous collections of records as JSON files.
//
// A collection is loaded and saved as a whole. Loading never fails: a
// missing file is an empty collection and records that cannot be decoded
// or do not validate are skipped with a warning.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Record is a value that can check its own invariants after decoding
type Record interface {
	Validate() error
}

// Collection is the load/replace contract of a persisted collection
type Collection[T Record] interface {
	// Load returns every valid record in stored order
	Load(ctx context.Context) []T
	// Save replaces the whole collection
	Save(ctx context.Context, records []T) error
}

// FileCollection stores a collection as an indented JSON array in one file
type FileCollection[T Record] struct {
	fs     afero.Fs
	path   string
	logger *zap.Logger
}

// NewFileCollection creates a collection stored at path on fsys
func NewFileCollection[T Record](fsys afero.Fs, path string, logger *zap.Logger) *FileCollection[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileCollection[T]{
		fs:     fsys,
		path:   path,
		logger: logger.With(zap.String("collection", path)),
	}
}

// Path returns the file backing the collection
func (c *FileCollection[T]) Path() string {
	return c.path
}

// Load implements Collection
func (c *FileCollection[T]) Load(ctx context.Context) []T {
	records := make([]T, 0)
	if err := ctx.Err(); err != nil {
		c.logger.Warn("load cancelled", zap.Error(err))
		return records
	}

	data, err := afero.ReadFile(c.fs, c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("collection unreadable, treating as empty", zap.Error(err))
		}
		return records
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		c.logger.Warn("collection is not a JSON array, treating as empty", zap.Error(err))
		return records
	}

	for i, msg := range raw {
		var rec T
		if err := json.Unmarshal(msg, &rec); err != nil {
			c.logger.Warn("skipping undecodable record", zap.Int("index", i), zap.Error(err))
			continue
		}
		if err := rec.Validate(); err != nil {
			c.logger.Warn("skipping invalid record", zap.Int("index", i), zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Save implements Collection. The array is written to a temporary file
// next to the target and renamed over it.
func (c *FileCollection[T]) Save(ctx context.Context, records []T) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if records == nil {
		records = []T{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.path, err)
	}

	dir := filepath.Dir(c.path)
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(c.fs, dir, filepath.Base(c.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", c.path, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", c.path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("sync %s: %w", c.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", c.path, err)
	}
	if err := c.fs.Rename(tmpName, c.path); err != nil {
		_ = c.fs.Remove(tmpName)
		return fmt.Errorf("replace %s: %w", c.path, err)
	}

	c.logger.Debug("collection saved", zap.Int("records", len(records)))
	return nil
}

var _ Collection[Record] = (*FileCollection[Record])(nil)
