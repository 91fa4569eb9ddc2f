package printing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// ReceiptStore keeps receipt documents addressed by a relative reference
type ReceiptStore interface {
	// Write stores a new document and returns its reference. Existing
	// documents are never overwritten.
	Write(ctx context.Context, number string, issuedAt time.Time, doc *Document) (string, error)
	// Open returns the document stored under ref
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes a document; a missing document is not an error
	Delete(ctx context.Context, ref string) error
	// Path returns the location of ref for display
	Path(ref string) string
}

// FileReceiptStore stores receipts on an afero filesystem rooted at a base
// directory. Layout: {base}/{year}/{month}/{number}{ext}
type FileReceiptStore struct {
	base   string
	fs     afero.Fs
	logger *zap.Logger
}

// NewFileReceiptStore creates a receipt store under baseDir. Paths that
// would escape baseDir are rejected by the underlying BasePathFs.
func NewFileReceiptStore(fsys afero.Fs, baseDir string, logger *zap.Logger) *FileReceiptStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseDir == "" {
		baseDir = "."
	}
	return &FileReceiptStore{
		base:   baseDir,
		fs:     afero.NewBasePathFs(fsys, baseDir),
		logger: logger,
	}
}

// ReceiptRef builds the relative reference of a receipt, e.g.
// 2026/10/INV20261016153012-000001.html
func ReceiptRef(number string, issuedAt time.Time, ext string) string {
	return path.Join(
		fmt.Sprintf("%04d", issuedAt.Year()),
		fmt.Sprintf("%02d", issuedAt.Month()),
		number+ext,
	)
}

// Write saves the document under its sharded reference
func (s *FileReceiptStore) Write(ctx context.Context, number string, issuedAt time.Time, doc *Document) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	if doc == nil || len(doc.Content) == 0 {
		return "", NewRenderError(ErrCodeStorageFailed, "receipt document is empty", nil)
	}
	if strings.TrimSpace(number) == "" || strings.ContainsAny(number, `/\`) || number == ".." {
		return "", NewRenderError(ErrCodeInvalidRef, "invalid invoice number for receipt: "+number, nil)
	}

	ref := ReceiptRef(number, issuedAt, doc.Ext)

	if err := s.fs.MkdirAll(path.Dir(ref), 0o755); err != nil {
		return "", NewRenderError(ErrCodeStorageFailed, "failed to create receipt directory", err)
	}

	f, err := s.fs.OpenFile(ref, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", NewRenderError(ErrCodeStorageFailed, "receipt already exists: "+ref, err)
		}
		return "", NewRenderError(ErrCodeStorageFailed, "failed to create receipt file", err)
	}

	if _, err := f.Write(doc.Content); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(ref)
		return "", NewRenderError(ErrCodeStorageFailed, "failed to write receipt file", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(ref)
		return "", NewRenderError(ErrCodeStorageFailed, "failed to sync receipt file", err)
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(ref)
		return "", NewRenderError(ErrCodeStorageFailed, "failed to close receipt file", err)
	}

	s.logger.Debug("receipt stored",
		zap.String("ref", ref),
		zap.Int("size", len(doc.Content)))

	return ref, nil
}

// Open returns a reader for the stored receipt
func (s *FileReceiptStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewRenderError(ErrCodeStorageFailed, "operation cancelled", err)
	}
	if err := validateRef(ref); err != nil {
		s.logger.Warn("blocked receipt reference", zap.String("ref", ref))
		return nil, err
	}

	f, err := s.fs.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewRenderError(ErrCodeStorageFailed, "receipt not found: "+ref, err)
		}
		return nil, NewRenderError(ErrCodeStorageFailed, "failed to open receipt", err)
	}
	return f, nil
}

// Delete removes a stored receipt
func (s *FileReceiptStore) Delete(ctx context.Context, ref string) error {
	if err := validateRef(ref); err != nil {
		s.logger.Warn("blocked receipt reference", zap.String("ref", ref))
		return err
	}

	if err := s.fs.Remove(ref); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return NewRenderError(ErrCodeStorageFailed, "failed to delete receipt", err)
	}

	s.logger.Info("receipt deleted", zap.String("ref", ref))
	return nil
}

// Path joins the base directory and ref
func (s *FileReceiptStore) Path(ref string) string {
	return filepath.Join(s.base, filepath.FromSlash(ref))
}

// validateRef rejects absolute references and ".." components
func validateRef(ref string) error {
	if strings.TrimSpace(ref) == "" || path.IsAbs(ref) || filepath.IsAbs(ref) || containsDotDot(ref) {
		return NewRenderError(ErrCodeInvalidRef, "invalid receipt reference: "+ref, nil)
	}
	return nil
}

// containsDotDot checks if a path contains ".." components
func containsDotDot(p string) bool {
	parts := strings.FieldsFunc(p, func(r rune) bool {
		return r == '/' || r == '\\'
	})
	return slices.Contains(parts, "..")
}

var _ ReceiptStore = (*FileReceiptStore)(nil)
