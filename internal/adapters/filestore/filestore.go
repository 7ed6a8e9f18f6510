// Package filestore persists uploaded images on local disk and hands back
// opaque reference paths. Callers thread the reference through to responses
// without interpreting it.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/apsara-ai/derma/pkg/logger"
)

// ErrSaveFailed indicates the upload could not be persisted. Surfaced to
// the caller; a failed save is never silently dropped.
var ErrSaveFailed = errors.New("filestore: save failed")

const dirPerm = 0o750

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the logger used by the store.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Store writes uploads under a single base directory.
type Store struct {
	baseDir string
	log     logger.Logger
}

// New creates a Store rooted at baseDir, creating it if absent.
func New(baseDir string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(baseDir, dirPerm); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", baseDir, err)
	}

	s := &Store{
		baseDir: baseDir,
		log:     logger.Named("filestore"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Save persists the image bytes under a fresh opaque name and returns the
// reference path. format is the decoded image format name and selects the
// file extension.
func (s *Store) Save(ctx context.Context, data []byte, format string) (string, error) {
	name := uuid.NewString() + extensionFor(format)
	path := filepath.Join(s.baseDir, name)

	if err := os.WriteFile(path, data, 0o640); err != nil {
		s.log.Error(ctx, "failed to persist upload",
			logger.String("path", path),
			logger.Error(err))
		return "", fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	s.log.Debug(ctx, "upload persisted",
		logger.String("path", path),
		logger.Int("bytes", len(data)))
	return path, nil
}

func extensionFor(format string) string {
	switch format {
	case "jpeg":
		return ".jpg"
	case "png":
		return ".png"
	case "webp":
		return ".webp"
	default:
		return ".bin"
	}
}
