package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/deusflow/feedwatch/internal/logger"
	"github.com/deusflow/feedwatch/internal/storage"
)

// ErrNotExist is returned by Store.Read when there is no prior archive.
var ErrNotExist = errors.New("archive does not exist")

// Store persists the ordered item list.
type Store interface {
	Read(ctx context.Context) ([]Item, error)
	Write(ctx context.Context, items []Item) error
}

// FileStore keeps the archive as a single rendered HTML file.
type FileStore struct {
	Path   string
	Logger *slog.Logger
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string, log *slog.Logger) *FileStore {
	return &FileStore{Path: path, Logger: logger.Component(log, "archive")}
}

func (s *FileStore) log() *slog.Logger {
	if s.Logger == nil {
		return logger.Discard()
	}
	return s.Logger
}

func (s *FileStore) Read(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.Path, err)
	}
	items, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return items, nil
}

// Write renders items and atomically replaces the file. An identical
// document is left alone.
func (s *FileStore) Write(ctx context.Context, items []Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := Render(items)
	if err != nil {
		return err
	}

	if old, err := os.ReadFile(s.Path); err == nil && bytes.Equal(old, doc) {
		s.log().Debug("archive unchanged, skipping write", "path", s.Path, "items", len(items))
		return nil
	}

	if err := storage.WriteFileAtomic(s.Path, doc, 0o644); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	s.log().Debug("archive written", "path", s.Path, "items", len(items), "bytes", len(doc))
	return nil
}
