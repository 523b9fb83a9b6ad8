// Package blobstore keeps the uploaded analysis images on disk and hands
// out the durable URLs that get persisted with each record.
package blobstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/logging"
)

const (
	blobDirMode  = 0o755
	blobFileMode = 0o644
)

// Store writes image blobs under root/analyses/<owner>/ and maps them to
// URLs below baseURL.
type Store struct {
	fs      afero.Fs
	root    string
	baseURL string
	logger  *slog.Logger
	now     func() time.Time
}

// New creates a store from the storage settings.
func New(settings *conf.Settings) *Store {
	return NewWithFs(afero.NewOsFs(), settings.Storage.Path, settings.Storage.BaseURL)
}

// NewWithFs creates a store on an explicit filesystem for tests.
func NewWithFs(fs afero.Fs, root, baseURL string) *Store {
	logger := logging.ForService("blobstore")
	if logger == nil {
		logger = slog.Default().With("service", "blobstore")
	}
	return &Store{
		fs:      fs,
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		now:     time.Now,
	}
}

// Upload stores the image bytes and returns the blob's relative location.
// The name embeds a nanosecond timestamp so repeated uploads of the same
// file never collide.
func (s *Store) Upload(ctx context.Context, ownerID, fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.Newf("empty image payload").
			Component("blobstore").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	location := path.Join("analyses", ownerID,
		fmt.Sprintf("%d_%s", s.now().UnixNano(), sanitizeFileName(fileName)))
	fullPath := filepath.Join(s.root, filepath.FromSlash(location))

	if err := s.fs.MkdirAll(filepath.Dir(fullPath), blobDirMode); err != nil {
		return "", errors.New(err).
			Component("blobstore").
			Category(errors.CategoryBlobStorage).
			Context("operation", "mkdir").
			Build()
	}
	if err := afero.WriteFile(s.fs, fullPath, data, blobFileMode); err != nil {
		return "", errors.New(err).
			Component("blobstore").
			Category(errors.CategoryBlobStorage).
			Context("operation", "write_blob").
			Context("location", location).
			Build()
	}

	s.logger.Debug("image blob stored",
		"location", location,
		"bytes", len(data),
		"owner_id", ownerID)
	return location, nil
}

// Remove deletes a stored blob. Used to compensate when the record write
// fails after the image already landed on disk; a blob that is already
// gone is not an error.
func (s *Store) Remove(ctx context.Context, location string) error {
	fullPath := filepath.Join(s.root, filepath.FromSlash(location))
	err := s.fs.Remove(fullPath)
	if err != nil {
		if exists, _ := afero.Exists(s.fs, fullPath); !exists {
			return nil
		}
		return errors.New(err).
			Component("blobstore").
			Category(errors.CategoryBlobStorage).
			Context("operation", "remove_blob").
			Context("location", location).
			Build()
	}
	return nil
}

// Open returns a reader for a stored blob.
func (s *Store) Open(location string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.root, filepath.FromSlash(location))
	f, err := s.fs.Open(fullPath)
	if err != nil {
		return nil, errors.New(err).
			Component("blobstore").
			Category(errors.CategoryNotFound).
			Context("location", location).
			Build()
	}
	return f, nil
}

// URL maps a blob location to the public URL persisted in records.
func (s *Store) URL(location string) string {
	return s.baseURL + "/" + location
}

// Root returns the filesystem root, used to mount static file serving.
func (s *Store) Root() string {
	return s.root
}

// sanitizeFileName strips any path components and characters that do not
// belong in a stored name.
func sanitizeFileName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "image.jpg"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
