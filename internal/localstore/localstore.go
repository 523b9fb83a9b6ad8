// Package localstore is the file-backed persistence provider. Records are
// kept as JSON documents on disk, one file per owner, newest first, so the
// application works without any database server.
package localstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/datastore"
	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/logging"
)

const (
	usersFile      = "users.json"
	recordFileMode = 0o644
	recordDirMode  = 0o755
)

// Store implements datastore.Interface on top of a filesystem. A single
// mutex serializes writers; the JSON files are small enough that whole-file
// rewrites stay cheap.
type Store struct {
	fs     afero.Fs
	path   string
	mu     sync.RWMutex
	logger *slog.Logger
}

var _ datastore.Interface = (*Store)(nil)

// New creates a store rooted at the configured local path.
func New(settings *conf.Settings) *Store {
	return NewWithFs(afero.NewOsFs(), settings.Output.Local.Path)
}

// NewWithFs creates a store on an explicit filesystem. Tests pass an
// in-memory one.
func NewWithFs(fs afero.Fs, path string) *Store {
	logger := logging.ForService("localstore")
	if logger == nil {
		logger = slog.Default().With("service", "localstore")
	}
	return &Store{fs: fs, path: path, logger: logger}
}

// Open makes sure the storage directory exists.
func (s *Store) Open() error {
	if s.path == "" {
		return errors.Newf("local store path is not configured").
			Component("localstore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if err := s.fs.MkdirAll(s.path, recordDirMode); err != nil {
		return errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("path", s.path).
			Build()
	}
	return nil
}

// Close is a no-op; nothing stays open between operations.
func (s *Store) Close() error { return nil }

func (s *Store) ownerFile(ownerID string) string {
	return filepath.Join(s.path, "analyses_"+ownerID+".json")
}

func (s *Store) readRecords(ownerID string) ([]datastore.AnalysisRecord, error) {
	data, err := afero.ReadFile(s.fs, s.ownerFile(ownerID))
	if err != nil {
		// A missing file just means an empty history.
		if exists, _ := afero.Exists(s.fs, s.ownerFile(ownerID)); !exists {
			return nil, nil
		}
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("owner_id", ownerID).
			Build()
	}

	var records []datastore.AnalysisRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("operation", "decode_records").
			Context("owner_id", ownerID).
			Build()
	}
	return records, nil
}

func (s *Store) writeRecords(ownerID string, records []datastore.AnalysisRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("operation", "encode_records").
			Build()
	}
	if err := afero.WriteFile(s.fs, s.ownerFile(ownerID), data, recordFileMode); err != nil {
		return errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("operation", "write_records").
			Context("owner_id", ownerID).
			Build()
	}
	return nil
}

// Save prepends the record to the owner's file so the slice stays newest
// first on disk.
func (s *Store) Save(ctx context.Context, record *datastore.AnalysisRecord) error {
	if record.OwnerID == "" {
		return errors.Newf("analysis record has no owner").
			Component("localstore").
			Category(errors.CategoryValidation).
			Build()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords(record.OwnerID)
	if err != nil {
		return err
	}

	records = append([]datastore.AnalysisRecord{*record}, records...)
	if err := s.writeRecords(record.OwnerID, records); err != nil {
		return err
	}

	s.logger.Debug("analysis saved to local store",
		"record_id", record.ID,
		"owner_id", record.OwnerID,
		"history_size", len(records))
	return nil
}

// Get returns one record, enforcing the same ownership rules as the
// database backend. Since files are per owner, a record under another
// owner's file is found by scanning all files only to distinguish
// forbidden from not found.
func (s *Store) Get(ctx context.Context, ownerID, id string) (*datastore.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readRecords(ownerID)
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].ID == id {
			return &records[i], nil
		}
	}

	if owned, err := s.recordExistsElsewhere(ownerID, id); err == nil && owned {
		return nil, errors.Newf("analysis record %s belongs to another user", id).
			Component("localstore").
			Category(errors.CategoryForbidden).
			Build()
	}
	return nil, errors.Newf("analysis record %s not found", id).
		Component("localstore").
		Category(errors.CategoryNotFound).
		Build()
}

// recordExistsElsewhere reports whether the id exists under a different
// owner's file.
func (s *Store) recordExistsElsewhere(ownerID, id string) (bool, error) {
	entries, err := afero.ReadDir(s.fs, s.path)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == usersFile || name == s.ownerFileName(ownerID) {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(s.path, name))
		if err != nil {
			continue
		}
		var records []datastore.AnalysisRecord
		if json.Unmarshal(data, &records) != nil {
			continue
		}
		for i := range records {
			if records[i].ID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) ownerFileName(ownerID string) string {
	return "analyses_" + ownerID + ".json"
}

// GetHistory returns the owner's records newest first.
func (s *Store) GetHistory(ctx context.Context, ownerID string, limit, offset int) ([]datastore.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readRecords(ownerID)
	if err != nil {
		return nil, err
	}

	if offset > 0 {
		if offset >= len(records) {
			return nil, nil
		}
		records = records[offset:]
	}
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records, nil
}

// CountAnalyses returns how many records the owner has saved.
func (s *Store) CountAnalyses(ctx context.Context, ownerID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readRecords(ownerID)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// Delete removes a record from the owner's file.
func (s *Store) Delete(ctx context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords(ownerID)
	if err != nil {
		return err
	}

	for i := range records {
		if records[i].ID == id {
			records = append(records[:i], records[i+1:]...)
			return s.writeRecords(ownerID, records)
		}
	}

	if owned, err := s.recordExistsElsewhere(ownerID, id); err == nil && owned {
		return errors.Newf("analysis record %s belongs to another user", id).
			Component("localstore").
			Category(errors.CategoryForbidden).
			Build()
	}
	return errors.Newf("analysis record %s not found", id).
		Component("localstore").
		Category(errors.CategoryNotFound).
		Build()
}

// ListAnalyses merges every owner's file into one list, newest first.
func (s *Store) ListAnalyses(ctx context.Context, limit, offset int) ([]datastore.AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.path)
	if err != nil {
		return nil, errors.New(err).
			Component("localstore").
			Category(errors.CategoryLocalStore).
			Context("operation", "list_analyses").
			Build()
	}

	var all []datastore.AnalysisRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "analyses_") {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(s.path, name))
		if err != nil {
			continue
		}
		var records []datastore.AnalysisRecord
		if json.Unmarshal(data, &records) != nil {
			continue
		}
		all = append(all, records...)
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(all) {
			return nil, nil
		}
		all = all[offset:]
	}
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

// Dashboard folds the owner's full history into summary statistics.
func (s *Store) Dashboard(ctx context.Context, ownerID string) (*datastore.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.readRecords(ownerID)
	if err != nil {
		return nil, err
	}
	return datastore.FoldStats(records), nil
}
