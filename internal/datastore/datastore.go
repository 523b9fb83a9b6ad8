package datastore

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/redharvest/redharvest-go/internal/errors"
	"github.com/redharvest/redharvest-go/internal/stage"
)

// DataStore holds the shared GORM handle and implements every operation
// that does not differ between database backends.
type DataStore struct {
	DB *gorm.DB
}

func (ds *DataStore) checkConnection() error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Build()
	}
	return nil
}

// Save stores the record and its detections in a single transaction.
func (ds *DataStore) Save(ctx context.Context, record *AnalysisRecord) error {
	if err := ds.checkConnection(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.OwnerID == "" {
		return errors.Newf("analysis record has no owner").
			Component("datastore").
			Category(errors.CategoryValidation).
			Build()
	}

	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(record).Error
	})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save_record").
			Context("record_id", record.ID).
			Build()
	}
	return nil
}

// Get fetches one record with its detections, enforcing ownership.
func (ds *DataStore) Get(ctx context.Context, ownerID, id string) (*AnalysisRecord, error) {
	if err := ds.checkConnection(); err != nil {
		return nil, err
	}

	var record AnalysisRecord
	err := ds.DB.WithContext(ctx).
		Preload("Detections").
		Where("id = ?", id).
		First(&record).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, notFoundErr(id)
	case err != nil:
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_record").
			Context("record_id", id).
			Build()
	}

	if record.OwnerID != ownerID {
		return nil, forbiddenErr(id)
	}
	return &record, nil
}

// GetHistory returns the owner's records newest first.
func (ds *DataStore) GetHistory(ctx context.Context, ownerID string, limit, offset int) ([]AnalysisRecord, error) {
	if err := ds.checkConnection(); err != nil {
		return nil, err
	}

	query := ds.DB.WithContext(ctx).
		Preload("Detections").
		Where("owner_id = ?", ownerID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var records []AnalysisRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_history").
			Build()
	}
	return records, nil
}

// CountAnalyses returns the owner's record count.
func (ds *DataStore) CountAnalyses(ctx context.Context, ownerID string) (int64, error) {
	if err := ds.checkConnection(); err != nil {
		return 0, err
	}

	var count int64
	err := ds.DB.WithContext(ctx).
		Model(&AnalysisRecord{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error
	if err != nil {
		return 0, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "count_analyses").
			Build()
	}
	return count, nil
}

// Delete removes a record and its detection rows, enforcing ownership.
func (ds *DataStore) Delete(ctx context.Context, ownerID, id string) error {
	if err := ds.checkConnection(); err != nil {
		return err
	}

	return ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record AnalysisRecord
		err := tx.Where("id = ?", id).First(&record).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return notFoundErr(id)
		case err != nil:
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryDatabase).
				Context("operation", "delete_record").
				Context("record_id", id).
				Build()
		}
		if record.OwnerID != ownerID {
			return forbiddenErr(id)
		}

		// SQLite does not always enforce the cascade, so detections go
		// explicitly inside the same transaction.
		if err := tx.Where("record_id = ?", id).Delete(&DetectionRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(&record).Error
	})
}

// CreateUser stores a new account. Duplicate emails surface as a database
// error from the unique index.
func (ds *DataStore) CreateUser(ctx context.Context, user *User) error {
	if err := ds.checkConnection(); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = RoleUser
	}

	if err := ds.DB.WithContext(ctx).Create(user).Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "create_user").
			Build()
	}
	return nil
}

// GetUserByEmail looks an account up by its unique email.
func (ds *DataStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	if err := ds.checkConnection(); err != nil {
		return nil, err
	}

	var user User
	err := ds.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Newf("no account for email").
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	case err != nil:
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_user_by_email").
			Build()
	}
	return &user, nil
}

// GetUser looks an account up by id.
func (ds *DataStore) GetUser(ctx context.Context, id string) (*User, error) {
	if err := ds.checkConnection(); err != nil {
		return nil, err
	}

	var user User
	err := ds.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, errors.Newf("no account with id %s", id).
			Component("datastore").
			Category(errors.CategoryNotFound).
			Build()
	case err != nil:
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "get_user").
			Build()
	}
	return &user, nil
}

// ListUsers returns every account, oldest first.
func (ds *DataStore) ListUsers(ctx context.Context) ([]User, error) {
	if err := ds.checkConnection(); err != nil {
		return nil, err
	}

	var users []User
	if err := ds.DB.WithContext(ctx).Order("created_at").Find(&users).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_users").
			Build()
	}
	return users, nil
}

// ListAnalyses returns records across all owners, newest first.
func (ds *DataStore) ListAnalyses(ctx context.Context, limit, offset int) ([]AnalysisRecord, error) {
	if err := ds.checkConnection(); err != nil {
		return nil, err
	}

	query := ds.DB.WithContext(ctx).
		Preload("Detections").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var records []AnalysisRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "list_analyses").
			Build()
	}
	return records, nil
}

// Dashboard folds every record the owner has saved into summary stats.
// Implemented in analytics.go.

func notFoundErr(id string) error {
	return errors.Newf("analysis record %s not found", id).
		Component("datastore").
		Category(errors.CategoryNotFound).
		Context("record_id", id).
		Build()
}

func forbiddenErr(id string) error {
	return errors.Newf("analysis record %s belongs to another user", id).
		Component("datastore").
		Category(errors.CategoryForbidden).
		Context("record_id", id).
		Build()
}

// matureStage is the identifier counted as ripe fruit in dashboard stats.
var matureStage = stage.Maturity.String()
