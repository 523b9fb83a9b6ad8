package datastore

import (
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/errors"
)

// SQLiteStore implements Interface backed by a SQLite file.
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

// Open sets up the SQLite database connection and migrates the schema.
func (store *SQLiteStore) Open() error {
	path := store.Settings.Output.SQLite.Path
	if path == "" {
		return errors.Newf("sqlite path is not configured").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}

	dir, fileName := filepath.Split(path)
	absolutePath := filepath.Join(conf.GetBasePath(dir), fileName)

	db, err := gorm.Open(sqlite.Open(absolutePath), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", "SQLite").
			Context("path", absolutePath).
			Build()
	}

	// SQLite needs the pragma on every connection to honor the cascade
	// constraints declared on the models.
	if err := db.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "enable_foreign_keys").
			Build()
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", absolutePath)
}

// Close releases the underlying connection.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}
	sqlDB, err := store.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
