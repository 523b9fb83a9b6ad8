package datastore

import (
	"gorm.io/gorm"

	"github.com/redharvest/redharvest-go/internal/conf"
	"github.com/redharvest/redharvest-go/internal/errors"
)

// New returns the store matching the configured output provider. The store
// still has to be opened before use.
func New(settings *conf.Settings) (Interface, error) {
	switch {
	case settings.Output.SQLite.Enabled:
		return &SQLiteStore{Settings: settings}, nil
	case settings.Output.MySQL.Enabled:
		return &MySQLStore{Settings: settings}, nil
	default:
		return nil, errors.Newf("no database backend enabled").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// performAutoMigration creates or updates the schema for every model.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&AnalysisRecord{}, &DetectionRecord{}, &User{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Context("operation", "auto_migration").
			Build()
	}

	if debug {
		getLogger().Debug("database schema migrated",
			"db_type", dbType,
			"connection", connectionInfo)
	}
	return nil
}
