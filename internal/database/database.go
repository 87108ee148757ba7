// Package database opens the sqlite file backing the catalog library and
// the annotation store, and keeps its schema migrated.
package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"marginalia/internal/entities"
)

// SchemaVersion tags the persisted layout. Bump when the stored annotation
// shape changes so an older database can be detected and migrated.
const SchemaVersion = 1

type Database struct {
	DB *gorm.DB
}

func NewDatabase(dbPath string) (*Database, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.CatalogEntry{},
		&entities.StoredAnnotationSet{},
		&entities.StoredAnnotation{},
		&entities.SchemaInfo{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	database := &Database{DB: db}
	if err := database.ensureSchemaVersion(); err != nil {
		return nil, err
	}

	log.Printf("Database initialized at %s (schema v%d)", dbPath, SchemaVersion)
	return database, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) ensureSchemaVersion() error {
	var info entities.SchemaInfo
	result := d.DB.First(&info)
	if result.Error == gorm.ErrRecordNotFound {
		info = entities.SchemaInfo{Version: SchemaVersion}
		if err := d.DB.Create(&info).Error; err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	}
	if result.Error != nil {
		return fmt.Errorf("failed to read schema version: %w", result.Error)
	}
	if info.Version > SchemaVersion {
		return fmt.Errorf("database schema v%d is newer than this build (v%d)", info.Version, SchemaVersion)
	}
	// Older versions would be migrated here once v2 exists.
	return nil
}

// CurrentSchemaVersion reads the version tag from the database.
func (d *Database) CurrentSchemaVersion() (int, error) {
	var info entities.SchemaInfo
	if err := d.DB.First(&info).Error; err != nil {
		return 0, err
	}
	return info.Version, nil
}
