package config

import (
	"fmt"

	"oneoftools/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenDB opens the postgres connection and applies the pool settings
func OpenDB(cfg DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	logrus.Infof("Connected to database %s at %s:%s", cfg.Name, cfg.Host, cfg.Port)
	return db, nil
}

// AutoMigrate creates or updates the boutique tables
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Collection{},
		&models.CollectionNFT{},
		&models.NFTEvent{},
		&models.UnmonitoredNFTEvent{},
		&models.NFTMetadataRecord{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// CloseDB releases the underlying connection pool
func CloseDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logrus.Warnf("Failed to close database: %v", err)
	}
}
