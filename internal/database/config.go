package database

import (
	"fmt"
	"time"

	"eventease/internal/config"
	"eventease/internal/models"
	"eventease/internal/store"
	"eventease/internal/utils"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const (
	maxRetries = 5
	retryDelay = 5 * time.Second
)

// Open connects to Postgres, configures the pool and, when enabled, migrates the schema
func Open(cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if !cfg.IsProduction() {
		level = logger.Info
	}

	gormConfig := NewGormConfig(log, level)
	gormConfig.PrepareStmt = true

	var db *gorm.DB
	var err error
	for i := 0; i < maxRetries; i++ {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
		if err == nil {
			break
		}
		log.Warn("Database connection attempt failed", zap.Int("attempt", i+1), zap.Error(err))
		if i < maxRetries-1 {
			log.Info("Retrying database connection", zap.Duration("delay", retryDelay))
			time.Sleep(retryDelay)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if cfg.DBAutoMigrate {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	log.Info("Database connection established", zap.Bool("auto_migrate", cfg.DBAutoMigrate))
	return db, nil
}

// NewGormConfig returns the GORM settings shared by every dialect
func NewGormConfig(log *zap.Logger, level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger: utils.NewCustomGormLogger(
			utils.NewZapGormLogger(log, level),
			store.DueWindowQueryPattern,
		),
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
		// Constraints come from the SQL migrations; reminders must outlive their event
		DisableForeignKeyConstraintWhenMigrating: true,
	}
}

// AutoMigrate creates or updates the tables for every model
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.EventRSVP{},
		&models.Reminder{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
