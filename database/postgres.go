// Package database stores users and events in PostgreSQL through gorm.
package database

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"portal-backend/config"
	"portal-backend/models"
	"portal-backend/portal"
)

// Connect opens the PostgreSQL connection described by cfg, retrying with
// exponential backoff while the server comes up.
func Connect(cfg config.Postgres, log *logrus.Logger) (*gorm.DB, error) {
	dsn := cfg.DSN
	if dsn == "" {
		dsn = fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, cfg.Port, cfg.SSLMode,
		)
	}

	gormLogger := logger.Default.LogMode(logger.Silent)
	if log.IsLevelEnabled(logrus.DebugLevel) {
		gormLogger = logger.Default.LogMode(logger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	backoff := time.Second
	for attempt := 1; attempt <= cfg.ConnectRetries; attempt++ {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger, TranslateError: true})
		if err == nil {
			break
		}
		log.WithError(err).WithField("attempt", attempt).Warn("database connection failed, retrying")
		time.Sleep(backoff)
		backoff *= 2
	}
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.WithFields(logrus.Fields{"host": cfg.Host, "db": cfg.Name}).Info("database connected")
	return db, nil
}

// Migrate creates or updates the tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Event{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Stores returns gorm-backed stores sharing db.
func Stores(db *gorm.DB) portal.Stores {
	return portal.Stores{Users: &UserStore{db: db}, Events: &EventStore{db: db}}
}

func notFoundOr(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return portal.ErrNotFound
	}
	return portal.StorageError(op, err)
}
