package storage

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/tphan267/huddle/pkg/logger"
	"github.com/tphan267/huddle/pkg/storage/repositories"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// SQLiteStorage implements Storage interface using SQLite
type SQLiteStorage struct {
	db     *gorm.DB
	logger *logger.Logger

	credentialRepo *repositories.CredentialRepository
}

// NewSQLiteStorage opens (or creates) the database at dbPath. ":memory:" is
// accepted for tests.
func NewSQLiteStorage(dbPath string, appLogger *logger.Logger) (Storage, error) {
	gormLogger := gormlogger.Default.LogMode(gormlogger.Silent)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if appLogger != nil {
		appLogger.Info("SQLite database opened: %s", dbPath)
	} else {
		log.Printf("SQLite database opened: %s", dbPath)
	}

	return &SQLiteStorage{
		db:             db,
		logger:         appLogger,
		credentialRepo: repositories.NewCredentialRepository(db),
	}, nil
}

// DB returns the underlying GORM database instance
func (s *SQLiteStorage) DB() *gorm.DB {
	return s.db
}

func (s *SQLiteStorage) CredentialRepo() *repositories.CredentialRepository {
	return s.credentialRepo
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("SQLite database closed")
	} else {
		log.Println("SQLite database closed")
	}
	return nil
}
