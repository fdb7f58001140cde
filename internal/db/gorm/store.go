// Package gorm provides GORM-based database operations for sommelier.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store represents the database connection. Production deployments use
// PostgreSQL (with pgvector); a plain file path DSN opens a pure-Go sqlite
// database for development and tests.
type Store struct {
	DB    *gorm.DB
	sqlDB *sql.DB
}

// Config holds database configuration.
type Config struct {
	DSN           string          // postgres://... or a sqlite file path
	MaxConns      int             // maximum open connections (default: 10)
	LogLevel      logger.LogLevel // GORM log level (logger.Silent for production)
	EmbeddingDims int             // pgvector column dimensionality
}

// NewStore creates a new Store and runs migrations.
func NewStore(cfg Config) (*Store, error) {
	// 1. Pick dialector from DSN shape
	var dialector gorm.Dialector
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		dialector = postgres.Open(cfg.DSN)
	} else {
		dialector = sqlite.Open(cfg.DSN)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:      logger.Default.LogMode(cfg.LogLevel),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	// 2. Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 10
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	// 3. Verify connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// 4. Run migrations
	dims := cfg.EmbeddingDims
	if dims <= 0 {
		dims = 1536
	}
	if err := runMigrations(db, dims); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{DB: db, sqlDB: sqlDB}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.sqlDB.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.sqlDB.PingContext(ctx)
}

// GetDB returns the GORM DB instance for standard queries.
func (s *Store) GetDB() *gorm.DB {
	return s.DB
}

// Stats returns database connection pool statistics.
func (s *Store) Stats() sql.DBStats {
	return s.sqlDB.Stats()
}

// IsPostgres reports whether the store is backed by PostgreSQL.
func (s *Store) IsPostgres() bool {
	return s.DB.Dialector.Name() == "postgres"
}
