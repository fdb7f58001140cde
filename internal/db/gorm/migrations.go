// Package gorm provides GORM-based database operations for sommelier.
package gorm

import (
	"fmt"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
// embeddingDims sizes the pgvector column on PostgreSQL; the sqlite backend
// stores the same vectors in text form and ignores the dimensionality.
func runMigrations(db *gorm.DB, embeddingDims int) error {
	isPostgres := db.Dialector.Name() == "postgres"

	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Catalog and inventory tables (read-side mirrors)
		{
			ID: "001_catalog_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&CatalogWine{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&CellarBottle{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("catalog_wines", "cellar_bottles")
			},
		},

		// Migration 002: pgvector extension (PostgreSQL only)
		{
			ID: "002_vector_extension",
			Migrate: func(tx *gorm.DB) error {
				if !isPostgres {
					return nil
				}
				return tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error
			},
			Rollback: func(tx *gorm.DB) error { return nil },
		},

		// Migration 003: Catalog embeddings table
		{
			ID: "003_catalog_embeddings",
			Migrate: func(tx *gorm.DB) error {
				if isPostgres {
					return tx.Exec(fmt.Sprintf(`
						CREATE TABLE IF NOT EXISTS catalog_embeddings (
							wine_id    BIGINT PRIMARY KEY,
							embedding  vector(%d) NOT NULL,
							model      TEXT NOT NULL,
							updated_at TIMESTAMPTZ NOT NULL
						)`, embeddingDims)).Error
				}
				return tx.AutoMigrate(&WineEmbedding{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("catalog_embeddings")
			},
		},

		// Migration 004: Index on embedding freshness
		{
			ID: "004_embeddings_updated_idx",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec(
					"CREATE INDEX IF NOT EXISTS idx_embeddings_updated ON catalog_embeddings (updated_at)").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Exec("DROP INDEX IF EXISTS idx_embeddings_updated").Error
			},
		},

		// Migration 005: User profiles and recommendations
		{
			ID: "005_profiles_recommendations",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&UserProfile{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&Recommendation{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("user_profiles", "user_recommendations")
			},
		},
	})

	return m.Migrate()
}
