package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/cms-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureStructureIndexes creates the indexes AutoMigrate cannot express.
// Partial indexes use syntax shared by PostgreSQL and SQLite.
func EnsureStructureIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		{
			name: "idx_term_closure_ancestor_depth",
			sql:  `CREATE INDEX IF NOT EXISTS idx_term_closure_ancestor_depth ON taxonomy_term_closure(ancestor_id, depth);`,
		},
		{
			name: "idx_taxonomy_term_slug_active",
			sql: `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_taxonomy_term_slug_active
				ON taxonomy_term(taxonomy_id, slug)
				WHERE deleted_at IS NULL;
			`,
		},
		{
			name: "idx_blueprint_embed_embedded",
			sql:  `CREATE INDEX IF NOT EXISTS idx_blueprint_embed_embedded ON blueprint_embed(embedded_blueprint_id, blueprint_id);`,
		},
	}
	for _, s := range stmts {
		if err := db.Exec(s.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", s.name, err)
		}
	}
	return nil
}

// Migrate runs AutoMigrateAll followed by EnsureStructureIndexes.
func Migrate(db *gorm.DB) error {
	if err := AutoMigrateAll(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return EnsureStructureIndexes(db)
}
