package storage

import (
	_ "embed"
	"fmt"
	"log/slog"

	"gorm.io/gorm"
)

//go:embed schema.sql
var schemaSQL string

const tableName = "transaction"

// SchemaVersion is the schema version written by this build.
// Raising it drops the transaction table and every row in it.
const SchemaVersion = 1

// applySchema brings the database to the target version inside a single
// SQL transaction, tracking the version in PRAGMA user_version.
func applySchema(db *gorm.DB, target int, logger *slog.Logger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		current, err := userVersion(tx)
		if err != nil {
			return err
		}

		switch {
		case current > target:
			return fmt.Errorf("cannot downgrade database from version %d to %d", current, target)
		case current == 0:
			logger.Info("creating database schema", "version", target)
		case current < target:
			logger.Warn("upgrading database, which will destroy all old data",
				"from", current, "to", target)
			if err := tx.Exec(`DROP TABLE IF EXISTS "transaction"`).Error; err != nil {
				return fmt.Errorf("failed to drop table: %w", err)
			}
		}

		if err := tx.Exec(schemaSQL).Error; err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
		if current == target {
			return nil
		}
		// PRAGMA does not accept bound parameters.
		if err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", target)).Error; err != nil {
			return fmt.Errorf("failed to set user_version: %w", err)
		}
		return nil
	})
}

func userVersion(db *gorm.DB) (int, error) {
	var version int
	if err := db.Raw("PRAGMA user_version").Scan(&version).Error; err != nil {
		return 0, fmt.Errorf("failed to read user_version: %w", err)
	}
	return version, nil
}
