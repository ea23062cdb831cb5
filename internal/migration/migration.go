// Package migration copies all stride data from one storage provider to
// another, for moving between the JSON, SQLite, and PostgreSQL backends.
package migration

import (
	"fmt"
	"strings"

	"github.com/stride-app/stride/internal/logger"
	"github.com/stride-app/stride/internal/storage"
)

// OpenSource builds a provider for a source path or connection string, using
// the same dispatch rules as the main config flag.
func OpenSource(source string) (storage.Provider, error) {
	var src storage.Provider
	switch {
	case strings.HasPrefix(source, "postgres://") || strings.HasPrefix(source, "postgresql://"):
		if storage.HasEmbeddedCredentials(source) {
			return nil, fmt.Errorf("source connection string must not embed credentials")
		}
		src = storage.NewPostgresStore(source)
	case strings.HasSuffix(source, ".json"):
		src = storage.NewJSONStore(source)
	default:
		src = storage.NewSQLiteStore(source)
	}
	if err := src.Load(); err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}
	return src, nil
}

// Migrate copies settings, daily records, and both singleton states from src
// into dst. dst must be initialized and loaded. Existing records in dst for
// the same days are overwritten; the history and streak state land in one
// atomic replace so a failed migration cannot leave dst half-written.
func Migrate(src, dst storage.Provider) error {
	settings, err := src.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to read source settings: %w", err)
	}
	records, err := src.AllRecords()
	if err != nil {
		return fmt.Errorf("failed to read source records: %w", err)
	}
	streakState, err := src.GetStreakState()
	if err != nil {
		return fmt.Errorf("failed to read source streak state: %w", err)
	}
	shieldState, err := src.GetShieldState()
	if err != nil {
		return fmt.Errorf("failed to read source shield state: %w", err)
	}

	if settings.DailyStepGoal > 0 {
		if err := dst.SaveSettings(settings); err != nil {
			return fmt.Errorf("failed to write settings: %w", err)
		}
	}
	if err := dst.ReplaceHistory(records, streakState); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := dst.SaveShieldState(shieldState); err != nil {
		return fmt.Errorf("failed to write shield state: %w", err)
	}

	logger.Info("Migrated storage",
		"records", len(records),
		"from", src.GetConfigPath(),
		"to", dst.GetConfigPath())
	return nil
}

// Verify compares record counts and singleton states between the two
// providers after a migration.
func Verify(src, dst storage.Provider) error {
	srcRecords, err := src.AllRecords()
	if err != nil {
		return err
	}
	dstRecords, err := dst.AllRecords()
	if err != nil {
		return err
	}
	if len(srcRecords) != len(dstRecords) {
		return fmt.Errorf("record count mismatch after migration: source %d, destination %d", len(srcRecords), len(dstRecords))
	}

	srcStreak, err := src.GetStreakState()
	if err != nil {
		return err
	}
	dstStreak, err := dst.GetStreakState()
	if err != nil {
		return err
	}
	if srcStreak != dstStreak {
		return fmt.Errorf("streak state mismatch after migration: source %+v, destination %+v", srcStreak, dstStreak)
	}

	srcShield, err := src.GetShieldState()
	if err != nil {
		return err
	}
	dstShield, err := dst.GetShieldState()
	if err != nil {
		return err
	}
	if srcShield != dstShield {
		return fmt.Errorf("shield state mismatch after migration: source %+v, destination %+v", srcShield, dstShield)
	}
	return nil
}
