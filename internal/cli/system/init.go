package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stride-app/stride/internal/cli"
	"github.com/stride-app/stride/internal/migration"
	"github.com/stride-app/stride/internal/models"
)

type InitCmd struct {
	Force  bool   `help:"Force reset by deleting existing storage before initialization."`
	Source string `help:"Source storage path or connection string to migrate data from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		dbPath := ctx.Store.GetConfigPath()
		if c.Source != "" {
			absDbPath, err := filepath.Abs(dbPath)
			if err == nil {
				dbPath = absDbPath
			}
			absSource, err := filepath.Abs(c.Source)
			if err == nil && absSource == dbPath {
				return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
			}
		}
		if _, err := os.Stat(dbPath); err == nil {
			if err := ctx.Store.Close(); err != nil {
				return fmt.Errorf("failed to close existing storage: %w", err)
			}
			if err := os.Remove(dbPath); err != nil {
				return fmt.Errorf("failed to delete existing storage: %w", err)
			}
			fmt.Printf("Deleted existing storage at: %s\n", dbPath)
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access existing storage: %w", err)
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	if err := ctx.Store.Load(); err != nil {
		return err
	}

	// Seed default settings on first init only
	settings, err := ctx.Store.GetSettings()
	if err != nil || settingsEmpty(settings) {
		if err := ctx.Store.SaveSettings(models.DefaultSettings()); err != nil {
			return err
		}
	}

	fmt.Printf("Initialized stride storage at: %s\n", ctx.Store.GetConfigPath())

	if c.Source != "" {
		src, err := migration.OpenSource(c.Source)
		if err != nil {
			return err
		}
		defer src.Close()

		if err := migration.Migrate(src, ctx.Store); err != nil {
			return err
		}
		if err := migration.Verify(src, ctx.Store); err != nil {
			return err
		}
		fmt.Printf("Migrated data from: %s\n", c.Source)
	}
	return nil
}

func settingsEmpty(settings models.Settings) bool {
	return settings.DailyStepGoal == 0
}

type ResetCmd struct {
	Force bool `help:"Required to actually wipe all streak data."`
}

func (c *ResetCmd) Run(ctx *cli.Context) error {
	if !c.Force {
		return errors.New("this deletes all records, streaks, and shields. Re-run with --force to confirm")
	}

	if err := ctx.Engine.Reset(); err != nil {
		return err
	}
	fmt.Println("All streak data deleted. Settings were kept.")
	return nil
}
