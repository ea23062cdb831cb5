package system

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/stride-app/stride/internal/cli"
	"github.com/stride-app/stride/internal/constants"
	"github.com/stride-app/stride/internal/keyring"
	"github.com/stride-app/stride/internal/scheduler"
	"github.com/stride-app/stride/internal/utils"
	"github.com/stride-app/stride/internal/validation"
)

type DoctorCmd struct{}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	storeReachable := false

	// Check 1: storage reachable
	if err := checkStoreReachable(ctx); err != nil {
		fmt.Printf("❌ Storage reachable: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Storage reachable: OK\n")
		storeReachable = true
	}

	// Check 2: settings sane
	if storeReachable {
		if err := checkSettings(ctx); err != nil {
			fmt.Printf("❌ Settings: FAIL\n")
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		} else {
			fmt.Printf("✓ Settings: OK\n")
		}
	} else {
		fmt.Printf("⊘ Settings: SKIPPED (storage not reachable)\n")
	}

	// Checks 3-5: history, streak state, shield bank
	if storeReachable {
		historyErrs, streakWarns, shieldErrs, err := runValidation(ctx)
		if err != nil {
			fmt.Printf("❌ Data validation: FAIL\n")
			fmt.Printf("   Error: %v\n", err)
			hasError = true
		} else {
			if historyErrs.HasConflicts() {
				fmt.Printf("❌ History: FAIL\n")
				fmt.Printf("   %s", historyErrs.FormatReport())
				hasError = true
			} else {
				fmt.Printf("✓ History: OK\n")
			}
			// Streak inconsistencies are repairable via reconcile, warn only
			if streakWarns.HasConflicts() {
				fmt.Printf("⚠ Streak state: WARNING (run 'stride reconcile' to rebuild)\n")
				fmt.Printf("   %s", streakWarns.FormatReport())
			} else {
				fmt.Printf("✓ Streak state: OK\n")
			}
			if shieldErrs.HasConflicts() {
				fmt.Printf("❌ Shield bank: FAIL\n")
				fmt.Printf("   %s", shieldErrs.FormatReport())
				hasError = true
			} else {
				fmt.Printf("✓ Shield bank: OK\n")
			}
		}
	} else {
		fmt.Printf("⊘ History: SKIPPED (storage not reachable)\n")
		fmt.Printf("⊘ Streak state: SKIPPED (storage not reachable)\n")
		fmt.Printf("⊘ Shield bank: SKIPPED (storage not reachable)\n")
	}

	// Check 6: daemon status (informational)
	pidfile := filepath.Join(filepath.Dir(ctx.Store.GetConfigPath()), constants.PidfileName)
	if pid, running := scheduler.DaemonRunning(pidfile); running {
		fmt.Printf("✓ Daemon: running (pid %d)\n", pid)
	} else {
		fmt.Printf("ℹ Daemon: not running (days are settled on next start)\n")
	}

	// Check 7: keyring availability (informational, only matters for PostgreSQL)
	if keyring.IsAvailable() {
		fmt.Printf("✓ OS keyring: available\n")
	} else {
		fmt.Printf("ℹ OS keyring: not available (PostgreSQL credentials cannot be stored)\n")
	}

	// Check 8: clock and timezone sanity
	if err := checkClockTimezone(ctx, storeReachable); err != nil {
		fmt.Printf("❌ Clock/timezone: FAIL\n")
		fmt.Printf("   Error: %v\n", err)
		hasError = true
	} else {
		fmt.Printf("✓ Clock/timezone: OK\n")
	}

	fmt.Println()
	if hasError {
		return errors.New("diagnostics found problems")
	}
	fmt.Println("All checks passed.")
	return nil
}

func checkStoreReachable(ctx *cli.Context) error {
	_, err := ctx.Store.GetStreakState()
	return err
}

func checkSettings(ctx *cli.Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return err
	}
	if settings.DailyStepGoal <= 0 {
		return fmt.Errorf("daily step goal must be positive, got %d (run 'stride init')", settings.DailyStepGoal)
	}
	if !utils.ValidateTimezone(settings.Timezone) {
		return fmt.Errorf("configured timezone %q does not resolve", settings.Timezone)
	}
	return nil
}

func runValidation(ctx *cli.Context) (history, streak, shield *validation.ValidationResult, err error) {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return nil, nil, nil, err
	}
	records, err := ctx.Store.AllRecords()
	if err != nil {
		return nil, nil, nil, err
	}
	streakState, err := ctx.Store.GetStreakState()
	if err != nil {
		return nil, nil, nil, err
	}
	shieldState, err := ctx.Store.GetShieldState()
	if err != nil {
		return nil, nil, nil, err
	}
	today, err := ctx.Engine.Today()
	if err != nil {
		return nil, nil, nil, err
	}

	history = validation.CheckHistory(records, today)
	streak = validation.CheckStreakState(streakState, records)
	shield = validation.CheckShieldState(shieldState, settings.Tier, records)
	return history, streak, shield, nil
}

func checkClockTimezone(ctx *cli.Context, storeReachable bool) error {
	now := time.Now()
	if now.Year() < 2020 {
		return fmt.Errorf("system clock looks wrong: %s", now.Format(time.RFC3339))
	}
	if !storeReachable {
		return nil
	}
	if _, err := ctx.Engine.Today(); err != nil {
		return err
	}
	return nil
}
