package scheduler

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/storage"
	"github.com/stride-app/stride/internal/streak"
)

func setupTestDaemon(t *testing.T, today string) (*Daemon, *streak.Engine) {
	t.Helper()

	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "stride.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	if err := store.Load(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	settings := models.DefaultSettings()
	settings.Timezone = "UTC"
	if err := store.SaveSettings(settings); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}

	engine := streak.NewEngineWithClock(store, func() time.Time {
		ts, err := time.Parse("2006-01-02", today)
		if err != nil {
			t.Fatalf("bad test day %q: %v", today, err)
		}
		return ts.Add(12 * time.Hour)
	})
	return NewDaemon(engine, nil, t.TempDir()), engine
}

func TestRolloverBreaksStreakOnUncoveredMiss(t *testing.T) {
	d, engine := setupTestDaemon(t, "2025-06-04")

	settings, _ := engine.Store().GetSettings()
	for _, day := range []string{"2025-06-01", "2025-06-02"} {
		if _, err := engine.RecordSteps(day, settings.DailyStepGoal); err != nil {
			t.Fatalf("failed to record steps: %v", err)
		}
	}

	// Yesterday (06-03) has no record and the bank is empty
	d.rollover()

	state, _, err := engine.States()
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if state.CurrentStreak != 0 {
		t.Errorf("expected streak broken by rollover, got %d", state.CurrentStreak)
	}
	if state.LongestStreak != 2 {
		t.Errorf("expected longest preserved at 2, got %d", state.LongestStreak)
	}
}

func TestRolloverDeploysShield(t *testing.T) {
	d, engine := setupTestDaemon(t, "2025-06-04")

	if err := engine.Store().SaveShieldState(models.ShieldState{Available: 2, LastRefillDay: "2025-06-01"}); err != nil {
		t.Fatalf("failed to seed shields: %v", err)
	}
	settings, _ := engine.Store().GetSettings()
	for _, day := range []string{"2025-06-01", "2025-06-02"} {
		if _, err := engine.RecordSteps(day, settings.DailyStepGoal); err != nil {
			t.Fatalf("failed to record steps: %v", err)
		}
	}

	d.rollover()

	state, shieldState, err := engine.States()
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if state.CurrentStreak != 2 {
		t.Errorf("expected streak preserved at 2, got %d", state.CurrentStreak)
	}
	if state.LastGoalMetDay != "2025-06-03" {
		t.Errorf("expected shield to cover 2025-06-03, got last day %s", state.LastGoalMetDay)
	}
	if shieldState.Available != 1 {
		t.Errorf("expected one shield spent, got %d", shieldState.Available)
	}
}

func TestRefillJob(t *testing.T) {
	d, engine := setupTestDaemon(t, "2025-06-15")

	d.refill()
	d.refill()

	_, shieldState, err := engine.States()
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if shieldState.Available != 2 {
		t.Errorf("expected free tier refill to 2, got %d", shieldState.Available)
	}
}

func TestSetupJobs(t *testing.T) {
	d, _ := setupTestDaemon(t, "2025-06-15")
	if err := d.setupJobs(); err != nil {
		t.Errorf("unexpected error scheduling jobs: %v", err)
	}
}

func TestDaemonRunning(t *testing.T) {
	dir := t.TempDir()
	pidfile := filepath.Join(dir, "stride-daemon.pid")

	// Missing pidfile
	if _, running := DaemonRunning(pidfile); running {
		t.Error("expected not running for missing pidfile")
	}

	// Garbage content
	if err := os.WriteFile(pidfile, []byte("notapid"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, running := DaemonRunning(pidfile); running {
		t.Error("expected not running for malformed pidfile")
	}

	// Live process but not a stride binary (this test process)
	if err := os.WriteFile(pidfile, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, running := DaemonRunning(pidfile); running {
		t.Error("expected not running for non-stride process")
	}
}

func TestWritePidfileOverwritesStale(t *testing.T) {
	d, _ := setupTestDaemon(t, "2025-06-15")

	if err := os.WriteFile(d.pidfile, []byte("999999"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := d.writePidfile(); err != nil {
		t.Fatalf("expected stale pidfile to be overwritten: %v", err)
	}

	data, err := os.ReadFile(d.pidfile)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != strconv.Itoa(os.Getpid()) {
		t.Errorf("expected own pid in pidfile, got %q", string(data))
	}

	d.removePidfile()
	if _, err := os.Stat(d.pidfile); !os.IsNotExist(err) {
		t.Error("expected pidfile removed")
	}
}
