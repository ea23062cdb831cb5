package reconcile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/storage"
	"github.com/stride-app/stride/internal/streak"
)

func setupTestService(t *testing.T, today string, totals []DayTotal) (*Service, *streak.Engine) {
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
	return NewService(engine, &staticSource{totals: totals}), engine
}

// dayRange generates consecutive qualifying totals for n days ending at end.
func dayRange(t *testing.T, end string, n, steps int) []DayTotal {
	t.Helper()
	endT, err := time.Parse("2006-01-02", end)
	if err != nil {
		t.Fatalf("bad end day %q: %v", end, err)
	}
	totals := make([]DayTotal, 0, n)
	for i := n - 1; i >= 0; i-- {
		totals = append(totals, DayTotal{
			Day:   endT.AddDate(0, 0, -i).Format("2006-01-02"),
			Steps: steps,
		})
	}
	return totals
}

func TestFreshInstallWithPriorHistory(t *testing.T) {
	svc, engine := setupTestService(t, "2025-06-30", dayRange(t, "2025-06-30", 90, 9000))

	result, err := svc.Run()
	if err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}
	if result.Superseded {
		t.Fatal("expected first run to commit")
	}
	if result.Days != 90 {
		t.Errorf("expected 90 records created, got %d", result.Days)
	}
	if result.Streak.CurrentStreak != 90 {
		t.Errorf("expected current streak 90, got %d", result.Streak.CurrentStreak)
	}
	if result.Streak.LongestStreak != 90 {
		t.Errorf("expected longest streak 90, got %d", result.Streak.LongestStreak)
	}

	records, err := engine.Store().AllRecords()
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 90 {
		t.Errorf("expected 90 stored records, got %d", len(records))
	}
}

func TestReinstallGapBridged(t *testing.T) {
	// Local state was wiped; the source still has 55 consecutive qualifying
	// days ending today.
	svc, engine := setupTestService(t, "2025-06-30", dayRange(t, "2025-06-30", 55, 8500))

	if err := engine.Store().SaveStreakState(models.StreakState{}); err != nil {
		t.Fatalf("failed to seed wiped state: %v", err)
	}

	result, err := svc.Run()
	if err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}
	if result.Streak.CurrentStreak != 55 {
		t.Errorf("expected current streak 55, got %d", result.Streak.CurrentStreak)
	}
}

func TestStaleRunIsZero(t *testing.T) {
	// History ends three days ago, so the run is stale and current is 0 while
	// longest still reflects it.
	svc, _ := setupTestService(t, "2025-06-30", dayRange(t, "2025-06-27", 10, 9000))

	result, err := svc.Run()
	if err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}
	if result.Streak.CurrentStreak != 0 {
		t.Errorf("expected stale streak 0, got %d", result.Streak.CurrentStreak)
	}
	if result.Streak.LongestStreak != 10 {
		t.Errorf("expected longest 10, got %d", result.Streak.LongestStreak)
	}
}

func TestReconcileDeterministic(t *testing.T) {
	totals := append(dayRange(t, "2025-06-10", 5, 9000), dayRange(t, "2025-06-30", 12, 9000)...)
	svc, _ := setupTestService(t, "2025-06-30", totals)

	first, err := svc.Run()
	if err != nil {
		t.Fatalf("failed first run: %v", err)
	}
	second, err := svc.Run()
	if err != nil {
		t.Fatalf("failed second run: %v", err)
	}
	if first.Streak != second.Streak {
		t.Errorf("expected identical state across runs, got %+v then %+v", first.Streak, second.Streak)
	}
	if second.Streak.CurrentStreak != 12 {
		t.Errorf("expected current streak 12, got %d", second.Streak.CurrentStreak)
	}
}

func TestReconcilePreservesShieldedDays(t *testing.T) {
	totals := dayRange(t, "2025-06-05", 5, 9000)
	totals[2].Steps = 100 // 06-03 was a shielded miss
	svc, engine := setupTestService(t, "2025-06-05", totals)

	settings, _ := engine.Store().GetSettings()
	for _, day := range []string{"2025-06-01", "2025-06-02", "2025-06-03"} {
		if _, err := engine.Store().UpsertRecord(day, 100, settings.DailyStepGoal); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}
	if err := engine.Store().MarkShieldUsed("2025-06-03"); err != nil {
		t.Fatalf("failed to mark shield: %v", err)
	}

	result, err := svc.Run()
	if err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}

	record, err := engine.Store().GetRecord("2025-06-03")
	if err != nil {
		t.Fatalf("failed to load shielded record: %v", err)
	}
	if !record.ShieldUsed {
		t.Error("expected shield flag to survive reconciliation")
	}
	if record.Steps != 100 {
		t.Errorf("expected steps from source, got %d", record.Steps)
	}
	if result.Streak.CurrentStreak != 5 {
		t.Errorf("expected shielded day to keep the run at 5, got %d", result.Streak.CurrentStreak)
	}
}

func TestFailClosedOnSourceError(t *testing.T) {
	svc, engine := setupTestService(t, "2025-06-05", nil)
	svc.source = &staticSource{err: errors.New("health store offline")}

	settings, _ := engine.Store().GetSettings()
	if _, err := engine.Store().UpsertRecord("2025-06-04", 9000, settings.DailyStepGoal); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	if err := engine.Store().SaveStreakState(models.StreakState{CurrentStreak: 1, LongestStreak: 1, LastGoalMetDay: "2025-06-04", StreakStartDay: "2025-06-04"}); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	if _, err := svc.Run(); err == nil {
		t.Fatal("expected error when source is unavailable")
	}

	state, err := engine.Store().GetStreakState()
	if err != nil {
		t.Fatalf("failed to load state: %v", err)
	}
	if state.CurrentStreak != 1 {
		t.Errorf("expected local state untouched after aborted run, got %+v", state)
	}
	records, err := engine.Store().AllRecords()
	if err != nil {
		t.Fatalf("failed to list records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected records untouched, got %d", len(records))
	}
}

func TestStaleRunDiscarded(t *testing.T) {
	svc, _ := setupTestService(t, "2025-06-30", dayRange(t, "2025-06-30", 3, 9000))

	// Simulate a newer run having already committed while this one's
	// sequence was allocated earlier
	svc.mu.Lock()
	svc.lastCommitted = 5
	svc.nextSeq = 0
	svc.mu.Unlock()

	result, err := svc.Run()
	if err != nil {
		t.Fatalf("failed to run: %v", err)
	}
	if !result.Superseded {
		t.Error("expected run with stale sequence to be discarded")
	}
}

// slowSource serves fixed totals and runs a hook during the fetch, standing in
// for a mutation that lands while the source call is in flight.
type slowSource struct {
	totals []DayTotal
	hook   func()
}

func (s *slowSource) FetchDailyTotals() ([]DayTotal, error) {
	if s.hook != nil {
		s.hook()
	}
	return (&staticSource{totals: s.totals}).FetchDailyTotals()
}

func TestReconcilePreservesRepairDuringFetch(t *testing.T) {
	// 06-03 is a miss in the source data; everything around it qualifies.
	totals := dayRange(t, "2025-06-05", 5, 9000)
	totals[2].Steps = 100
	svc, engine := setupTestService(t, "2025-06-05", totals)

	settings, _ := engine.Store().GetSettings()
	for _, total := range totals {
		if _, err := engine.Store().UpsertRecord(total.Day, total.Steps, settings.DailyStepGoal); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}
	if err := engine.Store().SaveStreakState(models.StreakState{CurrentStreak: 2, LongestStreak: 2, LastGoalMetDay: "2025-06-05", StreakStartDay: "2025-06-04"}); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}
	if err := engine.Store().SaveShieldState(models.ShieldState{Available: 1, LastRefillDay: "2025-06-01"}); err != nil {
		t.Fatalf("failed to seed shields: %v", err)
	}

	// The user repairs the missed day while the run is waiting on the source
	svc.source = &slowSource{totals: totals, hook: func() {
		repaired, err := engine.RepairDate("2025-06-03")
		if err != nil {
			t.Fatalf("failed to repair during fetch: %v", err)
		}
		if !repaired {
			t.Fatal("expected repair to succeed during fetch")
		}
	}}

	result, err := svc.Run()
	if err != nil {
		t.Fatalf("failed to reconcile: %v", err)
	}

	record, err := engine.Store().GetRecord("2025-06-03")
	if err != nil {
		t.Fatalf("failed to load repaired record: %v", err)
	}
	if !record.ShieldUsed {
		t.Error("expected shield flag from the concurrent repair to survive the commit")
	}
	if result.Streak.CurrentStreak != 5 {
		t.Errorf("expected repaired run of 5 to survive the commit, got %d", result.Streak.CurrentStreak)
	}
	_, shieldState, err := engine.States()
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if shieldState.Available != 0 {
		t.Errorf("expected the consumed shield still accounted for, got %d available", shieldState.Available)
	}
}

func TestAttemptStreakRepairSingleGap(t *testing.T) {
	svc, engine := setupTestService(t, "2025-06-05", nil)

	settings, _ := engine.Store().GetSettings()
	for _, day := range []string{"2025-06-01", "2025-06-02", "2025-06-04", "2025-06-05"} {
		if _, err := engine.Store().UpsertRecord(day, settings.DailyStepGoal, settings.DailyStepGoal); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}
	// Streak broke at the 06-03 miss
	if err := engine.Store().SaveStreakState(models.StreakState{CurrentStreak: 0, LongestStreak: 2, LastGoalMetDay: "2025-06-02"}); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}
	if err := engine.Store().SaveShieldState(models.ShieldState{Available: 1, LastRefillDay: "2025-06-01"}); err != nil {
		t.Fatalf("failed to seed shields: %v", err)
	}

	outcome, day, err := svc.AttemptStreakRepair()
	if err != nil {
		t.Fatalf("failed to attempt repair: %v", err)
	}
	if outcome != RepairDone {
		t.Fatalf("expected repair done, got %v", outcome)
	}
	if day != "2025-06-03" {
		t.Errorf("expected repaired day 2025-06-03, got %q", day)
	}

	state, _, err := engine.States()
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if state.CurrentStreak != 5 {
		t.Errorf("expected repaired streak 5, got %d", state.CurrentStreak)
	}

	// Second speculative call must not consume anything
	outcome, day, err = svc.AttemptStreakRepair()
	if err != nil {
		t.Fatalf("failed second attempt: %v", err)
	}
	if outcome != RepairNotNeeded {
		t.Errorf("expected nothing to repair on second call, got %v", outcome)
	}
	if day != "" {
		t.Errorf("expected no day on a no-op call, got %q", day)
	}
	_, shieldState, err := engine.States()
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if shieldState.Available != 0 {
		t.Errorf("expected exactly one shield consumed, got %d available", shieldState.Available)
	}
}

func TestAttemptStreakRepairNoOpWhenStreakActive(t *testing.T) {
	svc, engine := setupTestService(t, "2025-06-05", nil)

	if err := engine.Store().SaveStreakState(models.StreakState{CurrentStreak: 3, LongestStreak: 3, LastGoalMetDay: "2025-06-05", StreakStartDay: "2025-06-03"}); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}

	outcome, _, err := svc.AttemptStreakRepair()
	if err != nil {
		t.Fatalf("failed to attempt repair: %v", err)
	}
	if outcome != RepairNotNeeded {
		t.Errorf("expected no-op with active streak, got %v", outcome)
	}
}

func TestAttemptStreakRepairMultiDayGapRefused(t *testing.T) {
	svc, engine := setupTestService(t, "2025-06-06", nil)

	settings, _ := engine.Store().GetSettings()
	for _, day := range []string{"2025-06-01", "2025-06-02", "2025-06-05", "2025-06-06"} {
		if _, err := engine.Store().UpsertRecord(day, settings.DailyStepGoal, settings.DailyStepGoal); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}
	// Two uncovered days (06-03, 06-04); one shield cannot bridge them
	if err := engine.Store().SaveStreakState(models.StreakState{CurrentStreak: 0, LongestStreak: 2, LastGoalMetDay: "2025-06-02"}); err != nil {
		t.Fatalf("failed to seed state: %v", err)
	}
	if err := engine.Store().SaveShieldState(models.ShieldState{Available: 2, LastRefillDay: "2025-06-01"}); err != nil {
		t.Fatalf("failed to seed shields: %v", err)
	}

	outcome, _, err := svc.AttemptStreakRepair()
	if err != nil {
		t.Fatalf("failed to attempt repair: %v", err)
	}
	if outcome != RepairNotNeeded {
		t.Errorf("expected multi-day gap to be unrepairable, got %v", outcome)
	}
	_, shieldState, err := engine.States()
	if err != nil {
		t.Fatalf("failed to load states: %v", err)
	}
	if shieldState.Available != 2 {
		t.Errorf("expected no shields consumed, got %d", shieldState.Available)
	}
}

func TestFileSourceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	data := `[{"day":"2025-06-02","steps":8000},{"day":"2025-06-01","steps":9000}]`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("failed to write export: %v", err)
	}

	totals, err := NewFileSource(path).FetchDailyTotals()
	if err != nil {
		t.Fatalf("failed to read export: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("expected 2 totals, got %d", len(totals))
	}
	if totals[0].Day != "2025-06-01" {
		t.Errorf("expected ascending order, got %s first", totals[0].Day)
	}
}

func TestFileSourceRejectsBadData(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid day", `[{"day":"06/01/2025","steps":100}]`},
		{"negative steps", `[{"day":"2025-06-01","steps":-5}]`},
		{"duplicate day", `[{"day":"2025-06-01","steps":1},{"day":"2025-06-01","steps":2}]`},
		{"not json", `steps,day`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "export.json")
			if err := os.WriteFile(path, []byte(tt.data), 0o600); err != nil {
				t.Fatalf("failed to write export: %v", err)
			}
			if _, err := NewFileSource(path).FetchDailyTotals(); err == nil {
				t.Error("expected error for malformed export")
			}
		})
	}
}
