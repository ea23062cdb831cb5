package insights

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/storage"
)

func setupTestAnalyzer(t *testing.T) (*Analyzer, storage.Provider) {
	t.Helper()

	store := storage.NewJSONStore(filepath.Join(t.TempDir(), "stride.json"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	if err := store.Load(); err != nil {
		t.Fatalf("failed to load store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.SaveSettings(models.DefaultSettings()); err != nil {
		t.Fatalf("failed to save settings: %v", err)
	}
	return NewAnalyzer(store), store
}

func seedDays(t *testing.T, store storage.Provider, n, steps int) {
	t.Helper()
	settings, err := store.GetSettings()
	if err != nil {
		t.Fatalf("failed to load settings: %v", err)
	}
	for i := 1; i <= n; i++ {
		day := fmt.Sprintf("2025-06-%02d", i)
		if _, err := store.UpsertRecord(day, steps, settings.DailyStepGoal); err != nil {
			t.Fatalf("failed to seed record: %v", err)
		}
	}
}

func hasSuggestion(suggestions []Suggestion, t SuggestionType) bool {
	for _, s := range suggestions {
		if s.Type == t {
			return true
		}
	}
	return false
}

func TestAnalyzeNeedsHistory(t *testing.T) {
	analyzer, store := setupTestAnalyzer(t)
	seedDays(t, store, 5, 9000)

	summary, suggestions, err := analyzer.Analyze(30)
	if err != nil {
		t.Fatalf("failed to analyze: %v", err)
	}
	if summary.DaysAnalyzed != 5 {
		t.Errorf("expected 5 days analyzed, got %d", summary.DaysAnalyzed)
	}
	if !hasSuggestion(suggestions, SuggestionBuildHistory) {
		t.Error("expected build-history suggestion for short history")
	}
}

func TestAnalyzeSuggestsLowerGoal(t *testing.T) {
	analyzer, store := setupTestAnalyzer(t)
	// Default goal is 8000; 3000 steps a day never meets it
	seedDays(t, store, 20, 3000)

	summary, suggestions, err := analyzer.Analyze(30)
	if err != nil {
		t.Fatalf("failed to analyze: %v", err)
	}
	if summary.HitRate != 0 {
		t.Errorf("expected zero hit rate, got %f", summary.HitRate)
	}
	if !hasSuggestion(suggestions, SuggestionLowerGoal) {
		t.Error("expected lower-goal suggestion")
	}
	for _, s := range suggestions {
		if s.Type == SuggestionLowerGoal && s.SuggestedValue >= s.CurrentValue {
			t.Errorf("suggested goal %d is not below current %d", s.SuggestedValue, s.CurrentValue)
		}
	}
}

func TestAnalyzeSuggestsRaiseGoal(t *testing.T) {
	analyzer, store := setupTestAnalyzer(t)
	// Every day far above the 8000 goal
	seedDays(t, store, 30, 14000)

	summary, suggestions, err := analyzer.Analyze(30)
	if err != nil {
		t.Fatalf("failed to analyze: %v", err)
	}
	if summary.HitRate != 1 {
		t.Errorf("expected full hit rate, got %f", summary.HitRate)
	}
	if !hasSuggestion(suggestions, SuggestionRaiseGoal) {
		t.Error("expected raise-goal suggestion")
	}
}

func TestAnalyzeSuggestsUpgradeOnShieldReliance(t *testing.T) {
	analyzer, store := setupTestAnalyzer(t)
	seedDays(t, store, 20, 9000)

	// A third of the covered days needed a shield
	for i := 1; i <= 10; i++ {
		day := fmt.Sprintf("2025-06-%02d", i)
		if _, err := store.UpsertRecord(day, 100, 8000); err != nil {
			t.Fatalf("failed to downgrade record: %v", err)
		}
		if err := store.MarkShieldUsed(day); err != nil {
			t.Fatalf("failed to mark shield: %v", err)
		}
	}

	_, suggestions, err := analyzer.Analyze(30)
	if err != nil {
		t.Fatalf("failed to analyze: %v", err)
	}
	if !hasSuggestion(suggestions, SuggestionUpgradeTier) {
		t.Error("expected tier upgrade suggestion")
	}
}

func TestAnalyzeSteadyHistoryNoSuggestions(t *testing.T) {
	analyzer, store := setupTestAnalyzer(t)
	// Meets the goal with a small margin; nothing to adjust
	seedDays(t, store, 20, 8500)

	_, suggestions, err := analyzer.Analyze(30)
	if err != nil {
		t.Fatalf("failed to analyze: %v", err)
	}
	if len(suggestions) != 0 {
		t.Errorf("expected no suggestions for steady history, got %+v", suggestions)
	}
}
