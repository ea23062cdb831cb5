// Package insights analyzes the recorded history and suggests goal or tier
// adjustments. Suggestions are advisory output only; nothing here mutates
// state.
package insights

import (
	"fmt"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/storage"
)

// SuggestionType represents the kind of adjustment suggested
type SuggestionType string

const (
	SuggestionLowerGoal    SuggestionType = "lower_goal"
	SuggestionRaiseGoal    SuggestionType = "raise_goal"
	SuggestionUpgradeTier  SuggestionType = "upgrade_tier"
	SuggestionBuildHistory SuggestionType = "build_history"
)

// Suggestion is one advisory finding from the history analysis
type Suggestion struct {
	Type           SuggestionType `json:"type"`
	Reason         string         `json:"reason"`
	CurrentValue   int            `json:"current_value,omitempty"`
	SuggestedValue int            `json:"suggested_value,omitempty"`
}

// Summary aggregates the analysis window
type Summary struct {
	DaysAnalyzed int     `json:"days_analyzed"`
	GoalMetDays  int     `json:"goal_met_days"`
	ShieldedDays int     `json:"shielded_days"`
	HitRate      float64 `json:"hit_rate"`
	AverageSteps int     `json:"average_steps"`
}

// Analyzer derives suggestions from recorded history
type Analyzer struct {
	store storage.Provider
}

func NewAnalyzer(store storage.Provider) *Analyzer {
	return &Analyzer{store: store}
}

const minDaysForAnalysis = 14

// Analyze inspects the most recent windowDays of history and returns a
// summary plus any suggestions it supports.
func (a *Analyzer) Analyze(windowDays int) (Summary, []Suggestion, error) {
	settings, err := a.store.GetSettings()
	if err != nil {
		return Summary{}, nil, fmt.Errorf("failed to load settings: %w", err)
	}
	records, err := a.store.AllRecords()
	if err != nil {
		return Summary{}, nil, fmt.Errorf("failed to load records: %w", err)
	}
	if windowDays > 0 && len(records) > windowDays {
		records = records[:windowDays]
	}

	summary := summarize(records)

	if summary.DaysAnalyzed < minDaysForAnalysis {
		return summary, []Suggestion{{
			Type:   SuggestionBuildHistory,
			Reason: fmt.Sprintf("only %d day(s) recorded; suggestions need at least %d", summary.DaysAnalyzed, minDaysForAnalysis),
		}}, nil
	}

	var suggestions []Suggestion

	// A goal missed most of the time is demotivating; suggest the average of
	// the current goal and what was actually achieved
	if summary.HitRate < 0.4 {
		suggested := (settings.DailyStepGoal + summary.AverageSteps) / 2
		if suggested < 1000 {
			suggested = 1000
		}
		if suggested < settings.DailyStepGoal {
			suggestions = append(suggestions, Suggestion{
				Type:           SuggestionLowerGoal,
				Reason:         fmt.Sprintf("goal met on only %.0f%% of the last %d days", summary.HitRate*100, summary.DaysAnalyzed),
				CurrentValue:   settings.DailyStepGoal,
				SuggestedValue: suggested,
			})
		}
	}

	// A goal met every single day with a wide margin has stopped stretching
	if summary.HitRate >= 0.95 && summary.AverageSteps > settings.DailyStepGoal*5/4 {
		suggestions = append(suggestions, Suggestion{
			Type:           SuggestionRaiseGoal,
			Reason:         fmt.Sprintf("goal met on %.0f%% of the last %d days, averaging %d steps", summary.HitRate*100, summary.DaysAnalyzed, summary.AverageSteps),
			CurrentValue:   settings.DailyStepGoal,
			SuggestedValue: roundToHundred(summary.AverageSteps * 9 / 10),
		})
	}

	// Leaning on shields for more than a quarter of covered days suggests the
	// free allocation is not enough
	if settings.Tier == models.TierFree {
		covered := summary.GoalMetDays + summary.ShieldedDays
		if covered > 0 && summary.ShieldedDays*4 > covered {
			suggestions = append(suggestions, Suggestion{
				Type:   SuggestionUpgradeTier,
				Reason: fmt.Sprintf("%d of %d covered days needed a shield; the pro tier banks more", summary.ShieldedDays, covered),
			})
		}
	}

	return summary, suggestions, nil
}

func summarize(records []models.DailyRecord) Summary {
	summary := Summary{DaysAnalyzed: len(records)}
	if len(records) == 0 {
		return summary
	}

	totalSteps := 0
	for _, record := range records {
		totalSteps += record.Steps
		if record.GoalMet {
			summary.GoalMetDays++
		} else if record.ShieldUsed {
			summary.ShieldedDays++
		}
	}
	summary.HitRate = float64(summary.GoalMetDays) / float64(len(records))
	summary.AverageSteps = totalSteps / len(records)
	return summary
}

func roundToHundred(n int) int {
	return (n + 50) / 100 * 100
}
