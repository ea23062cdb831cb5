// Package validation detects inconsistencies in the recorded history and the
// singleton streak/shield states. It only reports; reconciliation is the
// authoritative repair path.
package validation

import (
	"fmt"
	"sort"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/utils"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictInvalidDayKey     ConflictType = "invalid_day_key"
	ConflictNegativeSteps     ConflictType = "negative_steps"
	ConflictDuplicateDay      ConflictType = "duplicate_day"
	ConflictFutureDay         ConflictType = "future_day"
	ConflictStreakPointer     ConflictType = "streak_pointer"
	ConflictStreakCounts      ConflictType = "streak_counts"
	ConflictShieldBalance     ConflictType = "shield_balance"
	ConflictShieldOnMetDay    ConflictType = "shield_on_met_day"
	ConflictShieldBookkeeping ConflictType = "shield_bookkeeping"
)

// Conflict represents a detected inconsistency
type Conflict struct {
	Type        ConflictType
	Description string
	Day         string // YYYY-MM-DD format (if applicable)
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	report := "Conflicts detected:\n"
	for _, conflict := range vr.Conflicts {
		report += fmt.Sprintf("- %s\n", conflict.Description)
	}
	return report
}

func (vr *ValidationResult) add(t ConflictType, day, format string, args ...interface{}) {
	vr.Conflicts = append(vr.Conflicts, Conflict{
		Type:        t,
		Day:         day,
		Description: fmt.Sprintf(format, args...),
	})
}

// CheckHistory validates the daily records against each other and against
// today. Records may arrive in any order.
func CheckHistory(records []models.DailyRecord, today string) *ValidationResult {
	result := &ValidationResult{}

	sorted := make([]models.DailyRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Day < sorted[j].Day })

	seen := make(map[string]bool, len(sorted))
	for _, record := range sorted {
		if !utils.ValidateDayKey(record.Day) {
			result.add(ConflictInvalidDayKey, record.Day, "record has malformed day key %q", record.Day)
			continue
		}
		if record.Steps < 0 {
			result.add(ConflictNegativeSteps, record.Day, "record for %s has negative steps (%d)", record.Day, record.Steps)
		}
		if seen[record.Day] {
			result.add(ConflictDuplicateDay, record.Day, "more than one record for %s", record.Day)
		}
		seen[record.Day] = true
		if record.Day > today {
			result.add(ConflictFutureDay, record.Day, "record for %s is in the future (today is %s)", record.Day, today)
		}
		if record.ShieldUsed && record.GoalMet {
			result.add(ConflictShieldOnMetDay, record.Day, "shield spent on %s even though the goal was met", record.Day)
		}
	}

	return result
}

// CheckStreakState validates the streak counters against the history.
func CheckStreakState(state models.StreakState, records []models.DailyRecord) *ValidationResult {
	result := &ValidationResult{}

	if state.CurrentStreak < 0 || state.LongestStreak < 0 {
		result.add(ConflictStreakCounts, "", "negative streak counter (current %d, longest %d)", state.CurrentStreak, state.LongestStreak)
	}
	if state.LongestStreak < state.CurrentStreak {
		result.add(ConflictStreakCounts, "", "longest streak %d is below current %d", state.LongestStreak, state.CurrentStreak)
	}
	if state.CurrentStreak == 0 {
		return result
	}

	if state.LastGoalMetDay == "" || state.StreakStartDay == "" {
		result.add(ConflictStreakPointer, "", "active streak of %d has incomplete day markers", state.CurrentStreak)
		return result
	}

	byDay := make(map[string]models.DailyRecord, len(records))
	for _, record := range records {
		byDay[record.Day] = record
	}
	record, ok := byDay[state.LastGoalMetDay]
	if !ok {
		result.add(ConflictStreakPointer, state.LastGoalMetDay, "no record for last qualifying day %s", state.LastGoalMetDay)
	} else if !record.Qualifying() {
		result.add(ConflictStreakPointer, state.LastGoalMetDay, "record for %s does not qualify but the streak points at it", state.LastGoalMetDay)
	}
	return result
}

// CheckShieldState validates the shield bank counters. UsedThisMonth is
// compared against the shielded records in the refill month.
func CheckShieldState(state models.ShieldState, tier models.Tier, records []models.DailyRecord) *ValidationResult {
	result := &ValidationResult{}

	if state.Available < 0 {
		result.add(ConflictShieldBalance, "", "negative shield balance: %d", state.Available)
	}
	if state.UsedThisMonth < 0 || state.PurchasedLifetime < 0 {
		result.add(ConflictShieldBalance, "", "negative shield counters (used %d, purchased %d)", state.UsedThisMonth, state.PurchasedLifetime)
	}
	// Over-cap is reachable after a tier downgrade; far over is corruption
	if max := tier.MaxBanked(); state.Available > 2*max+state.PurchasedLifetime {
		result.add(ConflictShieldBalance, "", "shield balance %d exceeds any reachable value for tier %s", state.Available, tier)
	}

	if len(state.LastRefillDay) >= 7 {
		monthPrefix := state.LastRefillDay[:7]
		shielded := 0
		for _, record := range records {
			if record.ShieldUsed && len(record.Day) >= 7 && record.Day[:7] == monthPrefix {
				shielded++
			}
		}
		if shielded > state.UsedThisMonth {
			result.add(ConflictShieldBookkeeping, "", "%d shielded day(s) in %s but ledger shows %d used", shielded, monthPrefix, state.UsedThisMonth)
		}
	}
	return result
}
