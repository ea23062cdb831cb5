// Package streak owns the streak state machine: goal-met bookkeeping, streak
// breaks, overnight shield deploys, and retroactive repairs. Every mutation
// runs under one lock, since concurrent streak updates are the main corruption
// risk (duplicate increments, double shield spends), and persists through the
// injected storage provider before any event fires.
package streak

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stride-app/stride/internal/constants"
	"github.com/stride-app/stride/internal/logger"
	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/shield"
	"github.com/stride-app/stride/internal/storage"
	"github.com/stride-app/stride/internal/utils"
)

type Engine struct {
	mu     sync.Mutex
	store  storage.Provider
	events Events
	now    func() time.Time

	// Read-through cache of the singleton states. Invalidated whenever state
	// is overwritten from outside the normal mutation path (reconciliation
	// commit, full reset).
	cacheValid  bool
	streakCache models.StreakState
	shieldCache models.ShieldState
}

func NewEngine(store storage.Provider) *Engine {
	return &Engine{
		store: store,
		now:   time.Now,
	}
}

// NewEngineWithClock injects the time source. Tests freeze it.
func NewEngineWithClock(store storage.Provider, now func() time.Time) *Engine {
	e := NewEngine(store)
	e.now = now
	return e
}

// SetEvents registers the event hooks. Call before the engine is shared.
func (e *Engine) SetEvents(events Events) {
	e.events = events
}

// Today returns the current day key in the user's configured timezone.
func (e *Engine) Today() (string, error) {
	settings, err := e.store.GetSettings()
	if err != nil {
		return "", fmt.Errorf("failed to load settings: %w", err)
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return "", fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}
	return utils.DayKey(e.now().In(loc)), nil
}

// States returns the current streak and shield states.
func (e *Engine) States() (models.StreakState, models.ShieldState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadStatesLocked()
}

func (e *Engine) loadStatesLocked() (models.StreakState, models.ShieldState, error) {
	if e.cacheValid {
		return e.streakCache, e.shieldCache, nil
	}
	streakState, err := e.store.GetStreakState()
	if err != nil {
		return models.StreakState{}, models.ShieldState{}, err
	}
	shieldState, err := e.store.GetShieldState()
	if err != nil {
		return models.StreakState{}, models.ShieldState{}, err
	}
	e.streakCache = streakState
	e.shieldCache = shieldState
	e.cacheValid = true
	return streakState, shieldState, nil
}

func (e *Engine) saveStreakLocked(state models.StreakState) error {
	if err := e.store.SaveStreakState(state); err != nil {
		return err
	}
	e.streakCache = state
	return nil
}

func (e *Engine) saveShieldLocked(state models.ShieldState) error {
	if err := e.store.SaveShieldState(state); err != nil {
		return err
	}
	e.shieldCache = state
	return nil
}

func (e *Engine) invalidateLocked() {
	e.cacheValid = false
}

// RecordSteps upserts the day's record with the latest step total and, if the
// goal is now met, advances the streak. This is the live update path fed by
// the external step source.
func (e *Engine) RecordSteps(day string, steps int) (models.DailyRecord, error) {
	if !utils.ValidateDayKey(day) {
		return models.DailyRecord{}, fmt.Errorf("invalid day format (expected YYYY-MM-DD): %s", day)
	}
	if steps < 0 {
		return models.DailyRecord{}, fmt.Errorf("steps cannot be negative: %d", steps)
	}

	settings, err := e.store.GetSettings()
	if err != nil {
		return models.DailyRecord{}, fmt.Errorf("failed to load settings: %w", err)
	}

	e.mu.Lock()
	record, err := e.store.UpsertRecord(day, steps, settings.DailyStepGoal)
	if err != nil {
		e.mu.Unlock()
		return models.DailyRecord{}, err
	}

	var emits []func()
	if record.GoalMet {
		emits, err = e.applyGoalMetLocked(day)
		if err != nil {
			e.mu.Unlock()
			return models.DailyRecord{}, err
		}
		if e.events.GoalMet != nil {
			day := day
			emits = append([]func(){func() { e.events.GoalMet(day) }}, emits...)
		}
	}
	e.mu.Unlock()

	fire(emits)
	return record, nil
}

// RecordGoalMet marks the day's goal as met in the streak state. The caller
// guarantees the underlying record exists and is met; RecordSteps is the
// usual entry point.
func (e *Engine) RecordGoalMet(day string) error {
	if !utils.ValidateDayKey(day) {
		return fmt.Errorf("invalid day format (expected YYYY-MM-DD): %s", day)
	}

	e.mu.Lock()
	emits, err := e.applyGoalMetLocked(day)
	e.mu.Unlock()

	fire(emits)
	return err
}

func (e *Engine) applyGoalMetLocked(day string) ([]func(), error) {
	state, _, err := e.loadStatesLocked()
	if err != nil {
		return nil, err
	}

	// Re-asserting the same day is a no-op
	if state.LastGoalMetDay == day {
		return nil, nil
	}

	next := ""
	if state.LastGoalMetDay != "" {
		next, err = utils.AddDays(state.LastGoalMetDay, 1)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case state.CurrentStreak == 0 || state.LastGoalMetDay == "":
		state.CurrentStreak = 1
		state.StreakStartDay = day
	case day == next:
		state.CurrentStreak++
	default:
		state.CurrentStreak = 1
		state.StreakStartDay = day
	}

	if day > state.LastGoalMetDay {
		state.LastGoalMetDay = day
	}
	if state.CurrentStreak > state.LongestStreak {
		state.LongestStreak = state.CurrentStreak
	}

	if err := e.saveStreakLocked(state); err != nil {
		return nil, err
	}

	var emits []func()
	if constants.IsMilestone(state.CurrentStreak) && e.events.StreakMilestone != nil {
		days := state.CurrentStreak
		emits = append(emits, func() { e.events.StreakMilestone(days) })
	}
	return emits, nil
}

// BreakStreak zeroes the current streak after a confirmed uncovered miss.
// The longest streak is historical and survives.
func (e *Engine) BreakStreak() error {
	e.mu.Lock()
	emits, err := e.breakStreakLocked()
	e.mu.Unlock()

	fire(emits)
	return err
}

func (e *Engine) breakStreakLocked() ([]func(), error) {
	state, _, err := e.loadStatesLocked()
	if err != nil {
		return nil, err
	}
	if state.CurrentStreak == 0 {
		return nil, nil
	}

	state.CurrentStreak = 0
	state.StreakStartDay = ""
	if err := e.saveStreakLocked(state); err != nil {
		return nil, err
	}

	var emits []func()
	if e.events.StreakBroken != nil {
		emits = append(emits, func() { e.events.StreakBroken() })
	}
	return emits, nil
}

// AutoDeployIfAvailable covers the given missed day with a shield, if that
// day is the one whose miss would break the active streak. The streak is
// preserved as-is; a shielded day does not increment it. Returns whether a
// shield was deployed; on false the caller decides whether to break the
// streak.
func (e *Engine) AutoDeployIfAvailable(day string) (bool, error) {
	if !utils.ValidateDayKey(day) {
		return false, fmt.Errorf("invalid day format (expected YYYY-MM-DD): %s", day)
	}

	settings, err := e.store.GetSettings()
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}

	e.mu.Lock()
	deployed, emits, err := e.autoDeployLocked(day, settings)
	e.mu.Unlock()

	fire(emits)
	return deployed, err
}

func (e *Engine) autoDeployLocked(day string, settings models.Settings) (bool, []func(), error) {
	streakState, shieldState, err := e.loadStatesLocked()
	if err != nil {
		return false, nil, err
	}

	// Only an active streak can be preserved, and only by covering the day
	// immediately after the last qualifying one.
	if streakState.CurrentStreak == 0 || streakState.LastGoalMetDay == "" {
		return false, nil, nil
	}
	next, err := utils.AddDays(streakState.LastGoalMetDay, 1)
	if err != nil {
		return false, nil, err
	}
	if day != next {
		return false, nil, nil
	}

	record, err := e.store.GetRecord(day)
	if errors.Is(err, storage.ErrNotFound) {
		// No steps were ever observed for the day; an absent day is a miss
		record, err = e.store.UpsertRecord(day, 0, settings.DailyStepGoal)
	}
	if err != nil {
		return false, nil, err
	}
	if record.Qualifying() {
		return false, nil, nil
	}

	shieldState, ok := shield.Consume(shieldState)
	if !ok {
		return false, nil, nil
	}
	if err := e.store.MarkShieldUsed(day); err != nil {
		return false, nil, err
	}
	if err := e.saveShieldLocked(shieldState); err != nil {
		return false, nil, err
	}

	streakState.LastGoalMetDay = day
	if err := e.saveStreakLocked(streakState); err != nil {
		return false, nil, err
	}

	var emits []func()
	if e.events.ShieldAutoDeployed != nil {
		day := day
		emits = append(emits, func() { e.events.ShieldAutoDeployed(day) })
	}
	if shieldState.Available <= constants.ShieldLowThreshold && e.events.ShieldLow != nil {
		remaining := shieldState.Available
		emits = append(emits, func() { e.events.ShieldLow(remaining) })
	}
	return true, emits, nil
}

// CloseOutDay settles a finished day: a qualifying day needs nothing, a
// missed day gets a shield if one is available, and otherwise the streak
// breaks. Run by the daemon's nightly rollover for yesterday.
func (e *Engine) CloseOutDay(day string) (deployed bool, broke bool, err error) {
	deployed, err = e.AutoDeployIfAvailable(day)
	if err != nil {
		return false, false, err
	}
	if deployed {
		return true, false, nil
	}

	// Nothing to cover, or no shield. Break only when the day really is an
	// uncovered miss sitting right after the active run.
	e.mu.Lock()
	streakState, _, err := e.loadStatesLocked()
	if err != nil {
		e.mu.Unlock()
		return false, false, err
	}
	if streakState.CurrentStreak == 0 || streakState.LastGoalMetDay == "" || day <= streakState.LastGoalMetDay {
		e.mu.Unlock()
		return false, false, nil
	}
	record, err := e.store.GetRecord(day)
	if err == nil && record.Qualifying() {
		e.mu.Unlock()
		return false, false, nil
	}
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		e.mu.Unlock()
		return false, false, err
	}
	emits, err := e.breakStreakLocked()
	e.mu.Unlock()

	fire(emits)
	if err != nil {
		return false, false, err
	}
	return false, true, nil
}

// CanRepairDate reports whether the day's miss can still be covered: within
// the trailing repair window (7 days inclusive) and not already qualifying.
// An absent record counts as a miss, the same as a recorded one.
func (e *Engine) CanRepairDate(day string) (bool, error) {
	if !utils.ValidateDayKey(day) {
		return false, fmt.Errorf("invalid day format (expected YYYY-MM-DD): %s", day)
	}
	today, err := e.Today()
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canRepairLocked(day, today)
}

func (e *Engine) canRepairLocked(day, today string) (bool, error) {
	age, err := utils.DaysBetween(day, today)
	if err != nil {
		return false, err
	}
	if age < 0 || age > constants.RepairWindowDays {
		return false, nil
	}

	record, err := e.store.GetRecord(day)
	if errors.Is(err, storage.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return !record.Qualifying(), nil
}

// RepairDate retroactively covers a missed day with a shield and recomputes
// the streak by re-walking the history forward: filling an earlier gap can
// extend the run through every qualifying day after it. Returns false with no
// mutation when the window check fails or no shield is available.
func (e *Engine) RepairDate(day string) (bool, error) {
	if !utils.ValidateDayKey(day) {
		return false, fmt.Errorf("invalid day format (expected YYYY-MM-DD): %s", day)
	}
	settings, err := e.store.GetSettings()
	if err != nil {
		return false, fmt.Errorf("failed to load settings: %w", err)
	}
	today, err := e.Today()
	if err != nil {
		return false, err
	}

	e.mu.Lock()
	repaired, emits, err := e.repairLocked(day, today, settings)
	e.mu.Unlock()

	fire(emits)
	return repaired, err
}

func (e *Engine) repairLocked(day, today string, settings models.Settings) (bool, []func(), error) {
	ok, err := e.canRepairLocked(day, today)
	if err != nil || !ok {
		return false, nil, err
	}

	streakState, shieldState, err := e.loadStatesLocked()
	if err != nil {
		return false, nil, err
	}

	shieldState, ok = shield.Consume(shieldState)
	if !ok {
		return false, nil, nil
	}

	if _, err := e.store.GetRecord(day); errors.Is(err, storage.ErrNotFound) {
		if _, err := e.store.UpsertRecord(day, 0, settings.DailyStepGoal); err != nil {
			return false, nil, err
		}
	} else if err != nil {
		return false, nil, err
	}
	if err := e.store.MarkShieldUsed(day); err != nil {
		return false, nil, err
	}

	records, err := e.store.AllRecords()
	if err != nil {
		return false, nil, err
	}
	recomputed, err := Recompute(records, today, streakState.LongestStreak)
	if err != nil {
		return false, nil, err
	}

	if err := e.saveShieldLocked(shieldState); err != nil {
		return false, nil, err
	}
	if err := e.saveStreakLocked(recomputed); err != nil {
		return false, nil, err
	}

	logger.Info("Repaired missed day", "day", day, "current_streak", recomputed.CurrentStreak)

	var emits []func()
	if shieldState.Available <= constants.ShieldLowThreshold && e.events.ShieldLow != nil {
		remaining := shieldState.Available
		emits = append(emits, func() { e.events.ShieldLow(remaining) })
	}
	return true, emits, nil
}

// RefillIfNeeded applies the monthly shield allocation for the configured
// tier. Idempotent within a calendar month.
func (e *Engine) RefillIfNeeded() error {
	settings, err := e.store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, shieldState, err := e.loadStatesLocked()
	if err != nil {
		return err
	}
	refilled := shield.RefillIfNeeded(shieldState, settings.Tier, e.now().In(loc))
	if refilled == shieldState {
		return nil
	}
	logger.Info("Monthly shield refill", "available", refilled.Available, "tier", settings.Tier)
	return e.saveShieldLocked(refilled)
}

// AddPurchasedShields folds an external purchase confirmation into the bank.
func (e *Engine) AddPurchasedShields(n int) error {
	if n <= 0 {
		return fmt.Errorf("purchase count must be positive: %d", n)
	}
	settings, err := e.store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	_, shieldState, err := e.loadStatesLocked()
	if err != nil {
		return err
	}
	return e.saveShieldLocked(shield.AddPurchased(shieldState, settings.Tier, n))
}

// RebuildHistory replaces the full daily history and streak state with the
// output of rebuild. The existing records, prior streak state, goal target,
// and today's day key are all read inside the same critical section that
// writes the result, so no other engine mutation can land between the read
// and the replace. An error from rebuild aborts with no mutation.
func (e *Engine) RebuildHistory(rebuild func(records []models.DailyRecord, prior models.StreakState, goal int, today string) ([]models.DailyRecord, models.StreakState, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	settings, err := e.store.GetSettings()
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	loc, err := utils.LoadLocation(settings.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", settings.Timezone, err)
	}
	today := utils.DayKey(e.now().In(loc))

	records, err := e.store.AllRecords()
	if err != nil {
		return err
	}
	prior, err := e.store.GetStreakState()
	if err != nil {
		return err
	}

	rebuilt, state, err := rebuild(records, prior, settings.DailyStepGoal, today)
	if err != nil {
		return err
	}
	if err := e.store.ReplaceHistory(rebuilt, state); err != nil {
		return err
	}
	e.invalidateLocked()
	return nil
}

// Reset wipes all records and zeroes both singleton states.
func (e *Engine) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.DeleteAllRecords(); err != nil {
		return err
	}
	if err := e.store.SaveStreakState(models.StreakState{}); err != nil {
		return err
	}
	if err := e.store.SaveShieldState(models.ShieldState{}); err != nil {
		return err
	}
	e.invalidateLocked()
	return nil
}

// Store exposes the underlying provider for read-only collaborators.
func (e *Engine) Store() storage.Provider {
	return e.store
}
