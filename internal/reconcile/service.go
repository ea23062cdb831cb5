package reconcile

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stride-app/stride/internal/constants"
	"github.com/stride-app/stride/internal/logger"
	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/storage"
	"github.com/stride-app/stride/internal/streak"
	"github.com/stride-app/stride/internal/utils"
)

// Service replays the authoritative step history into the local store. Runs
// are fail-closed: any source or storage error aborts before a single local
// mutation. Overlapping runs are resolved last-committed-wins through a
// monotonic sequence counter, so a stale run that finishes after a newer one
// committed is discarded.
type Service struct {
	engine *streak.Engine
	source StepSource

	mu            sync.Mutex
	nextSeq       uint64
	lastCommitted uint64
}

func NewService(engine *streak.Engine, source StepSource) *Service {
	return &Service{engine: engine, source: source}
}

// Result summarizes a reconciliation pass.
type Result struct {
	Seq        uint64
	Superseded bool
	Days       int
	Streak     models.StreakState
}

// errSuperseded aborts a rebuild whose sequence number a newer run overtook.
var errSuperseded = errors.New("superseded by a newer reconciliation run")

// Run fetches the full authoritative history and rebuilds every DailyRecord
// and the streak state from it. Shield usage is local-only bookkeeping the
// source knows nothing about, so shielded flags and walk references are
// carried over from existing records rather than wiped. Only the source
// fetch happens outside the engine's critical section: the merge reads the
// existing records under the same lock that commits the result, so an engine
// mutation can never land between the read and the replace.
func (s *Service) Run() (Result, error) {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.mu.Unlock()

	// The source call is the slow I/O suspension point. The rebuild re-checks
	// freshness once it holds the engine lock.
	totals, err := s.source.FetchDailyTotals()
	if err != nil {
		return Result{Seq: seq}, fmt.Errorf("step source unavailable, skipping reconciliation: %w", err)
	}

	result := Result{Seq: seq}
	err = s.engine.RebuildHistory(func(existing []models.DailyRecord, prior models.StreakState, goal int, today string) ([]models.DailyRecord, models.StreakState, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if seq <= s.lastCommitted {
			return nil, models.StreakState{}, errSuperseded
		}

		records := mergeHistory(totals, existing, goal)
		state, err := streak.Recompute(records, today, prior.LongestStreak)
		if err != nil {
			return nil, models.StreakState{}, err
		}

		s.lastCommitted = seq
		result.Days = len(records)
		result.Streak = state
		return records, state, nil
	})
	if errors.Is(err, errSuperseded) {
		logger.Debug("Discarding superseded reconciliation", "seq", seq)
		return Result{Seq: seq, Superseded: true}, nil
	}
	if err != nil {
		return Result{Seq: seq}, err
	}

	logger.Info("Reconciled history",
		"days", result.Days,
		"current_streak", result.Streak.CurrentStreak,
		"longest_streak", result.Streak.LongestStreak)
	return result, nil
}

// mergeHistory unions the authoritative totals with the existing records.
// Steps and goal classification come from the source using the current goal
// target. Goal versioning is not retained, so historical days are classified
// against today's goal even if the goal changed since. Locally known days the
// source does not cover are kept as-is.
func mergeHistory(totals []DayTotal, existing []models.DailyRecord, goal int) []models.DailyRecord {
	byDay := make(map[string]models.DailyRecord, len(existing))
	for _, r := range existing {
		byDay[r.Day] = r
	}

	now := time.Now()
	merged := make(map[string]models.DailyRecord, len(totals)+len(existing))
	for _, t := range totals {
		record := models.DailyRecord{
			Day:       t.Day,
			Steps:     t.Steps,
			GoalMet:   t.Steps >= goal,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if prev, ok := byDay[t.Day]; ok {
			record.ShieldUsed = prev.ShieldUsed
			record.WalkRefs = prev.WalkRefs
			record.CreatedAt = prev.CreatedAt
		}
		merged[t.Day] = record
	}
	for day, r := range byDay {
		if _, ok := merged[day]; !ok {
			merged[day] = r
		}
	}

	out := make([]models.DailyRecord, 0, len(merged))
	for _, r := range merged {
		out = append(out, r)
	}
	return out
}

// RepairOutcome reports what AttemptStreakRepair did.
type RepairOutcome int

const (
	RepairNotNeeded RepairOutcome = iota
	RepairDone
	RepairNotPossible
)

// AttemptStreakRepair is the crash-safe follow-through for a paid shield. It
// is safe to call speculatively on every launch: it only acts when the streak
// is currently broken by exactly one missed day sitting strictly between the
// last qualifying day and today, inside the repair window. Repairing that day
// goes through the engine's normal repair path, so a second call finds the
// day already shielded and does nothing. On RepairDone the repaired day key
// is returned; otherwise the day is empty.
func (s *Service) AttemptStreakRepair() (RepairOutcome, string, error) {
	state, _, err := s.engine.States()
	if err != nil {
		return RepairNotPossible, "", err
	}
	if state.CurrentStreak != 0 || state.LastGoalMetDay == "" {
		return RepairNotNeeded, "", nil
	}

	today, err := s.engine.Today()
	if err != nil {
		return RepairNotPossible, "", err
	}

	missed, err := s.findSingleMissedDay(state.LastGoalMetDay, today)
	if err != nil {
		return RepairNotPossible, "", err
	}
	if missed == "" {
		return RepairNotNeeded, "", nil
	}

	repaired, err := s.engine.RepairDate(missed)
	if err != nil {
		return RepairNotPossible, "", err
	}
	if !repaired {
		return RepairNotPossible, "", nil
	}
	logger.Info("Repaired streak after purchase confirmation", "day", missed)
	return RepairDone, missed, nil
}

// findSingleMissedDay returns the sole non-qualifying day strictly between
// lastGoalMet and today, or "" if there are zero or more than one, or the gap
// extends past the repair window.
func (s *Service) findSingleMissedDay(lastGoalMet, today string) (string, error) {
	gap, err := utils.DaysBetween(lastGoalMet, today)
	if err != nil {
		return "", err
	}
	if gap < 2 {
		// No full day strictly between the two
		return "", nil
	}

	missed := ""
	day := lastGoalMet
	for i := 1; i < gap; i++ {
		day, err = utils.AddDays(lastGoalMet, i)
		if err != nil {
			return "", err
		}
		qualifying, err := s.dayQualifies(day)
		if err != nil {
			return "", err
		}
		if qualifying {
			continue
		}
		if missed != "" {
			// More than one uncovered day; a single shield cannot bridge it
			return "", nil
		}
		missed = day
	}
	if missed == "" {
		return "", nil
	}

	age, err := utils.DaysBetween(missed, today)
	if err != nil {
		return "", err
	}
	if age > constants.RepairWindowDays {
		return "", nil
	}
	return missed, nil
}

func (s *Service) dayQualifies(day string) (bool, error) {
	record, err := s.engine.Store().GetRecord(day)
	if errors.Is(err, storage.ErrNotFound) {
		// Absent record counts as a miss
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return record.Qualifying(), nil
}
