package streak

import (
	"fmt"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/utils"
)

// Recompute derives a StreakState from scratch out of the full daily history.
// It walks every day from the earliest record through today; a day is
// qualifying when its goal was met or its miss is shielded, and a day with no
// record at all counts as a miss. The current streak is the run ending at the
// last qualifying day, provided that day is today or yesterday; an older run
// is stale and the current streak is zero. The longest streak never drops
// below prevLongest.
func Recompute(records []models.DailyRecord, today string, prevLongest int) (models.StreakState, error) {
	todayT, err := utils.ParseDay(today)
	if err != nil {
		return models.StreakState{}, err
	}

	byDay := make(map[string]models.DailyRecord, len(records))
	first := ""
	for _, record := range records {
		if !utils.ValidateDayKey(record.Day) {
			return models.StreakState{}, fmt.Errorf("invalid day key in history: %q", record.Day)
		}
		byDay[record.Day] = record
		if first == "" || record.Day < first {
			first = record.Day
		}
	}

	state := models.StreakState{LongestStreak: prevLongest}
	if first == "" || first > today {
		return state, nil
	}

	run := 0
	runStart := ""
	lastQual := ""
	runAtLastQual := 0
	startAtLastQual := ""

	firstT, _ := utils.ParseDay(first)
	for t := firstT; !t.After(todayT); t = t.AddDate(0, 0, 1) {
		day := utils.DayKey(t)
		record, ok := byDay[day]
		if ok && record.Qualifying() {
			if run == 0 {
				runStart = day
			}
			run++
			lastQual = day
			runAtLastQual = run
			startAtLastQual = runStart
			if run > state.LongestStreak {
				state.LongestStreak = run
			}
		} else {
			run = 0
		}
	}

	state.LastGoalMetDay = lastQual
	if lastQual != "" {
		gap, err := utils.DaysBetween(lastQual, today)
		if err != nil {
			return models.StreakState{}, err
		}
		if gap <= 1 {
			state.CurrentStreak = runAtLastQual
			state.StreakStartDay = startAtLastQual
		}
	}

	return state, nil
}
