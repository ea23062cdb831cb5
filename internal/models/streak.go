package models

// StreakState is the singleton streak bookkeeping for the user. Day fields are
// YYYY-MM-DD keys; an empty string means "none".
type StreakState struct {
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	LastGoalMetDay string `json:"last_goal_met_day,omitempty"`
	StreakStartDay string `json:"streak_start_day,omitempty"`
}

// Active reports whether a streak is currently running.
func (s *StreakState) Active() bool {
	return s.CurrentStreak > 0
}
