package models

import (
	"fmt"
	"time"

	"github.com/stride-app/stride/internal/constants"
)

// DailyRecord is the single record kept for one calendar day. Day is the
// canonical key (YYYY-MM-DD in the user's configured timezone); at most one
// record exists per day.
type DailyRecord struct {
	Day        string    `json:"day"`
	Steps      int       `json:"steps"`
	GoalMet    bool      `json:"goal_met"`
	ShieldUsed bool      `json:"shield_used"`
	WalkRefs   []string  `json:"walk_refs,omitempty"` // weak references to externally owned walk sessions
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (r *DailyRecord) Validate() error {
	if _, err := time.Parse(constants.DateFormat, r.Day); err != nil {
		return fmt.Errorf("invalid day format (expected YYYY-MM-DD): %w", err)
	}
	if r.Steps < 0 {
		return fmt.Errorf("steps cannot be negative: %d", r.Steps)
	}
	return nil
}

// Qualifying reports whether this day counts toward a streak: either the goal
// was met outright or the miss is covered by a shield.
func (r *DailyRecord) Qualifying() bool {
	return r.GoalMet || r.ShieldUsed
}

// HasWalkRef reports whether the record already references the given walk session.
func (r *DailyRecord) HasWalkRef(ref string) bool {
	for _, w := range r.WalkRefs {
		if w == ref {
			return true
		}
	}
	return false
}
