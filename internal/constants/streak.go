package constants

const (
	// RepairWindowDays is the trailing window (inclusive) within which a missed
	// day may still be covered by spending a shield.
	RepairWindowDays = 7

	// ShieldLowThreshold triggers the low-shield event when the bank drops to
	// this count or below after a consumption.
	ShieldLowThreshold = 1
)

// StreakMilestones are the streak lengths that fire a milestone event.
var StreakMilestones = []int{7, 14, 30, 60, 90, 180, 365}

// IsMilestone reports whether the given streak length is a milestone.
func IsMilestone(days int) bool {
	for _, m := range StreakMilestones {
		if days == m {
			return true
		}
	}
	return false
}
