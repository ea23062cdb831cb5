package streak

import "github.com/stride-app/stride/internal/logger"

// Events are the hooks the engine fires after a mutation commits. All hooks
// are fire-and-forget: they run outside the engine's lock, their return is
// ignored, and they must not block. Nil hooks are skipped.
type Events struct {
	GoalMet            func(day string)
	StreakMilestone    func(days int)
	StreakBroken       func()
	ShieldAutoDeployed func(day string)
	ShieldLow          func(remaining int)
}

// fire runs queued event callbacks, recovering from handler panics so a
// misbehaving subscriber can never corrupt engine state.
func fire(emits []func()) {
	for _, emit := range emits {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Event handler panicked", "panic", r)
				}
			}()
			emit()
		}()
	}
}
