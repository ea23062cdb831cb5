// Package shield implements the shield bank policy: monthly refills,
// consumption, purchases, and the banked cap. All functions are pure: they
// take a ShieldState and return the updated copy, leaving persistence and
// locking to the caller.
package shield

import (
	"time"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/utils"
)

// MaxBanked returns the bank cap for the given tier.
func MaxBanked(tier models.Tier) int {
	return tier.MaxBanked()
}

// RefillIfNeeded grants the tier's monthly allocation if no refill has
// happened in the current calendar month. It resets the monthly usage counter
// and caps the balance at the tier's bank cap. Calling it again within the
// same month is a no-op, and a refill never decreases the balance.
func RefillIfNeeded(state models.ShieldState, tier models.Tier, now time.Time) models.ShieldState {
	if state.LastRefillDay != "" {
		lastRefill, err := utils.ParseDay(state.LastRefillDay)
		if err == nil && !utils.MonthBefore(lastRefill, now) {
			return state
		}
	}

	refilled := state.Available + tier.MonthlyAllocation()
	if refilled > tier.MaxBanked() {
		refilled = tier.MaxBanked()
	}
	// A balance already over the cap (e.g. after a tier downgrade) is kept
	// rather than clawed back.
	if refilled < state.Available {
		refilled = state.Available
	}

	state.Available = refilled
	state.UsedThisMonth = 0
	state.LastRefillDay = utils.DayKey(now)
	return state
}

// Consume spends one shield. It returns the updated state and whether a
// shield was actually available; on false the state is unchanged.
func Consume(state models.ShieldState) (models.ShieldState, bool) {
	if state.Available <= 0 {
		return state, false
	}
	state.Available--
	state.UsedThisMonth++
	return state, true
}

// AddPurchased folds n purchased shields into the bank, capped at the tier's
// bank cap. PurchasedLifetime records the full purchase regardless of how
// much of it fit under the cap.
func AddPurchased(state models.ShieldState, tier models.Tier, n int) models.ShieldState {
	if n <= 0 {
		return state
	}
	state.PurchasedLifetime += n

	limit := tier.MaxBanked()
	if limit < state.Available {
		// Over-cap balances (tier downgrades) are kept, not clawed back.
		limit = state.Available
	}
	available := state.Available + n
	if available > limit {
		available = limit
	}
	state.Available = available
	return state
}
