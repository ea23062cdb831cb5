package shield

import (
	"testing"
	"time"

	"github.com/stride-app/stride/internal/models"
)

func TestMaxBanked(t *testing.T) {
	if got := MaxBanked(models.TierFree); got != 2 {
		t.Errorf("MaxBanked(free) = %d, want 2", got)
	}
	if got := MaxBanked(models.TierPro); got != 8 {
		t.Errorf("MaxBanked(pro) = %d, want 8", got)
	}
}

func TestRefillFirstEver(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	state := RefillIfNeeded(models.ShieldState{}, models.TierFree, now)
	if state.Available != 2 {
		t.Errorf("free first refill should grant 2, got %d", state.Available)
	}
	if state.LastRefillDay != "2025-06-15" {
		t.Errorf("last refill day = %q, want 2025-06-15", state.LastRefillDay)
	}

	state = RefillIfNeeded(models.ShieldState{}, models.TierPro, now)
	if state.Available != 4 {
		t.Errorf("pro first refill should grant 4, got %d", state.Available)
	}
}

func TestRefillIdempotentWithinMonth(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	later := time.Date(2025, 6, 30, 23, 59, 0, 0, time.UTC)

	state := RefillIfNeeded(models.ShieldState{}, models.TierFree, now)
	again := RefillIfNeeded(state, models.TierFree, later)
	if again != state {
		t.Errorf("second refill within the month mutated state: %+v != %+v", again, state)
	}
}

func TestRefillNextMonthGrantsAndResetsUsage(t *testing.T) {
	june := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	state := RefillIfNeeded(models.ShieldState{}, models.TierPro, june)
	state, ok := Consume(state)
	if !ok {
		t.Fatal("consume should succeed after refill")
	}
	if state.UsedThisMonth != 1 {
		t.Fatalf("used this month = %d, want 1", state.UsedThisMonth)
	}

	state = RefillIfNeeded(state, models.TierPro, july)
	if state.UsedThisMonth != 0 {
		t.Errorf("monthly refill should reset usage counter, got %d", state.UsedThisMonth)
	}
	if state.Available != 7 {
		t.Errorf("pro balance after 4+(-1)+4 = %d, want 7", state.Available)
	}
}

func TestRefillCapsAtMaxBanked(t *testing.T) {
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	state := models.ShieldState{Available: 2, LastRefillDay: "2024-12-01"}
	state = RefillIfNeeded(state, models.TierFree, jan)
	if state.Available != 2 {
		t.Errorf("free refill at cap should stay at 2, got %d", state.Available)
	}

	state = models.ShieldState{Available: 7, LastRefillDay: "2024-12-01"}
	state = RefillIfNeeded(state, models.TierPro, jan)
	if state.Available != 8 {
		t.Errorf("pro refill should cap at 8, got %d", state.Available)
	}
}

func TestRefillNeverDecreases(t *testing.T) {
	// Downgrade case: balance above the free cap from a pro past
	jan := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	state := models.ShieldState{Available: 6, LastRefillDay: "2024-12-01"}

	state = RefillIfNeeded(state, models.TierFree, jan)
	if state.Available < 6 {
		t.Errorf("refill decreased balance to %d", state.Available)
	}
}

func TestRefillYearBoundary(t *testing.T) {
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	state := models.ShieldState{Available: 0, LastRefillDay: "2024-12-15"}

	state = RefillIfNeeded(state, models.TierFree, jan)
	if state.Available != 2 {
		t.Errorf("December to January should refill, got %d", state.Available)
	}
}

func TestConsume(t *testing.T) {
	state := models.ShieldState{Available: 2}

	state, ok := Consume(state)
	if !ok || state.Available != 1 || state.UsedThisMonth != 1 {
		t.Errorf("first consume: ok=%v state=%+v", ok, state)
	}

	state, ok = Consume(state)
	if !ok || state.Available != 0 || state.UsedThisMonth != 2 {
		t.Errorf("second consume: ok=%v state=%+v", ok, state)
	}

	exhausted, ok := Consume(state)
	if ok {
		t.Error("consume on empty bank should fail")
	}
	if exhausted != state {
		t.Errorf("failed consume must not mutate state: %+v != %+v", exhausted, state)
	}
}

func TestAddPurchased(t *testing.T) {
	state := AddPurchased(models.ShieldState{}, models.TierFree, 1)
	if state.Available != 1 || state.PurchasedLifetime != 1 {
		t.Errorf("purchase of 1: %+v", state)
	}

	// Purchasing past the cap keeps the lifetime count but caps the balance
	state = AddPurchased(state, models.TierFree, 5)
	if state.Available != 2 {
		t.Errorf("balance should cap at 2, got %d", state.Available)
	}
	if state.PurchasedLifetime != 6 {
		t.Errorf("lifetime purchases should record the full 6, got %d", state.PurchasedLifetime)
	}
}

func TestAddPurchasedIgnoresNonPositive(t *testing.T) {
	state := models.ShieldState{Available: 1, PurchasedLifetime: 3}
	if got := AddPurchased(state, models.TierFree, 0); got != state {
		t.Errorf("AddPurchased(0) mutated state: %+v", got)
	}
	if got := AddPurchased(state, models.TierFree, -2); got != state {
		t.Errorf("AddPurchased(-2) mutated state: %+v", got)
	}
}

func TestCapInvariantAcrossSequences(t *testing.T) {
	// Property: for any mix of refills and purchases, 0 <= available <= cap.
	state := models.ShieldState{}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for month := 0; month < 24; month++ {
		state = RefillIfNeeded(state, models.TierPro, now.AddDate(0, month, 0))
		state = AddPurchased(state, models.TierPro, month%3)
		if month%2 == 0 {
			state, _ = Consume(state)
		}
		if state.Available < 0 || state.Available > MaxBanked(models.TierPro) {
			t.Fatalf("month %d: available %d outside [0, %d]", month, state.Available, MaxBanked(models.TierPro))
		}
	}
}
