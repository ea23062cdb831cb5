package models

import "fmt"

// Tier is the subscription level, affecting the shield bank cap and the
// monthly allocation.
type Tier string

const (
	TierFree Tier = "free"
	TierPro  Tier = "pro"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierPro:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("invalid tier %q (expected free or pro)", s)
	}
}

// MaxBanked returns the maximum number of shields that can be held at once.
func (t Tier) MaxBanked() int {
	if t == TierPro {
		return 8
	}
	return 2
}

// MonthlyAllocation returns the number of shields granted by a monthly refill.
func (t Tier) MonthlyAllocation() int {
	if t == TierPro {
		return 4
	}
	return 2
}

// ShieldState is the singleton shield bank. LastRefillDay is a YYYY-MM-DD key
// recording the last calendar month a monthly allocation was granted; empty
// means no refill has ever happened.
type ShieldState struct {
	Available         int    `json:"available"`
	LastRefillDay     string `json:"last_refill_day,omitempty"`
	UsedThisMonth     int    `json:"used_this_month"`
	PurchasedLifetime int    `json:"purchased_lifetime"`
}
