package cli

import (
	"fmt"

	"github.com/stride-app/stride/internal/reconcile"
)

type ShieldStatusCmd struct{}

func (c *ShieldStatusCmd) Run(ctx *Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return err
	}
	_, shieldState, err := ctx.Engine.States()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Shields"))
	fmt.Printf("%s %s\n", labelStyle.Render("available"), shieldStyle.Render(fmt.Sprintf("%d of %d", shieldState.Available, settings.Tier.MaxBanked())))
	fmt.Printf("%s %d\n", labelStyle.Render("used this month"), shieldState.UsedThisMonth)
	fmt.Printf("%s %d\n", labelStyle.Render("purchased lifetime"), shieldState.PurchasedLifetime)
	if shieldState.LastRefillDay != "" {
		fmt.Printf("%s %s (%d/month on %s tier)\n", labelStyle.Render("last refill"), shieldState.LastRefillDay, settings.Tier.MonthlyAllocation(), settings.Tier)
	}
	return nil
}

type ShieldPurchaseCmd struct {
	Count int `arg:"" optional:"" default:"1" help:"Number of shields to add after purchase confirmation."`
}

func (c *ShieldPurchaseCmd) Run(ctx *Context) error {
	if c.Count <= 0 {
		return fmt.Errorf("count must be positive: %d", c.Count)
	}

	if err := ctx.Engine.AddPurchasedShields(c.Count); err != nil {
		return err
	}

	// A purchase may have been made to fix a broken streak; follow through
	// the same way a relaunch would
	outcome, day, err := ctx.Recon.AttemptStreakRepair()
	if err != nil {
		return err
	}
	if outcome == reconcile.RepairDone {
		state, _, err := ctx.Engine.States()
		if err != nil {
			return err
		}
		fmt.Printf("%s Repaired your broken streak (%s covered)\n", okStyle.Render("✓"), day)
		fmt.Println(FormatStreak(state.CurrentStreak))
	}

	_, shieldState, err := ctx.Engine.States()
	if err != nil {
		return err
	}
	fmt.Printf("%s Added %d shield(s), %d now available\n", okStyle.Render("✓"), c.Count, shieldState.Available)
	return nil
}

type ShieldRefillCmd struct{}

func (c *ShieldRefillCmd) Run(ctx *Context) error {
	if err := ctx.Engine.RefillIfNeeded(); err != nil {
		return err
	}
	_, shieldState, err := ctx.Engine.States()
	if err != nil {
		return err
	}
	fmt.Printf("%d shield(s) available\n", shieldState.Available)
	return nil
}
