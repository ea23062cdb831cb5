package cli

import (
	"fmt"

	"github.com/stride-app/stride/internal/models"
)

type TierCmd struct {
	Show TierShowCmd `cmd:"" help:"Show the current tier." default:"1"`
	Set  TierSetCmd  `cmd:"" help:"Change the tier (free or pro)."`
}

type TierShowCmd struct{}

func (c *TierShowCmd) Run(ctx *Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return err
	}
	fmt.Printf("%s tier: %d shields banked max, %d granted monthly\n",
		settings.Tier, settings.Tier.MaxBanked(), settings.Tier.MonthlyAllocation())
	return nil
}

type TierSetCmd struct {
	Tier string `arg:"" help:"New tier: free or pro."`
}

func (c *TierSetCmd) Run(ctx *Context) error {
	tier, err := models.ParseTier(c.Tier)
	if err != nil {
		return err
	}

	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return err
	}
	if settings.Tier == tier {
		fmt.Printf("Already on the %s tier.\n", tier)
		return nil
	}
	settings.Tier = tier
	if err := ctx.Store.SaveSettings(settings); err != nil {
		return err
	}

	// A tier change affects future refills only; banked shields are kept
	// even above the new cap
	fmt.Printf("%s Switched to the %s tier (%d banked max, %d/month)\n",
		okStyle.Render("✓"), tier, tier.MaxBanked(), tier.MonthlyAllocation())
	return nil
}
