package cli

import (
	"fmt"
	"strconv"

	"github.com/stride-app/stride/internal/models"
	"github.com/stride-app/stride/internal/utils"
)

type SettingsShowCmd struct{}

func (c *SettingsShowCmd) Run(ctx *Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Settings"))
	fmt.Printf("%s %d\n", labelStyle.Render("daily step goal"), settings.DailyStepGoal)
	fmt.Printf("%s %s\n", labelStyle.Render("timezone"), settings.Timezone)
	fmt.Printf("%s %s\n", labelStyle.Render("tier"), settings.Tier)
	fmt.Printf("%s %t\n", labelStyle.Render("notifications"), settings.NotificationsEnabled)
	return nil
}

type SettingsSetCmd struct {
	Key   string `arg:"" help:"Setting to change: goal, timezone, tier, notifications."`
	Value string `arg:"" help:"New value."`
}

func (c *SettingsSetCmd) Run(ctx *Context) error {
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return err
	}

	switch c.Key {
	case "goal":
		goal, err := strconv.Atoi(c.Value)
		if err != nil || goal <= 0 {
			return fmt.Errorf("goal must be a positive integer: %s", c.Value)
		}
		settings.DailyStepGoal = goal
	case "timezone":
		if !utils.ValidateTimezone(c.Value) {
			return fmt.Errorf("invalid timezone: %s", c.Value)
		}
		settings.Timezone = c.Value
	case "tier":
		tier, err := models.ParseTier(c.Value)
		if err != nil {
			return err
		}
		settings.Tier = tier
	case "notifications":
		enabled, err := strconv.ParseBool(c.Value)
		if err != nil {
			return fmt.Errorf("notifications must be true or false: %s", c.Value)
		}
		settings.NotificationsEnabled = enabled
	default:
		return fmt.Errorf("unknown setting %q (available: goal, timezone, tier, notifications)", c.Key)
	}

	if err := ctx.Store.SaveSettings(settings); err != nil {
		return err
	}
	fmt.Printf("%s %s set to %s\n", okStyle.Render("✓"), c.Key, c.Value)
	return nil
}
