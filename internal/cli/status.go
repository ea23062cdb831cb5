package cli

import (
	"errors"
	"fmt"

	"github.com/stride-app/stride/internal/storage"
)

type StatusCmd struct{}

func (c *StatusCmd) Run(ctx *Context) error {
	today, err := ctx.Engine.Today()
	if err != nil {
		return err
	}
	streakState, shieldState, err := ctx.Engine.States()
	if err != nil {
		return err
	}
	settings, err := ctx.Store.GetSettings()
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("stride"))
	fmt.Println()
	fmt.Println(FormatStreak(streakState.CurrentStreak))
	if streakState.StreakStartDay != "" {
		fmt.Printf("%s %s\n", labelStyle.Render("started"), streakState.StreakStartDay)
	}
	fmt.Printf("%s %s\n", labelStyle.Render("longest"), valueStyle.Render(fmt.Sprintf("%d days", streakState.LongestStreak)))
	fmt.Println()

	record, err := ctx.Store.GetRecord(today)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		fmt.Printf("%s no steps recorded yet (goal %d)\n", labelStyle.Render("today"), settings.DailyStepGoal)
	case err != nil:
		return err
	default:
		fmt.Printf("%s %s %d / %d steps\n", labelStyle.Render("today"), FormatDayStatus(record), record.Steps, settings.DailyStepGoal)
	}

	fmt.Printf("%s %s\n", labelStyle.Render("shields"), shieldStyle.Render(fmt.Sprintf("%d of %d", shieldState.Available, settings.Tier.MaxBanked())))
	if shieldState.UsedThisMonth > 0 {
		fmt.Printf("%s %d used this month\n", labelStyle.Render("       "), shieldState.UsedThisMonth)
	}
	fmt.Printf("%s %s\n", labelStyle.Render("tier"), string(settings.Tier))
	return nil
}
