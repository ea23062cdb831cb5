package cli

import (
	"fmt"

	"github.com/stride-app/stride/internal/reconcile"
)

type ReconcileCmd struct {
	Source string `arg:"" help:"Path to a JSON step-history export ([{\"day\":\"YYYY-MM-DD\",\"steps\":N}, ...])."`
}

func (c *ReconcileCmd) Run(ctx *Context) error {
	svc := reconcile.NewService(ctx.Engine, reconcile.NewFileSource(c.Source))

	result, err := svc.Run()
	if err != nil {
		return err
	}
	if result.Superseded {
		fmt.Println("Reconciliation superseded by a newer run.")
		return nil
	}

	fmt.Printf("%s Reconciled %d day(s)\n", okStyle.Render("✓"), result.Days)
	fmt.Println(FormatStreak(result.Streak.CurrentStreak))
	fmt.Printf("%s %d days\n", labelStyle.Render("longest"), result.Streak.LongestStreak)

	outcome, day, err := svc.AttemptStreakRepair()
	if err != nil {
		return err
	}
	if outcome == reconcile.RepairDone {
		state, _, err := ctx.Engine.States()
		if err != nil {
			return err
		}
		fmt.Printf("%s Repaired %s with a shield\n", okStyle.Render("✓"), day)
		fmt.Println(FormatStreak(state.CurrentStreak))
	}
	return nil
}
