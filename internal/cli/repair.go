package cli

import (
	"fmt"

	"github.com/stride-app/stride/internal/constants"
	"github.com/stride-app/stride/internal/utils"
)

type RepairCmd struct {
	Day string `arg:"" help:"Missed day to cover with a shield (YYYY-MM-DD)."`
}

func (c *RepairCmd) Run(ctx *Context) error {
	if !utils.ValidateDayKey(c.Day) {
		return fmt.Errorf("invalid day format (expected YYYY-MM-DD): %s", c.Day)
	}

	ok, err := ctx.Engine.CanRepairDate(c.Day)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s cannot be repaired: repairs cover missed days up to %d days back", c.Day, constants.RepairWindowDays)
	}

	repaired, err := ctx.Engine.RepairDate(c.Day)
	if err != nil {
		return err
	}
	if !repaired {
		_, shieldState, serr := ctx.Engine.States()
		if serr == nil && shieldState.Available == 0 {
			return fmt.Errorf("no shields available. Buy more with 'stride shield purchase' or wait for the monthly refill")
		}
		return fmt.Errorf("repair of %s was not possible", c.Day)
	}

	state, _, err := ctx.Engine.States()
	if err != nil {
		return err
	}
	fmt.Printf("%s Repaired %s\n", okStyle.Render("✓"), c.Day)
	fmt.Println(FormatStreak(state.CurrentStreak))
	return nil
}
