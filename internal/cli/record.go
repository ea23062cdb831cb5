package cli

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/stride-app/stride/internal/utils"
)

type RecordCmd struct {
	Steps int    `arg:"" help:"Step count for the day."`
	Day   string `help:"Day to record (YYYY-MM-DD). Defaults to today."`
	Walk  bool   `help:"Attach a walk session reference to the record."`
}

func (c *RecordCmd) Run(ctx *Context) error {
	day := c.Day
	if day == "" {
		var err error
		day, err = ctx.Engine.Today()
		if err != nil {
			return err
		}
	}
	if !utils.ValidateDayKey(day) {
		return fmt.Errorf("invalid day format (expected YYYY-MM-DD): %s", day)
	}

	record, err := ctx.Engine.RecordSteps(day, c.Steps)
	if err != nil {
		return err
	}

	if c.Walk {
		walkID := uuid.NewString()
		if err := ctx.Store.AddWalkRef(day, walkID); err != nil {
			return err
		}
		fmt.Printf("Attached walk %s\n", walkID)
	}

	fmt.Printf("%s %s  %d steps", FormatDayStatus(record), record.Day, record.Steps)
	if record.GoalMet {
		fmt.Print("  goal met")
	}
	fmt.Println()

	state, _, err := ctx.Engine.States()
	if err != nil {
		return err
	}
	fmt.Println(FormatStreak(state.CurrentStreak))
	return nil
}
