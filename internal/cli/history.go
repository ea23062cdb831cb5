package cli

import (
	"fmt"

	"github.com/stride-app/stride/internal/models"
)

type HistoryCmd struct {
	Days int `help:"Number of most recent days to show." default:"30"`
}

func (c *HistoryCmd) Run(ctx *Context) error {
	if c.Days <= 0 {
		return fmt.Errorf("days must be positive: %d", c.Days)
	}

	records, err := ctx.Store.AllRecords()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No recorded days yet.")
		return nil
	}
	if len(records) > c.Days {
		records = records[:c.Days]
	}

	fmt.Println(titleStyle.Render("History"))
	for _, record := range records {
		fmt.Printf("%s %s  %6d steps%s%s\n",
			FormatDayStatus(record),
			record.Day,
			record.Steps,
			shieldNote(record),
			walkNote(record))
	}
	return nil
}

func shieldNote(record models.DailyRecord) string {
	if record.ShieldUsed {
		return shieldStyle.Render("  shielded")
	}
	return ""
}

func walkNote(record models.DailyRecord) string {
	if len(record.WalkRefs) == 0 {
		return ""
	}
	return labelStyle.Render(fmt.Sprintf("  %d walk(s)", len(record.WalkRefs)))
}
