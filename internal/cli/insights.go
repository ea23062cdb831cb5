package cli

import (
	"fmt"

	"github.com/stride-app/stride/internal/insights"
)

type InsightsCmd struct {
	Days int `help:"Analysis window in days." default:"30"`
}

func (c *InsightsCmd) Run(ctx *Context) error {
	if c.Days <= 0 {
		return fmt.Errorf("days must be positive: %d", c.Days)
	}

	summary, suggestions, err := insights.NewAnalyzer(ctx.Store).Analyze(c.Days)
	if err != nil {
		return err
	}

	fmt.Println(titleStyle.Render("Insights"))
	fmt.Printf("%s %d\n", labelStyle.Render("days analyzed"), summary.DaysAnalyzed)
	if summary.DaysAnalyzed > 0 {
		fmt.Printf("%s %.0f%% (%d met, %d shielded)\n", labelStyle.Render("hit rate"), summary.HitRate*100, summary.GoalMetDays, summary.ShieldedDays)
		fmt.Printf("%s %d\n", labelStyle.Render("average steps"), summary.AverageSteps)
	}

	if len(suggestions) == 0 {
		fmt.Println()
		fmt.Println("Nothing to suggest. Keep at it.")
		return nil
	}

	fmt.Println()
	for _, s := range suggestions {
		switch s.Type {
		case insights.SuggestionLowerGoal:
			fmt.Printf("• Consider lowering your goal from %d to %d: %s\n", s.CurrentValue, s.SuggestedValue, s.Reason)
		case insights.SuggestionRaiseGoal:
			fmt.Printf("• Consider raising your goal from %d to %d: %s\n", s.CurrentValue, s.SuggestedValue, s.Reason)
		case insights.SuggestionUpgradeTier:
			fmt.Printf("• Consider the pro tier: %s\n", s.Reason)
		case insights.SuggestionBuildHistory:
			fmt.Printf("• %s\n", s.Reason)
		}
	}
	return nil
}
