package models

// Settings represents application-wide settings
type Settings struct {
	DailyStepGoal        int    `json:"daily_step_goal"`       // step target a day must reach to count as met
	Timezone             string `json:"timezone"`              // IANA timezone name, or "Local" for system timezone
	Tier                 Tier   `json:"tier"`                  // subscription tier (free or pro)
	NotificationsEnabled bool   `json:"notifications_enabled"` // whether event notifications are surfaced
}
