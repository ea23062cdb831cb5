package constants

const (
	// Settings keys
	SettingDailyStepGoal        = "daily_step_goal"
	SettingTimezone             = "timezone"
	SettingTier                 = "tier"
	SettingNotificationsEnabled = "notifications_enabled"

	// Default settings values
	DefaultDailyStepGoal        = 8000
	DefaultTimezone             = "Local" // Use system local timezone by default
	DefaultNotificationsEnabled = true
)
