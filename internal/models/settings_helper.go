package models

import (
	"fmt"

	"github.com/stride-app/stride/internal/constants"
)

// MapToSettings converts a map of key-value pairs to a Settings struct.
func MapToSettings(data map[string]string) (Settings, error) {
	settings := Settings{}

	for key, value := range data {
		switch key {
		case constants.SettingDailyStepGoal:
			if _, err := fmt.Sscanf(value, "%d", &settings.DailyStepGoal); err != nil {
				return Settings{}, fmt.Errorf("parsing daily_step_goal: %w", err)
			}
		case constants.SettingTimezone:
			settings.Timezone = value
		case constants.SettingTier:
			tier, err := ParseTier(value)
			if err != nil {
				return Settings{}, fmt.Errorf("parsing tier: %w", err)
			}
			settings.Tier = tier
		case constants.SettingNotificationsEnabled:
			settings.NotificationsEnabled = value == "true"
		}
	}

	return settings, nil
}

// SettingsToMap converts a Settings struct to a map of key-value pairs.
func SettingsToMap(settings Settings) map[string]string {
	return map[string]string{
		constants.SettingDailyStepGoal:        fmt.Sprintf("%d", settings.DailyStepGoal),
		constants.SettingTimezone:             settings.Timezone,
		constants.SettingTier:                 string(settings.Tier),
		constants.SettingNotificationsEnabled: fmt.Sprintf("%t", settings.NotificationsEnabled),
	}
}

// DefaultSettings returns the out-of-the-box settings applied at init.
func DefaultSettings() Settings {
	return Settings{
		DailyStepGoal:        constants.DefaultDailyStepGoal,
		Timezone:             constants.DefaultTimezone,
		Tier:                 TierFree,
		NotificationsEnabled: constants.DefaultNotificationsEnabled,
	}
}
