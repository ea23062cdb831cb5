package storage

import (
	"errors"

	"github.com/stride-app/stride/internal/models"
)

// ErrNotFound is returned when no record exists for the requested day.
// Callers that treat an absent day as a plain miss check for it with errors.Is.
var ErrNotFound = errors.New("not found")

type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Settings
	GetSettings() (models.Settings, error)
	SaveSettings(models.Settings) error

	// Daily records
	// UpsertRecord creates or updates the record for the given day, recomputing
	// goal_met against goalTarget. It never touches shield_used or walk_refs.
	UpsertRecord(day string, steps int, goalTarget int) (models.DailyRecord, error)
	GetRecord(day string) (models.DailyRecord, error)
	// AllRecords returns every record, most recent day first.
	AllRecords() ([]models.DailyRecord, error)
	MarkShieldUsed(day string) error
	ClearShieldUsed(day string) error
	AddWalkRef(day string, ref string) error
	DeleteAllRecords() error

	// Singleton state
	GetStreakState() (models.StreakState, error)
	SaveStreakState(models.StreakState) error
	GetShieldState() (models.ShieldState, error)
	SaveShieldState(models.ShieldState) error

	// ReplaceHistory atomically replaces all daily records and the streak
	// state. Readers see either the old history or the new one, never a mix.
	// Used by reconciliation when it re-derives state from the authoritative
	// step source.
	ReplaceHistory(records []models.DailyRecord, streak models.StreakState) error

	// Utils
	GetConfigPath() string
}
