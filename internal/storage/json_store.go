package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/stride-app/stride/internal/models"
)

type Store struct {
	Version     int                           `json:"version"`
	Settings    models.Settings               `json:"settings"`
	Records     map[string]models.DailyRecord `json:"records"` // day key -> record
	StreakState models.StreakState            `json:"streak_state"`
	ShieldState models.ShieldState            `json:"shield_state"`
}

type JSONStore struct {
	path  string
	store *Store
}

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{
		path: configPath,
	}
}

func (s *JSONStore) Init() error {
	// Create config directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if file already exists
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("storage already initialized at %s", s.path)
	}

	s.store = &Store{
		Version:  1,
		Settings: models.DefaultSettings(),
		Records:  make(map[string]models.DailyRecord),
	}

	return s.save()
}

func (s *JSONStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run 'stride init' first")
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	s.store = &Store{}
	if err := json.Unmarshal(data, s.store); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}

	if s.store.Records == nil {
		s.store.Records = make(map[string]models.DailyRecord)
	}

	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

// save writes the store to a temp file and renames it into place so that a
// crash mid-write can never leave a partially written file behind.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace storage: %w", err)
	}

	return nil
}

func (s *JSONStore) GetSettings() (models.Settings, error) {
	if s.store == nil {
		return models.Settings{}, fmt.Errorf("storage not loaded")
	}
	return s.store.Settings, nil
}

func (s *JSONStore) SaveSettings(settings models.Settings) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	s.store.Settings = settings
	return s.save()
}

func (s *JSONStore) UpsertRecord(day string, steps int, goalTarget int) (models.DailyRecord, error) {
	if s.store == nil {
		return models.DailyRecord{}, fmt.Errorf("storage not loaded")
	}

	now := time.Now().UTC()
	record, ok := s.store.Records[day]
	if !ok {
		record = models.DailyRecord{
			Day:       day,
			CreatedAt: now,
		}
	}
	record.Steps = steps
	record.GoalMet = steps >= goalTarget
	record.UpdatedAt = now

	if err := record.Validate(); err != nil {
		return models.DailyRecord{}, err
	}

	s.store.Records[day] = record
	if err := s.save(); err != nil {
		return models.DailyRecord{}, err
	}

	return record, nil
}

func (s *JSONStore) GetRecord(day string) (models.DailyRecord, error) {
	if s.store == nil {
		return models.DailyRecord{}, fmt.Errorf("storage not loaded")
	}

	record, ok := s.store.Records[day]
	if !ok {
		return models.DailyRecord{}, fmt.Errorf("no record for day %s: %w", day, ErrNotFound)
	}

	return record, nil
}

func (s *JSONStore) AllRecords() ([]models.DailyRecord, error) {
	if s.store == nil {
		return nil, fmt.Errorf("storage not loaded")
	}

	records := make([]models.DailyRecord, 0, len(s.store.Records))
	for _, record := range s.store.Records {
		records = append(records, record)
	}

	// Day keys sort lexicographically in chronological order
	sort.Slice(records, func(i, j int) bool {
		return records[i].Day > records[j].Day
	})

	return records, nil
}

func (s *JSONStore) MarkShieldUsed(day string) error {
	return s.setShieldUsed(day, true)
}

func (s *JSONStore) ClearShieldUsed(day string) error {
	return s.setShieldUsed(day, false)
}

func (s *JSONStore) setShieldUsed(day string, used bool) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}

	record, ok := s.store.Records[day]
	if !ok {
		return fmt.Errorf("no record for day %s: %w", day, ErrNotFound)
	}

	record.ShieldUsed = used
	record.UpdatedAt = time.Now().UTC()
	s.store.Records[day] = record
	return s.save()
}

func (s *JSONStore) AddWalkRef(day string, ref string) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}

	record, ok := s.store.Records[day]
	if !ok {
		return fmt.Errorf("no record for day %s: %w", day, ErrNotFound)
	}

	if record.HasWalkRef(ref) {
		return nil
	}
	record.WalkRefs = append(record.WalkRefs, ref)
	record.UpdatedAt = time.Now().UTC()
	s.store.Records[day] = record
	return s.save()
}

func (s *JSONStore) DeleteAllRecords() error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}

	s.store.Records = make(map[string]models.DailyRecord)
	return s.save()
}

func (s *JSONStore) GetStreakState() (models.StreakState, error) {
	if s.store == nil {
		return models.StreakState{}, fmt.Errorf("storage not loaded")
	}
	return s.store.StreakState, nil
}

func (s *JSONStore) SaveStreakState(state models.StreakState) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	s.store.StreakState = state
	return s.save()
}

func (s *JSONStore) GetShieldState() (models.ShieldState, error) {
	if s.store == nil {
		return models.ShieldState{}, fmt.Errorf("storage not loaded")
	}
	return s.store.ShieldState, nil
}

func (s *JSONStore) SaveShieldState(state models.ShieldState) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}
	s.store.ShieldState = state
	return s.save()
}

func (s *JSONStore) ReplaceHistory(records []models.DailyRecord, streak models.StreakState) error {
	if s.store == nil {
		return fmt.Errorf("storage not loaded")
	}

	replacement := make(map[string]models.DailyRecord, len(records))
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return fmt.Errorf("invalid record for %s: %w", record.Day, err)
		}
		replacement[record.Day] = record
	}

	s.store.Records = replacement
	s.store.StreakState = streak
	return s.save()
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}
