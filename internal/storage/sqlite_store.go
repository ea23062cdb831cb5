package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stride-app/stride/internal/models"
	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	path string
	db   *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{
		path: path,
	}
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_records (
		day TEXT PRIMARY KEY,
		steps INTEGER NOT NULL DEFAULT 0 CHECK (steps >= 0),
		goal_met INTEGER NOT NULL DEFAULT 0,
		shield_used INTEGER NOT NULL DEFAULT 0,
		walk_refs TEXT NOT NULL DEFAULT '[]',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS streak_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		current_streak INTEGER NOT NULL DEFAULT 0,
		longest_streak INTEGER NOT NULL DEFAULT 0,
		last_goal_met_day TEXT NOT NULL DEFAULT '',
		streak_start_day TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS shield_state (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		available INTEGER NOT NULL DEFAULT 0,
		last_refill_day TEXT NOT NULL DEFAULT '',
		used_this_month INTEGER NOT NULL DEFAULT 0,
		purchased_lifetime INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_daily_records_goal_met ON daily_records(goal_met)`,
}

func (s *SQLiteStore) Init() error {
	// Create config directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	if err := s.createSchema(); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Initialize default settings if not present
	if _, err := s.GetSettings(); err != nil {
		if err := s.SaveSettings(models.DefaultSettings()); err != nil {
			return fmt.Errorf("failed to save default settings: %w", err)
		}
	}

	return nil
}

func (s *SQLiteStore) Load() error {
	if s.db != nil {
		return nil
	}

	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run 'stride init' first")
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db

	// Schema statements are idempotent; running them on load picks up any
	// tables added since the database was initialized.
	return s.createSchema()
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) createSchema() error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) GetSettings() (models.Settings, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return models.Settings{}, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	data := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Settings{}, fmt.Errorf("failed to scan setting: %w", err)
		}
		data[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.Settings{}, fmt.Errorf("failed to read settings: %w", err)
	}

	if len(data) == 0 {
		return models.Settings{}, fmt.Errorf("no settings found")
	}

	return models.MapToSettings(data)
}

func (s *SQLiteStore) SaveSettings(settings models.Settings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range models.SettingsToMap(settings) {
		if _, err := tx.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) UpsertRecord(day string, steps int, goalTarget int) (models.DailyRecord, error) {
	now := time.Now().UTC()
	record := models.DailyRecord{
		Day:       day,
		Steps:     steps,
		GoalMet:   steps >= goalTarget,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := record.Validate(); err != nil {
		return models.DailyRecord{}, err
	}

	// shield_used and walk_refs are deliberately untouched on conflict
	if _, err := s.db.Exec(`
		INSERT INTO daily_records (day, steps, goal_met, shield_used, walk_refs, created_at, updated_at)
		VALUES (?, ?, ?, 0, '[]', ?, ?)
		ON CONFLICT(day) DO UPDATE SET
			steps = excluded.steps,
			goal_met = excluded.goal_met,
			updated_at = excluded.updated_at`,
		day, steps, boolToInt(record.GoalMet), now.Format(time.RFC3339), now.Format(time.RFC3339)); err != nil {
		return models.DailyRecord{}, fmt.Errorf("failed to upsert record: %w", err)
	}

	return s.GetRecord(day)
}

func (s *SQLiteStore) GetRecord(day string) (models.DailyRecord, error) {
	row := s.db.QueryRow(`
		SELECT day, steps, goal_met, shield_used, walk_refs, created_at, updated_at
		FROM daily_records WHERE day = ?`, day)
	return scanRecord(row)
}

func (s *SQLiteStore) AllRecords() ([]models.DailyRecord, error) {
	rows, err := s.db.Query(`
		SELECT day, steps, goal_met, shield_used, walk_refs, created_at, updated_at
		FROM daily_records ORDER BY day DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.DailyRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	return records, nil
}

func (s *SQLiteStore) MarkShieldUsed(day string) error {
	return s.setShieldUsed(day, true)
}

func (s *SQLiteStore) ClearShieldUsed(day string) error {
	return s.setShieldUsed(day, false)
}

func (s *SQLiteStore) setShieldUsed(day string, used bool) error {
	result, err := s.db.Exec(`
		UPDATE daily_records SET shield_used = ?, updated_at = ? WHERE day = ?`,
		boolToInt(used), time.Now().UTC().Format(time.RFC3339), day)
	if err != nil {
		return fmt.Errorf("failed to update shield flag: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no record for day %s: %w", day, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) AddWalkRef(day string, ref string) error {
	record, err := s.GetRecord(day)
	if err != nil {
		return err
	}
	if record.HasWalkRef(ref) {
		return nil
	}

	refs, err := json.Marshal(append(record.WalkRefs, ref))
	if err != nil {
		return fmt.Errorf("failed to serialize walk refs: %w", err)
	}

	if _, err := s.db.Exec(`
		UPDATE daily_records SET walk_refs = ?, updated_at = ? WHERE day = ?`,
		string(refs), time.Now().UTC().Format(time.RFC3339), day); err != nil {
		return fmt.Errorf("failed to update walk refs: %w", err)
	}
	return nil
}

func (s *SQLiteStore) DeleteAllRecords() error {
	if _, err := s.db.Exec(`DELETE FROM daily_records`); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetStreakState() (models.StreakState, error) {
	var state models.StreakState
	err := s.db.QueryRow(`
		SELECT current_streak, longest_streak, last_goal_met_day, streak_start_day
		FROM streak_state WHERE id = 1`).Scan(
		&state.CurrentStreak, &state.LongestStreak, &state.LastGoalMetDay, &state.StreakStartDay)
	if err == sql.ErrNoRows {
		return models.StreakState{}, nil
	}
	if err != nil {
		return models.StreakState{}, fmt.Errorf("failed to query streak state: %w", err)
	}
	return state, nil
}

func (s *SQLiteStore) SaveStreakState(state models.StreakState) error {
	return saveStreakStateTx(s.db, state)
}

func (s *SQLiteStore) GetShieldState() (models.ShieldState, error) {
	var state models.ShieldState
	err := s.db.QueryRow(`
		SELECT available, last_refill_day, used_this_month, purchased_lifetime
		FROM shield_state WHERE id = 1`).Scan(
		&state.Available, &state.LastRefillDay, &state.UsedThisMonth, &state.PurchasedLifetime)
	if err == sql.ErrNoRows {
		return models.ShieldState{}, nil
	}
	if err != nil {
		return models.ShieldState{}, fmt.Errorf("failed to query shield state: %w", err)
	}
	return state, nil
}

func (s *SQLiteStore) SaveShieldState(state models.ShieldState) error {
	if _, err := s.db.Exec(`
		INSERT INTO shield_state (id, available, last_refill_day, used_this_month, purchased_lifetime)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			available = excluded.available,
			last_refill_day = excluded.last_refill_day,
			used_this_month = excluded.used_this_month,
			purchased_lifetime = excluded.purchased_lifetime`,
		state.Available, state.LastRefillDay, state.UsedThisMonth, state.PurchasedLifetime); err != nil {
		return fmt.Errorf("failed to save shield state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReplaceHistory(records []models.DailyRecord, streak models.StreakState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM daily_records`); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}

	for _, record := range records {
		if err := record.Validate(); err != nil {
			return fmt.Errorf("invalid record for %s: %w", record.Day, err)
		}
		refs, err := json.Marshal(record.WalkRefs)
		if err != nil {
			return fmt.Errorf("failed to serialize walk refs: %w", err)
		}
		if record.WalkRefs == nil {
			refs = []byte("[]")
		}
		if _, err := tx.Exec(`
			INSERT INTO daily_records (day, steps, goal_met, shield_used, walk_refs, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.Day, record.Steps, boolToInt(record.GoalMet), boolToInt(record.ShieldUsed),
			string(refs), record.CreatedAt.Format(time.RFC3339), record.UpdatedAt.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("failed to insert record for %s: %w", record.Day, err)
		}
	}

	if err := saveStreakStateTx(tx, streak); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetConfigPath() string {
	return s.path
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func saveStreakStateTx(e execer, state models.StreakState) error {
	if _, err := e.Exec(`
		INSERT INTO streak_state (id, current_streak, longest_streak, last_goal_met_day, streak_start_day)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			current_streak = excluded.current_streak,
			longest_streak = excluded.longest_streak,
			last_goal_met_day = excluded.last_goal_met_day,
			streak_start_day = excluded.streak_start_day`,
		state.CurrentStreak, state.LongestStreak, state.LastGoalMetDay, state.StreakStartDay); err != nil {
		return fmt.Errorf("failed to save streak state: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.DailyRecord, error) {
	var record models.DailyRecord
	var goalMet, shieldUsed int
	var walkRefs, createdAt, updatedAt string

	err := row.Scan(&record.Day, &record.Steps, &goalMet, &shieldUsed, &walkRefs, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return models.DailyRecord{}, fmt.Errorf("no record for day: %w", ErrNotFound)
	}
	if err != nil {
		return models.DailyRecord{}, fmt.Errorf("failed to scan record: %w", err)
	}

	record.GoalMet = goalMet != 0
	record.ShieldUsed = shieldUsed != 0

	if walkRefs != "" && walkRefs != "[]" {
		if err := json.Unmarshal([]byte(walkRefs), &record.WalkRefs); err != nil {
			return models.DailyRecord{}, fmt.Errorf("failed to parse walk refs: %w", err)
		}
	}
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		record.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339, updatedAt); err == nil {
		record.UpdatedAt = t
	}

	return record, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
