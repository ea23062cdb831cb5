package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/stride-app/stride/internal/models"
)

type PostgresStore struct {
	connStr string
	db      *sql.DB
}

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

func NewPostgresStore(connStr string) *PostgresStore {
	return &PostgresStore{
		connStr: connStr,
	}
}

// HasEmbeddedCredentials reports whether a connection string carries a
// password, which we refuse outside the OS keyring.
func HasEmbeddedCredentials(connStr string) bool {
	_, err := ValidateConnString(connStr)
	return errors.Is(err, ErrEmbeddedCredentials)
}

// ValidateConnString checks if a connection string is a valid PostgreSQL
// connection string (URI or DSN) and ensures it does not contain a password.
func ValidateConnString(connStr string) (bool, error) {
	if strings.TrimSpace(connStr) == "" {
		return false, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return false, fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		parsedURL, err := url.Parse(connStr)
		if err != nil {
			return false, fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if _, isSet := parsedURL.User.Password(); isSet {
			return false, ErrEmbeddedCredentials
		}
	} else {
		for _, pair := range strings.Fields(connStr) {
			parts := strings.SplitN(pair, "=", 2)
			if len(parts) == 2 && strings.EqualFold(strings.TrimSpace(parts[0]), "password") {
				return false, ErrEmbeddedCredentials
			}
		}
	}

	return true, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS daily_records (
		day TEXT PRIMARY KEY,
		steps INTEGER NOT NULL DEFAULT 0 CHECK (steps >= 0),
		goal_met BOOLEAN NOT NULL DEFAULT FALSE,
		shield_used BOOLEAN NOT NULL DEFAULT FALSE,
		walk_refs TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
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
}

func (s *PostgresStore) Init() error {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	s.db = db

	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	// Initialize default settings if not present
	if _, err := s.GetSettings(); err != nil {
		if err := s.SaveSettings(models.DefaultSettings()); err != nil {
			return fmt.Errorf("failed to save default settings: %w", err)
		}
	}

	return nil
}

func (s *PostgresStore) Load() error {
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	s.db = db

	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	return nil
}

func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *PostgresStore) GetSettings() (models.Settings, error) {
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

func (s *PostgresStore) SaveSettings(settings models.Settings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for key, value := range models.SettingsToMap(settings) {
		if _, err := tx.Exec(`
			INSERT INTO settings (key, value) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
			key, value); err != nil {
			return fmt.Errorf("failed to save setting %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) UpsertRecord(day string, steps int, goalTarget int) (models.DailyRecord, error) {
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

	if _, err := s.db.Exec(`
		INSERT INTO daily_records (day, steps, goal_met, shield_used, walk_refs, created_at, updated_at)
		VALUES ($1, $2, $3, FALSE, '[]', $4, $4)
		ON CONFLICT (day) DO UPDATE SET
			steps = EXCLUDED.steps,
			goal_met = EXCLUDED.goal_met,
			updated_at = EXCLUDED.updated_at`,
		day, steps, record.GoalMet, now); err != nil {
		return models.DailyRecord{}, fmt.Errorf("failed to upsert record: %w", err)
	}

	return s.GetRecord(day)
}

func (s *PostgresStore) GetRecord(day string) (models.DailyRecord, error) {
	row := s.db.QueryRow(`
		SELECT day, steps, goal_met, shield_used, walk_refs, created_at, updated_at
		FROM daily_records WHERE day = $1`, day)
	return scanPostgresRecord(row)
}

func (s *PostgresStore) AllRecords() ([]models.DailyRecord, error) {
	rows, err := s.db.Query(`
		SELECT day, steps, goal_met, shield_used, walk_refs, created_at, updated_at
		FROM daily_records ORDER BY day DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []models.DailyRecord
	for rows.Next() {
		record, err := scanPostgresRecord(rows)
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

func (s *PostgresStore) MarkShieldUsed(day string) error {
	return s.setShieldUsed(day, true)
}

func (s *PostgresStore) ClearShieldUsed(day string) error {
	return s.setShieldUsed(day, false)
}

func (s *PostgresStore) setShieldUsed(day string, used bool) error {
	result, err := s.db.Exec(`
		UPDATE daily_records SET shield_used = $1, updated_at = $2 WHERE day = $3`,
		used, time.Now().UTC(), day)
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

func (s *PostgresStore) AddWalkRef(day string, ref string) error {
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
		UPDATE daily_records SET walk_refs = $1, updated_at = $2 WHERE day = $3`,
		string(refs), time.Now().UTC(), day); err != nil {
		return fmt.Errorf("failed to update walk refs: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAllRecords() error {
	if _, err := s.db.Exec(`DELETE FROM daily_records`); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetStreakState() (models.StreakState, error) {
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

func (s *PostgresStore) SaveStreakState(state models.StreakState) error {
	return s.saveStreakState(s.db, state)
}

type pgExecer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) saveStreakState(e pgExecer, state models.StreakState) error {
	if _, err := e.Exec(`
		INSERT INTO streak_state (id, current_streak, longest_streak, last_goal_met_day, streak_start_day)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			current_streak = EXCLUDED.current_streak,
			longest_streak = EXCLUDED.longest_streak,
			last_goal_met_day = EXCLUDED.last_goal_met_day,
			streak_start_day = EXCLUDED.streak_start_day`,
		state.CurrentStreak, state.LongestStreak, state.LastGoalMetDay, state.StreakStartDay); err != nil {
		return fmt.Errorf("failed to save streak state: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetShieldState() (models.ShieldState, error) {
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

func (s *PostgresStore) SaveShieldState(state models.ShieldState) error {
	if _, err := s.db.Exec(`
		INSERT INTO shield_state (id, available, last_refill_day, used_this_month, purchased_lifetime)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			available = EXCLUDED.available,
			last_refill_day = EXCLUDED.last_refill_day,
			used_this_month = EXCLUDED.used_this_month,
			purchased_lifetime = EXCLUDED.purchased_lifetime`,
		state.Available, state.LastRefillDay, state.UsedThisMonth, state.PurchasedLifetime); err != nil {
		return fmt.Errorf("failed to save shield state: %w", err)
	}
	return nil
}

func (s *PostgresStore) ReplaceHistory(records []models.DailyRecord, streak models.StreakState) error {
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
		refs := []byte("[]")
		if record.WalkRefs != nil {
			refs, err = json.Marshal(record.WalkRefs)
			if err != nil {
				return fmt.Errorf("failed to serialize walk refs: %w", err)
			}
		}
		if _, err := tx.Exec(`
			INSERT INTO daily_records (day, steps, goal_met, shield_used, walk_refs, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			record.Day, record.Steps, record.GoalMet, record.ShieldUsed,
			string(refs), record.CreatedAt, record.UpdatedAt); err != nil {
			return fmt.Errorf("failed to insert record for %s: %w", record.Day, err)
		}
	}

	if err := s.saveStreakState(tx, streak); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *PostgresStore) GetConfigPath() string {
	return s.connStr
}

func scanPostgresRecord(row rowScanner) (models.DailyRecord, error) {
	var record models.DailyRecord
	var walkRefs string

	err := row.Scan(&record.Day, &record.Steps, &record.GoalMet, &record.ShieldUsed,
		&walkRefs, &record.CreatedAt, &record.UpdatedAt)
	if err == sql.ErrNoRows {
		return models.DailyRecord{}, fmt.Errorf("no record for day: %w", ErrNotFound)
	}
	if err != nil {
		return models.DailyRecord{}, fmt.Errorf("failed to scan record: %w", err)
	}

	if walkRefs != "" && walkRefs != "[]" {
		if err := json.Unmarshal([]byte(walkRefs), &record.WalkRefs); err != nil {
			return models.DailyRecord{}, fmt.Errorf("failed to parse walk refs: %w", err)
		}
	}

	return record, nil
}
