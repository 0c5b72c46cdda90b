package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/pinchvol/internal/gesture"
)

// CalibrationKey is the settings key holding the gesture calibration.
const CalibrationKey = "gesture.calibration"

// SettingsRepository reads and writes key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key, or ErrNotFound.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now(),
	)
	return err
}

// All returns every setting.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// LoadCalibration returns the stored calibration, or def if none is stored.
func (r *SettingsRepository) LoadCalibration(def gesture.Calibration) (gesture.Calibration, error) {
	raw, err := r.Get(CalibrationKey)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return def, err
	}

	var c gesture.Calibration
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return def, fmt.Errorf("decode calibration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return def, fmt.Errorf("stored calibration: %w", err)
	}
	return c, nil
}

// SaveCalibration validates and stores c.
func (r *SettingsRepository) SaveCalibration(c gesture.Calibration) error {
	if err := c.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.Set(CalibrationKey, string(raw))
}
