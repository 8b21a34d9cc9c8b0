package store

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

type SettingsStore struct {
	db *sql.DB
}

func NewSettingsStore(db *sql.DB) *SettingsStore {
	return &SettingsStore{db: db}
}

func (s *SettingsStore) Get(companyID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE company_id = ? AND key = ?`, companyID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("setting %q not found", key)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *SettingsStore) GetAll(companyID int64) (map[string]string, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings WHERE company_id = ? ORDER BY key`, companyID)
	if err != nil {
		return nil, fmt.Errorf("get all settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

func (s *SettingsStore) Set(companyID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (company_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(company_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		companyID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

// GetCompanySettings returns the typed settings, falling back to the
// defaults for missing or malformed rows.
func (s *SettingsStore) GetCompanySettings(companyID int64) (model.CompanySettings, error) {
	all, err := s.GetAll(companyID)
	if err != nil {
		return model.CompanySettings{}, err
	}
	return model.CompanySettings{
		CleaningCount:         intSetting(all, model.SettingCleaningCount),
		MealCount:             intSetting(all, model.SettingMealCount),
		ApprovalWindowMinutes: intSetting(all, model.SettingApprovalWindow),
	}, nil
}

// SetCompanySettings writes all typed settings in one transaction.
func (s *SettingsStore) SetCompanySettings(companyID int64, cs model.CompanySettings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	values := map[string]int{
		model.SettingCleaningCount:  cs.CleaningCount,
		model.SettingMealCount:      cs.MealCount,
		model.SettingApprovalWindow: cs.ApprovalWindowMinutes,
	}
	for key, v := range values {
		if _, err := tx.Exec(
			`INSERT INTO settings (company_id, key, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(company_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			companyID, key, strconv.Itoa(v), now,
		); err != nil {
			return fmt.Errorf("set setting %q: %w", key, err)
		}
	}
	return tx.Commit()
}

func intSetting(all map[string]string, key string) int {
	if v, err := strconv.Atoi(all[key]); err == nil && v > 0 {
		return v
	}
	v, _ := strconv.Atoi(DefaultSettings[key])
	return v
}
