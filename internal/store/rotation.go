package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

// RotationStore persists each company's per-kind rotation memory, the ids
// already picked on the state's day.
type RotationStore struct {
	db *sql.DB
}

func NewRotationStore(db *sql.DB) *RotationStore {
	return &RotationStore{db: db}
}

// Get returns the stored state, or nil when the kind has never been assigned.
func (s *RotationStore) Get(companyID int64, kind model.ChoreKind) (*model.RotationState, error) {
	var st model.RotationState
	var used string
	err := s.db.QueryRow(
		`SELECT company_id, kind, day, used_member_ids, updated_at FROM rotation_states WHERE company_id = ? AND kind = ?`,
		companyID, string(kind),
	).Scan(&st.CompanyID, &st.Kind, &st.Day, &used, &st.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rotation state: %w", err)
	}
	if err := json.Unmarshal([]byte(used), &st.UsedMemberIDs); err != nil {
		return nil, fmt.Errorf("decode used members: %w", err)
	}
	return &st, nil
}

func (s *RotationStore) Save(st model.RotationState) error {
	ids := st.UsedMemberIDs
	if ids == nil {
		ids = []int64{}
	}
	used, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode used members: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO rotation_states (company_id, kind, day, used_member_ids, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(company_id, kind) DO UPDATE SET day = excluded.day, used_member_ids = excluded.used_member_ids, updated_at = excluded.updated_at`,
		st.CompanyID, string(st.Kind), st.Day, string(used), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("save rotation state: %w", err)
	}
	return nil
}

// DeleteBefore drops states whose day is earlier than day (YYYY-MM-DD).
func (s *RotationStore) DeleteBefore(day string) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM rotation_states WHERE day < ?`, day)
	if err != nil {
		return 0, fmt.Errorf("delete stale rotation states: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
