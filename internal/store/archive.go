package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/dutyroster/internal/model"
)

// ArchiveStore records which weekly logs have been exported.
type ArchiveStore struct {
	db *sql.DB
}

func NewArchiveStore(db *sql.DB) *ArchiveStore {
	return &ArchiveStore{db: db}
}

func (s *ArchiveStore) Exists(companyID int64, weekStart string, kind model.ChoreKind) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM archives WHERE company_id = ? AND week_start = ? AND kind = ?`,
		companyID, weekStart, string(kind),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check archive: %w", err)
	}
	return n > 0, nil
}

func (s *ArchiveStore) Create(companyID int64, weekStart string, kind model.ChoreKind, key string, entries int) (*model.Archive, error) {
	result, err := s.db.Exec(
		`INSERT INTO archives (company_id, week_start, kind, s3_key, entries) VALUES (?, ?, ?, ?, ?)`,
		companyID, weekStart, string(kind), key, entries,
	)
	if err != nil {
		return nil, fmt.Errorf("insert archive: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	var a model.Archive
	err = s.db.QueryRow(
		`SELECT id, company_id, week_start, kind, s3_key, entries, created_at FROM archives WHERE id = ?`, id,
	).Scan(&a.ID, &a.CompanyID, &a.WeekStart, &a.Kind, &a.S3Key, &a.Entries, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get archive: %w", err)
	}
	return &a, nil
}
