package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/dutyroster/internal/model"
)

type WeeklyLogStore struct {
	db *sql.DB
}

func NewWeeklyLogStore(db *sql.DB) *WeeklyLogStore {
	return &WeeklyLogStore{db: db}
}

const weeklyLogCols = `id, company_id, week_start, kind, task_id, member_id, assignee, place, assigned_at`

// ListWeek returns the approved assignments recorded for one ISO week.
func (s *WeeklyLogStore) ListWeek(companyID int64, weekStart string, kind model.ChoreKind) ([]model.WeeklyLogEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+weeklyLogCols+` FROM weekly_logs
		 WHERE company_id = ? AND week_start = ? AND kind = ?
		 ORDER BY assigned_at, id`,
		companyID, weekStart, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("list weekly log: %w", err)
	}
	defer rows.Close()

	var entries []model.WeeklyLogEntry
	for rows.Next() {
		var e model.WeeklyLogEntry
		if err := rows.Scan(
			&e.ID, &e.CompanyID, &e.WeekStart, &e.Kind, &e.TaskID,
			&e.MemberID, &e.Assignee, &e.Place, &e.AssignedAt,
		); err != nil {
			return nil, fmt.Errorf("scan weekly log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
