package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

type HistoryStore struct {
	db *sql.DB
}

func NewHistoryStore(db *sql.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

func scanHistoryEntry(scanner interface{ Scan(...any) error }) (*model.HistoryEntry, error) {
	var e model.HistoryEntry
	var taskID sql.NullInt64
	err := scanner.Scan(
		&e.ID, &e.CompanyID, &taskID, &e.MemberID, &e.Assignee,
		&e.Kind, &e.Place, &e.AssignedAt, &e.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	if taskID.Valid {
		e.TaskID = &taskID.Int64
	}
	return &e, nil
}

const historyCols = `id, company_id, task_id, member_id, assignee, kind, place, assigned_at, completed_at`

func (s *HistoryStore) query(q string, args ...any) ([]model.HistoryEntry, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		e, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// List returns a company's completions since the given instant, newest first.
func (s *HistoryStore) List(companyID int64, since time.Time, limit int) ([]model.HistoryEntry, error) {
	entries, err := s.query(
		`SELECT `+historyCols+` FROM history
		 WHERE company_id = ? AND completed_at >= ?
		 ORDER BY completed_at DESC, id DESC LIMIT ?`,
		companyID, dbTime(since), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return entries, nil
}

func (s *HistoryStore) ListByMember(memberID int64, limit int) ([]model.HistoryEntry, error) {
	entries, err := s.query(
		`SELECT `+historyCols+` FROM history
		 WHERE member_id = ?
		 ORDER BY completed_at DESC, id DESC LIMIT ?`,
		memberID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list member history: %w", err)
	}
	return entries, nil
}

// GroupByDay buckets entries by the calendar day of their completion in loc,
// keeping the input order inside each day.
func GroupByDay(entries []model.HistoryEntry, loc *time.Location) []model.HistoryDay {
	days := []model.HistoryDay{}
	index := make(map[string]int)
	for _, e := range entries {
		date := e.CompletedAt.In(loc).Format(time.DateOnly)
		i, ok := index[date]
		if !ok {
			i = len(days)
			index[date] = i
			days = append(days, model.HistoryDay{Date: date})
		}
		days[i].Entries = append(days[i].Entries, e)
	}
	return days
}
