package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

// ErrStaleTask is returned when a status update finds the task no longer in
// the expected state.
var ErrStaleTask = errors.New("task status changed")

type TaskStore struct {
	db *sql.DB
}

func NewTaskStore(db *sql.DB) *TaskStore {
	return &TaskStore{db: db}
}

func scanTask(scanner interface{ Scan(...any) error }) (*model.Task, error) {
	var t model.Task
	var approvedAt, completedAt sql.NullTime

	err := scanner.Scan(
		&t.ID, &t.CompanyID, &t.Kind, &t.MemberID, &t.Assignee, &t.AssigneeEmail,
		&t.Place, &t.Status, &t.AssignedAt, &approvedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	if approvedAt.Valid {
		t.ApprovedAt = &approvedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

const taskCols = `id, company_id, kind, member_id, assignee, assignee_email, place, status, assigned_at, approved_at, completed_at`

const joinedTaskCols = `t.id, t.company_id, t.kind, t.member_id, t.assignee, t.assignee_email, t.place, t.status, t.assigned_at, t.approved_at, t.completed_at`

// dbTime normalizes timestamps so equal instants always compare equal in SQL.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func scanTasks(rows *sql.Rows) ([]model.Task, error) {
	var tasks []model.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// CreatePending inserts a round of pending tasks in one transaction. A task
// whose (member, assigned_at, kind) key already exists is skipped.
func (s *TaskStore) CreatePending(tasks []model.Task) ([]model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var ids []int64
	for _, t := range tasks {
		place := t.Place
		if place == "" {
			place = model.UnspecifiedPlace
		}
		result, err := tx.Exec(
			`INSERT INTO tasks (company_id, kind, member_id, assignee, assignee_email, place, status, assigned_at)
			 VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
			 ON CONFLICT(member_id, assigned_at, kind) DO NOTHING`,
			t.CompanyID, string(t.Kind), t.MemberID, t.Assignee, t.AssigneeEmail, place, dbTime(t.AssignedAt),
		)
		if err != nil {
			return nil, fmt.Errorf("insert task for member %d: %w", t.MemberID, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			continue
		}
		id, err := result.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tasks: %w", err)
	}

	created := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		t, err := s.GetByID(id)
		if err != nil {
			return nil, err
		}
		if t != nil {
			created = append(created, *t)
		}
	}
	return created, nil
}

func (s *TaskStore) GetByID(id int64) (*model.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// ListBoard returns the tasks a live board shows: pending and completed tasks
// assigned in [dayStart, dayEnd) plus approved tasks approved since
// approvedSince.
func (s *TaskStore) ListBoard(companyID int64, kind model.ChoreKind, dayStart, dayEnd, approvedSince time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+taskCols+` FROM tasks
		 WHERE company_id = ? AND kind = ? AND (
		   (status != 'approved' AND assigned_at >= ? AND assigned_at < ?)
		   OR (status = 'approved' AND approved_at >= ?)
		 )
		 ORDER BY assigned_at, id`,
		companyID, string(kind), dbTime(dayStart), dbTime(dayEnd), dbTime(approvedSince),
	)
	if err != nil {
		return nil, fmt.Errorf("list board tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListBusy returns the ids of members holding an approved task approved
// since the given instant.
func (s *TaskStore) ListBusy(companyID int64, kind model.ChoreKind, since time.Time) ([]int64, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT member_id FROM tasks
		 WHERE company_id = ? AND kind = ? AND status = 'approved' AND approved_at >= ?
		 ORDER BY member_id`,
		companyID, string(kind), dbTime(since),
	)
	if err != nil {
		return nil, fmt.Errorf("list busy members: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Approve moves a pending task to approved. The canonical row, the member's
// mirror row and the weekly log entry are written in one transaction, so a
// failure at any step leaves the task pending.
func (s *TaskStore) Approve(id int64, approvedAt time.Time, weekStart string) (*model.Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`UPDATE tasks SET status = 'approved', approved_at = ? WHERE id = ? AND status = 'pending'`,
		dbTime(approvedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark task approved: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, ErrStaleTask
	}

	t, err := scanTask(tx.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("reload task: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO member_tasks (task_id, member_id, company_id, kind, place, status, assigned_at)
		 VALUES (?, ?, ?, ?, ?, 'approved', ?)`,
		t.ID, t.MemberID, t.CompanyID, string(t.Kind), t.Place, dbTime(t.AssignedAt),
	); err != nil {
		return nil, fmt.Errorf("write member task: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO weekly_logs (company_id, week_start, kind, task_id, member_id, assignee, place, assigned_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.CompanyID, weekStart, string(t.Kind), t.ID, t.MemberID, t.Assignee, t.Place, dbTime(t.AssignedAt),
	); err != nil {
		return nil, fmt.Errorf("append weekly log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit approval: %w", err)
	}
	return t, nil
}

// Complete moves an approved task to completed and appends a history entry.
// The bool result reports whether a new history row was written; a repeated
// completion signal for the same assignment never adds a second one.
func (s *TaskStore) Complete(id int64, completedAt time.Time) (*model.Task, bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	completedAt = dbTime(completedAt)
	result, err := tx.Exec(
		`UPDATE tasks SET status = 'completed', completed_at = ? WHERE id = ? AND status = 'approved'`,
		completedAt, id,
	)
	if err != nil {
		return nil, false, fmt.Errorf("mark task completed: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return nil, false, ErrStaleTask
	}

	if _, err := tx.Exec(`UPDATE member_tasks SET status = 'completed' WHERE task_id = ?`, id); err != nil {
		return nil, false, fmt.Errorf("update member task: %w", err)
	}

	t, err := scanTask(tx.QueryRow(`SELECT `+taskCols+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, false, fmt.Errorf("reload task: %w", err)
	}

	result, err = tx.Exec(
		`INSERT INTO history (company_id, task_id, member_id, assignee, kind, place, assigned_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(member_id, assigned_at, kind) DO NOTHING`,
		t.CompanyID, t.ID, t.MemberID, t.Assignee, string(t.Kind), t.Place, dbTime(t.AssignedAt), completedAt,
	)
	if err != nil {
		return nil, false, fmt.Errorf("append history: %w", err)
	}
	added, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit completion: %w", err)
	}
	return t, added > 0, nil
}

// ListForMember returns the member's approved or completed tasks assigned in
// [from, to), read through the member mirror.
func (s *TaskStore) ListForMember(memberID int64, from, to time.Time) ([]model.Task, error) {
	rows, err := s.db.Query(
		`SELECT `+joinedTaskCols+` FROM member_tasks mt
		 JOIN tasks t ON t.id = mt.task_id
		 WHERE mt.member_id = ? AND mt.assigned_at >= ? AND mt.assigned_at < ?
		 ORDER BY mt.assigned_at, t.id`,
		memberID, dbTime(from), dbTime(to),
	)
	if err != nil {
		return nil, fmt.Errorf("list member tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}
