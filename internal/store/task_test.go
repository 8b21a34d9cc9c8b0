package store

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

func seedMember(t *testing.T, db *sql.DB, name string) *model.Member {
	t.Helper()
	m, err := NewMemberStore(db).Create(1, name, name+"@example.com", "", "")
	if err != nil {
		t.Fatalf("create member %s: %v", name, err)
	}
	return m
}

func pendingTask(m *model.Member, kind model.ChoreKind, place string, at time.Time) model.Task {
	return model.Task{
		CompanyID:     m.CompanyID,
		Kind:          kind,
		MemberID:      m.ID,
		Assignee:      m.Name,
		AssigneeEmail: m.Email,
		Place:         place,
		AssignedAt:    at,
	}
}

var roundAt = time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)

func TestTaskCreatePending(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ali := seedMember(t, db, "ali")
	bora := seedMember(t, db, "bora")

	created, err := ts.CreatePending([]model.Task{
		pendingTask(ali, model.KindCleaning, "Kitchen", roundAt),
		pendingTask(bora, model.KindCleaning, "", roundAt),
	})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("len = %d, want 2", len(created))
	}
	if created[0].Status != model.TaskPending {
		t.Errorf("status = %q, want pending", created[0].Status)
	}
	if created[1].Place != "-" {
		t.Errorf("place = %q, want sentinel", created[1].Place)
	}
	if !created[0].AssignedAt.Equal(roundAt) {
		t.Errorf("assigned_at = %v, want %v", created[0].AssignedAt, roundAt)
	}
}

func TestTaskCreatePendingSkipsDuplicateKey(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ali := seedMember(t, db, "ali")

	ts.CreatePending([]model.Task{pendingTask(ali, model.KindCleaning, "Kitchen", roundAt)})

	// Same member and second; sub-second noise must not defeat the key.
	created, err := ts.CreatePending([]model.Task{
		pendingTask(ali, model.KindCleaning, "Lobby", roundAt.Add(300*time.Millisecond)),
	})
	if err != nil {
		t.Fatalf("create pending: %v", err)
	}
	if len(created) != 0 {
		t.Errorf("len = %d, want 0 for duplicate key", len(created))
	}

	// Another kind is a different key.
	created, _ = ts.CreatePending([]model.Task{pendingTask(ali, model.KindMeal, "Canteen", roundAt)})
	if len(created) != 1 {
		t.Errorf("len = %d, want 1 for another kind", len(created))
	}
}

func TestTaskApproveWritesMirrorAndWeeklyLog(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ali := seedMember(t, db, "ali")

	created, _ := ts.CreatePending([]model.Task{pendingTask(ali, model.KindCleaning, "Kitchen", roundAt)})
	approvedAt := roundAt.Add(time.Minute)

	task, err := ts.Approve(created[0].ID, approvedAt, "2026-03-02")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if task.Status != model.TaskApproved {
		t.Errorf("status = %q, want approved", task.Status)
	}
	if task.ApprovedAt == nil || !task.ApprovedAt.Equal(approvedAt) {
		t.Errorf("approved_at = %v, want %v", task.ApprovedAt, approvedAt)
	}

	mine, err := ts.ListForMember(ali.ID, roundAt.Add(-time.Hour), roundAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("list for member: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != task.ID {
		t.Errorf("member tasks = %+v, want the approved task", mine)
	}

	week, err := NewWeeklyLogStore(db).ListWeek(1, "2026-03-02", model.KindCleaning)
	if err != nil {
		t.Fatalf("list week: %v", err)
	}
	if len(week) != 1 || week[0].TaskID != task.ID || week[0].Place != "Kitchen" {
		t.Errorf("weekly log = %+v", week)
	}
}

func TestTaskApproveRequiresPending(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ali := seedMember(t, db, "ali")

	created, _ := ts.CreatePending([]model.Task{pendingTask(ali, model.KindCleaning, "Kitchen", roundAt)})
	ts.Approve(created[0].ID, roundAt, "2026-03-02")

	_, err := ts.Approve(created[0].ID, roundAt, "2026-03-02")
	if !errors.Is(err, ErrStaleTask) {
		t.Errorf("err = %v, want ErrStaleTask", err)
	}
}

func TestTaskApproveRollsBackOnMirrorFailure(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ali := seedMember(t, db, "ali")

	created, _ := ts.CreatePending([]model.Task{pendingTask(ali, model.KindCleaning, "Kitchen", roundAt)})
	id := created[0].ID

	// A stray mirror row makes the second approval step fail.
	if _, err := db.Exec(
		`INSERT INTO member_tasks (task_id, member_id, company_id, kind, place, assigned_at) VALUES (?, ?, 1, 'cleaning', 'x', ?)`,
		id, ali.ID, roundAt,
	); err != nil {
		t.Fatalf("seed conflicting mirror row: %v", err)
	}

	if _, err := ts.Approve(id, roundAt, "2026-03-02"); err == nil {
		t.Fatal("expected approval to fail")
	}

	task, _ := ts.GetByID(id)
	if task.Status != model.TaskPending {
		t.Errorf("status = %q, want pending after rollback", task.Status)
	}
	if task.ApprovedAt != nil {
		t.Errorf("approved_at = %v, want nil after rollback", task.ApprovedAt)
	}
	week, _ := NewWeeklyLogStore(db).ListWeek(1, "2026-03-02", model.KindCleaning)
	if len(week) != 0 {
		t.Errorf("weekly log has %d entries, want 0", len(week))
	}
}

func TestTaskCompleteAppendsHistoryOnce(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	hs := NewHistoryStore(db)
	ali := seedMember(t, db, "ali")

	created, _ := ts.CreatePending([]model.Task{pendingTask(ali, model.KindCleaning, "Kitchen", roundAt)})
	id := created[0].ID

	if _, _, err := ts.Complete(id, roundAt); !errors.Is(err, ErrStaleTask) {
		t.Errorf("complete pending: err = %v, want ErrStaleTask", err)
	}

	ts.Approve(id, roundAt.Add(time.Minute), "2026-03-02")

	task, added, err := ts.Complete(id, roundAt.Add(time.Hour))
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !added {
		t.Error("expected a history entry to be added")
	}
	if task.Status != model.TaskCompleted || task.CompletedAt == nil {
		t.Errorf("task = %+v, want completed", task)
	}

	if _, _, err := ts.Complete(id, roundAt.Add(2*time.Hour)); !errors.Is(err, ErrStaleTask) {
		t.Errorf("second complete: err = %v, want ErrStaleTask", err)
	}

	entries, err := hs.List(1, roundAt.Add(-24*time.Hour), 50)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("history len = %d, want 1", len(entries))
	}
	if entries[0].Assignee != "ali" || entries[0].Kind != model.KindCleaning {
		t.Errorf("entry = %+v", entries[0])
	}

	var mirrorStatus string
	db.QueryRow(`SELECT status FROM member_tasks WHERE task_id = ?`, id).Scan(&mirrorStatus)
	if mirrorStatus != "completed" {
		t.Errorf("mirror status = %q, want completed", mirrorStatus)
	}
}

func TestTaskHistoryKeyIgnoresDuplicateSignal(t *testing.T) {
	db := setupTestDB(t)
	ali := seedMember(t, db, "ali")

	insert := func() int64 {
		result, err := db.Exec(
			`INSERT INTO history (company_id, member_id, assignee, kind, assigned_at, completed_at)
			 VALUES (1, ?, 'ali', 'cleaning', ?, ?) ON CONFLICT(member_id, assigned_at, kind) DO NOTHING`,
			ali.ID, dbTime(roundAt), dbTime(roundAt),
		)
		if err != nil {
			t.Fatalf("insert history: %v", err)
		}
		n, _ := result.RowsAffected()
		return n
	}

	if n := insert(); n != 1 {
		t.Errorf("first insert affected %d rows, want 1", n)
	}
	if n := insert(); n != 0 {
		t.Errorf("duplicate insert affected %d rows, want 0", n)
	}
}

func TestTaskListBoardAndBusy(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTaskStore(db)
	ali := seedMember(t, db, "ali")
	bora := seedMember(t, db, "bora")
	cem := seedMember(t, db, "cem")

	yesterday := roundAt.Add(-24 * time.Hour)
	old, _ := ts.CreatePending([]model.Task{pendingTask(cem, model.KindCleaning, "Lobby", yesterday)})
	today, _ := ts.CreatePending([]model.Task{
		pendingTask(ali, model.KindCleaning, "Kitchen", roundAt),
		pendingTask(bora, model.KindCleaning, "Lobby", roundAt),
	})
	ts.Approve(today[1].ID, roundAt.Add(time.Minute), "2026-03-02")

	dayStart := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	board, err := ts.ListBoard(1, model.KindCleaning, dayStart, dayStart.Add(24*time.Hour), roundAt)
	if err != nil {
		t.Fatalf("list board: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("board len = %d, want 2", len(board))
	}
	for _, task := range board {
		if task.ID == old[0].ID {
			t.Error("board includes yesterday's pending task")
		}
	}

	busy, err := ts.ListBusy(1, model.KindCleaning, roundAt)
	if err != nil {
		t.Fatalf("list busy: %v", err)
	}
	if len(busy) != 1 || busy[0] != bora.ID {
		t.Errorf("busy = %v, want [%d]", busy, bora.ID)
	}

	// After the window the approval no longer counts.
	busy, _ = ts.ListBusy(1, model.KindCleaning, roundAt.Add(10*time.Minute))
	if len(busy) != 0 {
		t.Errorf("busy = %v, want none", busy)
	}
}
