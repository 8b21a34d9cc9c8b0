package chore

import (
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dukerupert/dutyroster/internal/database"
	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/rotation"
	"github.com/dukerupert/dutyroster/internal/store"
)

type testEnv struct {
	db      *sql.DB
	members *store.MemberStore
	tasks   *store.TaskStore
	events  []Event
	now     time.Time
	svc     *Service
}

// failingTasks fails every approval after the canonical row is written.
type failingTasks struct {
	*store.TaskStore
}

func (f failingTasks) Approve(int64, time.Time, string) (*model.Task, error) {
	return nil, errors.New("write member task: disk full")
}

func newTestEnv(t *testing.T, wrap func(*store.TaskStore) TaskRepository) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:      db,
		members: store.NewMemberStore(db),
		tasks:   store.NewTaskStore(db),
		now:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	var tasks TaskRepository = env.tasks
	if wrap != nil {
		tasks = wrap(env.tasks)
	}
	env.svc = NewService(Deps{
		Members:   env.members,
		Places:    store.NewPlaceStore(db),
		Tasks:     tasks,
		Rotations: store.NewRotationStore(db),
		WeeklyLog: store.NewWeeklyLogStore(db),
	}, Config{
		Location:  time.UTC,
		Scheduler: rotation.NewScheduler(rand.NewPCG(1, 2)),
		Now:       func() time.Time { return env.now },
	}, func(ev Event) {
		env.events = append(env.events, ev)
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return env
}

func (e *testEnv) seed(t *testing.T, names ...string) []*model.Member {
	t.Helper()
	out := make([]*model.Member, len(names))
	for i, n := range names {
		m, err := e.members.Create(1, n, n+"@example.com", model.RoleMember, "")
		require.NoError(t, err)
		out[i] = m
	}
	return out
}

func (e *testEnv) assign(t *testing.T, count int) AssignResult {
	t.Helper()
	res, err := e.svc.Assign(AssignRequest{CompanyID: 1, Kind: model.KindCleaning, Count: count})
	require.NoError(t, err)
	return res
}

func TestServiceAssignPersistsPendingTasks(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "ali", "bea", "cem")

	res := env.assign(t, 2)
	require.Len(t, res.Tasks, 2)
	require.False(t, res.Insufficient)
	require.NotEqual(t, res.Tasks[0].MemberID, res.Tasks[1].MemberID)
	for _, task := range res.Tasks {
		require.NotZero(t, task.ID)
		require.Equal(t, model.TaskPending, task.Status)
		require.Equal(t, model.UnspecifiedPlace, task.Place)
	}

	board, err := env.svc.Board(1, model.KindCleaning, 0)
	require.NoError(t, err)
	require.Len(t, board, 2)

	require.Len(t, env.events, 1)
	require.Equal(t, ActionAssigned, env.events[0].Action)
}

func TestServiceAssignSecondRoundSkipsUsedMembers(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "ali", "bea", "cem", "deniz")

	first := env.assign(t, 2)
	env.now = env.now.Add(time.Minute)
	second := env.assign(t, 2)

	seen := map[int64]bool{}
	for _, task := range append(first.Tasks, second.Tasks...) {
		require.False(t, seen[task.MemberID], "member %d picked twice", task.MemberID)
		seen[task.MemberID] = true
	}
}

func TestServiceAssignNoEligibleMembers(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.svc.Assign(AssignRequest{CompanyID: 1, Kind: model.KindCleaning, Count: 2})
	require.ErrorIs(t, err, rotation.ErrNoEligibleMembers)
	require.Empty(t, env.events)
}

func TestServiceApproveAndComplete(t *testing.T) {
	env := newTestEnv(t, nil)
	ms := env.seed(t, "ali")
	task := env.assign(t, 1).Tasks[0]

	approved, err := env.svc.Approve(1, task.ID, 0)
	require.NoError(t, err)
	require.Equal(t, model.TaskApproved, approved.Status)
	require.NotNil(t, approved.ApprovedAt)

	mine, err := env.svc.MyTasks(ms[0].ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	_, err = env.svc.Complete(1, ms[0].ID+100, false, task.ID)
	require.ErrorIs(t, err, ErrForbidden)

	completed, err := env.svc.Complete(1, ms[0].ID, false, task.ID)
	require.NoError(t, err)
	require.Equal(t, model.TaskCompleted, completed.Status)

	last := env.events[len(env.events)-1]
	require.Equal(t, ActionCompleted, last.Action)
	require.True(t, last.HistoryAdded)

	again, err := env.svc.Complete(1, ms[0].ID, false, task.ID)
	require.NoError(t, err)
	require.Equal(t, model.TaskCompleted, again.Status)
	require.Len(t, env.events, 3)

	history, err := store.NewHistoryStore(env.db).ListByMember(ms[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestServiceApproveTwiceIsInvalid(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "ali")
	task := env.assign(t, 1).Tasks[0]

	_, err := env.svc.Approve(1, task.ID, 0)
	require.NoError(t, err)
	_, err = env.svc.Approve(1, task.ID, 0)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestServiceCompletePendingIsInvalid(t *testing.T) {
	env := newTestEnv(t, nil)
	ms := env.seed(t, "ali")
	task := env.assign(t, 1).Tasks[0]

	_, err := env.svc.Complete(1, ms[0].ID, false, task.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestServiceApproveOtherCompanyNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "ali")
	task := env.assign(t, 1).Tasks[0]

	_, err := env.svc.Approve(2, task.ID, 0)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = env.svc.Approve(1, task.ID+100, 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestServiceApproveFailureRollsBackBoard(t *testing.T) {
	env := newTestEnv(t, func(ts *store.TaskStore) TaskRepository { return failingTasks{ts} })
	env.seed(t, "ali")
	task := env.assign(t, 1).Tasks[0]

	_, err := env.svc.Approve(1, task.ID, 0)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidTransition)

	board, err := env.svc.Board(1, model.KindCleaning, 0)
	require.NoError(t, err)
	require.Len(t, board, 1)
	require.Equal(t, model.TaskPending, board[0].Status)

	stored, err := env.tasks.GetByID(task.ID)
	require.NoError(t, err)
	require.Equal(t, model.TaskPending, stored.Status)
	require.Len(t, env.events, 1)
}

func TestServiceApprovedMemberIsBusy(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "ali", "bea")

	first := env.assign(t, 1).Tasks[0]
	_, err := env.svc.Approve(1, first.ID, 0)
	require.NoError(t, err)

	env.now = env.now.Add(time.Minute)
	res := env.assign(t, 2)
	require.True(t, res.Insufficient)
	require.Len(t, res.Tasks, 1)
	require.NotEqual(t, first.MemberID, res.Tasks[0].MemberID)

	// Once the window passes the approved member is eligible again.
	env.now = env.now.Add(10 * time.Minute)
	res = env.assign(t, 2)
	require.Len(t, res.Tasks, 2)
	require.True(t, res.Reset)
}
