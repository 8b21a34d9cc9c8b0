package chore

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/rotation"
	"github.com/dukerupert/dutyroster/internal/store"
)

// DefaultApprovalWindow is how long an approved task keeps its member out of
// new rounds and stays on the board.
const DefaultApprovalWindow = 5 * time.Minute

type MemberSource interface {
	ListPresent(companyID int64) ([]model.Member, error)
}

type PlaceSource interface {
	Names(companyID int64, kind model.ChoreKind) ([]string, error)
}

type TaskRepository interface {
	CreatePending(tasks []model.Task) ([]model.Task, error)
	GetByID(id int64) (*model.Task, error)
	ListBoard(companyID int64, kind model.ChoreKind, dayStart, dayEnd, approvedSince time.Time) ([]model.Task, error)
	ListBusy(companyID int64, kind model.ChoreKind, since time.Time) ([]int64, error)
	Approve(id int64, approvedAt time.Time, weekStart string) (*model.Task, error)
	Complete(id int64, completedAt time.Time) (*model.Task, bool, error)
	ListForMember(memberID int64, from, to time.Time) ([]model.Task, error)
}

type RotationRepository interface {
	Get(companyID int64, kind model.ChoreKind) (*model.RotationState, error)
	Save(st model.RotationState) error
}

type WeeklyLog interface {
	ListWeek(companyID int64, weekStart string, kind model.ChoreKind) ([]model.WeeklyLogEntry, error)
}

// Recorder receives workflow outcomes, typically for metrics.
type Recorder interface {
	RoundAssigned(kind model.ChoreKind, picks int, insufficient, reset bool)
	RoundEmpty(kind model.ChoreKind)
	TaskApproved(kind model.ChoreKind)
	ApprovalFailed(kind model.ChoreKind)
	TaskCompleted(kind model.ChoreKind, duplicate bool)
}

type nopRecorder struct{}

func (nopRecorder) RoundAssigned(model.ChoreKind, int, bool, bool) {}
func (nopRecorder) RoundEmpty(model.ChoreKind)                     {}
func (nopRecorder) TaskApproved(model.ChoreKind)                   {}
func (nopRecorder) ApprovalFailed(model.ChoreKind)                 {}
func (nopRecorder) TaskCompleted(model.ChoreKind, bool)            {}

type Deps struct {
	Members   MemberSource
	Places    PlaceSource
	Tasks     TaskRepository
	Rotations RotationRepository
	WeeklyLog WeeklyLog
	Recorder  Recorder
}

type Config struct {
	// Location decides calendar days and ISO weeks.
	Location *time.Location
	// RankedKinds use weekly fairness ranking; other kinds are shuffled.
	RankedKinds []model.ChoreKind
	Scheduler   *rotation.Scheduler
	Now         func() time.Time
}

// Event actions.
const (
	ActionAssigned  = "assigned"
	ActionApproved  = "approved"
	ActionCompleted = "completed"
)

// Event describes a persisted change, delivered after the change commits.
type Event struct {
	CompanyID    int64
	Kind         model.ChoreKind
	Action       string
	Tasks        []model.Task
	HistoryAdded bool
}

type boardKey struct {
	companyID int64
	kind      model.ChoreKind
}

// Service runs assignment rounds and the approve/complete workflow.
type Service struct {
	deps      Deps
	loc       *time.Location
	ranked    map[model.ChoreKind]bool
	scheduler *rotation.Scheduler
	now       func() time.Time
	boards    *xsync.Map[boardKey, *Board]
	onChange  func(Event)
	logger    *slog.Logger
}

func NewService(deps Deps, cfg Config, onChange func(Event), logger *slog.Logger) *Service {
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = rotation.NewScheduler(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RankedKinds == nil {
		cfg.RankedKinds = []model.ChoreKind{model.KindCleaning}
	}
	ranked := make(map[model.ChoreKind]bool, len(cfg.RankedKinds))
	for _, k := range cfg.RankedKinds {
		ranked[k] = true
	}
	return &Service{
		deps:      deps,
		loc:       cfg.Location,
		ranked:    ranked,
		scheduler: cfg.Scheduler,
		now:       cfg.Now,
		boards:    xsync.NewMap[boardKey, *Board](),
		onChange:  onChange,
		logger:    logger,
	}
}

func (s *Service) emit(ev Event) {
	if s.onChange != nil {
		s.onChange(ev)
	}
}

// board returns the board of a company and kind. A positive window replaces
// the board's approval window.
func (s *Service) board(companyID int64, kind model.ChoreKind, window time.Duration) *Board {
	b, loaded := s.boards.LoadOrStore(boardKey{companyID, kind}, NewBoard(windowOrDefault(window)))
	if loaded && window > 0 {
		b.SetWindow(window)
	}
	return b
}

func (s *Service) clock() time.Time {
	return s.now().In(s.loc).Truncate(time.Second)
}

func dayBounds(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

type AssignRequest struct {
	CompanyID   int64
	Kind        model.ChoreKind
	Count       int
	AllowRepeat bool
	Window      time.Duration
}

type AssignResult struct {
	Tasks        []model.Task
	Insufficient bool
	Reset        bool
}

// Assign runs one round for a company and persists the picks as pending
// tasks. It returns rotation.ErrNoEligibleMembers when nobody can be picked;
// nothing is written in that case.
func (s *Service) Assign(req AssignRequest) (AssignResult, error) {
	now := s.clock()
	window := windowOrDefault(req.Window)

	present, err := s.deps.Members.ListPresent(req.CompanyID)
	if err != nil {
		return AssignResult{}, fmt.Errorf("load members: %w", err)
	}
	candidates := make([]rotation.Candidate, len(present))
	byID := make(map[int64]model.Member, len(present))
	for i, m := range present {
		candidates[i] = rotation.Candidate{ID: m.ID, Name: m.Name, Email: m.Email, IsPresent: m.IsPresent}
		byID[m.ID] = m
	}

	places, err := s.deps.Places.Names(req.CompanyID, req.Kind)
	if err != nil {
		return AssignResult{}, fmt.Errorf("load places: %w", err)
	}

	board := s.board(req.CompanyID, req.Kind, window)
	busy := board.Busy(now)
	busyIDs, err := s.deps.Tasks.ListBusy(req.CompanyID, req.Kind, now.Add(-window))
	if err != nil {
		return AssignResult{}, fmt.Errorf("load busy members: %w", err)
	}
	for _, id := range busyIDs {
		busy[id] = true
	}

	var state rotation.State
	stored, err := s.deps.Rotations.Get(req.CompanyID, req.Kind)
	if err != nil {
		return AssignResult{}, fmt.Errorf("load rotation state: %w", err)
	}
	if stored != nil {
		state = rotation.State{Day: stored.Day, Used: stored.UsedMemberIDs}
	}

	round, err := s.scheduler.Assign(state, rotation.Request{
		Candidates:  candidates,
		Count:       req.Count,
		Places:      places,
		Busy:        busy,
		Stats:       s.weekStats(req.CompanyID, req.Kind, now),
		AllowRepeat: req.AllowRepeat,
		Now:         now,
	})
	if errors.Is(err, rotation.ErrNoEligibleMembers) {
		s.deps.Recorder.RoundEmpty(req.Kind)
		return AssignResult{}, err
	}
	if err != nil {
		return AssignResult{}, err
	}
	if len(round.Picks) == 0 {
		return AssignResult{Tasks: []model.Task{}}, nil
	}

	pending := make([]model.Task, len(round.Picks))
	for i, p := range round.Picks {
		pending[i] = model.Task{
			CompanyID:     req.CompanyID,
			Kind:          req.Kind,
			MemberID:      p.ID,
			Assignee:      byID[p.ID].Name,
			AssigneeEmail: byID[p.ID].Email,
			Place:         p.Place,
			Status:        model.TaskPending,
			AssignedAt:    now,
		}
	}
	created, err := s.deps.Tasks.CreatePending(pending)
	if err != nil {
		return AssignResult{}, fmt.Errorf("persist round: %w", err)
	}

	if err := s.deps.Rotations.Save(model.RotationState{
		CompanyID:     req.CompanyID,
		Kind:          req.Kind,
		Day:           round.State.Day,
		UsedMemberIDs: round.State.Used,
	}); err != nil {
		return AssignResult{}, fmt.Errorf("save rotation state: %w", err)
	}

	board.StartRound(now.Format(time.DateOnly), created)
	s.deps.Recorder.RoundAssigned(req.Kind, len(created), round.Insufficient, round.Reset)
	s.logger.Info("round assigned",
		"company_id", req.CompanyID,
		"kind", req.Kind,
		"picks", len(created),
		"insufficient", round.Insufficient,
		"reset", round.Reset,
	)
	s.emit(Event{CompanyID: req.CompanyID, Kind: req.Kind, Action: ActionAssigned, Tasks: created})

	return AssignResult{Tasks: created, Insufficient: round.Insufficient, Reset: round.Reset}, nil
}

// weekStats returns fairness stats for ranked kinds. A failed read falls
// back to a shuffled round.
func (s *Service) weekStats(companyID int64, kind model.ChoreKind, now time.Time) *rotation.Stats {
	if !s.ranked[kind] || s.deps.WeeklyLog == nil {
		return nil
	}
	entries, err := s.deps.WeeklyLog.ListWeek(companyID, rotation.WeekStart(now), kind)
	if err != nil {
		s.logger.Warn("weekly stats unavailable, shuffling", "company_id", companyID, "kind", kind, "error", err)
		return nil
	}
	assignments := make([]rotation.Assignment, len(entries))
	for i, e := range entries {
		assignments[i] = rotation.Assignment{MemberID: e.MemberID, AssignedAt: e.AssignedAt}
	}
	return rotation.BuildStats(assignments, now)
}

// Board returns the visible tasks of one company and kind, refreshed from
// the task store.
func (s *Service) Board(companyID int64, kind model.ChoreKind, window time.Duration) ([]model.Task, error) {
	now := s.clock()
	window = windowOrDefault(window)
	dayStart, dayEnd := dayBounds(now)

	tasks, err := s.deps.Tasks.ListBoard(companyID, kind, dayStart, dayEnd, now.Add(-window))
	if err != nil {
		return nil, fmt.Errorf("load board: %w", err)
	}
	b := s.board(companyID, kind, window)
	for _, t := range tasks {
		b.Apply(t)
	}
	return b.Visible(now), nil
}

// Approve moves a pending task to approved. The board shows the approval at
// once and reverts it if persisting fails.
func (s *Service) Approve(companyID, taskID int64, window time.Duration) (*model.Task, error) {
	task, err := s.deps.Tasks.GetByID(taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil || task.CompanyID != companyID {
		return nil, ErrNotFound
	}
	if !CanTransition(task.Status, model.TaskApproved) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, task.Status, model.TaskApproved)
	}

	now := s.clock()
	board := s.board(companyID, task.Kind, windowOrDefault(window))
	prev := board.markApproved(*task, now)

	approved, err := s.deps.Tasks.Approve(task.ID, now, rotation.WeekStart(now))
	if err != nil {
		board.rollback(prev)
		s.deps.Recorder.ApprovalFailed(task.Kind)
		if errors.Is(err, store.ErrStaleTask) {
			return nil, fmt.Errorf("%w: task changed before approval", ErrInvalidTransition)
		}
		s.logger.Error("approval rolled back", "task_id", task.ID, "error", err)
		return nil, fmt.Errorf("approve task: %w", err)
	}

	board.Apply(*approved)
	s.deps.Recorder.TaskApproved(approved.Kind)
	s.emit(Event{CompanyID: companyID, Kind: approved.Kind, Action: ActionApproved, Tasks: []model.Task{*approved}})
	return approved, nil
}

// Complete marks an approved task done and records it in the history. Only
// the assignee or an admin may complete a task. Completing an already
// completed task returns it unchanged.
func (s *Service) Complete(companyID, memberID int64, isAdmin bool, taskID int64) (*model.Task, error) {
	task, err := s.deps.Tasks.GetByID(taskID)
	if err != nil {
		return nil, fmt.Errorf("load task: %w", err)
	}
	if task == nil || task.CompanyID != companyID {
		return nil, ErrNotFound
	}
	if !isAdmin && task.MemberID != memberID {
		return nil, ErrForbidden
	}
	if task.Status == model.TaskCompleted {
		s.deps.Recorder.TaskCompleted(task.Kind, true)
		return task, nil
	}
	if !CanTransition(task.Status, model.TaskCompleted) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, task.Status, model.TaskCompleted)
	}

	completed, added, err := s.deps.Tasks.Complete(task.ID, s.clock())
	if errors.Is(err, store.ErrStaleTask) {
		// A concurrent completion won the race.
		current, getErr := s.deps.Tasks.GetByID(task.ID)
		if getErr == nil && current != nil && current.Status == model.TaskCompleted {
			s.deps.Recorder.TaskCompleted(task.Kind, true)
			return current, nil
		}
		return nil, fmt.Errorf("%w: task changed before completion", ErrInvalidTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("complete task: %w", err)
	}

	s.board(companyID, completed.Kind, 0).Apply(*completed)
	s.deps.Recorder.TaskCompleted(completed.Kind, !added)
	s.emit(Event{
		CompanyID:    companyID,
		Kind:         completed.Kind,
		Action:       ActionCompleted,
		Tasks:        []model.Task{*completed},
		HistoryAdded: added,
	})
	return completed, nil
}

// MyTasks returns the member's approved and completed tasks assigned today.
func (s *Service) MyTasks(memberID int64) ([]model.Task, error) {
	start, end := dayBounds(s.clock())
	list, err := s.deps.Tasks.ListForMember(memberID, start, end)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []model.Task{}
	}
	return list, nil
}

func windowOrDefault(w time.Duration) time.Duration {
	if w <= 0 {
		return DefaultApprovalWindow
	}
	return w
}
