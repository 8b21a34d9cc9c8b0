package chore

import (
	"sort"
	"sync"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

// Board is the live view of one company's tasks of one kind. Updates may
// arrive more than once and out of order; a task never moves back to an
// earlier status except through an explicit rollback.
type Board struct {
	mu     sync.Mutex
	window time.Duration
	day    string
	tasks  map[model.TaskKey]model.Task
}

func NewBoard(window time.Duration) *Board {
	return &Board{
		window: window,
		tasks:  make(map[model.TaskKey]model.Task),
	}
}

// SetWindow changes how long approved tasks stay visible.
func (b *Board) SetWindow(window time.Duration) {
	b.mu.Lock()
	b.window = window
	b.mu.Unlock()
}

// Apply merges a task update and reports whether the board changed.
func (b *Board) Apply(t model.Task) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.apply(t)
}

func (b *Board) apply(t model.Task) bool {
	key := t.Key()
	cur, ok := b.tasks[key]
	if ok && statusRank(t.Status) < statusRank(cur.Status) {
		return false
	}
	changed := !ok || cur.Status != t.Status || cur.ID != t.ID
	b.tasks[key] = t
	return changed
}

// StartRound records a new assignment day and its pending tasks. Pending
// tasks from earlier rounds are dropped; approved and completed ones stay.
func (b *Board) StartRound(day string, tasks []model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.day = day
	for key, t := range b.tasks {
		if t.Status == model.TaskPending {
			delete(b.tasks, key)
		}
	}
	for _, t := range tasks {
		b.apply(t)
	}
}

// markApproved applies an approval before it is persisted and returns the
// entry it replaced so the caller can roll back.
func (b *Board) markApproved(t model.Task, at time.Time) model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	prev := t
	if cur, ok := b.tasks[t.Key()]; ok {
		prev = cur
	}
	next := t
	next.Status = model.TaskApproved
	next.ApprovedAt = &at
	b.tasks[t.Key()] = next
	return prev
}

// rollback restores an entry replaced by markApproved.
func (b *Board) rollback(prev model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cur, ok := b.tasks[prev.Key()]; ok && cur.Status == model.TaskCompleted {
		return
	}
	b.tasks[prev.Key()] = prev
}

func (b *Board) live(t model.Task, now time.Time) bool {
	return t.Status == model.TaskApproved && t.ApprovedAt != nil && now.Before(t.ApprovedAt.Add(b.window))
}

// Visible returns pending and completed tasks of the latest assignment day
// and approved tasks whose approval window has not passed, oldest first.
// Entries that can no longer become visible are pruned.
func (b *Board) Visible(now time.Time) []model.Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	day := b.day
	if day == "" {
		day = now.Format(time.DateOnly)
	}

	visible := []model.Task{}
	for key, t := range b.tasks {
		switch {
		case t.Status == model.TaskApproved:
			if !b.live(t, now) {
				delete(b.tasks, key)
				continue
			}
		case t.AssignedAt.In(now.Location()).Format(time.DateOnly) != day:
			delete(b.tasks, key)
			continue
		}
		visible = append(visible, t)
	}

	sort.Slice(visible, func(i, j int) bool {
		if !visible[i].AssignedAt.Equal(visible[j].AssignedAt) {
			return visible[i].AssignedAt.Before(visible[j].AssignedAt)
		}
		return visible[i].MemberID < visible[j].MemberID
	})
	return visible
}

// Busy returns the members holding a live approved task.
func (b *Board) Busy(now time.Time) map[int64]bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	busy := make(map[int64]bool)
	for _, t := range b.tasks {
		if b.live(t, now) {
			busy[t.MemberID] = true
		}
	}
	return busy
}
