package chore

import (
	"errors"

	"github.com/dukerupert/dutyroster/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid task status transition")
	ErrNotFound          = errors.New("task not found")
	ErrForbidden         = errors.New("task belongs to another member")
)

// CanTransition reports whether a task may move from one status to another.
// Tasks only move forward one step: pending, approved, completed.
func CanTransition(from, to model.TaskStatus) bool {
	switch from {
	case model.TaskPending:
		return to == model.TaskApproved
	case model.TaskApproved:
		return to == model.TaskCompleted
	}
	return false
}

func statusRank(s model.TaskStatus) int {
	switch s {
	case model.TaskPending:
		return 1
	case model.TaskApproved:
		return 2
	case model.TaskCompleted:
		return 3
	}
	return 0
}
