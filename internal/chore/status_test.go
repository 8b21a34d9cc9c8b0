package chore

import (
	"testing"

	"github.com/dukerupert/dutyroster/internal/model"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to model.TaskStatus
		want     bool
	}{
		{model.TaskPending, model.TaskApproved, true},
		{model.TaskApproved, model.TaskCompleted, true},
		{model.TaskPending, model.TaskCompleted, false},
		{model.TaskApproved, model.TaskPending, false},
		{model.TaskCompleted, model.TaskApproved, false},
		{model.TaskCompleted, model.TaskCompleted, false},
		{model.TaskPending, model.TaskPending, false},
		{"", model.TaskApproved, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}
