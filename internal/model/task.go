package model

import "time"

type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskApproved  TaskStatus = "approved"
	TaskCompleted TaskStatus = "completed"
)

// UnspecifiedPlace is stored when a round has fewer places than picks.
const UnspecifiedPlace = "-"

type Task struct {
	ID            int64      `json:"id"`
	CompanyID     int64      `json:"company_id"`
	Kind          ChoreKind  `json:"kind"`
	MemberID      int64      `json:"member_id"`
	Assignee      string     `json:"assignee"`
	AssigneeEmail string     `json:"assignee_email"`
	Place         string     `json:"place"`
	Status        TaskStatus `json:"status"`
	AssignedAt    time.Time  `json:"assigned_at"`
	ApprovedAt    *time.Time `json:"approved_at"`
	CompletedAt   *time.Time `json:"completed_at"`
}

// TaskKey identifies a task across duplicate deliveries of the same event.
type TaskKey struct {
	MemberID   int64
	AssignedAt int64
}

func (t Task) Key() TaskKey {
	return TaskKey{MemberID: t.MemberID, AssignedAt: t.AssignedAt.Unix()}
}

type HistoryEntry struct {
	ID          int64     `json:"id"`
	CompanyID   int64     `json:"company_id"`
	TaskID      *int64    `json:"task_id"`
	MemberID    int64     `json:"member_id"`
	Assignee    string    `json:"assignee"`
	Kind        ChoreKind `json:"kind"`
	Place       string    `json:"place"`
	AssignedAt  time.Time `json:"assigned_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// HistoryDay groups history entries completed on the same calendar day.
type HistoryDay struct {
	Date    string         `json:"date"`
	Entries []HistoryEntry `json:"entries"`
}

type WeeklyLogEntry struct {
	ID         int64     `json:"id"`
	CompanyID  int64     `json:"company_id"`
	WeekStart  string    `json:"week_start"`
	Kind       ChoreKind `json:"kind"`
	TaskID     int64     `json:"task_id"`
	MemberID   int64     `json:"member_id"`
	Assignee   string    `json:"assignee"`
	Place      string    `json:"place"`
	AssignedAt time.Time `json:"assigned_at"`
}

type RotationState struct {
	CompanyID     int64     `json:"company_id"`
	Kind          ChoreKind `json:"kind"`
	Day           string    `json:"day"`
	UsedMemberIDs []int64   `json:"used_member_ids"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type Archive struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	WeekStart string    `json:"week_start"`
	Kind      ChoreKind `json:"kind"`
	S3Key     string    `json:"s3_key"`
	Entries   int       `json:"entries"`
	CreatedAt time.Time `json:"created_at"`
}
