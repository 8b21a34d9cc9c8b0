package model

import "time"

// Auth code purposes.
const (
	CodePurposeVerify = "verify"
	CodePurposeReset  = "reset"
)

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	MemberID  int64     `json:"member_id"`
	CompanyID int64     `json:"company_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

type AuthCode struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Email     string     `json:"email"`
	Purpose   string     `json:"purpose"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at"`
	Attempts  int        `json:"attempts"`
	CreatedAt time.Time  `json:"created_at"`
}

type LoginLog struct {
	ID        int64     `json:"id"`
	MemberID  int64     `json:"member_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Method    string    `json:"method"`
	Remote    string    `json:"remote"`
	CreatedAt time.Time `json:"created_at"`
}
