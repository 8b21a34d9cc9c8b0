package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/dutyroster/internal/model"
)

type LoginLogStore struct {
	db *sql.DB
}

func NewLoginLogStore(db *sql.DB) *LoginLogStore {
	return &LoginLogStore{db: db}
}

func (s *LoginLogStore) Record(m *model.Member, method, remote string) error {
	_, err := s.db.Exec(
		`INSERT INTO login_logs (member_id, email, role, method, remote) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.Email, m.Role, method, remote,
	)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return nil
}

func (s *LoginLogStore) ListByMember(memberID int64, limit int) ([]model.LoginLog, error) {
	rows, err := s.db.Query(
		`SELECT id, member_id, email, role, method, remote, created_at FROM login_logs
		 WHERE member_id = ? ORDER BY id DESC LIMIT ?`,
		memberID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list login logs: %w", err)
	}
	defer rows.Close()

	var logs []model.LoginLog
	for rows.Next() {
		var l model.LoginLog
		if err := rows.Scan(&l.ID, &l.MemberID, &l.Email, &l.Role, &l.Method, &l.Remote, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan login log: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
