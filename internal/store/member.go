package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/dutyroster/internal/model"
)

type MemberStore struct {
	db *sql.DB
}

func NewMemberStore(db *sql.DB) *MemberStore {
	return &MemberStore{db: db}
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(
		&m.ID, &m.CompanyID, &m.Name, &m.Email, &m.Role, &m.IsPresent,
		&m.Gender, &m.EmailVerified, &m.HasPassword, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const memberCols = `id, company_id, name, email, role, is_present, gender, email_verified, password_hash IS NOT NULL, created_at, updated_at`

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *MemberStore) Create(companyID int64, name, email, role, gender string) (*model.Member, error) {
	if role == "" {
		role = model.RoleMember
	}
	result, err := s.db.Exec(
		`INSERT INTO members (company_id, name, email, role, gender) VALUES (?, ?, ?, ?, ?)`,
		companyID, name, normalizeEmail(email), role, gender,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemberStore) GetByID(id int64) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) GetByEmail(email string) (*model.Member, error) {
	row := s.db.QueryRow(`SELECT `+memberCols+` FROM members WHERE email = ?`, normalizeEmail(email))
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	return m, nil
}

func (s *MemberStore) listWhere(where string, args ...any) ([]model.Member, error) {
	rows, err := s.db.Query(`SELECT `+memberCols+` FROM members WHERE `+where+` ORDER BY name, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// ListByCompany returns every member of a company.
func (s *MemberStore) ListByCompany(companyID int64) ([]model.Member, error) {
	members, err := s.listWhere(`company_id = ?`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// ListPresent returns a fresh snapshot of members marked present.
func (s *MemberStore) ListPresent(companyID int64) ([]model.Member, error) {
	members, err := s.listWhere(`company_id = ? AND is_present = 1`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list present members: %w", err)
	}
	return members, nil
}

func (s *MemberStore) SetPresence(companyID, id int64, present bool) (*model.Member, error) {
	_, err := s.db.Exec(
		`UPDATE members SET is_present = ? WHERE id = ? AND company_id = ?`,
		present, id, companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("set presence: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemberStore) SetRole(companyID, id int64, role string) (*model.Member, error) {
	_, err := s.db.Exec(
		`UPDATE members SET role = ? WHERE id = ? AND company_id = ?`,
		role, id, companyID,
	)
	if err != nil {
		return nil, fmt.Errorf("set role: %w", err)
	}
	return s.GetByID(id)
}

func (s *MemberStore) SetPasswordHash(id int64, hash string) error {
	_, err := s.db.Exec(`UPDATE members SET password_hash = ? WHERE id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("set password hash: %w", err)
	}
	return nil
}

// PasswordHash returns the stored hash, or "" when the member has none.
func (s *MemberStore) PasswordHash(id int64) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRow(`SELECT password_hash FROM members WHERE id = ?`, id).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get password hash: %w", err)
	}
	return hash.String, nil
}

func (s *MemberStore) MarkEmailVerified(id int64) error {
	_, err := s.db.Exec(`UPDATE members SET email_verified = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}
