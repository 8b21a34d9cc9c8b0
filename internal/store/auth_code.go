package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/dukerupert/dutyroster/internal/model"
)

// CodeTTL is how long an emailed verification or reset code stays valid.
const CodeTTL = 15 * time.Minute

type AuthCodeStore struct {
	db *sql.DB
}

func NewAuthCodeStore(db *sql.DB) *AuthCodeStore {
	return &AuthCodeStore{db: db}
}

func scanAuthCode(scanner interface{ Scan(...any) error }) (*model.AuthCode, error) {
	var c model.AuthCode
	var usedAt sql.NullTime

	err := scanner.Scan(
		&c.ID, &c.Code, &c.Email, &c.Purpose,
		&c.ExpiresAt, &usedAt, &c.Attempts, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		c.UsedAt = &usedAt.Time
	}
	return &c, nil
}

const authCodeCols = `id, code, email, purpose, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a new code for email and purpose. Earlier pending codes for
// the same email and purpose are invalidated first.
func (s *AuthCodeStore) Create(email, purpose string) (*model.AuthCode, error) {
	email = normalizeEmail(email)
	now := time.Now().UTC()

	_, err := s.db.Exec(
		`UPDATE auth_codes SET used_at = ? WHERE email = ? AND purpose = ? AND used_at IS NULL`,
		now, email, purpose,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO auth_codes (code, email, purpose, expires_at) VALUES (?, ?, ?, ?)`,
		code, email, purpose, now.Add(CodeTTL),
	)
	if err != nil {
		return nil, fmt.Errorf("insert auth code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+authCodeCols+` FROM auth_codes WHERE id = ?`, id)
	return scanAuthCode(row)
}

// GetLatest returns the most recent unexpired, unused code for email and
// purpose, or nil.
func (s *AuthCodeStore) GetLatest(email, purpose string) (*model.AuthCode, error) {
	row := s.db.QueryRow(
		`SELECT `+authCodeCols+` FROM auth_codes
		 WHERE email = ? AND purpose = ? AND expires_at > ? AND used_at IS NULL
		 ORDER BY id DESC LIMIT 1`,
		normalizeEmail(email), purpose, time.Now().UTC(),
	)
	c, err := scanAuthCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest auth code: %w", err)
	}
	return c, nil
}

// IncrementAttempts increments the attempt count and returns the new value.
func (s *AuthCodeStore) IncrementAttempts(id int64) (int, error) {
	_, err := s.db.Exec(`UPDATE auth_codes SET attempts = attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", err)
	}

	var attempts int
	err = s.db.QueryRow(`SELECT attempts FROM auth_codes WHERE id = ?`, id).Scan(&attempts)
	if err != nil {
		return 0, fmt.Errorf("read attempts: %w", err)
	}
	return attempts, nil
}

func (s *AuthCodeStore) MarkUsed(id int64) error {
	_, err := s.db.Exec(`UPDATE auth_codes SET used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark auth code used: %w", err)
	}
	return nil
}

func (s *AuthCodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM auth_codes WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired auth codes: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}
