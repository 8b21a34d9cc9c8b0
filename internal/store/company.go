package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/dutyroster/internal/model"
)

// DefaultSettings are written for every new company.
var DefaultSettings = map[string]string{
	model.SettingCleaningCount:  "2",
	model.SettingMealCount:      "2",
	model.SettingApprovalWindow: "5",
}

type CompanyStore struct {
	db *sql.DB
}

func NewCompanyStore(db *sql.DB) *CompanyStore {
	return &CompanyStore{db: db}
}

func scanCompany(scanner interface{ Scan(...any) error }) (*model.Company, error) {
	var c model.Company
	if err := scanner.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

const companyCols = `id, name, created_at`

// Create inserts a company and its default settings in a single transaction.
func (s *CompanyStore) Create(name string) (*model.Company, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`INSERT INTO companies (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	for key, value := range DefaultSettings {
		if _, err := tx.Exec(
			`INSERT INTO settings (company_id, key, value) VALUES (?, ?, ?)`,
			id, key, value,
		); err != nil {
			return nil, fmt.Errorf("seed setting %q: %w", key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit company: %w", err)
	}
	return s.GetByID(id)
}

func (s *CompanyStore) GetByID(id int64) (*model.Company, error) {
	row := s.db.QueryRow(`SELECT `+companyCols+` FROM companies WHERE id = ?`, id)
	c, err := scanCompany(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get company: %w", err)
	}
	return c, nil
}

func (s *CompanyStore) List() ([]model.Company, error) {
	rows, err := s.db.Query(`SELECT ` + companyCols + ` FROM companies ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		companies = append(companies, *c)
	}
	return companies, rows.Err()
}
