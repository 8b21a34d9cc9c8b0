package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/dutyroster/internal/model"
)

type PlaceStore struct {
	db *sql.DB
}

func NewPlaceStore(db *sql.DB) *PlaceStore {
	return &PlaceStore{db: db}
}

func scanPlace(scanner interface{ Scan(...any) error }) (*model.Place, error) {
	var p model.Place
	if err := scanner.Scan(&p.ID, &p.CompanyID, &p.Kind, &p.Name, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

const placeCols = `id, company_id, kind, name, created_at`

func (s *PlaceStore) Create(companyID int64, kind model.ChoreKind, name string) (*model.Place, error) {
	result, err := s.db.Exec(
		`INSERT INTO places (company_id, kind, name) VALUES (?, ?, ?)`,
		companyID, kind, name,
	)
	if err != nil {
		return nil, fmt.Errorf("insert place: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+placeCols+` FROM places WHERE id = ?`, id)
	p, err := scanPlace(row)
	if err != nil {
		return nil, fmt.Errorf("get place: %w", err)
	}
	return p, nil
}

func (s *PlaceStore) List(companyID int64, kind model.ChoreKind) ([]model.Place, error) {
	rows, err := s.db.Query(
		`SELECT `+placeCols+` FROM places WHERE company_id = ? AND kind = ? ORDER BY id`,
		companyID, kind,
	)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		places = append(places, *p)
	}
	return places, rows.Err()
}

// Names returns the place labels of a kind, the pool a round pairs picks with.
func (s *PlaceStore) Names(companyID int64, kind model.ChoreKind) ([]string, error) {
	places, err := s.List(companyID, kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(places))
	for i, p := range places {
		names[i] = p.Name
	}
	return names, nil
}

// Delete removes one place and reports whether it existed.
func (s *PlaceStore) Delete(companyID int64, kind model.ChoreKind, id int64) (bool, error) {
	result, err := s.db.Exec(
		`DELETE FROM places WHERE id = ? AND company_id = ? AND kind = ?`,
		id, companyID, kind,
	)
	if err != nil {
		return false, fmt.Errorf("delete place: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Clear removes every place of a kind.
func (s *PlaceStore) Clear(companyID int64, kind model.ChoreKind) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM places WHERE company_id = ? AND kind = ?`, companyID, kind)
	if err != nil {
		return 0, fmt.Errorf("clear places: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
