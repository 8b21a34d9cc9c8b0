package model

import (
	"fmt"
	"time"
)

type ChoreKind string

const (
	KindCleaning ChoreKind = "cleaning"
	KindMeal     ChoreKind = "meal"
)

// ChoreKinds lists every kind in a stable order.
var ChoreKinds = []ChoreKind{KindCleaning, KindMeal}

// ParseChoreKind validates a kind taken from a path or request body.
func ParseChoreKind(s string) (ChoreKind, error) {
	switch ChoreKind(s) {
	case KindCleaning, KindMeal:
		return ChoreKind(s), nil
	}
	return "", fmt.Errorf("unknown chore kind %q", s)
}

type Place struct {
	ID        int64     `json:"id"`
	CompanyID int64     `json:"company_id"`
	Kind      ChoreKind `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
