package store

import (
	"testing"

	"github.com/dukerupert/dutyroster/internal/model"
)

func TestPlaceCreateAndList(t *testing.T) {
	ps := NewPlaceStore(setupTestDB(t))

	if _, err := ps.Create(1, model.KindCleaning, "Kitchen"); err != nil {
		t.Fatalf("create: %v", err)
	}
	ps.Create(1, model.KindCleaning, "Lobby")
	ps.Create(1, model.KindMeal, "Canteen")

	names, err := ps.Names(1, model.KindCleaning)
	if err != nil {
		t.Fatalf("names: %v", err)
	}
	if len(names) != 2 || names[0] != "Kitchen" || names[1] != "Lobby" {
		t.Errorf("names = %v, want [Kitchen Lobby]", names)
	}
}

func TestPlaceDuplicateName(t *testing.T) {
	ps := NewPlaceStore(setupTestDB(t))

	ps.Create(1, model.KindCleaning, "Kitchen")
	if _, err := ps.Create(1, model.KindCleaning, "Kitchen"); err == nil {
		t.Error("expected unique violation")
	}
	if _, err := ps.Create(1, model.KindMeal, "Kitchen"); err != nil {
		t.Errorf("same name under another kind: %v", err)
	}
}

func TestPlaceDeleteAndClear(t *testing.T) {
	ps := NewPlaceStore(setupTestDB(t))

	p, _ := ps.Create(1, model.KindCleaning, "Kitchen")
	ps.Create(1, model.KindCleaning, "Lobby")
	ps.Create(1, model.KindMeal, "Canteen")

	ok, err := ps.Delete(1, model.KindMeal, p.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Error("deleted a place through the wrong kind")
	}

	ok, _ = ps.Delete(1, model.KindCleaning, p.ID)
	if !ok {
		t.Error("expected delete to report existing place")
	}

	n, err := ps.Clear(1, model.KindCleaning)
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared = %d, want 1", n)
	}

	meal, _ := ps.List(1, model.KindMeal)
	if len(meal) != 1 {
		t.Errorf("meal places = %d, want 1", len(meal))
	}
}
