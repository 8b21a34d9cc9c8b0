package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dukerupert/dutyroster/internal/model"
)

func placeReq(method, kind, id, body string) *http.Request {
	target := "/api/places/" + kind
	if id != "" {
		target += "/" + id
	}
	req := jsonRequest(method, target, body)
	req.SetPathValue("kind", kind)
	if id != "" {
		req.SetPathValue("id", id)
	}
	return req
}

func TestPlaceLifecycle(t *testing.T) {
	env := newTestEnv(t)
	h := NewPlaceHandler(env.places, env.hub, discard)
	admin := env.createMember(t, "Boss", "boss@example.com", model.RoleAdmin)

	rr := httptest.NewRecorder()
	h.Create(rr, as(placeReq("POST", "cleaning", "", `{"name":" Kitchen "}`), admin))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rr.Code, rr.Body)
	}
	place := decode[model.Place](t, rr)
	if place.Name != "Kitchen" {
		t.Errorf("name = %q, want trimmed", place.Name)
	}

	rr = httptest.NewRecorder()
	h.Create(rr, as(placeReq("POST", "cleaning", "", `{"name":"kitchen"}`), admin))
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Create(rr, as(placeReq("POST", "meal", "", `{"name":"Kitchen"}`), admin))
	if rr.Code != http.StatusCreated {
		t.Errorf("same name other kind status = %d, want 201", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Delete(rr, as(placeReq("DELETE", "meal", "9999", ""), admin))
	if rr.Code != http.StatusNotFound {
		t.Errorf("delete missing status = %d, want 404", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.Clear(rr, as(placeReq("DELETE", "cleaning", "", ""), admin))
	if rr.Code != http.StatusOK {
		t.Fatalf("clear status = %d", rr.Code)
	}
	if got := decode[map[string]int64](t, rr); got["deleted"] != 1 {
		t.Errorf("deleted = %d, want 1", got["deleted"])
	}

	rr = httptest.NewRecorder()
	h.List(rr, as(placeReq("GET", "meal", "", ""), admin))
	if places := decode[[]model.Place](t, rr); len(places) != 1 {
		t.Errorf("meal places = %d, want 1", len(places))
	}
}

func TestPlaceUnknownKind(t *testing.T) {
	env := newTestEnv(t)
	h := NewPlaceHandler(env.places, env.hub, discard)
	admin := env.createMember(t, "Boss", "boss@example.com", model.RoleAdmin)

	rr := httptest.NewRecorder()
	h.List(rr, as(placeReq("GET", "laundry", "", ""), admin))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
