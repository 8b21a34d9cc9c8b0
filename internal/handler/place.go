package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/store"
	"github.com/dukerupert/dutyroster/internal/websocket"
)

type PlaceHandler struct {
	store  *store.PlaceStore
	hub    Broadcaster
	logger *slog.Logger
}

func NewPlaceHandler(s *store.PlaceStore, hub Broadcaster, logger *slog.Logger) *PlaceHandler {
	return &PlaceHandler{store: s, hub: hub, logger: logger}
}

func (h *PlaceHandler) broadcast(companyID int64, kind model.ChoreKind, action string, id int64, data any) {
	if h.hub == nil {
		return
	}
	msg := websocket.NewMessage("place", action, id, data)
	msg.Kind = string(kind)
	h.hub.Broadcast(companyID, msg)
}

func (h *PlaceHandler) kind(w http.ResponseWriter, r *http.Request) (model.ChoreKind, bool) {
	kind, err := parseKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return kind, true
}

// List handles GET /api/places/{kind}
func (h *PlaceHandler) List(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	places, err := h.store.List(auth.CompanyID(r.Context()), kind)
	if err != nil {
		h.logger.Error("list places", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list places")
		return
	}
	if places == nil {
		places = []model.Place{}
	}
	writeJSON(w, http.StatusOK, places)
}

type placeRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Create handles POST /api/places/{kind}
func (h *PlaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	var req placeRequest
	if !bind(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	companyID := auth.CompanyID(r.Context())
	names, err := h.store.Names(companyID, kind)
	if err != nil {
		h.logger.Error("check place name", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to check name")
		return
	}
	for _, n := range names {
		if strings.EqualFold(n, req.Name) {
			writeError(w, http.StatusConflict, "a place with that name already exists")
			return
		}
	}

	place, err := h.store.Create(companyID, kind, req.Name)
	if err != nil {
		h.logger.Error("create place", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create place")
		return
	}
	h.broadcast(companyID, kind, "created", place.ID, place)
	writeJSON(w, http.StatusCreated, place)
}

// Delete handles DELETE /api/places/{kind}/{id}
func (h *PlaceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	companyID := auth.CompanyID(r.Context())
	deleted, err := h.store.Delete(companyID, kind, id)
	if err != nil {
		h.logger.Error("delete place", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete place")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "place not found")
		return
	}
	h.broadcast(companyID, kind, "deleted", id, nil)
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles DELETE /api/places/{kind}
func (h *PlaceHandler) Clear(w http.ResponseWriter, r *http.Request) {
	kind, ok := h.kind(w, r)
	if !ok {
		return
	}
	companyID := auth.CompanyID(r.Context())
	n, err := h.store.Clear(companyID, kind)
	if err != nil {
		h.logger.Error("clear places", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear places")
		return
	}
	h.broadcast(companyID, kind, "cleared", 0, nil)
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}
