package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/chore"
	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/rotation"
	"github.com/dukerupert/dutyroster/internal/store"
)

type ChoreHandler struct {
	service       *chore.Service
	settingsStore *store.SettingsStore
	defaultWindow time.Duration
	logger        *slog.Logger
}

func NewChoreHandler(svc *chore.Service, ss *store.SettingsStore, defaultWindow time.Duration, logger *slog.Logger) *ChoreHandler {
	return &ChoreHandler{service: svc, settingsStore: ss, defaultWindow: defaultWindow, logger: logger}
}

// settings returns the company's settings with the approval window resolved.
func (h *ChoreHandler) settings(companyID int64) (model.CompanySettings, time.Duration, error) {
	cs, err := h.settingsStore.GetCompanySettings(companyID)
	if err != nil {
		return cs, 0, err
	}
	window := h.defaultWindow
	if cs.ApprovalWindowMinutes > 0 {
		window = time.Duration(cs.ApprovalWindowMinutes) * time.Minute
	}
	return cs, window, nil
}

type assignRequest struct {
	Count       *int `json:"count" validate:"omitempty,min=1,max=50"`
	AllowRepeat bool `json:"allow_repeat_today"`
}

// Assign handles POST /api/chores/{kind}/assign
func (h *ChoreHandler) Assign(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req assignRequest
	if r.ContentLength != 0 && !bind(w, r, &req) {
		return
	}

	companyID := auth.CompanyID(r.Context())
	cs, window, err := h.settings(companyID)
	if err != nil {
		h.logger.Error("load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}
	count := cs.AssignCount(kind)
	if req.Count != nil {
		count = *req.Count
	}

	result, err := h.service.Assign(chore.AssignRequest{
		CompanyID:   companyID,
		Kind:        kind,
		Count:       count,
		AllowRepeat: req.AllowRepeat,
		Window:      window,
	})
	if errors.Is(err, rotation.ErrNoEligibleMembers) {
		writeJSON(w, http.StatusOK, map[string]any{
			"assigned": []model.Task{},
			"reason":   "no_eligible_members",
		})
		return
	}
	if err != nil {
		h.logger.Error("assign round", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to assign")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"assigned":     result.Tasks,
		"requested":    count,
		"insufficient": result.Insufficient,
		"reset":        result.Reset,
	})
}

// Board handles GET /api/chores/{kind}/board
func (h *ChoreHandler) Board(w http.ResponseWriter, r *http.Request) {
	kind, err := parseKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	companyID := auth.CompanyID(r.Context())
	_, window, err := h.settings(companyID)
	if err != nil {
		h.logger.Error("load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	tasks, err := h.service.Board(companyID, kind, window)
	if err != nil {
		h.logger.Error("load board", "kind", kind, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load board")
		return
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// Approve handles POST /api/tasks/{id}/approve
func (h *ChoreHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	companyID := auth.CompanyID(r.Context())
	_, window, err := h.settings(companyID)
	if err != nil {
		h.logger.Error("load settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	task, err := h.service.Approve(companyID, id, window)
	if err != nil {
		h.writeTaskError(w, "approve task", id, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// Complete handles POST /api/tasks/{id}/complete
func (h *ChoreHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	ctx := r.Context()

	task, err := h.service.Complete(auth.CompanyID(ctx), auth.MemberID(ctx), auth.IsAdmin(ctx), id)
	if err != nil {
		h.writeTaskError(w, "complete task", id, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *ChoreHandler) writeTaskError(w http.ResponseWriter, op string, id int64, err error) {
	switch {
	case errors.Is(err, chore.ErrNotFound):
		writeError(w, http.StatusNotFound, "task not found")
	case errors.Is(err, chore.ErrForbidden):
		writeError(w, http.StatusForbidden, "task belongs to another member")
	case errors.Is(err, chore.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(op, "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}
