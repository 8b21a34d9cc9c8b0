package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/store"
	"github.com/dukerupert/dutyroster/internal/websocket"
)

type SettingsHandler struct {
	settingsStore *store.SettingsStore
	hub           Broadcaster
	logger        *slog.Logger
}

func NewSettingsHandler(ss *store.SettingsStore, hub Broadcaster, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{settingsStore: ss, hub: hub, logger: logger}
}

// Get handles GET /api/settings
func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	cs, err := h.settingsStore.GetCompanySettings(auth.CompanyID(r.Context()))
	if err != nil {
		h.logger.Error("get settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get settings")
		return
	}
	writeJSON(w, http.StatusOK, cs)
}

type settingsRequest struct {
	CleaningCount         int `json:"cleaning_assign_count" validate:"required,min=1,max=50"`
	MealCount             int `json:"meal_assign_count" validate:"required,min=1,max=50"`
	ApprovalWindowMinutes int `json:"approval_window_minutes" validate:"required,min=1,max=1440"`
}

// Update handles PUT /api/settings
func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !bind(w, r, &req) {
		return
	}

	companyID := auth.CompanyID(r.Context())
	cs := model.CompanySettings{
		CleaningCount:         req.CleaningCount,
		MealCount:             req.MealCount,
		ApprovalWindowMinutes: req.ApprovalWindowMinutes,
	}
	if err := h.settingsStore.SetCompanySettings(companyID, cs); err != nil {
		h.logger.Error("update settings", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(companyID, websocket.NewMessage("settings", "updated", 0, cs))
	}
	writeJSON(w, http.StatusOK, cs)
}
