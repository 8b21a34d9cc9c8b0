package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/chore"
	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/store"
	"github.com/dukerupert/dutyroster/internal/websocket"
)

// Broadcaster fans a change out to every live client of a company.
type Broadcaster interface {
	Broadcast(companyID int64, msg websocket.Message)
}

type MemberHandler struct {
	store    *store.MemberStore
	chores   *chore.Service
	loginLog *store.LoginLogStore
	hub      Broadcaster
	logger   *slog.Logger
}

func NewMemberHandler(s *store.MemberStore, chores *chore.Service, lls *store.LoginLogStore, hub Broadcaster, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{store: s, chores: chores, loginLog: lls, hub: hub, logger: logger}
}

func (h *MemberHandler) broadcast(companyID int64, action string, m *model.Member) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(companyID, websocket.NewMessage("member", action, m.ID, m))
}

// Me handles GET /api/me
func (h *MemberHandler) Me(w http.ResponseWriter, r *http.Request) {
	member, err := h.store.GetByID(auth.MemberID(r.Context()))
	if err != nil {
		h.logger.Error("get member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "member not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

// MyTasks handles GET /api/me/tasks
func (h *MemberHandler) MyTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.chores.MyTasks(auth.MemberID(r.Context()))
	if err != nil {
		h.logger.Error("list my tasks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// List handles GET /api/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.store.ListByCompany(auth.CompanyID(r.Context()))
	if err != nil {
		h.logger.Error("list members", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list members")
		return
	}
	if members == nil {
		members = []model.Member{}
	}
	writeJSON(w, http.StatusOK, members)
}

// lookup loads a member of the caller's company or writes the error.
func (h *MemberHandler) lookup(w http.ResponseWriter, r *http.Request) (*model.Member, bool) {
	id, err := parseIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return nil, false
	}
	member, err := h.store.GetByID(id)
	if err != nil {
		h.logger.Error("get member", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get member")
		return nil, false
	}
	if member == nil || member.CompanyID != auth.CompanyID(r.Context()) {
		writeError(w, http.StatusNotFound, "member not found")
		return nil, false
	}
	return member, true
}

type presenceRequest struct {
	IsPresent *bool `json:"is_present" validate:"required"`
}

// SetPresence handles POST /api/members/{id}/presence
func (h *MemberHandler) SetPresence(w http.ResponseWriter, r *http.Request) {
	member, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req presenceRequest
	if !bind(w, r, &req) {
		return
	}

	updated, err := h.store.SetPresence(member.CompanyID, member.ID, *req.IsPresent)
	if err != nil {
		h.logger.Error("set presence", "id", member.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update presence")
		return
	}
	h.broadcast(member.CompanyID, "updated", updated)
	writeJSON(w, http.StatusOK, updated)
}

type roleRequest struct {
	Role string `json:"role" validate:"required,oneof=member admin"`
}

// SetRole handles POST /api/members/{id}/role. Super-admin is never granted
// here and a caller cannot change their own role.
func (h *MemberHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	member, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if !bind(w, r, &req) {
		return
	}
	if member.ID == auth.MemberID(r.Context()) {
		writeError(w, http.StatusBadRequest, "cannot change your own role")
		return
	}
	if member.Role == model.RoleSuperAdmin && !auth.IsSuperAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "cannot change a super admin")
		return
	}

	updated, err := h.store.SetRole(member.CompanyID, member.ID, req.Role)
	if err != nil {
		h.logger.Error("set role", "id", member.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update role")
		return
	}
	h.logger.Info("member role changed", "id", member.ID, "role", req.Role, "by", auth.MemberID(r.Context()))
	h.broadcast(member.CompanyID, "updated", updated)
	writeJSON(w, http.StatusOK, updated)
}

// Logins handles GET /api/members/{id}/logins
func (h *MemberHandler) Logins(w http.ResponseWriter, r *http.Request) {
	member, ok := h.lookup(w, r)
	if !ok {
		return
	}
	logs, err := h.loginLog.ListByMember(member.ID, 50)
	if err != nil {
		h.logger.Error("list logins", "id", member.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list logins")
		return
	}
	if logs == nil {
		logs = []model.LoginLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}
