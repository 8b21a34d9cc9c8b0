package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/store"
)

type CompanyHandler struct {
	store  *store.CompanyStore
	logger *slog.Logger
}

func NewCompanyHandler(s *store.CompanyStore, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{store: s, logger: logger}
}

// List handles GET /api/companies
func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	companies, err := h.store.List()
	if err != nil {
		h.logger.Error("list companies", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list companies")
		return
	}
	if companies == nil {
		companies = []model.Company{}
	}
	writeJSON(w, http.StatusOK, companies)
}

type companyRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// Create handles POST /api/companies
func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if !bind(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	companies, err := h.store.List()
	if err != nil {
		h.logger.Error("list companies", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create company")
		return
	}
	for _, c := range companies {
		if strings.EqualFold(c.Name, req.Name) {
			writeError(w, http.StatusConflict, "a company with that name already exists")
			return
		}
	}

	company, err := h.store.Create(req.Name)
	if err != nil {
		h.logger.Error("create company", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create company")
		return
	}
	h.logger.Info("company created", "id", company.ID, "name", company.Name)
	writeJSON(w, http.StatusCreated, company)
}
