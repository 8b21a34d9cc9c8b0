package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/store"
)

const (
	defaultHistoryDays  = 7
	maxHistoryDays      = 90
	defaultHistoryLimit = 200
	maxHistoryLimit     = 1000
)

type HistoryHandler struct {
	store  *store.HistoryStore
	loc    *time.Location
	now    func() time.Time
	logger *slog.Logger
}

func NewHistoryHandler(s *store.HistoryStore, loc *time.Location, logger *slog.Logger) *HistoryHandler {
	if loc == nil {
		loc = time.Local
	}
	return &HistoryHandler{store: s, loc: loc, now: time.Now, logger: logger}
}

// queryInt reads a positive integer query parameter, clamped to max.
func queryInt(r *http.Request, name string, def, max int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return def
	}
	if v > max {
		return max
	}
	return v
}

// List handles GET /api/history?days=7&limit=200. Entries are grouped by the
// local day they were completed, newest first.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	days := queryInt(r, "days", defaultHistoryDays, maxHistoryDays)
	limit := queryInt(r, "limit", defaultHistoryLimit, maxHistoryLimit)

	now := h.now().In(h.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	since := today.AddDate(0, 0, -(days - 1))

	entries, err := h.store.List(auth.CompanyID(r.Context()), since, limit)
	if err != nil {
		h.logger.Error("list history", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list history")
		return
	}
	writeJSON(w, http.StatusOK, store.GroupByDay(entries, h.loc))
}
