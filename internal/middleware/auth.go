package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "dutyroster_session"

// RequireAuth validates the session cookie and populates AuthContext. The
// member's role is read on every request so role changes apply at once.
func RequireAuth(sessionStore *store.SessionStore, memberStore *store.MemberStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				deny(w, http.StatusUnauthorized, "authentication required")
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				deny(w, http.StatusUnauthorized, "session expired")
				return
			}

			member, err := memberStore.GetByID(sess.MemberID)
			if err != nil || member == nil || member.CompanyID != sess.CompanyID {
				deny(w, http.StatusUnauthorized, "session expired")
				return
			}

			ac := auth.AuthContext{
				MemberID:  member.ID,
				CompanyID: member.CompanyID,
				Role:      member.Role,
				SessionID: sess.ID,
			}

			ctx := auth.WithAuth(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin checks that the authenticated member is an admin or super admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			deny(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsSuperAdmin(r.Context()) {
			deny(w, http.StatusForbidden, "super admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
