package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/dukerupert/dutyroster/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the
// company's live updates to it. With no origin patterns every origin is
// accepted.
func HandleWebSocket(hub *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns:     originPatterns,
			InsecureSkipVerify: len(originPatterns) == 0,
		})
		if err != nil {
			logger.Warn("websocket accept", "member_id", ac.MemberID, "error", err)
			return
		}

		NewClient(hub, conn, ac.CompanyID, ac.MemberID).Run(r.Context())
	}
}
