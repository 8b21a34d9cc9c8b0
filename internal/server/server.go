package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/dutyroster/internal/archive"
	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/chore"
	"github.com/dukerupert/dutyroster/internal/handler"
	"github.com/dukerupert/dutyroster/internal/jobs"
	"github.com/dukerupert/dutyroster/internal/metrics"
	"github.com/dukerupert/dutyroster/internal/middleware"
	"github.com/dukerupert/dutyroster/internal/push"
	"github.com/dukerupert/dutyroster/internal/store"
	ws "github.com/dukerupert/dutyroster/internal/websocket"
)

// Auth routes allow this many requests per client IP per minute.
const authRateLimit = 10

// Options carries the collaborators and settings the server is built from.
// Nil collaborators fall back to disabled implementations.
type Options struct {
	Location       *time.Location
	ApprovalWindow time.Duration
	WSOrigins      []string
	Mailer         handler.CodeSender
	Verifier       auth.TokenVerifier
	Push           *push.Service
	Archive        archive.S3Config
	Metrics        *metrics.Collector
	Now            func() time.Time
}

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	wsOrigins     []string
	authH         *handler.AuthHandler
	memberH       *handler.MemberHandler
	placeH        *handler.PlaceHandler
	choreH        *handler.ChoreHandler
	historyH      *handler.HistoryHandler
	settingsH     *handler.SettingsHandler
	companyH      *handler.CompanyHandler
	pushH         *handler.PushHandler
	chores        *chore.Service
	sessionStore  *store.SessionStore
	memberStore   *store.MemberStore
	codeStore     *store.AuthCodeStore
	rotationStore *store.RotationStore
	rateLimiter   *middleware.RateLimiter
	notifier      *push.Notifier
	exporter      *archive.Exporter
	metrics       *metrics.Collector
	location      *time.Location
	logger        *slog.Logger
}

func New(db *sql.DB, opts Options, logger *slog.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Verifier == nil {
		opts.Verifier = auth.DisabledVerifier{}
	}
	if opts.Push == nil {
		opts.Push = push.NewService("", "", "")
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}

	hub := ws.NewHub(logger.With("component", "websocket"))

	memberStore := store.NewMemberStore(db)
	companyStore := store.NewCompanyStore(db)
	placeStore := store.NewPlaceStore(db)
	taskStore := store.NewTaskStore(db)
	rotationStore := store.NewRotationStore(db)
	weeklyLogStore := store.NewWeeklyLogStore(db)
	historyStore := store.NewHistoryStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)

	// Auth stores
	sessionStore := store.NewSessionStore(db)
	codeStore := store.NewAuthCodeStore(db)
	loginLogStore := store.NewLoginLogStore(db)

	notifier := push.NewNotifier(opts.Push, pushStore, logger.With("component", "push"))

	chores := chore.NewService(chore.Deps{
		Members:   memberStore,
		Places:    placeStore,
		Tasks:     taskStore,
		Rotations: rotationStore,
		WeeklyLog: weeklyLogStore,
		Recorder:  opts.Metrics,
	}, chore.Config{
		Location: opts.Location,
		Now:      opts.Now,
	}, func(ev chore.Event) {
		publish(hub, notifier, ev)
	}, logger.With("component", "chore"))

	exporter := archive.NewExporter(opts.Archive, weeklyLogStore, store.NewArchiveStore(db), companyStore, logger.With("component", "archive"))

	opts.Metrics.Gauge("websocket", "clients", "Connected websocket clients.", func() float64 {
		return float64(hub.ClientCount())
	})
	opts.Metrics.Gauge("websocket", "dropped_messages", "Live updates dropped for slow clients.", func() float64 {
		return float64(hub.Dropped())
	})

	mailer := opts.Mailer
	if mailer == nil {
		mailer = nopMailer{}
	}

	return &Server{
		db:            db,
		hub:           hub,
		wsOrigins:     opts.WSOrigins,
		authH:         handler.NewAuthHandler(memberStore, companyStore, sessionStore, codeStore, loginLogStore, mailer, opts.Verifier, logger.With("component", "auth")),
		memberH:       handler.NewMemberHandler(memberStore, chores, loginLogStore, hub, logger.With("component", "member")),
		placeH:        handler.NewPlaceHandler(placeStore, hub, logger.With("component", "place")),
		choreH:        handler.NewChoreHandler(chores, settingsStore, opts.ApprovalWindow, logger.With("component", "chore_handler")),
		historyH:      handler.NewHistoryHandler(historyStore, opts.Location, logger.With("component", "history")),
		settingsH:     handler.NewSettingsHandler(settingsStore, hub, logger.With("component", "settings")),
		companyH:      handler.NewCompanyHandler(companyStore, logger.With("component", "company")),
		pushH:         handler.NewPushHandler(pushStore, opts.Push, logger.With("component", "push_handler")),
		chores:        chores,
		sessionStore:  sessionStore,
		memberStore:   memberStore,
		codeStore:     codeStore,
		rotationStore: rotationStore,
		rateLimiter:   middleware.NewRateLimiter(),
		notifier:      notifier,
		exporter:      exporter,
		metrics:       opts.Metrics,
		location:      opts.Location,
		logger:        logger,
	}
}

type nopMailer struct{}

func (nopMailer) SendCode(string, string, string) error { return nil }

// publish fans a committed chore change out to the company's live clients
// and queues push notices for approvals.
func publish(hub *ws.Hub, notifier *push.Notifier, ev chore.Event) {
	msg := ws.NewMessage("task", ev.Action, 0, ev.Tasks)
	msg.Kind = string(ev.Kind)
	if len(ev.Tasks) == 1 {
		msg.ID = ev.Tasks[0].ID
	}
	hub.Broadcast(ev.CompanyID, msg)

	switch ev.Action {
	case chore.ActionApproved:
		for _, t := range ev.Tasks {
			notifier.TaskApproved(t)
		}
	case chore.ActionCompleted:
		if ev.HistoryAdded {
			added := ws.NewMessage("history", "added", msg.ID, ev.Tasks)
			added.Kind = string(ev.Kind)
			hub.Broadcast(ev.CompanyID, added)
		}
	}
}

// Notifier returns the push notifier so its worker can be started and
// stopped with the process.
func (s *Server) Notifier() *push.Notifier {
	return s.notifier
}

// Jobs builds the maintenance runner over the server's stores.
func (s *Server) Jobs(schedules jobs.Schedules) (*jobs.Runner, error) {
	cleanup := jobs.Cleanup{
		Sessions:  s.sessionStore,
		AuthCodes: s.codeStore,
		Rotations: s.rotationStore,
		Limiter:   s.rateLimiter,
		Location:  s.location,
	}
	return jobs.New(schedules, s.location, cleanup, s.exporter, s.logger.With("component", "jobs"))
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("POST /auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /auth/verify", s.rateLimitedHandler(s.authH.Verify))
	outerMux.HandleFunc("POST /auth/verify/resend", s.rateLimitedHandler(s.authH.ResendVerification))
	outerMux.HandleFunc("POST /auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("POST /auth/federated", s.rateLimitedHandler(s.authH.Federated))
	outerMux.HandleFunc("POST /auth/password-reset", s.rateLimitedHandler(s.authH.PasswordReset))
	outerMux.HandleFunc("POST /auth/password-reset/confirm", s.rateLimitedHandler(s.authH.PasswordResetConfirm))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("GET /metrics", s.metrics.Handler())

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.memberStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if err := s.db.PingContext(r.Context()); err != nil {
		s.logger.Error("health check", "error", err)
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, authRateLimit, time.Minute)
	wrapped := rl(h)
	return wrapped.ServeHTTP
}

func admin(h http.HandlerFunc) http.Handler {
	return middleware.RequireAdmin(h)
}

func superAdmin(h http.HandlerFunc) http.Handler {
	return middleware.RequireSuperAdmin(h)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Any signed-in member
	mux.HandleFunc("POST /auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.memberH.Me)
	mux.HandleFunc("GET /api/me/tasks", s.memberH.MyTasks)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.choreH.Complete)

	// Push notification API routes
	mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
	mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
	mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
	mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
	mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)

	// Members and places
	mux.Handle("GET /api/members", admin(s.memberH.List))
	mux.Handle("POST /api/members/{id}/presence", admin(s.memberH.SetPresence))
	mux.Handle("POST /api/members/{id}/role", admin(s.memberH.SetRole))
	mux.Handle("GET /api/members/{id}/logins", admin(s.memberH.Logins))
	mux.Handle("GET /api/places/{kind}", admin(s.placeH.List))
	mux.Handle("POST /api/places/{kind}", admin(s.placeH.Create))
	mux.Handle("DELETE /api/places/{kind}/{id}", admin(s.placeH.Delete))
	mux.Handle("DELETE /api/places/{kind}", admin(s.placeH.Clear))

	// Chore rounds and approval
	mux.Handle("POST /api/chores/{kind}/assign", admin(s.choreH.Assign))
	mux.Handle("GET /api/chores/{kind}/board", admin(s.choreH.Board))
	mux.Handle("POST /api/tasks/{id}/approve", admin(s.choreH.Approve))
	mux.Handle("GET /api/history", admin(s.historyH.List))

	// Settings API routes
	mux.Handle("GET /api/settings", admin(s.settingsH.Get))
	mux.Handle("PUT /api/settings", admin(s.settingsH.Update))

	// Companies
	mux.Handle("GET /api/companies", superAdmin(s.companyH.List))
	mux.Handle("POST /api/companies", superAdmin(s.companyH.Create))

	// WebSocket
	mux.HandleFunc("GET /api/ws", ws.HandleWebSocket(s.hub, s.wsOrigins, s.logger.With("component", "websocket")))
}
