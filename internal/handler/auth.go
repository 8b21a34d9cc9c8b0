package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/dutyroster/internal/auth"
	"github.com/dukerupert/dutyroster/internal/email"
	"github.com/dukerupert/dutyroster/internal/middleware"
	"github.com/dukerupert/dutyroster/internal/model"
	"github.com/dukerupert/dutyroster/internal/store"
)

const (
	maxCodeAttempts = 5
	sessionMaxAge   = 90 * 24 * 60 * 60
)

// CodeSender delivers verification and password reset codes.
type CodeSender interface {
	SendCode(toEmail, code, purpose string) error
}

type AuthHandler struct {
	memberStore  *store.MemberStore
	companyStore *store.CompanyStore
	sessionStore *store.SessionStore
	codeStore    *store.AuthCodeStore
	loginLog     *store.LoginLogStore
	mailer       CodeSender
	verifier     auth.TokenVerifier
	logger       *slog.Logger
}

func NewAuthHandler(
	ms *store.MemberStore,
	cs *store.CompanyStore,
	ss *store.SessionStore,
	acs *store.AuthCodeStore,
	lls *store.LoginLogStore,
	mailer CodeSender,
	verifier auth.TokenVerifier,
	logger *slog.Logger,
) *AuthHandler {
	if verifier == nil {
		verifier = auth.DisabledVerifier{}
	}
	return &AuthHandler{
		memberStore:  ms,
		companyStore: cs,
		sessionStore: ss,
		codeStore:    acs,
		loginLog:     lls,
		mailer:       mailer,
		verifier:     verifier,
		logger:       logger,
	}
}

type registerRequest struct {
	Name      string `json:"name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	CompanyID int64  `json:"company_id" validate:"required,gt=0"`
	Gender    string `json:"gender" validate:"omitempty,oneof=male female"`
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !bind(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	company, err := h.companyStore.GetByID(req.CompanyID)
	if err != nil {
		h.logger.Error("register company lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if company == nil {
		writeError(w, http.StatusBadRequest, "unknown company")
		return
	}

	existing, err := h.memberStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("register member lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if existing != nil {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	member, err := h.memberStore.Create(company.ID, req.Name, req.Email, model.RoleMember, req.Gender)
	if err != nil {
		h.logger.Error("create member", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}
	if err := h.memberStore.SetPasswordHash(member.ID, hash); err != nil {
		h.logger.Error("set password hash", "member_id", member.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	h.sendCode(member.Email, model.CodePurposeVerify)
	writeJSON(w, http.StatusCreated, member)
}

// sendCode issues a fresh code and mails it. Delivery failures are logged;
// the member can ask for another code.
func (h *AuthHandler) sendCode(emailAddr, purpose string) {
	code, err := h.codeStore.Create(emailAddr, purpose)
	if err != nil {
		h.logger.Error("create auth code", "purpose", purpose, "error", err)
		return
	}
	if err := h.mailer.SendCode(emailAddr, code.Code, purpose); err != nil {
		if errors.Is(err, email.ErrNotConfigured) {
			h.logger.Warn("email not configured, code not sent", "email", emailAddr, "purpose", purpose)
			return
		}
		h.logger.Error("send auth code", "email", emailAddr, "purpose", purpose, "error", err)
	}
}

// validateCode checks the code for the given email and purpose, handling
// attempts and expiry. It returns an error message on failure.
func (h *AuthHandler) validateCode(emailAddr, purpose, code string) string {
	latest, err := h.codeStore.GetLatest(emailAddr, purpose)
	if err != nil {
		h.logger.Error("validate code lookup", "error", err)
		return "internal error"
	}
	if latest == nil {
		return "code has expired or already been used"
	}

	if latest.Attempts >= maxCodeAttempts {
		h.codeStore.MarkUsed(latest.ID)
		return "too many incorrect attempts, request a new code"
	}

	if latest.Code != code {
		attempts, err := h.codeStore.IncrementAttempts(latest.ID)
		if err != nil {
			h.logger.Error("increment attempts", "error", err)
		}
		if attempts >= maxCodeAttempts {
			h.codeStore.MarkUsed(latest.ID)
			return "too many incorrect attempts, request a new code"
		}
		return "incorrect code"
	}

	if err := h.codeStore.MarkUsed(latest.ID); err != nil {
		h.logger.Error("mark used", "error", err)
		return "internal error"
	}
	return ""
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// Verify handles POST /auth/verify
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if !bind(w, r, &req) {
		return
	}

	if msg := h.validateCode(req.Email, model.CodePurposeVerify, req.Code); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	member, err := h.memberStore.GetByEmail(req.Email)
	if err != nil || member == nil {
		h.logger.Error("verify member lookup", "error", err)
		writeError(w, http.StatusBadRequest, "member not found")
		return
	}
	if err := h.memberStore.MarkEmailVerified(member.ID); err != nil {
		h.logger.Error("mark email verified", "member_id", member.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	member.EmailVerified = true
	writeJSON(w, http.StatusOK, member)
}

type resendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResendVerification handles POST /auth/verify/resend. The response does not
// reveal whether the address is registered.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !bind(w, r, &req) {
		return
	}
	member, err := h.memberStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("resend member lookup", "error", err)
	}
	if member != nil && !member.EmailVerified {
		h.sendCode(member.Email, model.CodePurposeVerify)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !bind(w, r, &req) {
		return
	}

	member, err := h.memberStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("login member lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if member == nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	hash, err := h.memberStore.PasswordHash(member.ID)
	if err != nil {
		h.logger.Error("login password lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	// Admins may sign in before verifying so a fresh install is reachable.
	if !member.EmailVerified && !member.IsAdmin() {
		writeError(w, http.StatusForbidden, "email not verified")
		return
	}

	h.startSession(w, r, member, "password")
}

type federatedRequest struct {
	IDToken string `json:"id_token" validate:"required"`
}

// Federated handles POST /auth/federated
func (h *AuthHandler) Federated(w http.ResponseWriter, r *http.Request) {
	var req federatedRequest
	if !bind(w, r, &req) {
		return
	}

	identity, err := h.verifier.Verify(r.Context(), req.IDToken)
	if errors.Is(err, auth.ErrFederatedDisabled) {
		writeError(w, http.StatusNotImplemented, "federated sign-in is not enabled")
		return
	}
	if err != nil {
		h.logger.Warn("federated token rejected", "error", err)
		writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}

	member, err := h.memberStore.GetByEmail(identity.Email)
	if err != nil {
		h.logger.Error("federated member lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if member == nil {
		writeError(w, http.StatusForbidden, "no member for this account")
		return
	}
	if identity.EmailVerified && !member.EmailVerified {
		if err := h.memberStore.MarkEmailVerified(member.ID); err != nil {
			h.logger.Error("mark email verified", "member_id", member.ID, "error", err)
		} else {
			member.EmailVerified = true
		}
	}
	if !member.EmailVerified && !member.IsAdmin() {
		writeError(w, http.StatusForbidden, "email not verified")
		return
	}

	h.startSession(w, r, member, "federated")
}

func (h *AuthHandler) startSession(w http.ResponseWriter, r *http.Request, member *model.Member, method string) {
	sess, err := h.sessionStore.Create(member.ID, member.CompanyID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if err := h.loginLog.Record(member, method, middleware.RealIP(r)); err != nil {
		h.logger.Error("record login", "member_id", member.ID, "error", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	h.logger.Info("member signed in", "member_id", member.ID, "method", method)
	writeJSON(w, http.StatusOK, member)
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// PasswordReset handles POST /auth/password-reset. It always answers 202.
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !bind(w, r, &req) {
		return
	}
	member, err := h.memberStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("reset member lookup", "error", err)
	}
	if member != nil {
		h.sendCode(member.Email, model.CodePurposeReset)
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

type resetConfirmRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Code     string `json:"code" validate:"required,len=6,numeric"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// PasswordResetConfirm handles POST /auth/password-reset/confirm. Every
// session of the member is revoked.
func (h *AuthHandler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req resetConfirmRequest
	if !bind(w, r, &req) {
		return
	}

	if msg := h.validateCode(req.Email, model.CodePurposeReset, req.Code); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	member, err := h.memberStore.GetByEmail(req.Email)
	if err != nil || member == nil {
		h.logger.Error("reset confirm member lookup", "error", err)
		writeError(w, http.StatusBadRequest, "member not found")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.memberStore.SetPasswordHash(member.ID, hash); err != nil {
		h.logger.Error("set password hash", "member_id", member.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	// The code proved ownership of the mailbox.
	if !member.EmailVerified {
		if err := h.memberStore.MarkEmailVerified(member.ID); err != nil {
			h.logger.Error("mark email verified", "member_id", member.ID, "error", err)
		}
	}
	if err := h.sessionStore.DeleteByMemberID(member.ID); err != nil {
		h.logger.Error("revoke sessions", "member_id", member.ID, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "password updated"})
}
