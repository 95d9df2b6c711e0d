package auth

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/bym-inventory/bym-inventory/internal/platform/httpx"
	"github.com/bym-inventory/bym-inventory/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	// OTP issuance gets a tighter per-IP bucket than the global limiter.
	r.With(httprate.Limit(5, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))).
		Post("/send-otp", h.handleSendOTP)
	r.Post("/verify-otp", h.handleVerifyOTP)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Get("/csrf", h.handleCSRF)
}

type sendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func (h *Handler) handleSendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ValidationError("email", "a valid email address is required"))
		return
	}
	if err := h.service.StartLogin(r.Context(), req.Email); err != nil {
		h.logger.Error("send otp", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// Always 200 so the endpoint does not leak which emails exist.
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "malformed JSON")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ValidationError("otp", "email and 6-digit code are required"))
		return
	}
	user, err := h.service.VerifyLogin(r.Context(), req.Email, req.OTP)
	if err != nil {
		if shared.KindOf(err) == shared.KindAuth {
			httpx.RespondError(w, err)
			return
		}
		h.logger.Error("verify otp", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.Set(sessionRoleKey, string(user.Role))
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":      userResponse{ID: user.ID, Email: user.Email, Name: user.Name, Role: string(user.Role)},
		"csrfToken": csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	id := CurrentUserID(sess)
	if id == 0 {
		httpx.RespondError(w, shared.AuthError("not logged in"))
		return
	}
	user, err := h.service.CurrentUser(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, shared.AuthError("not logged in"))
		return
	}
	httpx.JSON(w, http.StatusOK, userResponse{ID: user.ID, Email: user.Email, Name: user.Name, Role: string(user.Role)})
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": token})
}
