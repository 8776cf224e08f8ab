package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/pinboard-api/internal/dto"
	apierrors "github.com/yukikurage/pinboard-api/internal/errors"
	"github.com/yukikurage/pinboard-api/internal/metrics"
	"github.com/yukikurage/pinboard-api/internal/middleware"
	"github.com/yukikurage/pinboard-api/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService *services.AuthService
	recorder    metrics.Recorder
	log         *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *services.AuthService, recorder metrics.Recorder, log *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		recorder:    recorder,
		log:         log,
	}
}

// Register creates a local account and returns a token for it.
func (h *AuthHandler) Register(c *gin.Context) {
	type RegisterRequest struct {
		Name     string `json:"name" binding:"max=100"`
		Email    string `json:"email" binding:"required,email,max=255"`
		Password string `json:"password" binding:"required"`
	}

	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	result, err := h.authService.Register(c.Request.Context(), services.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.recordAuth("register", err)
		h.respondAuthError(c, err)
		return
	}

	h.recordAuth("register", nil)
	c.JSON(http.StatusCreated, dto.ToAuthResponse(result))
}

// Login authenticates a local account.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	result, err := h.authService.Login(c.Request.Context(), services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.recordAuth("password", err)
		h.respondAuthError(c, err)
		return
	}

	h.recordAuth("password", nil)
	c.JSON(http.StatusOK, dto.ToAuthResponse(result))
}

// GoogleLogin signs in with a Google ID token.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	if !h.authService.FederationEnabled() {
		apierrors.ServiceUnavailable(c, "Google sign-in is not configured")
		return
	}

	type GoogleLoginRequest struct {
		IDToken string `json:"id_token" binding:"required"`
	}

	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidBody(c, err)
		return
	}

	result, err := h.authService.FederatedLogin(c.Request.Context(), req.IDToken)
	if err != nil {
		h.recordAuth("google", err)
		h.respondAuthError(c, err)
		return
	}

	h.recordAuth("google", nil)
	c.JSON(http.StatusOK, dto.ToAuthResponse(result))
}

// GetCurrentUser returns the authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	user, err := h.authService.GetUser(c.Request.Context(), userID)
	if err != nil {
		// A valid token for a user that no longer exists is not a session.
		if errors.Is(err, services.ErrUserNotFound) {
			apierrors.Unauthorized(c, "")
			return
		}
		h.respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

func (h *AuthHandler) recordAuth(method string, err error) {
	outcome := metrics.AuthSuccess
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidAssertion),
		errors.Is(err, services.ErrEmailTaken),
		errors.Is(err, services.ErrPasswordTooLong):
		outcome = metrics.AuthRejected
	default:
		outcome = metrics.AuthError
	}
	h.recorder.RecordAuth(method, outcome)
}

func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmailTaken):
		apierrors.Conflict(c, "User already exists")
	case errors.Is(err, services.ErrInvalidCredentials):
		apierrors.InvalidCredentials(c)
	case errors.Is(err, services.ErrInvalidAssertion):
		apierrors.InvalidAssertion(c)
	case errors.Is(err, services.ErrPasswordTooLong):
		apierrors.BadRequest(c, "Password must be at most 72 bytes")
	case errors.Is(err, services.ErrFederationUnavailable):
		apierrors.ServiceUnavailable(c, "Google sign-in is not configured")
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.NotFound(c, "User not found")
	default:
		h.log.ErrorContext(c.Request.Context(), "auth request failed", "error", err)
		apierrors.InternalError(c, "")
	}
}
