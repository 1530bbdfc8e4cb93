package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/infra/security"
	"github.com/mealmap/platform-auth/internal/usecase"
)

// RegistrationHandler exposes the two-stage registration endpoints.
type RegistrationHandler struct {
	registration *usecase.RegistrationService
	sessions     *usecase.SessionService
	cookies      config.SessionSettings
}

// NewRegistrationHandler constructs RegistrationHandler.
func NewRegistrationHandler(registration *usecase.RegistrationService, sessions *usecase.SessionService, cookies config.SessionSettings) *RegistrationHandler {
	return &RegistrationHandler{
		registration: registration,
		sessions:     sessions,
		cookies:      cookies,
	}
}

// RegisterRoutes binds the registration routes.
func (h *RegistrationHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register", h.Start)
	r.POST("/register/complete", h.Complete)
	r.GET("/username-available", h.UsernameAvailable)
}

// Start godoc
// @Summary Begin account registration
// @Description Validates credentials and issues a short-lived grant the completion stage redeems.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RegistrationStartRequest true "Registration payload"
// @Success 202 {object} RegistrationStartResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register [post]
func (h *RegistrationHandler) Start(c *gin.Context) {
	var req RegistrationStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	grantID, err := h.registration.Start(c.Request.Context(), usecase.StartInput{
		Username: req.Username,
		Password: req.Password,
		Confirm:  req.ConfirmPassword,
		Role:     domain.Role(strings.TrimSpace(req.Role)),
		Remember: req.Remember,
	})
	if err != nil {
		var validation *security.PasswordValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, validation.Message))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "passwords do not match"},
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
		}, http.StatusInternalServerError, "failed to start registration")
		return
	}

	c.JSON(http.StatusAccepted, RegistrationStartResponse{
		GrantID:   grantID,
		ExpiresAt: time.Now().UTC().Add(h.cookies.GrantTTL),
	})
}

// Complete godoc
// @Summary Complete account registration
// @Description Redeems a registration grant with a recovery question and answer and creates the account.
// @Tags Registration
// @Accept json
// @Produce json
// @Param request body RegistrationCompleteRequest true "Completion payload"
// @Success 201 {object} RegistrationCompleteResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/register/complete [post]
func (h *RegistrationHandler) Complete(c *gin.Context) {
	var req RegistrationCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid completion payload"))
		return
	}

	account, remember, err := h.registration.Complete(c.Request.Context(), usecase.CompleteInput{
		GrantID:  req.GrantID,
		Question: req.Question,
		Answer:   req.Answer,
	})
	if err != nil {
		var validation *security.PasswordValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, validation.Message))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrGrantExpired, Status: http.StatusGone, Message: "registration grant expired"},
			{Err: usecase.ErrUnknownQuestion, Status: http.StatusBadRequest, Message: "unknown recovery question"},
			{Err: usecase.ErrUsernameTaken, Status: http.StatusConflict, Message: "username already taken"},
		}, http.StatusInternalServerError, "failed to complete registration")
		return
	}

	session, cookie, err := h.sessions.Establish(c.Request.Context(), account, remember, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to establish session"))
		return
	}

	setSessionCookie(c, h.cookies, cookie, int(session.ExpiresAt.Sub(session.CreatedAt).Seconds()))

	c.JSON(http.StatusCreated, RegistrationCompleteResponse{
		Account:   newAccountSummary(account),
		ExpiresAt: session.ExpiresAt,
	})
}

// UsernameAvailable godoc
// @Summary Check username availability
// @Description Reports whether the given username can still be registered. The answer is advisory.
// @Tags Registration
// @Produce json
// @Param username query string true "Username to check"
// @Success 200 {object} UsernameAvailabilityResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/username-available [get]
func (h *RegistrationHandler) UsernameAvailable(c *gin.Context) {
	username := c.Query("username")
	if strings.TrimSpace(username) == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "username is required"))
		return
	}

	available, err := h.registration.UsernameAvailable(c.Request.Context(), username)
	if err != nil {
		var validation *security.PasswordValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, validation.Message))
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to check username"))
		return
	}

	c.JSON(http.StatusOK, UsernameAvailabilityResponse{
		Username:  strings.TrimSpace(username),
		Available: available,
	})
}
