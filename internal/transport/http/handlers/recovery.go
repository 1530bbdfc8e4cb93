package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mealmap/platform-auth/internal/core/domain"
	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/infra/security"
	"github.com/mealmap/platform-auth/internal/usecase"
)

// RecoveryHandler exposes the knowledge-based password recovery endpoints.
type RecoveryHandler struct {
	recovery *usecase.RecoveryService
	sessions *usecase.SessionService
	cookies  config.SessionSettings
}

// NewRecoveryHandler constructs RecoveryHandler.
func NewRecoveryHandler(recovery *usecase.RecoveryService, sessions *usecase.SessionService, cookies config.SessionSettings) *RecoveryHandler {
	return &RecoveryHandler{
		recovery: recovery,
		sessions: sessions,
		cookies:  cookies,
	}
}

// RegisterRoutes binds the recovery routes, applying optional middleware ahead of the start handler.
func (h *RecoveryHandler) RegisterRoutes(r *gin.RouterGroup, startMiddlewares ...gin.HandlerFunc) {
	r.GET("/recovery/questions", h.Questions)

	if len(startMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, startMiddlewares...)
		r.POST("/recovery/start", append(chain, h.Start)...)
	} else {
		r.POST("/recovery/start", h.Start)
	}

	r.POST("/recovery/complete", h.Complete)
}

// Questions godoc
// @Summary List supported recovery questions
// @Tags Recovery
// @Produce json
// @Success 200 {object} RecoveryQuestionsResponse
// @Router /api/v1/auth/recovery/questions [get]
func (h *RecoveryHandler) Questions(c *gin.Context) {
	questions := make([]string, len(domain.RecoveryQuestions))
	copy(questions, domain.RecoveryQuestions)

	c.JSON(http.StatusOK, RecoveryQuestionsResponse{Questions: questions})
}

// Start godoc
// @Summary Begin password recovery
// @Description Verifies the recovery question and answer and issues a short-lived reset grant. Unknown usernames produce the same response as a wrong answer.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body RecoveryStartRequest true "Recovery payload"
// @Success 200 {object} RecoveryStartResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/recovery/start [post]
func (h *RecoveryHandler) Start(c *gin.Context) {
	var req RecoveryStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid recovery payload"))
		return
	}

	grantID, err := h.recovery.Start(c.Request.Context(), usecase.RecoveryStartInput{
		Username: req.Username,
		Question: req.Question,
		Answer:   req.Answer,
		IP:       c.ClientIP(),
	})
	if err != nil {
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrUnknownQuestion, Status: http.StatusBadRequest, Message: "unknown recovery question"},
			{Err: usecase.ErrRecoveryMismatch, Status: http.StatusForbidden, Message: "recovery details do not match"},
		}, http.StatusInternalServerError, "failed to start recovery")
		return
	}

	c.JSON(http.StatusOK, RecoveryStartResponse{
		GrantID:   grantID,
		ExpiresAt: time.Now().UTC().Add(h.cookies.GrantTTL),
	})
}

// Complete godoc
// @Summary Complete password recovery
// @Description Redeems a reset grant, sets a new password, and establishes a fresh session. The grant is single use; a rejected password spends it.
// @Tags Recovery
// @Accept json
// @Produce json
// @Param request body RecoveryCompleteRequest true "Completion payload"
// @Success 200 {object} RecoveryCompleteResponse
// @Failure 400 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/recovery/complete [post]
func (h *RecoveryHandler) Complete(c *gin.Context) {
	var req RecoveryCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid completion payload"))
		return
	}

	account, err := h.recovery.Complete(c.Request.Context(), usecase.RecoveryCompleteInput{
		GrantID:     req.GrantID,
		NewPassword: req.NewPassword,
		Confirm:     req.ConfirmPassword,
	})
	if err != nil {
		var validation *security.PasswordValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, validation.Message))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrGrantExpired, Status: http.StatusGone, Message: "reset grant expired or already used"},
			{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "passwords do not match"},
			{Err: usecase.ErrPasswordReuse, Status: http.StatusUnprocessableEntity, Message: "password was used recently"},
		}, http.StatusInternalServerError, "failed to complete recovery")
		return
	}

	session, cookie, err := h.sessions.Establish(c.Request.Context(), account, false, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to establish session"))
		return
	}

	setSessionCookie(c, h.cookies, cookie, int(session.ExpiresAt.Sub(session.CreatedAt).Seconds()))

	c.JSON(http.StatusOK, RecoveryCompleteResponse{
		Account:   newAccountSummary(account),
		ExpiresAt: session.ExpiresAt,
	})
}
