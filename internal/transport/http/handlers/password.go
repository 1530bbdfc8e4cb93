package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealmap/platform-auth/internal/infra/security"
	"github.com/mealmap/platform-auth/internal/transport/http/middleware"
	"github.com/mealmap/platform-auth/internal/usecase"
)

// PasswordHandler exposes the authenticated password change endpoint.
type PasswordHandler struct {
	change *usecase.PasswordChangeService
}

// NewPasswordHandler constructs PasswordHandler.
func NewPasswordHandler(change *usecase.PasswordChangeService) *PasswordHandler {
	return &PasswordHandler{change: change}
}

// ChangePassword godoc
// @Summary Change the current password
// @Description Rotates the caller's password after the cooldown, current-password, and reuse checks pass.
// @Tags Password
// @Accept json
// @Produce json
// @Param request body PasswordChangeRequest true "Change payload"
// @Success 204 {string} string ""
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/password/change [post]
func (h *PasswordHandler) ChangePassword(c *gin.Context) {
	accountID, ok := middleware.GetAuthenticatedAccountID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req PasswordChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid change payload"))
		return
	}

	err := h.change.Change(c.Request.Context(), usecase.ChangeInput{
		AccountID:       accountID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		Confirm:         req.ConfirmPassword,
	})
	if err != nil {
		var cooldown *usecase.CooldownError
		if errors.As(err, &cooldown) {
			c.JSON(http.StatusTooManyRequests, NewErrorResponse(c,
				fmt.Sprintf("password changed too recently, retry in %d hour(s)", cooldown.RemainingHours())))
			return
		}
		var validation *security.PasswordValidationError
		if errors.As(err, &validation) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, validation.Message))
			return
		}
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrCurrentPasswordInvalid, Status: http.StatusUnauthorized, Message: "current password is incorrect"},
			{Err: usecase.ErrPasswordMismatch, Status: http.StatusBadRequest, Message: "passwords do not match"},
			{Err: usecase.ErrPasswordReuse, Status: http.StatusUnprocessableEntity, Message: "password was used recently"},
			{Err: usecase.ErrInvalidSession, Status: http.StatusUnauthorized, Message: "authentication required"},
		}, http.StatusInternalServerError, "failed to change password")
		return
	}

	c.Status(http.StatusNoContent)
}
