package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mealmap/platform-auth/internal/core/domain"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// AccountSummary describes the minimal account view returned by the API.
type AccountSummary struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"created_at"`
}

func newAccountSummary(account *domain.Account) AccountSummary {
	return AccountSummary{
		ID:        account.ID,
		Username:  account.Username,
		Role:      account.Role,
		CreatedAt: account.CreatedAt,
	}
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Remember bool   `json:"remember"`
}

// LoginResponse describes the response returned for a successful login.
type LoginResponse struct {
	Account   AccountSummary `json:"account"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// ProbeRequest defines the payload for the credential probe endpoint.
type ProbeRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ProbeResponse reports the probe outcome. RetryAfter carries the remaining
// lock time in seconds when the account is locked.
type ProbeResponse struct {
	Valid      bool `json:"valid"`
	Locked     bool `json:"locked"`
	RetryAfter int  `json:"retry_after,omitempty"`
}

// RegistrationStartRequest defines the first-stage registration payload. The
// remember preference is captured here and applied once registration completes.
type RegistrationStartRequest struct {
	Username        string `json:"username" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
	Role            string `json:"role"`
	Remember        bool   `json:"remember"`
}

// RegistrationStartResponse returns the grant the second stage redeems.
type RegistrationStartResponse struct {
	GrantID   string    `json:"grant_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RegistrationCompleteRequest defines the second-stage registration payload.
type RegistrationCompleteRequest struct {
	GrantID  string `json:"grant_id" binding:"required"`
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// RegistrationCompleteResponse is returned once the account exists and its
// first session is established.
type RegistrationCompleteResponse struct {
	Account   AccountSummary `json:"account"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// UsernameAvailabilityResponse reports whether a username can be registered.
type UsernameAvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

// RecoveryQuestionsResponse lists the supported recovery questions.
type RecoveryQuestionsResponse struct {
	Questions []string `json:"questions"`
}

// RecoveryStartRequest defines the first-stage recovery payload.
type RecoveryStartRequest struct {
	Username string `json:"username" binding:"required"`
	Question string `json:"question" binding:"required"`
	Answer   string `json:"answer" binding:"required"`
}

// RecoveryStartResponse returns the reset grant for the second stage.
type RecoveryStartResponse struct {
	GrantID   string    `json:"grant_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RecoveryCompleteRequest defines the second-stage recovery payload.
type RecoveryCompleteRequest struct {
	GrantID         string `json:"grant_id" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// RecoveryCompleteResponse is returned once the password is rotated and a
// fresh session is established.
type RecoveryCompleteResponse struct {
	Account   AccountSummary `json:"account"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// PasswordChangeRequest defines the self-service password change payload.
type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
	ConfirmPassword string `json:"confirm_password" binding:"required"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// ReadinessResponse describes the readiness payload with per-dependency status.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
