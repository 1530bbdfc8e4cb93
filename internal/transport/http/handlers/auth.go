package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mealmap/platform-auth/internal/infra/config"
	"github.com/mealmap/platform-auth/internal/usecase"
)

// AuthHandler exposes the login, credential probe, and logout endpoints.
type AuthHandler struct {
	login    *usecase.LoginService
	sessions *usecase.SessionService
	cookies  config.SessionSettings
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(login *usecase.LoginService, sessions *usecase.SessionService, cookies config.SessionSettings) *AuthHandler {
	return &AuthHandler{
		login:    login,
		sessions: sessions,
		cookies:  cookies,
	}
}

// RegisterRoutes binds authentication routes, applying optional middleware ahead of the login handler.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, loginMiddlewares ...gin.HandlerFunc) {
	if len(loginMiddlewares) > 0 {
		chain := append([]gin.HandlerFunc{}, loginMiddlewares...)
		r.POST("/login", append(chain, h.Login)...)
		r.POST("/probe", append(append([]gin.HandlerFunc{}, loginMiddlewares...), h.Probe)...)
	} else {
		r.POST("/login", h.Login)
		r.POST("/probe", h.Probe)
	}

	r.POST("/logout", h.Logout)
}

// Login godoc
// @Summary Authenticate with username and password
// @Description Verifies credentials and establishes a cookie-backed session.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	account, err := h.login.Login(c.Request.Context(), usecase.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		Remember:  req.Remember,
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		// A locked username answers exactly like a wrong password so the
		// response does not reveal which usernames exist or are locked.
		RespondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid username or password"},
			{Err: usecase.ErrAccountLocked, Status: http.StatusUnauthorized, Message: "invalid username or password"},
			{Err: usecase.ErrOriginBlacklisted, Status: http.StatusTooManyRequests, Message: "too many failed attempts"},
		}, http.StatusInternalServerError, "login failed")
		return
	}

	session, cookie, err := h.sessions.Establish(c.Request.Context(), account, req.Remember, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to establish session"))
		return
	}

	setSessionCookie(c, h.cookies, cookie, int(session.ExpiresAt.Sub(session.CreatedAt).Seconds()))

	c.JSON(http.StatusOK, LoginResponse{
		Account:   newAccountSummary(account),
		ExpiresAt: session.ExpiresAt,
	})
}

// Probe godoc
// @Summary Probe credential and lock status
// @Description Verifies credentials against the account state and, when the account is locked, discloses the remaining lock time.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body ProbeRequest true "Probe payload"
// @Success 200 {object} ProbeResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ProbeResponse
// @Failure 423 {object} ProbeResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/probe [post]
func (h *AuthHandler) Probe(c *gin.Context) {
	var req ProbeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid probe payload"))
		return
	}

	_, err := h.login.Probe(c.Request.Context(), usecase.ProbeInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		var lockErr *usecase.LockoutError
		if errors.As(err, &lockErr) {
			c.JSON(http.StatusLocked, ProbeResponse{
				Locked:     true,
				RetryAfter: lockErr.RetryAfterSeconds(),
			})
			return
		}
		if errors.Is(err, usecase.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ProbeResponse{Valid: false})
			return
		}
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "probe failed"))
		return
	}

	c.JSON(http.StatusOK, ProbeResponse{Valid: true})
}

// Logout godoc
// @Summary Logout the current session
// @Description Revokes the caller's session and clears the session cookie.
// @Tags Authentication
// @Produce json
// @Success 204 {string} string ""
// @Failure 500 {object} ErrorResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	cookie, err := c.Cookie(h.cookies.CookieName)
	if err == nil && cookie != "" {
		if err := h.sessions.Revoke(c.Request.Context(), cookie); err != nil {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to revoke session"))
			return
		}
	}

	setSessionCookie(c, h.cookies, "", -1)
	c.Status(http.StatusNoContent)
}

func setSessionCookie(c *gin.Context, cookies config.SessionSettings, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cookies.CookieName, value, maxAge, "/", "", cookies.CookieSecure, true)
}
