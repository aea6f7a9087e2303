package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lumenmfb/backend/internal/auth"
	"github.com/lumenmfb/backend/internal/db"
	"github.com/lumenmfb/backend/internal/http/middleware"
)

type AuthService interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.AuthTokens, error)
	Refresh(ctx context.Context, refreshToken, userAgent, ipAddress string) (*auth.AuthTokens, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, userID string) (*db.User, error)
}

type AuthHandler struct {
	authService AuthService
	cookieCfg   auth.CookieConfig
	accessTTL   time.Duration
	refreshTTL  time.Duration
}

type loginRequest struct {
	IdentityToken string `json:"identity_token" binding:"required"`
	AccessCode    string `json:"access_code"`
}

func NewAuthHandler(authService AuthService, cookieCfg auth.CookieConfig, accessTTL, refreshTTL time.Duration) *AuthHandler {
	return &AuthHandler{authService: authService, cookieCfg: cookieCfg, accessTTL: accessTTL, refreshTTL: refreshTTL}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}

	tokens, err := h.authService.Login(c.Request.Context(), auth.LoginInput{
		IdentityToken: req.IdentityToken,
		AccessCode:    req.AccessCode,
		UserAgent:     c.GetHeader("User-Agent"),
		IPAddress:     auth.ClientIP(c.Request),
	})
	if err != nil {
		writeError(c, err)
		return
	}

	auth.SetAuthCookies(c.Writer, h.cookieCfg, tokens.AccessToken, tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	c.JSON(http.StatusOK, gin.H{
		"user":         tokens.User,
		"role":         tokens.Role,
		"access_token": tokens.AccessToken,
		"expires_in":   int(h.accessTTL.Seconds()),
	})
}

func (h *AuthHandler) Refresh(c *gin.Context) {
	cookie, err := c.Request.Cookie(auth.RefreshCookieName)
	if err != nil || cookie.Value == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_refresh_cookie"})
		return
	}

	tokens, err := h.authService.Refresh(c.Request.Context(), cookie.Value, c.GetHeader("User-Agent"), auth.ClientIP(c.Request))
	if err != nil {
		auth.ClearAuthCookies(c.Writer, h.cookieCfg)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh_failed"})
		return
	}

	auth.SetAuthCookies(c.Writer, h.cookieCfg, tokens.AccessToken, tokens.RefreshToken, h.accessTTL, h.refreshTTL)
	c.JSON(http.StatusOK, gin.H{"role": tokens.Role, "access_token": tokens.AccessToken, "expires_in": int(h.accessTTL.Seconds())})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	cookie, err := c.Request.Cookie(auth.RefreshCookieName)
	if err == nil && cookie.Value != "" {
		_ = h.authService.Logout(c.Request.Context(), cookie.Value)
	}
	auth.ClearAuthCookies(c.Writer, h.cookieCfg)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (h *AuthHandler) Me(c *gin.Context) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	user, err := h.authService.Me(c.Request.Context(), actor.UserID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user, "role": actor.Role, "is_staff": actor.IsStaff()})
}
