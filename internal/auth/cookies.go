package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessCookieName  = "lm_access"
	RefreshCookieName = "lm_refresh"

	// refreshCookiePath keeps the refresh token off every request but the
	// auth endpoints.
	refreshCookiePath = "/v1/auth"
)

type CookieConfig struct {
	Domain string
	Secure bool
}

func SetAuthCookies(w http.ResponseWriter, cfg CookieConfig, accessToken, refreshToken string, accessTTL, refreshTTL time.Duration) {
	setCookie(w, cfg, AccessCookieName, accessToken, "/", int(accessTTL.Seconds()))
	setCookie(w, cfg, RefreshCookieName, refreshToken, refreshCookiePath, int(refreshTTL.Seconds()))
}

func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	setCookie(w, cfg, AccessCookieName, "", "/", -1)
	setCookie(w, cfg, RefreshCookieName, "", refreshCookiePath, -1)
}

func setCookie(w http.ResponseWriter, cfg CookieConfig, name, value, path string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   cfg.Domain,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// AccessToken returns the bearer token if one is sent, else the access cookie.
func AccessToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	if c, err := r.Cookie(AccessCookieName); err == nil {
		return c.Value
	}
	return ""
}
