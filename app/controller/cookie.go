package controller

import (
	"net/http"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/config"

	"github.com/labstack/echo/v4"
)

// refreshCookie writes the refresh token as an HTTP-only cookie scoped to the
// auth routes.
type refreshCookie struct {
	ctx    echo.Context
	cfg    config.CookieConfig
	secure bool
}

func (c *refreshCookie) SetRefreshToken(token string, ttl time.Duration) {
	c.ctx.SetCookie(c.cookie(token, int(ttl.Seconds())))
}

func (c *refreshCookie) ClearRefreshToken() {
	c.ctx.SetCookie(c.cookie("", -1))
}

func (c *refreshCookie) read() string {
	cookie, err := c.ctx.Cookie(c.cfg.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (c *refreshCookie) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.cfg.Name,
		Value:    value,
		Path:     c.cfg.Path,
		Domain:   c.cfg.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
