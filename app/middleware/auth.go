package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// AccountIDKey is where RequireAuth stores the authenticated account id.
const AccountIDKey = "account_id"

type accessTokenAuthenticator interface {
	AuthenticateAccess(tokenString string) (uint64, error)
}

type AuthMiddleware struct {
	sessions accessTokenAuthenticator
}

func NewAuthMiddleware(sessions accessTokenAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "missing authorization header",
			})
		}

		tokenString, ok := BearerToken(authHeader)
		if !ok {
			logrus.Debug("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid authorization header format",
			})
		}

		accountID, err := m.sessions.AuthenticateAccess(tokenString)
		if err != nil {
			logrus.Debug("Invalid or expired access token")
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"error": "invalid or expired token",
			})
		}

		c.Set(AccountIDKey, accountID)

		return next(c)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", false
	}
	return parts[1], true
}
