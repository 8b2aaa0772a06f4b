package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-accounts/app/entity"
	"github.com/vibast-solutions/ms-go-accounts/app/middleware"
	"github.com/vibast-solutions/ms-go-accounts/app/token"
	"github.com/vibast-solutions/ms-go-accounts/app/token/tokentest"

	"github.com/labstack/echo/v4"
)

type codecAuthenticator struct {
	codec *token.Codec
}

func (a codecAuthenticator) AuthenticateAccess(tokenString string) (uint64, error) {
	payload, err := a.codec.Verify(token.KindAccess, tokenString)
	if err != nil {
		return 0, err
	}
	return payload.AccountID, nil
}

func newMiddleware(t *testing.T) (*middleware.AuthMiddleware, *token.Codec) {
	t.Helper()

	codec := tokentest.NewCodec(t)
	return middleware.NewAuthMiddleware(codecAuthenticator{codec: codec}), codec
}

func serve(t *testing.T, m *middleware.AuthMiddleware, header string, next echo.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)

	if next == nil {
		next = func(c echo.Context) error {
			return c.NoContent(http.StatusOK)
		}
	}
	if err := m.RequireAuth(next)(ctx); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func TestRequireAuth_MissingHeader(t *testing.T) {
	authMiddleware, _ := newMiddleware(t)

	rec := serve(t, authMiddleware, "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_InvalidHeaderFormat(t *testing.T) {
	authMiddleware, _ := newMiddleware(t)

	for _, header := range []string{"Token abc", "Bearer", "Bearer a b"} {
		rec := serve(t, authMiddleware, header, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected status 401, got %d", header, rec.Code)
		}
	}
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	authMiddleware, _ := newMiddleware(t)

	rec := serve(t, authMiddleware, "Bearer invalid-token", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_RejectsRefreshToken(t *testing.T) {
	authMiddleware, codec := newMiddleware(t)

	refreshToken, err := codec.Issue(token.KindRefresh, &entity.Account{ID: 1, Version: 1}, time.Now())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	rec := serve(t, authMiddleware, "Bearer "+refreshToken, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestRequireAuth_SetsContextOnValidToken(t *testing.T) {
	authMiddleware, codec := newMiddleware(t)

	accessToken, err := codec.Issue(token.KindAccess, &entity.Account{ID: 1, Version: 1}, time.Now())
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	rec := serve(t, authMiddleware, "bearer "+accessToken, func(c echo.Context) error {
		accountID, ok := c.Get(middleware.AccountIDKey).(uint64)
		if !ok || accountID != 1 {
			t.Fatalf("expected account_id 1, got %v", c.Get(middleware.AccountIDKey))
		}
		return c.NoContent(http.StatusOK)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	if tok, ok := middleware.BearerToken("Bearer abc"); !ok || tok != "abc" {
		t.Fatalf("expected abc, got %q %v", tok, ok)
	}
	if _, ok := middleware.BearerToken("Basic abc"); ok {
		t.Fatalf("expected basic scheme to be rejected")
	}
}
