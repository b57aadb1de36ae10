package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ann = auth.Principal{UID: "github-1", DisplayName: "Ann", Email: "ann@example.com"}

func newTestTokenService() *auth.TokenService {
	return auth.NewTokenService("test-secret-key", 15*time.Minute)
}

func newProtectedApp(tokens *auth.TokenService) http.Handler {
	app := drift.New()
	app.Use(Auth(tokens))
	app.Get("/protected", func(c *drift.Context) {
		p, ok := GetPrincipal(c)
		if !ok {
			c.Unauthorized("no principal")
			return
		}
		_ = c.JSON(http.StatusOK, map[string]string{"uid": p.UID, "name": p.DisplayName, "id": GetUserID(c)})
	})
	return app
}

func serve(app http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)
	return rec
}

func TestAuth_RejectsBadHeaders(t *testing.T) {
	app := newProtectedApp(newTestTokenService())

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"missing", "", "missing authorization header"},
		{"wrong scheme", "Token some-token", "invalid authorization header format"},
		{"only bearer", "Bearer", "invalid authorization header format"},
		{"garbage token", "Bearer not-a-jwt", "invalid or expired token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(app, tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	expired := auth.NewTokenService("test-secret-key", -time.Minute)
	token, err := expired.GenerateAccessToken(ann)
	require.NoError(t, err)

	rec := serve(newProtectedApp(newTestTokenService()), "Bearer "+token)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_ValidToken(t *testing.T) {
	tokens := newTestTokenService()
	token, err := tokens.GenerateAccessToken(ann)
	require.NoError(t, err)

	rec := serve(newProtectedApp(tokens), "bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":"github-1","name":"Ann","id":"github-1"}`, rec.Body.String())
}

func TestAuth_RevokedToken(t *testing.T) {
	tokens := newTestTokenService()
	token, err := tokens.GenerateAccessToken(ann)
	require.NoError(t, err)

	var claims *auth.Claims
	app := drift.New()
	app.Use(Auth(tokens))
	app.Get("/protected", func(c *drift.Context) {
		claims, _ = GetClaims(c)
		_ = c.JSON(http.StatusOK, map[string]string{"uid": GetUserID(c)})
	})

	require.Equal(t, http.StatusOK, serve(app, "Bearer "+token).Code)
	require.NotNil(t, claims)
	assert.Equal(t, ann.UID, claims.UserID)

	tokens.Revoke(claims)

	assert.Equal(t, http.StatusUnauthorized, serve(app, "Bearer "+token).Code)
}
