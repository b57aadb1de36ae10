package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/config"
	"github.com/dimitrije/teamtasks-api/internal/middleware"
	"github.com/dimitrije/teamtasks-api/internal/oauth"
	"github.com/dimitrije/teamtasks-api/internal/testutil"
	"github.com/dimitrije/teamtasks-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
	driftmw "github.com/m1z23r/drift/pkg/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var ann = auth.Principal{UID: "github-1", DisplayName: "Ann", Email: "ann@example.com"}

func setupAuthTest(t *testing.T) (*testutil.MockAccounts, *testutil.MockTokenService, *testutil.MockBoards, *AuthHandler) {
	t.Helper()
	mockAccounts := new(testutil.MockAccounts)
	mockTokens := new(testutil.MockTokenService)
	mockBoards := new(testutil.MockBoards)

	cfg := &config.Config{
		FrontendCallbackURL: "http://localhost:3000/auth/callback",
	}

	handler := &AuthHandler{
		cfg:       cfg,
		providers: make(map[string]oauth.Provider),
		accounts:  mockAccounts,
		tokens:    mockTokens,
		boards:    mockBoards,
	}

	return mockAccounts, mockTokens, mockBoards, handler
}

func postExchange(handler *AuthHandler, code string) *httptest.ResponseRecorder {
	app := drift.New()
	app.Use(driftmw.BodyParser())
	app.Post("/auth/exchange", handler.ExchangeCode)

	jsonBody, _ := json.Marshal(dto.ExchangeCodeRequest{Code: code})
	req := httptest.NewRequest(http.MethodPost, "/auth/exchange", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)
	return rec
}

func getCallback(handler *AuthHandler, path string) *httptest.ResponseRecorder {
	app := drift.New()
	app.Get("/auth/:provider/callback", handler.Callback)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()

	app.ServeHTTP(rec, req)
	return rec
}

func TestAuthHandler_ExchangeCode_Success(t *testing.T) {
	_, mockTokens, _, handler := setupAuthTest(t)

	authCode := "test-auth-code"
	handler.authCodes.Store(authCode, authCodeData{
		principal: ann,
		expiresAt: time.Now().Add(30 * time.Second),
	})

	mockTokens.On("GenerateAccessToken", ann).Return("access-token-123", nil)
	mockTokens.On("AccessExpiry").Return(time.Hour)

	rec := postExchange(handler, authCode)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, "access-token-123", response.AccessToken)
	assert.Equal(t, int64(3600), response.ExpiresIn)

	// codes are single use
	rec = postExchange(handler, authCode)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	mockTokens.AssertExpectations(t)
}

func TestAuthHandler_ExchangeCode_InvalidCode(t *testing.T) {
	_, _, _, handler := setupAuthTest(t)

	rec := postExchange(handler, "invalid-code")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid or expired code")
}

func TestAuthHandler_ExchangeCode_ExpiredCode(t *testing.T) {
	_, _, _, handler := setupAuthTest(t)

	authCode := "expired-auth-code"
	handler.authCodes.Store(authCode, authCodeData{
		principal: ann,
		expiresAt: time.Now().Add(-1 * time.Second),
	})

	rec := postExchange(handler, authCode)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "code expired")
}

func TestAuthHandler_ExchangeCode_MissingCode(t *testing.T) {
	_, _, _, handler := setupAuthTest(t)

	rec := postExchange(handler, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "code is required")
}

func TestAuthHandler_ExchangeCode_TokenError(t *testing.T) {
	_, mockTokens, _, handler := setupAuthTest(t)

	handler.authCodes.Store("code", authCodeData{principal: ann, expiresAt: time.Now().Add(time.Minute)})
	mockTokens.On("GenerateAccessToken", ann).Return("", errors.New("signing failed"))

	rec := postExchange(handler, "code")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func setupLogoutTest(t *testing.T) (*testutil.MockBoards, *testutil.HTTPTestClient) {
	t.Helper()
	_, _, mockBoards, handler := setupAuthTest(t)
	tokens := testutil.TestTokenService()
	handler.tokens = tokens

	app := drift.New()
	app.Use(middleware.Auth(tokens))
	app.Post("/auth/logout", handler.Logout)

	return mockBoards, testutil.NewHTTPTestClient(t, app)
}

func TestAuthHandler_Logout_SignsOutDashboard(t *testing.T) {
	mockBoards, client := setupLogoutTest(t)
	mockBoards.On("SignOut", mock.Anything, ann.UID).Return(nil)

	headers := map[string]string{
		"Authorization": testutil.AuthHeader(testutil.GenerateTestToken(t, ann)),
	}
	rec := client.POST("/auth/logout", nil, headers)

	testutil.AssertStatus(t, rec, http.StatusOK)
	mockBoards.AssertExpectations(t)
}

func TestAuthHandler_Logout_RevokesToken(t *testing.T) {
	mockBoards, client := setupLogoutTest(t)
	mockBoards.On("SignOut", mock.Anything, ann.UID).Return(nil)

	headers := map[string]string{
		"Authorization": testutil.AuthHeader(testutil.GenerateTestToken(t, ann)),
	}
	testutil.AssertStatus(t, client.POST("/auth/logout", nil, headers), http.StatusOK)

	// the signed-out token can no longer reach any protected route
	rec := client.POST("/auth/logout", nil, headers)
	testutil.AssertStatus(t, rec, http.StatusUnauthorized)
	mockBoards.AssertNumberOfCalls(t, "SignOut", 1)
}

func TestAuthHandler_Logout_SignOutFails(t *testing.T) {
	mockBoards, client := setupLogoutTest(t)
	mockBoards.On("SignOut", mock.Anything, ann.UID).Return(errors.New("boom"))

	rec := client.POST("/auth/logout", nil, map[string]string{
		"Authorization": testutil.AuthHeader(testutil.GenerateTestToken(t, ann)),
	})

	testutil.AssertStatus(t, rec, http.StatusInternalServerError)
}

func TestAuthHandler_Logout_NotAuthenticated(t *testing.T) {
	_, _, _, handler := setupAuthTest(t)

	app := drift.New()
	app.Post("/auth/logout", handler.Logout)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_GetConsentURL_UnsupportedProvider(t *testing.T) {
	_, _, _, handler := setupAuthTest(t)

	app := drift.New()
	app.Get("/auth/:provider/consent", handler.GetConsentURL)

	req := httptest.NewRequest(http.MethodGet, "/auth/unsupported/consent", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported provider")
}

func TestAuthHandler_GetConsentURL_Success(t *testing.T) {
	_, _, _, handler := setupAuthTest(t)

	mockProvider := new(testutil.MockOAuthProvider)
	handler.providers["github"] = mockProvider
	mockProvider.On("GetConsentURL", mock.AnythingOfType("string")).Return("https://github.com/login/oauth/authorize?state=abc")

	app := drift.New()
	app.Get("/auth/:provider/consent", handler.GetConsentURL)

	req := httptest.NewRequest(http.MethodGet, "/auth/github/consent", nil)
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var response dto.ConsentURLResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response.URL, "github.com")

	state := mockProvider.Calls[0].Arguments.String(0)
	_, ok := handler.states.Load(state)
	assert.True(t, ok, "state should be remembered for the callback")

	mockProvider.AssertExpectations(t)
}

// Callback tests

func TestAuthHandler_Callback_Errors(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		state   *stateData
		wantErr string
	}{
		{"unsupported provider", "/auth/unsupported/callback?code=abc&state=xyz", nil, "error=unsupported+provider"},
		{"missing state", "/auth/github/callback?code=abc", nil, "error=missing+state+parameter"},
		{"unknown state", "/auth/github/callback?code=abc&state=invalid-state", nil, "error=invalid+or+expired+state"},
		{"expired state", "/auth/github/callback?code=abc&state=s1", &stateData{expiresAt: time.Now().Add(-time.Minute)}, "error=state+expired"},
		{"missing code", "/auth/github/callback?state=s1", &stateData{expiresAt: time.Now().Add(time.Minute)}, "error=missing+authorization+code"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, handler := setupAuthTest(t)
			handler.providers["github"] = new(testutil.MockOAuthProvider)
			if tt.state != nil {
				handler.states.Store("s1", *tt.state)
			}

			rec := getCallback(handler, tt.path)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "http://localhost:3000/auth/callback?"+tt.wantErr)
		})
	}
}

func TestAuthHandler_Callback_ExchangeCodeError(t *testing.T) {
	_, _, _, handler := setupAuthTest(t)

	mockProvider := new(testutil.MockOAuthProvider)
	handler.providers["github"] = mockProvider
	handler.states.Store("s1", stateData{expiresAt: time.Now().Add(time.Minute)})
	mockProvider.On("ExchangeCode", mock.Anything, "bad-code").Return(nil, errors.New("bad verification code"))

	rec := getCallback(handler, "/auth/github/callback?code=bad-code&state=s1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "failed to exchange code")
	mockProvider.AssertExpectations(t)
}

func TestAuthHandler_Callback_RegisterError(t *testing.T) {
	mockAccounts, _, _, handler := setupAuthTest(t)

	info := &oauth.UserInfo{ID: "1", Provider: "github", Name: "Ann", Email: "ann@example.com"}
	mockProvider := new(testutil.MockOAuthProvider)
	handler.providers["github"] = mockProvider
	handler.states.Store("s1", stateData{expiresAt: time.Now().Add(time.Minute)})
	mockProvider.On("ExchangeCode", mock.Anything, "code").Return(info, nil)
	mockAccounts.On("Register", mock.Anything, info).Return(auth.Principal{}, errors.New("write failed"))

	rec := getCallback(handler, "/auth/github/callback?code=code&state=s1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error=failed+to+record+user")
}

func TestAuthHandler_Callback_Success(t *testing.T) {
	mockAccounts, mockTokens, _, handler := setupAuthTest(t)

	info := &oauth.UserInfo{ID: "1", Provider: "github", Name: "Ann", Email: "ann@example.com"}
	mockProvider := new(testutil.MockOAuthProvider)
	handler.providers["github"] = mockProvider
	handler.states.Store("s1", stateData{expiresAt: time.Now().Add(time.Minute)})
	mockProvider.On("ExchangeCode", mock.Anything, "code").Return(info, nil)
	mockAccounts.On("Register", mock.Anything, info).Return(ann, nil)

	rec := getCallback(handler, "/auth/github/callback?code=code&state=s1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http://localhost:3000/auth/callback?code=")

	// the issued one-time code carries the registered principal
	var issued string
	handler.authCodes.Range(func(key, value any) bool {
		issued = key.(string)
		return false
	})
	require.NotEmpty(t, issued)

	mockTokens.On("GenerateAccessToken", ann).Return("jwt", nil)
	mockTokens.On("AccessExpiry").Return(15 * time.Minute)

	exchange := postExchange(handler, issued)
	assert.Equal(t, http.StatusOK, exchange.Code)

	_, ok := handler.states.Load("s1")
	assert.False(t, ok, "state is consumed by the callback")

	mockAccounts.AssertExpectations(t)
	mockProvider.AssertExpectations(t)
}
