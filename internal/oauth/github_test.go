package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dimitrije/teamtasks-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func tokenServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"test-token","token_type":"Bearer"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testGitHubProvider(tokenURL, apiBase string) *GitHubProvider {
	return &GitHubProvider{
		config: &oauth2.Config{
			ClientID:     "test-client-id",
			ClientSecret: "test-secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:  tokenURL + "/authorize",
				TokenURL: tokenURL + "/token",
			},
		},
		apiBase: apiBase,
	}
}

func TestGitHubProvider_Name(t *testing.T) {
	provider := NewGitHubProvider(config.OAuthConfig{})
	assert.Equal(t, "github", provider.Name())
}

func TestGitHubProvider_GetConsentURL(t *testing.T) {
	provider := NewGitHubProvider(config.OAuthConfig{
		ClientID:    "test-client-id",
		RedirectURL: "http://localhost/callback",
	})

	url := provider.GetConsentURL("test-state")

	assert.Contains(t, url, "github.com")
	assert.Contains(t, url, "client_id=test-client-id")
	assert.Contains(t, url, "state=test-state")
}

func TestGitHubProvider_ExchangeCode(t *testing.T) {
	tokens := tokenServer(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": 12345,
			"login": "testuser",
			"name": "Test User",
			"email": "test@example.com",
			"avatar_url": "https://avatars.githubusercontent.com/u/12345"
		}`))
	}))
	defer api.Close()

	info, err := testGitHubProvider(tokens.URL, api.URL).ExchangeCode(context.Background(), "code")

	require.NoError(t, err)
	assert.Equal(t, "12345", info.ID)
	assert.Equal(t, "Test User", info.Name)
	assert.Equal(t, "test@example.com", info.Email)
	assert.Equal(t, "github-12345", info.UID())
}

func TestGitHubProvider_ExchangeCode_EmailAndNameFallback(t *testing.T) {
	tokens := tokenServer(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/user":
			_, _ = w.Write([]byte(`{"id": 7, "login": "testuser", "name": "", "email": ""}`))
		case "/user/emails":
			_, _ = w.Write([]byte(`[
				{"email": "secondary@example.com", "primary": false, "verified": true},
				{"email": "private@example.com", "primary": true, "verified": true}
			]`))
		}
	}))
	defer api.Close()

	info, err := testGitHubProvider(tokens.URL, api.URL).ExchangeCode(context.Background(), "code")

	require.NoError(t, err)
	assert.Equal(t, "private@example.com", info.Email)
	assert.Equal(t, "testuser", info.Name)
}

func TestGitHubProvider_ExchangeCode_APIError(t *testing.T) {
	tokens := tokenServer(t)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer api.Close()

	_, err := testGitHubProvider(tokens.URL, api.URL).ExchangeCode(context.Background(), "code")

	assert.ErrorContains(t, err, "github api returned status 401")
}
