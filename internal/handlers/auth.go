package handlers

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"sync"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/config"
	"github.com/dimitrije/teamtasks-api/internal/middleware"
	"github.com/dimitrije/teamtasks-api/internal/oauth"
	"github.com/dimitrije/teamtasks-api/pkg/dto"
	"github.com/m1z23r/drift/pkg/drift"
)

type AuthHandler struct {
	cfg       *config.Config
	providers map[string]oauth.Provider
	accounts  AccountsInterface
	tokens    TokenServiceInterface
	boards    BoardsInterface
	states    sync.Map
	authCodes sync.Map
}

type stateData struct {
	expiresAt time.Time
}

type authCodeData struct {
	principal auth.Principal
	expiresAt time.Time
}

func NewAuthHandler(
	cfg *config.Config,
	accounts AccountsInterface,
	tokens TokenServiceInterface,
	boards BoardsInterface,
) *AuthHandler {
	h := &AuthHandler{
		cfg:       cfg,
		providers: make(map[string]oauth.Provider),
		accounts:  accounts,
		tokens:    tokens,
		boards:    boards,
	}

	if cfg.GitHub.Enabled() {
		h.providers["github"] = oauth.NewGitHubProvider(cfg.GitHub)
	}
	if cfg.Google.Enabled() {
		h.providers["google"] = oauth.NewGoogleProvider(cfg.Google)
	}

	go h.cleanupStates()

	return h
}

func (h *AuthHandler) cleanupStates() {
	ticker := time.NewTicker(1 * time.Minute)
	for range ticker.C {
		now := time.Now()
		h.states.Range(func(key, value any) bool {
			if sd, ok := value.(stateData); ok && now.After(sd.expiresAt) {
				h.states.Delete(key)
			}
			return true
		})
		h.authCodes.Range(func(key, value any) bool {
			if acd, ok := value.(authCodeData); ok && now.After(acd.expiresAt) {
				h.authCodes.Delete(key)
			}
			return true
		})
	}
}

func (h *AuthHandler) GetConsentURL(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		c.BadRequest("unsupported provider: " + provider)
		return
	}

	state, err := oauth.GenerateState()
	if err != nil {
		c.InternalServerError("failed to generate state")
		return
	}

	h.states.Store(state, stateData{expiresAt: time.Now().Add(10 * time.Minute)})

	_ = c.JSON(200, dto.ConsentURLResponse{
		URL: p.GetConsentURL(state),
	})
}

// Callback completes sign-in or sign-up: the identity is merged into its
// user document and a one-time code is handed to the frontend, which
// trades it for an access token.
func (h *AuthHandler) Callback(c *drift.Context) {
	provider := c.Param("provider")

	p, ok := h.providers[provider]
	if !ok {
		h.redirectWithError(c, "unsupported provider")
		return
	}

	state := c.QueryParam("state")
	if state == "" {
		h.redirectWithError(c, "missing state parameter")
		return
	}

	sd, ok := h.states.LoadAndDelete(state)
	if !ok {
		h.redirectWithError(c, "invalid or expired state")
		return
	}

	if sdTyped, ok := sd.(stateData); !ok || time.Now().After(sdTyped.expiresAt) {
		h.redirectWithError(c, "state expired")
		return
	}

	code := c.QueryParam("code")
	if code == "" {
		h.redirectWithError(c, "missing authorization code")
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	userInfo, err := p.ExchangeCode(ctx, code)
	if err != nil {
		h.redirectWithError(c, "failed to exchange code: "+err.Error())
		return
	}

	principal, err := h.accounts.Register(ctx, userInfo)
	if err != nil {
		h.redirectWithError(c, "failed to record user")
		return
	}

	authCode, err := oauth.GenerateState()
	if err != nil {
		h.redirectWithError(c, "failed to generate auth code")
		return
	}

	h.authCodes.Store(authCode, authCodeData{
		principal: principal,
		expiresAt: time.Now().Add(30 * time.Second),
	})

	redirectURL := fmt.Sprintf("%s?code=%s",
		h.cfg.FrontendCallbackURL,
		url.QueryEscape(authCode),
	)

	h.renderCallbackPage(c, redirectURL, "")
}

func (h *AuthHandler) ExchangeCode(c *drift.Context) {
	var req dto.ExchangeCodeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	if req.Code == "" {
		c.BadRequest("code is required")
		return
	}

	acd, ok := h.authCodes.LoadAndDelete(req.Code)
	if !ok {
		c.Unauthorized("invalid or expired code")
		return
	}

	codeData, ok := acd.(authCodeData)
	if !ok || time.Now().After(codeData.expiresAt) {
		c.Unauthorized("code expired")
		return
	}

	token, err := h.tokens.GenerateAccessToken(codeData.principal)
	if err != nil {
		c.InternalServerError("failed to generate token")
		return
	}

	_ = c.JSON(200, dto.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(h.tokens.AccessExpiry().Seconds()),
	})
}

// Logout revokes the presented token, then drives the user's dashboard to
// the signed-out state and discards it. Open event streams receive the
// empty view.
func (h *AuthHandler) Logout(c *drift.Context) {
	userID := middleware.GetUserID(c)
	if userID == "" {
		c.Unauthorized("not authenticated")
		return
	}

	if claims, ok := middleware.GetClaims(c); ok {
		h.tokens.Revoke(claims)
	}

	if err := h.boards.SignOut(c.Request.Context(), userID); err != nil {
		c.InternalServerError("failed to sign out")
		return
	}

	_ = c.JSON(200, map[string]string{"message": "logged out"})
}

func (h *AuthHandler) redirectWithError(c *drift.Context, errMsg string) {
	redirectURL := fmt.Sprintf("%s?error=%s",
		h.cfg.FrontendCallbackURL,
		url.QueryEscape(errMsg),
	)
	h.renderCallbackPage(c, redirectURL, errMsg)
}

func (h *AuthHandler) renderCallbackPage(c *drift.Context, redirectURL, errMsg string) {
	title := "Signed in"
	message := "Taking you to your team board..."
	statusCode := 200
	if errMsg != "" {
		title = "Sign-in failed"
		message = errMsg
		statusCode = 400
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>%s</title>
    <style>
        body { font-family: system-ui, sans-serif; background: #f9fafb; color: #374151; padding: 40px 20px; }
        .container { max-width: 400px; margin: 0 auto; background: #fff; border: 1px solid #e5e7eb; border-radius: 8px; padding: 32px; text-align: center; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
    <script>window.location.href = %q;</script>
</body>
</html>`, title, title, html.EscapeString(message), redirectURL)

	_ = c.HTML(statusCode, page)
}
