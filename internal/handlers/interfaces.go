package handlers

import (
	"context"
	"time"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/dashboard"
	"github.com/dimitrije/teamtasks-api/internal/oauth"
	"github.com/dimitrije/teamtasks-api/internal/sse"
)

// AccountsInterface defines the methods used by handlers from oauth.Accounts
type AccountsInterface interface {
	Register(ctx context.Context, info *oauth.UserInfo) (auth.Principal, error)
}

// TokenServiceInterface defines the methods used by handlers from auth.TokenService
type TokenServiceInterface interface {
	GenerateAccessToken(p auth.Principal) (string, error)
	AccessExpiry() time.Duration
	Revoke(claims *auth.Claims)
}

// BoardsInterface defines the methods used by handlers from dashboard.Registry
type BoardsInterface interface {
	Board(ctx context.Context, p auth.Principal) (dashboard.Board, error)
	SignOut(ctx context.Context, userID string) error
}

// HubInterface defines the methods used by handlers from the SSE hub
type HubInterface interface {
	Register(client *sse.Client)
	Unregister(client *sse.Client)
}
