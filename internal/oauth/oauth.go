// Package oauth signs users in through third-party identity providers and
// records them as user documents.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/dimitrije/teamtasks-api/internal/store"
)

var ErrNoIdentity = errors.New("provider returned no user id")

type UserInfo struct {
	Email     string
	Name      string
	AvatarURL string
	ID        string
	Provider  string
}

// UID is the user document id for this identity.
func (u *UserInfo) UID() string {
	return u.Provider + "-" + u.ID
}

type Provider interface {
	GetConsentURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*UserInfo, error)
	Name() string
}

func GenerateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// Accounts writes signed-in identities to the users collection. Sign-up
// and sign-in are the same merge write, so the team field is never
// touched.
type Accounts struct {
	store store.Store
}

func NewAccounts(st store.Store) *Accounts {
	return &Accounts{store: st}
}

func (a *Accounts) Register(ctx context.Context, info *UserInfo) (auth.Principal, error) {
	if info.ID == "" {
		return auth.Principal{}, ErrNoIdentity
	}

	fields := map[string]any{
		"name":  info.Name,
		"email": info.Email,
	}
	if info.AvatarURL != "" {
		fields["photoURL"] = info.AvatarURL
	}

	uid := info.UID()
	if err := a.store.Set(ctx, store.Users, uid, fields); err != nil {
		return auth.Principal{}, fmt.Errorf("failed to record user: %w", err)
	}

	return auth.Principal{UID: uid, DisplayName: info.Name, Email: info.Email}, nil
}
