package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const issuer = "teamtasks-api"

var ErrTokenRevoked = errors.New("token has been revoked")

// TokenService signs and validates access tokens. Tokens revoked at
// sign-out are remembered in process until they would have expired.
type TokenService struct {
	secret       []byte
	accessExpiry time.Duration

	mu      sync.Mutex
	revoked map[string]time.Time
}

type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Principal converts validated claims into the session principal.
func (c *Claims) Principal() Principal {
	return Principal{UID: c.UserID, DisplayName: c.Name, Email: c.Email}
}

func NewTokenService(secret string, accessExpiry time.Duration) *TokenService {
	return &TokenService{
		secret:       []byte(secret),
		accessExpiry: accessExpiry,
		revoked:      make(map[string]time.Time),
	}
}

func (s *TokenService) GenerateAccessToken(p Principal) (string, error) {
	now := time.Now()

	claims := Claims{
		UserID: p.UID,
		Name:   p.DisplayName,
		Email:  p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   p.UID,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

func (s *TokenService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer))

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token has no user id")
	}
	if s.isRevoked(claims.ID) {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Revoke rejects the token behind claims from now until it expires.
func (s *TokenService) Revoke(claims *Claims) {
	if claims == nil || claims.ID == "" {
		return
	}
	until := time.Now().Add(s.accessExpiry)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[claims.ID] = until
}

func (s *TokenService) isRevoked(id string) bool {
	if id == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[id]
	return ok
}

func (s *TokenService) AccessExpiry() time.Duration {
	return s.accessExpiry
}
