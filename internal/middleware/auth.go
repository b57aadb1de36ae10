package middleware

import (
	"strings"

	"github.com/dimitrije/teamtasks-api/internal/auth"
	"github.com/m1z23r/drift/pkg/drift"
)

const (
	PrincipalKey = "principal"
	ClaimsKey    = "claims"
)

func Auth(tokens *auth.TokenService) drift.HandlerFunc {
	return func(c *drift.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Unauthorized("missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			c.Unauthorized("invalid authorization header format")
			return
		}

		claims, err := tokens.ValidateAccessToken(parts[1])
		if err != nil {
			c.Unauthorized("invalid or expired token")
			return
		}

		c.Set(PrincipalKey, claims.Principal())
		c.Set(ClaimsKey, claims)

		c.Next()
	}
}

func GetPrincipal(c *drift.Context) (auth.Principal, bool) {
	if v, ok := c.Get(PrincipalKey); ok {
		if p, ok := v.(auth.Principal); ok && p.UID != "" {
			return p, true
		}
	}
	return auth.Principal{}, false
}

func GetUserID(c *drift.Context) string {
	p, _ := GetPrincipal(c)
	return p.UID
}

func GetClaims(c *drift.Context) (*auth.Claims, bool) {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims, true
		}
	}
	return nil, false
}
