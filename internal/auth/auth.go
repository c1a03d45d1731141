// Package auth verifies bearer tokens issued by the account frontend.
// Tokens carry the user's google id in the "id" claim; endpoints stay
// reachable without one, an invalid presented token is rejected.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/quantdesk/backtesting-backend/internal/logger"
)

// Claims are the token payload fields this service reads.
type Claims struct {
	ID   string `json:"id"`   // google id
	Name string `json:"name"` // username
	jwt.RegisteredClaims
}

type contextKey struct{}

var claimsKey contextKey

// FromContext returns the verified claims of the request, if any.
func FromContext(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*Claims)
	return c, ok
}

// GoogleID returns the caller's google id or "" for anonymous requests.
func GoogleID(ctx context.Context) string {
	if c, ok := FromContext(ctx); ok {
		return c.ID
	}
	return ""
}

type Verifier struct {
	secret []byte
	logger logger.Logger
}

// NewVerifier returns nil when secret is empty, which disables token
// verification entirely.
func NewVerifier(secret string, logger logger.Logger) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{
		secret: []byte(secret),
		logger: logger,
	}
}

// Verify parses and validates an HS256 token, requiring an expiry claim.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Middleware attaches verified claims to the request context. Requests
// without an Authorization header pass through anonymous; a presented but
// invalid token answers 401.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if v == nil {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			http.Error(w, "invalid authorization header", http.StatusUnauthorized)
			return
		}

		claims, err := v.Verify(parts[1])
		if err != nil {
			v.logger.Warnf("%s: token rejected", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
