package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/kaira-dev/kaira/internal/api/auth"
	"github.com/kaira-dev/kaira/internal/models"
)

// Context keys for storing user information.
type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
	claimsKey contextKey = "claims"
)

func jsonAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

// jsonForbidden writes a forbidden error response.
func jsonForbidden(w http.ResponseWriter) {
	jsonAuthError(w, http.StatusForbidden, "ACCESS_DENIED", "access denied")
}

// JWTAuth returns middleware that validates access tokens.
//
// A missing Authorization header is reported as ACCESS_DENIED (403),
// while a present-but-bad token is UNAUTHORIZED or TOKEN_EXPIRED (401),
// so clients can tell "log in" apart from "refresh".
func JWTAuth(tokens *auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				jsonAuthError(w, http.StatusForbidden, "ACCESS_DENIED", "access denied, no token provided")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				jsonAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authorization header format must be Bearer {token}")
				return
			}

			claims, err := tokens.VerifyAccess(parts[1])
			if err != nil {
				log.Printf("auth failed for %s: %v", r.RemoteAddr, err)
				if errors.Is(err, auth.ErrTokenExpired) {
					jsonAuthError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token expired, use the refresh token to get a new access token")
					return
				}
				jsonAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, userIDKey, claims.UserID)
			ctx = context.WithValue(ctx, roleKey, claims.Role)
			ctx = context.WithValue(ctx, claimsKey, claims)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the user ID from context.
func GetUserID(ctx context.Context) string {
	if v := ctx.Value(userIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetRole returns the user role from context.
func GetRole(ctx context.Context) models.Role {
	if v := ctx.Value(roleKey); v != nil {
		if r, ok := v.(models.Role); ok {
			return r
		}
	}
	return ""
}

// GetClaims returns the JWT claims from context.
func GetClaims(ctx context.Context) *auth.Claims {
	if v := ctx.Value(claimsKey); v != nil {
		if c, ok := v.(*auth.Claims); ok {
			return c
		}
	}
	return nil
}

// WithUser returns a context carrying the given user identity. Intended
// for tests.
func WithUser(ctx context.Context, userID string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// RequireRole returns middleware that requires one of the given roles.
// Admin always passes.
func RequireRole(allowedRoles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetRole(r.Context())
			if userRole == "" {
				jsonForbidden(w)
				return
			}

			if userRole == models.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}

			for _, role := range allowedRoles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			jsonForbidden(w)
		})
	}
}
