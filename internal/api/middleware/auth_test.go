package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kaira-dev/kaira/internal/api/auth"
	"github.com/kaira-dev/kaira/internal/models"
)

func newTokenService(accessTTL time.Duration) *auth.TokenService {
	return auth.NewTokenService(
		[]byte("access-secret-32-bytes-long!!!!!"),
		[]byte("refresh-secret-32-bytes-long!!!!"),
		accessTTL, 7*24*time.Hour,
	)
}

func okHandler(t *testing.T, wantUserID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := GetUserID(r.Context()); got != wantUserID {
			t.Errorf("GetUserID = %q, want %q", got, wantUserID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestJWTAuth_ValidToken(t *testing.T) {
	tokens := newTokenService(time.Hour)
	pair, err := tokens.IssueTokenPair(&models.User{ID: "user-123", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := JWTAuth(tokens)(okHandler(t, "user-123"))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestJWTAuth_MissingTokenIsAccessDenied(t *testing.T) {
	tokens := newTokenService(time.Hour)
	handler := JWTAuth(tokens)(okHandler(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// No token at all is 403, distinct from a bad token's 401
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	tokens := newTokenService(-time.Minute)
	pair, err := tokens.IssueTokenPair(&models.User{ID: "user-123", Role: models.RoleUser})
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}

	handler := JWTAuth(tokens)(okHandler(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/projects", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "TOKEN_EXPIRED") {
		t.Errorf("body should carry TOKEN_EXPIRED code, got %s", body)
	}
}

func TestJWTAuth_BadTokens(t *testing.T) {
	tokens := newTokenService(time.Hour)
	pair, _ := tokens.IssueTokenPair(&models.User{ID: "user-123", Role: models.RoleUser})

	tests := []struct {
		name   string
		header string
	}{
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong scheme", "Basic " + pair.AccessToken},
		{"refresh token in access slot", "Bearer " + pair.RefreshToken},
	}

	handler := JWTAuth(tokens)(okHandler(t, ""))

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/projects", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(models.RoleAdmin)(next)

	tests := []struct {
		name string
		role models.Role
		want int
	}{
		{"admin", models.RoleAdmin, http.StatusOK},
		{"user", models.RoleUser, http.StatusForbidden},
		{"none", "", http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.role != "" {
				req = req.WithContext(WithUser(req.Context(), "user-1", tc.role))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}
}
