// Package auth provides authentication and token handling.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kaira-dev/kaira/internal/models"
)

// Token verification errors. Expiry is distinguished from every other
// failure so callers can tell the client to refresh rather than
// re-authenticate.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims represents the JWT claims carried by both token classes.
type Claims struct {
	jwt.RegisteredClaims
	UserID string      `json:"uid"`
	Role   models.Role `json:"role"`
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService issues and verifies access and refresh tokens. The two
// classes are signed with distinct secrets, so possession of one type
// never grants forgeability of the other. Tokens are stateless: logout
// does not revoke them, they stay valid until natural expiry.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	issuer        string
}

// NewTokenService creates a token service with the given signing
// secrets and validity windows.
func NewTokenService(accessSecret, refreshSecret []byte, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		accessSecret:  accessSecret,
		refreshSecret: refreshSecret,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		issuer:        "kaira",
	}
}

// IssueTokenPair mints an access token and a refresh token for the user.
func (s *TokenService) IssueTokenPair(user *models.User) (*TokenPair, error) {
	access, err := s.sign(user.ID, user.Role, s.accessSecret, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.sign(user.ID, user.Role, s.refreshSecret, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccess validates an access token. Returns ErrTokenExpired if
// the token is past its window, ErrTokenInvalid for any other failure.
func (s *TokenService) VerifyAccess(tokenString string) (*Claims, error) {
	return s.verify(tokenString, s.accessSecret)
}

// Refresh validates a refresh token against its own signing domain and
// mints a new access token preserving the user id and role. Any refresh
// failure, including expiry, is ErrTokenInvalid.
func (s *TokenService) Refresh(refreshToken string) (string, error) {
	claims, err := s.verify(refreshToken, s.refreshSecret)
	if err != nil {
		return "", ErrTokenInvalid
	}
	access, err := s.sign(claims.UserID, claims.Role, s.accessSecret, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return access, nil
}

// AccessTTL returns the access token time-to-live.
func (s *TokenService) AccessTTL() time.Duration {
	return s.accessTTL
}

// AccessTTLSeconds returns the access token TTL in seconds.
func (s *TokenService) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}

func (s *TokenService) sign(userID string, role models.Role, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID: userID,
		Role:   role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

func (s *TokenService) verify(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Issuer != s.issuer {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
