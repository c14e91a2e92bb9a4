package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"user-admin/internal/domain"
)

// DefaultTokenTTL is how long an issued access token stays valid.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrMissingSecret is returned when the token signing secret is not configured.
	ErrMissingSecret = errors.New("token signing secret is not configured")
	// ErrInvalidToken covers every verification failure: bad signature, expiry, malformed input.
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims are the identity facts carried by an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string      `json:"userId"`
	Username string      `json:"username"`
	Role     domain.Role `json:"roles"`
}

// TokenManager issues and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type TokenOption func(*TokenManager)

// WithClock overrides the time source used for issuing and verifying tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) { m.now = now }
}

func NewTokenManager(secret string, ttl time.Duration, opts ...TokenOption) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	m := &TokenManager{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Issue signs a token for the given identity and returns it with its claims.
func (m *TokenManager) Issue(userID, username string, role domain.Role) (string, Claims, error) {
	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
		UserID:   userID,
		Username: username,
		Role:     role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return token, claims, nil
}

// Verify checks signature and expiry. Callers only ever see ErrInvalidToken on failure.
func (m *TokenManager) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// TTL returns the lifetime given to newly issued tokens.
func (m *TokenManager) TTL() time.Duration { return m.ttl }
