package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"user-admin/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestManager(t *testing.T, clock *fakeClock) *TokenManager {
	t.Helper()
	m, err := NewTokenManager("super-secret", DefaultTokenTTL, WithClock(clock.Now))
	require.NoError(t, err)
	return m
}

func TestNewTokenManager_MissingSecret(t *testing.T) {
	_, err := NewTokenManager("   ", time.Hour)
	require.ErrorIs(t, err, ErrMissingSecret)
}

func TestTokenManager_IssueAndVerify(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := newTestManager(t, clock)

	token, issued, err := m.Issue("u-1", "a@b.com", domain.RoleAdmin)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.Equal(t, clock.t.Add(24*time.Hour).Unix(), issued.ExpiresAt.Unix())

	claims, err := m.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
	require.Equal(t, "a@b.com", claims.Username)
	require.Equal(t, domain.RoleAdmin, claims.Role)
	require.Equal(t, clock.t.Unix(), claims.IssuedAt.Unix())
}

func TestTokenManager_Expiry(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: issuedAt}
	m := newTestManager(t, clock)

	token, _, err := m.Issue("u-1", "a@b.com", domain.RoleUser)
	require.NoError(t, err)

	clock.t = issuedAt.Add(time.Hour)
	_, err = m.Verify(token)
	require.NoError(t, err)

	clock.t = issuedAt.Add(25 * time.Hour)
	_, err = m.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_TamperedSignature(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	token, _, err := m.Issue("u-1", "a@b.com", domain.RoleUser)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	_, err = m.Verify(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)
	other, err := NewTokenManager("another-secret", time.Hour, WithClock(clock.Now))
	require.NoError(t, err)

	token, _, err := other.Issue("u-1", "a@b.com", domain.RoleUser)
	require.NoError(t, err)

	_, err = m.Verify(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_RejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	m := newTestManager(t, clock)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour))},
		UserID:           "u-1",
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = m.Verify(unsigned)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenManager_Malformed(t *testing.T) {
	m := newTestManager(t, &fakeClock{t: time.Now()})

	for _, raw := range []string{"", "not.a.jwt", "abc"} {
		_, err := m.Verify(raw)
		require.ErrorIs(t, err, ErrInvalidToken, raw)
	}
}
