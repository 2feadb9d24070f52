package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidhub/apiserver/types"
)

func newTestIssuer(t *testing.T) *TokenIssuer {
	t.Helper()
	issuer, err := NewTokenIssuer(TokenConfig{
		AccessSecret:  "access-secret",
		AccessTTL:     15 * time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    240 * time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

var alice = types.User{ID: 7, Username: "alice", Email: "a@x.com", Fullname: "Alice A"}

func TestNewTokenIssuer_RejectsBadConfig(t *testing.T) {
	_, err := NewTokenIssuer(TokenConfig{AccessTTL: time.Minute, RefreshTTL: time.Hour})
	assert.Error(t, err)

	_, err = NewTokenIssuer(TokenConfig{AccessSecret: "a", RefreshSecret: "r", AccessTTL: 0, RefreshTTL: time.Hour})
	assert.Error(t, err)
}

func TestAccessToken_RoundTrip(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.IssueAccessToken(alice)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, "Alice A", claims.Fullname)
	assert.Equal(t, "7", claims.Subject)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
}

func TestRefreshToken_CarriesOnlyID(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.IssueRefreshToken(alice)
	require.NoError(t, err)

	claims, err := issuer.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.NotEmpty(t, claims.ID)

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	require.NoError(t, err)
	mc := parsed.Claims.(jwt.MapClaims)
	assert.NotContains(t, mc, "username")
	assert.NotContains(t, mc, "email")
	assert.NotContains(t, mc, "fullname")
}

func TestRefreshToken_UniquePerIssue(t *testing.T) {
	issuer := newTestIssuer(t)

	a, err := issuer.IssueRefreshToken(alice)
	require.NoError(t, err)
	b, err := issuer.IssueRefreshToken(alice)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokens_SecretsAreIndependent(t *testing.T) {
	issuer := newTestIssuer(t)
	pair, err := issuer.IssuePair(alice)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(pair.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.VerifyRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Expired(t *testing.T) {
	issuer := newTestIssuer(t)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }

	token, err := issuer.IssueAccessToken(alice)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestVerify_Malformed(t *testing.T) {
	issuer := newTestIssuer(t)

	for _, bad := range []string{"", "   ", "abc", "a.b.c"} {
		_, err := issuer.VerifyAccessToken(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}
}

func TestVerify_Tampered(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.IssueAccessToken(alice)
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

	_, err = issuer.VerifyAccessToken(tampered)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	issuer := newTestIssuer(t)

	claims := AccessClaims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresExpiry(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := sign(AccessClaims{UserID: 7}, issuer.accessSecret)
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_RequiresUserID(t *testing.T) {
	issuer := newTestIssuer(t)

	token, err := issuer.IssueRefreshToken(types.User{})
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
