package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vidhub/apiserver/types"
)

// ErrInvalidToken is returned for malformed, tampered or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// TokenConfig carries the independent secrets and lifetimes of both token kinds.
type TokenConfig struct {
	AccessSecret  string
	AccessTTL     time.Duration
	RefreshSecret string
	RefreshTTL    time.Duration
}

// AccessClaims is the claim set of an access token.
type AccessClaims struct {
	UserID   int    `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Fullname string `json:"fullname"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set of a refresh token. It carries only the id.
type RefreshClaims struct {
	UserID int `json:"_id"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	accessSecret  []byte
	accessTTL     time.Duration
	refreshSecret []byte
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" || strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, errors.New("token secrets are required")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}
	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		accessTTL:     cfg.AccessTTL,
		refreshSecret: []byte(cfg.RefreshSecret),
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}, nil
}

// IssueAccessToken signs {id, username, email, fullname} with the access secret.
func (t *TokenIssuer) IssueAccessToken(user types.User) (string, error) {
	now := t.now()
	claims := AccessClaims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Fullname: user.Fullname,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
		},
	}
	return sign(claims, t.accessSecret)
}

// IssueRefreshToken signs {id} with the refresh secret. Every token gets a
// fresh jti so consecutive tokens for the same user never collide.
func (t *TokenIssuer) IssueRefreshToken(user types.User) (string, error) {
	now := t.now()
	claims := RefreshClaims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.refreshTTL)),
		},
	}
	return sign(claims, t.refreshSecret)
}

// IssuePair mints an access and a refresh token for user.
func (t *TokenIssuer) IssuePair(user types.User) (types.TokenPair, error) {
	access, err := t.IssueAccessToken(user)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := t.IssueRefreshToken(user)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return types.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// VerifyAccessToken validates an access token and returns its claims.
func (t *TokenIssuer) VerifyAccessToken(tokenString string) (AccessClaims, error) {
	var claims AccessClaims
	if err := t.verify(tokenString, t.accessSecret, &claims); err != nil {
		return AccessClaims{}, err
	}
	if claims.UserID < 1 {
		return AccessClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefreshToken validates a refresh token and returns its claims.
func (t *TokenIssuer) VerifyRefreshToken(tokenString string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := t.verify(tokenString, t.refreshSecret, &claims); err != nil {
		return RefreshClaims{}, err
	}
	if claims.UserID < 1 {
		return RefreshClaims{}, ErrInvalidToken
	}
	return claims, nil
}

// verify checks signature, algorithm and expiry only. It never touches the store.
func (t *TokenIssuer) verify(tokenString string, secret []byte, claims jwt.Claims) error {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ErrInvalidToken
	}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

func sign(claims jwt.Claims, secret []byte) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
