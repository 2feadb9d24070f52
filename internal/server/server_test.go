package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidhub/apiserver/config"
	"github.com/vidhub/apiserver/internal/auth"
	"github.com/vidhub/apiserver/internal/logging"
	"github.com/vidhub/apiserver/internal/services"
	"github.com/vidhub/apiserver/internal/store"
	"golang.org/x/crypto/bcrypt"
)

type noopAssets struct{}

func (noopAssets) Upload(ctx context.Context, prefix, localPath string) (string, error) {
	return "https://cdn.test/" + prefix + "/a.png", nil
}

func (noopAssets) Remove(ctx context.Context, assetURL string) error { return nil }

func newTestRouter(t *testing.T, logs io.Writer) http.Handler {
	t.Helper()
	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  "a",
		AccessTTL:     time.Minute,
		RefreshSecret: "r",
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)

	svc := services.NewUserService(services.UserServiceConfig{
		Repo:   store.NewMemoryUserRepository(),
		Hasher: auth.NewPasswordHasher(bcrypt.MinCost),
		Tokens: tokens,
		Assets: noopAssets{},
	})
	logger := logging.NewWithWriter(logging.Config{Service: "test", Format: "json"}, logs)
	return NewRouter(config.Config{UploadDir: t.TempDir()}, logger, svc)
}

func TestRouter_Healthz(t *testing.T) {
	var logs bytes.Buffer
	router := newTestRouter(t, &logs)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Contains(t, logs.String(), `"msg":"http_request"`)
	assert.Contains(t, logs.String(), `"path":"/healthz"`)
}

func TestRouter_ProtectedRouteRequiresToken(t *testing.T) {
	router := newTestRouter(t, io.Discard)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(context.Background(), config.Config{}, slog.Default())
	require.Error(t, err)
}

func TestClosers_ReverseOrderAndJoinedErrors(t *testing.T) {
	var (
		order []string
		c     closers
	)
	c.add(func() error { order = append(order, "db"); return nil })
	c.add(func() error { order = append(order, "storage"); return errors.New("storage close") })
	c.add(func() error { order = append(order, "mq"); return nil })

	err := c.closeAll()
	assert.Equal(t, []string{"mq", "storage", "db"}, order)
	assert.ErrorContains(t, err, "storage close")

	var empty closers
	assert.NoError(t, empty.closeAll())
}

func TestNew_UnreachableDatabase(t *testing.T) {
	cfg := config.Config{
		Database: config.DatabaseConfig{Host: "127.0.0.1", Port: 1, User: "u", DBName: "d"},
		Auth: config.AuthConfig{
			AccessTokenSecret:  "a",
			AccessTokenExpiry:  time.Minute,
			RefreshTokenSecret: "r",
			RefreshTokenExpiry: time.Hour,
		},
		Storage: config.StorageConfig{Backend: "minio"},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv, err := New(ctx, cfg, slog.Default())
	assert.Error(t, err)
	assert.Nil(t, srv)
}
