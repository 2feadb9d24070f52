package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/vidhub/apiserver/config"
	"github.com/vidhub/apiserver/internal/auth"
	"github.com/vidhub/apiserver/internal/db"
	"github.com/vidhub/apiserver/internal/handlers"
	"github.com/vidhub/apiserver/internal/logging"
	"github.com/vidhub/apiserver/internal/mq"
	"github.com/vidhub/apiserver/internal/services"
	"github.com/vidhub/apiserver/internal/storage"
	"github.com/vidhub/apiserver/internal/store"
)

const defaultPort = 8000

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	backends   closers
}

// New connects the backends and constructs a Server. Backends opened before
// a failure are closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.Auth.AccessTokenSecret,
		AccessTTL:     cfg.Auth.AccessTokenExpiry,
		RefreshSecret: cfg.Auth.RefreshTokenSecret,
		RefreshTTL:    cfg.Auth.RefreshTokenExpiry,
	})
	if err != nil {
		return nil, err
	}

	var backends closers
	fail := func(err error) (*Server, error) {
		_ = backends.closeAll()
		return nil, err
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	backends.add(dbConn.Close)

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fail(fmt.Errorf("open storage: %w", err))
	}
	backends.add(objects.Close)

	broker, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		return fail(fmt.Errorf("open mq: %w", err))
	}

	svcCfg := services.UserServiceConfig{
		Repo:   store.NewUserRepository(dbConn),
		Hasher: auth.NewPasswordHasher(auth.DefaultPasswordCost),
		Tokens: tokens,
		Assets: storage.NewAssetHost(objects, cfg.Storage.PublicBaseURL),
	}
	if broker != nil {
		backends.add(broker.Close)
		svcCfg.Events = broker
		svcCfg.EventsChannel = cfg.MQ.EventsChannel
	}
	userService := services.NewUserService(svcCfg)

	router := NewRouter(cfg, logger, userService)

	port := cfg.ServerPort
	if port == 0 {
		port = defaultPort
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		backends:   backends,
	}, nil
}

// NewRouter builds the chi router with middleware and the user routes.
func NewRouter(cfg config.Config, logger *slog.Logger, userService *services.UserService) *chi.Mux {
	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		logging.HTTPMiddleware(logger),
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		handlers.CORS(cfg.CORSOrigin),
	)

	authHandler := handlers.NewAuthHandler(handlers.AuthHandlerConfig{
		Service:      userService,
		UploadDir:    cfg.UploadDir,
		CookieSecure: cfg.Auth.CookieSecure,
	})

	router.Get("/healthz", handlers.Healthz)
	router.Route("/api/v1/users", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	return router
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.httpServer.Shutdown(ctx), s.backends.closeAll())
}

// closers releases backends in reverse order of opening.
type closers []func() error

func (c *closers) add(fn func() error) {
	*c = append(*c, fn)
}

func (c closers) closeAll() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
