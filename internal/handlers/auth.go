package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/vidhub/apiserver/internal/services"
	"github.com/vidhub/apiserver/types"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"
)

type contextKey string

const contextUserKey contextKey = "user"

// UserFromContext returns the identity attached by RequireAuth.
func UserFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	if !ok || user.ID < 1 {
		return types.User{}, false
	}
	return user, true
}

// AuthHandlerConfig wires an AuthHandler.
type AuthHandlerConfig struct {
	Service      *services.UserService
	UploadDir    string
	CookieSecure bool
}

// AuthHandler provides the account and session endpoints.
type AuthHandler struct {
	service      *services.UserService
	uploadDir    string
	cookieSecure bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(cfg AuthHandlerConfig) *AuthHandler {
	uploadDir := strings.TrimSpace(cfg.UploadDir)
	if uploadDir == "" {
		uploadDir = defaultUploadDir
	}
	return &AuthHandler{
		service:      cfg.Service,
		uploadDir:    uploadDir,
		cookieSecure: cfg.CookieSecure,
	}
}

// AuthRouter registers user routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.Post("/refresh-token", handler.RefreshToken)

	r.Group(func(r chi.Router) {
		r.Use(handler.RequireAuth)
		r.Post("/logout", handler.Logout)
		r.Get("/current-user", handler.CurrentUser)
		r.Post("/change-password", handler.ChangePassword)
	})
}

// RequireAuth resolves the access token from the accessToken cookie or the
// Authorization header and injects the user into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return RequireAuth(h.service)(next)
}

// RequireAuth constructs auth middleware for other routers.
func RequireAuth(service *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := accessTokenFromRequest(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized request")
				return
			}

			user, err := service.Authorize(r.Context(), token)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates an account from a multipart form or a JSON body.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	in, cleanup, err := h.parseRegisterRequest(w, r)
	defer cleanup()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeData(w, http.StatusCreated, user, "user registered successfully")
}

// Login verifies credentials, sets both token cookies and returns the tokens.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	res, err := h.service.Login(r.Context(), services.LoginInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setTokenCookies(w, res.Tokens)
	writeData(w, http.StatusOK, LoginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "user logged in successfully")
}

// Logout invalidates the stored refresh token and clears both cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	if err := h.service.Logout(r.Context(), user); err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.clearTokenCookies(w)
	writeData(w, http.StatusOK, struct{}{}, "user logged out")
}

// RefreshToken rotates the session. The token is read from the refreshToken
// cookie, falling back to the JSON body.
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, refreshTokenCookie)
	if token == "" {
		var req RefreshRequest
		if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		token = req.RefreshToken
	}

	tokens, err := h.service.RefreshAccessToken(r.Context(), token)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	h.setTokenCookies(w, tokens)
	writeData(w, http.StatusOK, tokens, "access token refreshed")
}

// CurrentUser returns the authenticated identity.
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}
	writeData(w, http.StatusOK, user, "current user fetched successfully")
}

// ChangePassword replaces the password of the authenticated user.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized request")
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.service.ChangePassword(r.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, struct{}{}, "password changed successfully")
}

func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, tokens types.TokenPair) {
	http.SetCookie(w, h.cookie(accessTokenCookie, tokens.AccessToken))
	http.SetCookie(w, h.cookie(refreshTokenCookie, tokens.RefreshToken))
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	for _, name := range []string{accessTokenCookie, refreshTokenCookie} {
		c := h.cookie(name, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (h *AuthHandler) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
	}
}

func accessTokenFromRequest(r *http.Request) string {
	if token := cookieValue(r, accessTokenCookie); token != "" {
		return token
	}
	token, err := bearerToken(r)
	if err != nil {
		return ""
	}
	return token
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

type RegisterRequest struct {
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User         types.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}
