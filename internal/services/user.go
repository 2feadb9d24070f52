package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/vidhub/apiserver/internal/auth"
	"github.com/vidhub/apiserver/internal/logging"
	"github.com/vidhub/apiserver/internal/store"
	"github.com/vidhub/apiserver/types"
)

const (
	avatarPrefix = "avatars"
	coverPrefix  = "covers"

	EventUserRegistered = "user.registered"
	EventUserLoggedIn   = "user.logged_in"
)

// UserRepository defines persistence operations for users, including the
// refresh token slot used by the session flows.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	FindByUsernameOrEmail(ctx context.Context, username, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Update(ctx context.Context, user types.User) (types.User, error)
	SetRefreshToken(ctx context.Context, id int, token string) error
	ClearRefreshToken(ctx context.Context, id int) error
}

// Hasher hashes and checks passwords.
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// AssetUploader publishes a staged local file and returns its URL.
type AssetUploader interface {
	Upload(ctx context.Context, prefix, localPath string) (string, error)
	Remove(ctx context.Context, assetURL string) error
}

// EventPublisher publishes account events. Optional.
type EventPublisher interface {
	PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error)
}

// AccountEvent is published after registrations and logins.
type AccountEvent struct {
	Type     string    `json:"type"`
	UserID   int       `json:"userId"`
	Username string    `json:"username"`
	At       time.Time `json:"at"`
}

// UserServiceConfig wires the collaborators of UserService.
type UserServiceConfig struct {
	Repo          UserRepository
	Hasher        Hasher
	Tokens        *auth.TokenIssuer
	Assets        AssetUploader
	Events        EventPublisher
	EventsChannel string
}

// UserService owns registration, credential checks and the session lifecycle.
type UserService struct {
	repo          UserRepository
	hasher        Hasher
	tokens        *auth.TokenIssuer
	assets        AssetUploader
	events        EventPublisher
	eventsChannel string
}

func NewUserService(cfg UserServiceConfig) *UserService {
	return &UserService{
		repo:          cfg.Repo,
		hasher:        cfg.Hasher,
		tokens:        cfg.Tokens,
		assets:        cfg.Assets,
		events:        cfg.Events,
		eventsChannel: cfg.EventsChannel,
	}
}

// RegisterInput carries the registration form. AvatarPath and CoverPath are
// local staged files.
type RegisterInput struct {
	Fullname   string
	Email      string
	Username   string
	Password   string
	AvatarPath string
	CoverPath  string
}

// LoginInput accepts a username, an email, or both.
type LoginInput struct {
	Username string
	Email    string
	Password string
}

// LoginResult is the public user plus the freshly minted token pair.
type LoginResult struct {
	User   types.User
	Tokens types.TokenPair
}

// Register creates an account and returns it without credential fields.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	fullname := strings.TrimSpace(in.Fullname)
	email := normalizeKey(in.Email)
	username := normalizeKey(in.Username)
	if fullname == "" || email == "" || username == "" || strings.TrimSpace(in.Password) == "" {
		return types.User{}, validationError("all fields are required")
	}
	if len(in.Password) > auth.MaxPasswordBytes {
		return types.User{}, validationError(auth.ErrPasswordTooLong.Error())
	}

	if _, err := s.repo.FindByUsernameOrEmail(ctx, username, email); err == nil {
		return types.User{}, conflictError("user with this email or username already exists")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, internalError("failed to check user", err)
	}

	if strings.TrimSpace(in.AvatarPath) == "" {
		return types.User{}, validationError("avatar file is required")
	}
	avatarURL, err := s.assets.Upload(ctx, avatarPrefix, in.AvatarPath)
	if err != nil {
		logging.FromContext(ctx).Warn("avatar upload failed", "err", err)
		return types.User{}, validationError("avatar file is required")
	}

	var coverURL string
	if strings.TrimSpace(in.CoverPath) != "" {
		coverURL, err = s.assets.Upload(ctx, coverPrefix, in.CoverPath)
		if err != nil {
			logging.FromContext(ctx).Warn("cover image upload failed", "err", err)
			coverURL = ""
		}
	}

	created, err := s.create(ctx, types.User{
		Username:   username,
		Email:      email,
		Fullname:   fullname,
		Avatar:     avatarURL,
		CoverImage: coverURL,
		Password:   in.Password,
	})
	if err != nil {
		s.removeAssets(ctx, avatarURL, coverURL)
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return types.User{}, validationError(auth.ErrPasswordTooLong.Error())
		}
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, conflictError("user with this email or username already exists")
		}
		return types.User{}, internalError("something went wrong while registering the user", err)
	}

	user, err := s.repo.GetByID(ctx, created.ID)
	if err != nil {
		return types.User{}, internalError("something went wrong while registering the user", err)
	}

	logging.FromContext(ctx).Info("user registered", "user_id", user.ID, "username", user.Username)
	s.publish(ctx, EventUserRegistered, user)
	return user.Public(), nil
}

// Login checks credentials and opens a session.
func (s *UserService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	username := normalizeKey(in.Username)
	email := normalizeKey(in.Email)
	if username == "" && email == "" {
		return LoginResult{}, validationError("username or email is required")
	}
	if in.Password == "" {
		return LoginResult{}, validationError("password is required")
	}

	user, err := s.repo.FindByUsernameOrEmail(ctx, username, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, notFoundError("user does not exist")
		}
		return LoginResult{}, internalError("failed to authenticate", err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return LoginResult{}, unauthorizedError("invalid user credentials", nil)
	}

	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return LoginResult{}, err
	}

	logging.FromContext(ctx).Info("user logged in", "user_id", user.ID)
	s.publish(ctx, EventUserLoggedIn, user)
	return LoginResult{User: user.Public(), Tokens: tokens}, nil
}

// Logout clears the stored refresh token so it can no longer be exchanged.
func (s *UserService) Logout(ctx context.Context, user types.User) error {
	if err := s.repo.ClearRefreshToken(ctx, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return unauthorizedError("invalid access token", err)
		}
		return internalError("failed to log out", err)
	}
	logging.FromContext(ctx).Info("user logged out", "user_id", user.ID)
	return nil
}

// RefreshAccessToken exchanges the current refresh token for a new pair and
// rotates the stored refresh token.
func (s *UserService) RefreshAccessToken(ctx context.Context, refreshToken string) (types.TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return types.TokenPair{}, unauthorizedError("unauthorized request", nil)
	}

	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return types.TokenPair{}, unauthorizedError("invalid refresh token", err)
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.TokenPair{}, unauthorizedError("invalid refresh token", err)
		}
		return types.TokenPair{}, internalError("failed to refresh tokens", err)
	}

	if user.RefreshToken == "" || refreshToken != user.RefreshToken {
		logging.FromContext(ctx).Warn("refresh token rejected", "user_id", user.ID, "reason", "not current")
		return types.TokenPair{}, unauthorizedError("refresh token is expired or used", nil)
	}

	tokens, err := s.openSession(ctx, user)
	if err != nil {
		return types.TokenPair{}, err
	}

	logging.FromContext(ctx).Info("tokens refreshed", "user_id", user.ID)
	return tokens, nil
}

// Authorize resolves the user behind an access token.
func (s *UserService) Authorize(ctx context.Context, accessToken string) (types.User, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return types.User{}, unauthorizedError("unauthorized request", nil)
	}

	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return types.User{}, unauthorizedError("invalid access token", err)
	}

	user, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, unauthorizedError("invalid access token", err)
		}
		return types.User{}, internalError("failed to load user", err)
	}
	return user.Public(), nil
}

// ChangePassword replaces the password after checking the current one.
func (s *UserService) ChangePassword(ctx context.Context, userID int, oldPassword, newPassword string) error {
	if oldPassword == "" || strings.TrimSpace(newPassword) == "" {
		return validationError("old and new password are required")
	}
	if len(newPassword) > auth.MaxPasswordBytes {
		return validationError(auth.ErrPasswordTooLong.Error())
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return unauthorizedError("invalid access token", err)
		}
		return internalError("failed to load user", err)
	}

	if !s.hasher.Verify(oldPassword, user.PasswordHash) {
		return validationError("invalid old password")
	}

	user.Password = newPassword
	if _, err := s.update(ctx, user); err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return validationError(auth.ErrPasswordTooLong.Error())
		}
		return internalError("failed to change password", err)
	}
	logging.FromContext(ctx).Info("password changed", "user_id", user.ID)
	return nil
}

// openSession mints a pair and persists the refresh token. Tokens are only
// returned once the refresh token is stored.
func (s *UserService) openSession(ctx context.Context, user types.User) (types.TokenPair, error) {
	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return types.TokenPair{}, internalError("something went wrong while generating tokens", err)
	}
	if err := s.repo.SetRefreshToken(ctx, user.ID, tokens.RefreshToken); err != nil {
		return types.TokenPair{}, internalError("something went wrong while generating tokens", err)
	}
	return tokens, nil
}

func (s *UserService) create(ctx context.Context, user types.User) (types.User, error) {
	if err := s.hashPendingPassword(&user); err != nil {
		return types.User{}, err
	}
	if user.PasswordHash == "" {
		return types.User{}, errors.New("password is required")
	}
	return s.repo.Create(ctx, user)
}

func (s *UserService) update(ctx context.Context, user types.User) (types.User, error) {
	if err := s.hashPendingPassword(&user); err != nil {
		return types.User{}, err
	}
	return s.repo.Update(ctx, user)
}

// hashPendingPassword hashes user.Password into PasswordHash when a new
// plaintext is set. Writes without one keep the existing hash.
func (s *UserService) hashPendingPassword(user *types.User) error {
	if user.Password == "" {
		return nil
	}
	hashed, err := s.hasher.Hash(user.Password)
	if err != nil {
		return err
	}
	user.PasswordHash = hashed
	user.Password = ""
	return nil
}

func (s *UserService) removeAssets(ctx context.Context, urls ...string) {
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := s.assets.Remove(ctx, u); err != nil {
			logging.FromContext(ctx).Warn("failed to remove orphaned asset", "url", u, "err", err)
		}
	}
}

func (s *UserService) publish(ctx context.Context, eventType string, user types.User) {
	if s.events == nil || s.eventsChannel == "" {
		return
	}
	event := AccountEvent{
		Type:     eventType,
		UserID:   user.ID,
		Username: user.Username,
		At:       time.Now().UTC(),
	}
	if _, err := s.events.PublishJSON(ctx, s.eventsChannel, event, map[string]string{"type": eventType}); err != nil {
		logging.FromContext(ctx).Warn("failed to publish account event", "type", eventType, "err", err)
	}
}

func normalizeKey(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
