package types

import "time"

// User represents an account in the system.
// It contains identity, profile assets, credentials and session state.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name, stored lowercase and trimmed.
	Username string `json:"username" db:"username"`

	// Email is the unique email address, stored lowercase and trimmed.
	Email string `json:"email" db:"email"`

	// Fullname is the user's display name.
	Fullname string `json:"fullname" db:"fullname"`

	// Avatar is the URL of the user's avatar on the asset host. Always set.
	Avatar string `json:"avatar" db:"avatar"`

	// CoverImage is the URL of the optional cover image.
	CoverImage string `json:"coverImage" db:"cover_image"`

	// Password carries a new plaintext password on its way to the store.
	// It is hashed into PasswordHash before any write and never persisted.
	Password string `json:"-" db:"-"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// RefreshToken is the single active refresh token, empty when logged out.
	// This field is never exposed in API responses.
	RefreshToken string `json:"-" db:"refresh_token"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Public returns a copy of the user with credential and session fields cleared.
func (u User) Public() User {
	u.Password = ""
	u.PasswordHash = ""
	u.RefreshToken = ""
	return u
}

// TokenPair is the access and refresh token minted at login or refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
