package store

import (
	"context"
	"sync"
	"time"

	"github.com/vidhub/apiserver/types"
)

// MemoryUserRepository is an in-process user store with the same uniqueness
// and not-found behaviour as UserRepository. The service, handler and server
// tests share it across packages.
type MemoryUserRepository struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		nextID: 1,
		users:  make(map[int]types.User),
	}
}

func (r *MemoryUserRepository) GetByID(ctx context.Context, id int) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return types.User{}, ErrNotFound
	}
	return user, nil
}

func (r *MemoryUserRepository) FindByUsernameOrEmail(ctx context.Context, username, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if username == "" && email == "" {
		return types.User{}, ErrNotFound
	}
	for id := 1; id < r.nextID; id++ {
		user, ok := r.users[id]
		if !ok {
			continue
		}
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.takenLocked(0, user.Username, user.Email) {
		return types.User{}, ErrConflict
	}

	now := time.Now().UTC()
	user.ID = r.nextID
	user.Password = ""
	user.RefreshToken = ""
	user.CreatedAt = now
	user.UpdatedAt = now
	r.nextID++
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) Update(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.users[user.ID]
	if !ok {
		return types.User{}, ErrNotFound
	}
	if r.takenLocked(user.ID, user.Username, user.Email) {
		return types.User{}, ErrConflict
	}

	user.Password = ""
	user.RefreshToken = current.RefreshToken
	user.CreatedAt = current.CreatedAt
	user.UpdatedAt = time.Now().UTC()
	r.users[user.ID] = user
	return user, nil
}

func (r *MemoryUserRepository) SetRefreshToken(ctx context.Context, id int, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.RefreshToken = token
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

func (r *MemoryUserRepository) ClearRefreshToken(ctx context.Context, id int) error {
	return r.SetRefreshToken(ctx, id, "")
}

// takenLocked reports whether another user already owns username or email.
func (r *MemoryUserRepository) takenLocked(selfID int, username, email string) bool {
	for id, other := range r.users {
		if id == selfID {
			continue
		}
		if other.Username == username || other.Email == email {
			return true
		}
	}
	return false
}
