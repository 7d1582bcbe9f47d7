package profiles

import (
	"context"
	"errors"
	"time"

	"github.com/jrsteele09/go-admissions-auth/roles"
)

var (
	ErrProfileNotFound = errors.New("user profile not found")
	ErrProfileExists   = errors.New("user profile already exists")
	ErrRoleConflict    = errors.New("user role changed concurrently")
	ErrEmptyUserID     = errors.New("user id is required")
)

// UserProfile is a row of the user_profiles table, 1:1 with a backend user.
type UserProfile struct {
	UserID    string     `json:"user_id"`
	Role      roles.Role `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Repo is the user_profiles table.
type Repo interface {
	// Get returns ErrProfileNotFound when the user has no row
	Get(ctx context.Context, userID string) (*UserProfile, error)

	// Insert returns ErrProfileExists when a row already exists for the user
	Insert(ctx context.Context, profile *UserProfile) error

	// UpdateRole sets the role only while the stored role still equals from.
	// Returns ErrProfileNotFound or ErrRoleConflict when nothing was updated.
	UpdateRole(ctx context.Context, userID string, from, to roles.Role) error

	// List returns profiles ordered by creation time
	List(ctx context.Context, offset, limit int) ([]*UserProfile, error)
}
