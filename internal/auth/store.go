package auth

import "context"

// UserStore is the persistence collaborator the gate and account service
// depend on. Implementations return ErrNotFound for missing users.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
	SetEmailVerified(ctx context.Context, userID string) error
}
