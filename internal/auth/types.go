package auth

import (
	"time"

	"wardbook.org/internal/rbac"
)

// User is the stored account record. WardID is empty for accounts not pinned
// to a ward (admins typically).
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          rbac.Role `json:"role"`
	WardID        string    `json:"ward_id,omitempty"`
	IsActive      bool      `json:"is_active"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Actor is the authenticated identity for the current operation. It is built
// fresh from the user store on every gate pass and never cached across
// requests; an inactive user can never become an Actor.
type Actor struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Role          rbac.Role `json:"role"`
	WardID        string    `json:"ward_id,omitempty"`
	EmailVerified bool      `json:"email_verified"`
}

// CanAccessWard reports whether the actor may touch targetWard.
func (a *Actor) CanAccessWard(targetWard string) bool {
	return rbac.CanAccessWard(a.Role, a.WardID, targetWard)
}

// CanActOn reports whether the actor may operate on the target user account.
func (a *Actor) CanActOn(targetUserID string) bool {
	return rbac.CanActOn(a.Role, a.ID, targetUserID)
}

func actorFromUser(u *User) *Actor {
	return &Actor{
		ID:            u.ID,
		Email:         u.Email,
		Role:          u.Role,
		WardID:        u.WardID,
		EmailVerified: u.EmailVerified,
	}
}
