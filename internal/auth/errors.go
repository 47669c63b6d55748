package auth

import "errors"

// Gate rejection codes. Raw token-library errors never leak past the gate;
// every failure is translated into exactly one of these.
var (
	ErrNoToken             = errors.New("auth: no token")
	ErrTokenExpired        = errors.New("auth: token expired")
	ErrInvalidToken        = errors.New("auth: invalid token")
	ErrNoRefreshToken      = errors.New("auth: no refresh token")
	ErrRefreshTokenExpired = errors.New("auth: refresh token expired")
	ErrInvalidRefreshToken = errors.New("auth: invalid refresh token")
	ErrNoEmailToken        = errors.New("auth: no email verification token")
	ErrInvalidEmailToken   = errors.New("auth: invalid email verification token")
	ErrNoResetToken        = errors.New("auth: no password reset token")
	ErrInvalidResetToken   = errors.New("auth: invalid password reset token")
	ErrUserNotFound        = errors.New("auth: user not found")
	ErrUserDeactivated     = errors.New("auth: user deactivated")
)

var (
	// ErrNotFound is returned by UserStore implementations for missing records.
	ErrNotFound = errors.New("auth: not found")
	// ErrUnauthorized covers credential failures outside the gate (login).
	ErrUnauthorized = errors.New("auth: unauthorized")
	// ErrInvalidInput flags malformed caller input.
	ErrInvalidInput = errors.New("auth: invalid input")
)
