package auth

import (
	"context"
	"errors"
	"fmt"

	"wardbook.org/internal/obs"
	"wardbook.org/internal/token"
)

// Gate converts an inbound request token into an Actor or a rejection. Five
// modes differ in the required token purpose and in failure strictness; every
// mode that succeeds loads the user fresh from the store, so state changes
// (deactivation, role change) take effect on the next request regardless of
// what the still-valid token claims say.
type Gate struct {
	tokens *token.Service
	users  UserStore
}

// NewGate constructs a Gate.
func NewGate(tokens *token.Service, users UserStore) (*Gate, error) {
	if tokens == nil {
		return nil, errors.New("auth: token service is required")
	}
	if users == nil {
		return nil, errors.New("auth: user store is required")
	}
	return &Gate{tokens: tokens, users: users}, nil
}

type gateMode struct {
	name       string
	purpose    token.Purpose
	errMissing error
	errExpired error
	errInvalid error
}

var (
	modeAccess = gateMode{
		name:       "require_auth",
		purpose:    token.PurposeAccess,
		errMissing: ErrNoToken,
		errExpired: ErrTokenExpired,
		errInvalid: ErrInvalidToken,
	}
	modeRefresh = gateMode{
		name:       "require_refresh",
		purpose:    token.PurposeRefresh,
		errMissing: ErrNoRefreshToken,
		errExpired: ErrRefreshTokenExpired,
		errInvalid: ErrInvalidRefreshToken,
	}
	modeEmail = gateMode{
		name:       "require_email_token",
		purpose:    token.PurposeEmailVerification,
		errMissing: ErrNoEmailToken,
		errExpired: ErrInvalidEmailToken,
		errInvalid: ErrInvalidEmailToken,
	}
	modeReset = gateMode{
		name:       "require_password_reset_token",
		purpose:    token.PurposePasswordReset,
		errMissing: ErrNoResetToken,
		errExpired: ErrInvalidResetToken,
		errInvalid: ErrInvalidResetToken,
	}
)

// Authenticate requires a valid access-purpose token and an active user.
func (g *Gate) Authenticate(ctx context.Context, rawToken string) (*Actor, error) {
	return g.run(ctx, rawToken, modeAccess)
}

// AuthenticateOptional behaves like Authenticate except that every failure
// path degrades to "no actor". Endpoints that merely behave differently for
// anonymous callers use this mode; it never rejects.
func (g *Gate) AuthenticateOptional(ctx context.Context, rawToken string) *Actor {
	actor, err := g.run(ctx, rawToken, gateMode{
		name:       "optional_auth",
		purpose:    token.PurposeAccess,
		errMissing: ErrNoToken,
		errExpired: ErrTokenExpired,
		errInvalid: ErrInvalidToken,
	})
	if err != nil {
		return nil
	}
	return actor
}

// AuthenticateRefresh requires a valid refresh-purpose token and an active user.
func (g *Gate) AuthenticateRefresh(ctx context.Context, rawToken string) (*Actor, error) {
	return g.run(ctx, rawToken, modeRefresh)
}

// AuthenticateEmailToken requires a valid email-verification token and an
// existing active user.
func (g *Gate) AuthenticateEmailToken(ctx context.Context, rawToken string) (*Actor, error) {
	return g.run(ctx, rawToken, modeEmail)
}

// AuthenticatePasswordReset requires a valid password-reset token and an
// existing active user.
func (g *Gate) AuthenticatePasswordReset(ctx context.Context, rawToken string) (*Actor, error) {
	return g.run(ctx, rawToken, modeReset)
}

func (g *Gate) run(ctx context.Context, rawToken string, mode gateMode) (*Actor, error) {
	if rawToken == "" {
		obs.AuthDecision(mode.name, "no_token")
		return nil, mode.errMissing
	}

	claims, err := g.tokens.Verify(rawToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			obs.AuthDecision(mode.name, "expired")
			return nil, mode.errExpired
		}
		obs.AuthDecision(mode.name, "invalid")
		return nil, mode.errInvalid
	}
	if err := claims.Require(mode.purpose); err != nil {
		obs.AuthDecision(mode.name, "purpose_mismatch")
		return nil, mode.errInvalid
	}

	user, err := g.users.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.AuthDecision(mode.name, "user_not_found")
			return nil, ErrUserNotFound
		}
		obs.AuthDecision(mode.name, "store_error")
		return nil, fmt.Errorf("auth: load user: %w", err)
	}
	if !user.IsActive {
		obs.AuthDecision(mode.name, "deactivated")
		return nil, ErrUserDeactivated
	}

	obs.AuthDecision(mode.name, "ok")
	return actorFromUser(user), nil
}
