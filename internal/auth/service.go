package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wardbook.org/internal/audit"
	"wardbook.org/internal/token"
)

// Service provides the account flows built on top of the gate: login,
// refresh, email verification and password reset. Token delivery (mail, SMS)
// is a collaborator concern; the service hands the token back to the caller.
type Service struct {
	tokens   *token.Service
	users    UserStore
	gate     *Gate
	recorder *audit.Recorder
}

// NewService constructs a Service. The recorder may be nil; security events
// are then not recorded.
func NewService(tokens *token.Service, users UserStore, gate *Gate, recorder *audit.Recorder) (*Service, error) {
	if tokens == nil || users == nil || gate == nil {
		return nil, errors.New("auth: tokens, users and gate are required")
	}
	return &Service{tokens: tokens, users: users, gate: gate, recorder: recorder}, nil
}

func (s *Service) security(ctx context.Context, action audit.Action, userID string, success bool, detail map[string]any, wc audit.WriteContext) {
	if s.recorder == nil {
		return
	}
	s.recorder.Security(ctx, action, userID, success, detail, wc)
}

func subjectFromUser(u *User) token.Subject {
	return token.Subject{
		ID:     u.ID,
		Email:  u.Email,
		Role:   string(u.Role),
		WardID: u.WardID,
		Active: u.IsActive,
	}
}

// Login verifies credentials and issues an access/refresh pair. Credential
// failures collapse into ErrUnauthorized so callers cannot distinguish a
// missing account from a wrong password; each attempt is audited either way.
func (s *Service) Login(ctx context.Context, email, password string, wc audit.WriteContext) (token.Pair, *Actor, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return token.Pair{}, nil, ErrUnauthorized
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.security(ctx, audit.ActionLogin, "", false, map[string]any{"email": email, "reason": "unknown account"}, wc)
			return token.Pair{}, nil, ErrUnauthorized
		}
		return token.Pair{}, nil, fmt.Errorf("auth: find user: %w", err)
	}
	if !user.IsActive {
		s.security(ctx, audit.ActionLogin, user.ID, false, map[string]any{"reason": "deactivated"}, wc)
		return token.Pair{}, nil, ErrUnauthorized
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		s.security(ctx, audit.ActionLogin, user.ID, false, map[string]any{"reason": "bad password"}, wc)
		return token.Pair{}, nil, ErrUnauthorized
	}

	pair, err := s.tokens.IssuePair(subjectFromUser(user))
	if err != nil {
		return token.Pair{}, nil, err
	}
	s.security(ctx, audit.ActionLogin, user.ID, true, nil, wc)
	return pair, actorFromUser(user), nil
}

// Refresh exchanges a valid refresh token for a fresh pair. There is no
// refresh-token store: rotation means the caller gets a new pair while the
// old refresh token stays formally valid until its expiry.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (token.Pair, *Actor, error) {
	actor, err := s.gate.AuthenticateRefresh(ctx, refreshToken)
	if err != nil {
		return token.Pair{}, nil, err
	}
	pair, err := s.tokens.IssuePair(token.Subject{
		ID:     actor.ID,
		Email:  actor.Email,
		Role:   string(actor.Role),
		WardID: actor.WardID,
		Active: true,
	})
	if err != nil {
		return token.Pair{}, nil, err
	}
	return pair, actor, nil
}

// Logout records the event. Issued tokens are not revoked; they die by
// expiry only, matching the stateless token model.
func (s *Service) Logout(ctx context.Context, actor *Actor, wc audit.WriteContext) {
	if actor == nil {
		return
	}
	s.security(ctx, audit.ActionLogout, actor.ID, true, nil, wc)
}

// RequestEmailVerification issues an email-verification token for the user.
func (s *Service) RequestEmailVerification(ctx context.Context, userID string) (string, time.Time, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	return s.issueWithExpiry(token.PurposeEmailVerification, user)
}

// ConfirmEmail validates an email-verification token and marks the account
// verified.
func (s *Service) ConfirmEmail(ctx context.Context, rawToken string, wc audit.WriteContext) (*Actor, error) {
	actor, err := s.gate.AuthenticateEmailToken(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	if err := s.users.SetEmailVerified(ctx, actor.ID); err != nil {
		return nil, fmt.Errorf("auth: mark email verified: %w", err)
	}
	actor.EmailVerified = true
	s.security(ctx, audit.ActionEmailVerified, actor.ID, true, nil, wc)
	return actor, nil
}

// RequestPasswordReset issues a password-reset token for the account with
// the given email.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) (string, time.Time, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return "", time.Time{}, fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, err
	}
	if !user.IsActive {
		return "", time.Time{}, ErrUserDeactivated
	}
	return s.issueWithExpiry(token.PurposePasswordReset, user)
}

// ResetPassword validates a reset token and replaces the account password.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string, wc audit.WriteContext) (*Actor, error) {
	newPassword = strings.TrimSpace(newPassword)
	if newPassword == "" {
		return nil, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	actor, err := s.gate.AuthenticatePasswordReset(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	if err := s.users.UpdatePassword(ctx, actor.ID, hash); err != nil {
		s.security(ctx, audit.ActionPasswordChange, actor.ID, false, map[string]any{"reason": "store write failed"}, wc)
		return nil, fmt.Errorf("auth: update password: %w", err)
	}
	s.security(ctx, audit.ActionPasswordChange, actor.ID, true, nil, wc)
	return actor, nil
}

func (s *Service) issueWithExpiry(p token.Purpose, user *User) (string, time.Time, error) {
	signed, err := s.tokens.Issue(p, subjectFromUser(user), 0)
	if err != nil {
		return "", time.Time{}, err
	}
	claims, err := s.tokens.Verify(signed)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: decode issued token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}
