package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose tags a token with the single operation class it is valid for.
// Presenting a token of one purpose where another is required is always a
// verification failure, never a degraded success.
type Purpose string

const (
	PurposeAccess            Purpose = "access"
	PurposeRefresh           Purpose = "refresh"
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
)

// Valid reports whether p is one of the declared purposes.
func (p Purpose) Valid() bool {
	switch p {
	case PurposeAccess, PurposeRefresh, PurposeEmailVerification, PurposePasswordReset:
		return true
	}
	return false
}

var (
	// ErrExpired indicates the token signature was fine but its expiry has passed.
	ErrExpired = errors.New("token: expired")
	// ErrMalformed indicates the token structure, signature or claims are invalid.
	ErrMalformed = errors.New("token: malformed")
	// ErrInvalidPurpose indicates a valid token was presented for the wrong operation.
	ErrInvalidPurpose = errors.New("token: invalid purpose")

	errMissingSecret = errors.New("token: signing secret is not configured")
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
	defaultEmailTTL   = 24 * time.Hour
	defaultResetTTL   = time.Hour
)

// Claims is the signed claim set carried by every token. Role, ward and
// active-flag snapshots are populated for access tokens only and are for
// display; authorization always re-reads the user store.
type Claims struct {
	Purpose Purpose `json:"purpose"`
	Email   string  `json:"email,omitempty"`
	Role    string  `json:"role,omitempty"`
	WardID  string  `json:"ward_id,omitempty"`
	Active  bool    `json:"active,omitempty"`
	jwt.RegisteredClaims
}

// Require asserts the claim set was issued for the given purpose.
func (c *Claims) Require(p Purpose) error {
	if c.Purpose != p {
		return ErrInvalidPurpose
	}
	return nil
}

// Subject carries the identity fields embedded into issued tokens.
type Subject struct {
	ID     string
	Email  string
	Role   string
	WardID string
	Active bool
}

// Pair bundles a freshly issued access/refresh token with the exact expiry
// instants decoded back out of the signed tokens themselves.
type Pair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Service mints and verifies signed, expiring claim sets. It holds no state
// beyond configuration and is safe for concurrent use. Issued tokens are never
// revoked before expiry; a deactivated user is cut off by the auth gate's
// fresh user lookup, not by token invalidation.
type Service struct {
	secret []byte
	issuer string
	now    func() time.Time

	accessTTL  time.Duration
	refreshTTL time.Duration
	emailTTL   time.Duration
	resetTTL   time.Duration
}

// Option configures Service behavior.
type Option func(*Service)

// WithIssuer overrides the issuer claim stamped on every token.
func WithIssuer(issuer string) Option {
	return func(s *Service) { s.issuer = strings.TrimSpace(issuer) }
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithEmailVerificationTTL configures email verification token lifetime.
func WithEmailVerificationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.emailTTL = ttl
		}
	}
}

// WithPasswordResetTTL configures password reset token lifetime.
func WithPasswordResetTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.resetTTL = ttl
		}
	}
}

// NewService constructs a Service. A blank secret is a deployment defect and
// fails construction; it is never surfaced per request.
func NewService(secret string, opts ...Option) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errMissingSecret
	}
	svc := &Service{
		secret:     []byte(secret),
		issuer:     "wardbook",
		now:        time.Now,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		emailTTL:   defaultEmailTTL,
		resetTTL:   defaultResetTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// DefaultTTL returns the configured lifetime for the given purpose.
func (s *Service) DefaultTTL(p Purpose) time.Duration {
	switch p {
	case PurposeRefresh:
		return s.refreshTTL
	case PurposeEmailVerification:
		return s.emailTTL
	case PurposePasswordReset:
		return s.resetTTL
	default:
		return s.accessTTL
	}
}

// Issue signs a token of the given purpose for the subject. A non-positive ttl
// selects the purpose's configured default.
func (s *Service) Issue(p Purpose, sub Subject, ttl time.Duration) (string, error) {
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown purpose %q", ErrInvalidPurpose, string(p))
	}
	subjectID := strings.TrimSpace(sub.ID)
	if subjectID == "" {
		return "", errors.New("token: subject id is required")
	}
	if ttl <= 0 {
		ttl = s.DefaultTTL(p)
	}

	now := s.now().UTC()
	claims := Claims{
		Purpose: p,
		Email:   strings.TrimSpace(strings.ToLower(sub.Email)),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}
	if p == PurposeAccess {
		claims.Role = sub.Role
		claims.WardID = sub.WardID
		claims.Active = sub.Active
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry and returns the decoded claims. It does
// not check purpose; callers assert the expected purpose via Claims.Require.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrMalformed
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrMalformed
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now().UTC() }), jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrMalformed
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	if !claims.Purpose.Valid() || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// IssuePair mints an access/refresh token pair for the subject. The reported
// expiries are decoded from the issued tokens so the displayed instant can
// never drift from the signed claim.
func (s *Service) IssuePair(sub Subject) (Pair, error) {
	access, err := s.Issue(PurposeAccess, sub, 0)
	if err != nil {
		return Pair{}, err
	}
	refresh, err := s.Issue(PurposeRefresh, sub, 0)
	if err != nil {
		return Pair{}, err
	}
	accessClaims, err := s.Verify(access)
	if err != nil {
		return Pair{}, fmt.Errorf("token: decode issued access token: %w", err)
	}
	refreshClaims, err := s.Verify(refresh)
	if err != nil {
		return Pair{}, fmt.Errorf("token: decode issued refresh token: %w", err)
	}
	return Pair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt.Time,
		RefreshExpiresAt: refreshClaims.ExpiresAt.Time,
	}, nil
}
