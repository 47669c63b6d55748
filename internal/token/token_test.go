package token

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "unit-test-secret"

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	svc, err := NewService(testSecret, WithIssuer("test-issuer"))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	sub := Subject{ID: "user-42", Email: "Clerk@Ward.Example", Role: "staff", WardID: "W1", Active: true}
	signed, err := svc.Issue(PurposeAccess, sub, 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := svc.Verify(signed)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Email != "clerk@ward.example" {
		t.Fatalf("email not normalized: %s", claims.Email)
	}
	if claims.Purpose != PurposeAccess {
		t.Fatalf("unexpected purpose: %s", claims.Purpose)
	}
	if claims.Role != "staff" || claims.WardID != "W1" || !claims.Active {
		t.Fatalf("access snapshot not preserved: %+v", claims)
	}
	if err := claims.Require(PurposeAccess); err != nil {
		t.Fatalf("Require(access): %v", err)
	}
	if err := claims.Require(PurposeRefresh); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewService(testSecret, WithClock(func() time.Time { return issued }))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	signed, err := svc.Issue(PurposeAccess, Subject{ID: "user-1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	late, err := NewService(testSecret, WithClock(func() time.Time { return issued.Add(2 * time.Minute) }))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := late.Verify(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	svc, err := NewService(testSecret)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	for _, raw := range []string{"", "not-a-token", "aaa.bbb.ccc"} {
		if _, err := svc.Verify(raw); !errors.Is(err, ErrMalformed) {
			t.Fatalf("Verify(%q): expected ErrMalformed, got %v", raw, err)
		}
	}

	other, err := NewService("a-different-secret")
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	signed, err := other.Issue(PurposeAccess, Subject{ID: "user-1"}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := svc.Verify(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("foreign signature: expected ErrMalformed, got %v", err)
	}
}

func TestMissingSecretIsFatal(t *testing.T) {
	if _, err := NewService("  "); err == nil {
		t.Fatal("expected error for blank secret")
	}
}

func TestIssuePairExpiriesMatchClaims(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	svc, err := NewService(testSecret,
		WithClock(func() time.Time { return now }),
		WithAccessTTL(10*time.Minute),
		WithRefreshTTL(48*time.Hour),
	)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	pair, err := svc.IssuePair(Subject{ID: "user-7", Email: "u7@ward.example", Role: "admin", Active: true})
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	accessClaims, err := svc.Verify(pair.AccessToken)
	if err != nil {
		t.Fatalf("Verify(access): %v", err)
	}
	refreshClaims, err := svc.Verify(pair.RefreshToken)
	if err != nil {
		t.Fatalf("Verify(refresh): %v", err)
	}
	if accessClaims.Purpose != PurposeAccess || refreshClaims.Purpose != PurposeRefresh {
		t.Fatalf("pair purposes wrong: %s / %s", accessClaims.Purpose, refreshClaims.Purpose)
	}
	if !pair.AccessExpiresAt.Equal(accessClaims.ExpiresAt.Time) {
		t.Fatalf("access expiry %v does not match claim %v", pair.AccessExpiresAt, accessClaims.ExpiresAt.Time)
	}
	if !pair.RefreshExpiresAt.Equal(refreshClaims.ExpiresAt.Time) {
		t.Fatalf("refresh expiry %v does not match claim %v", pair.RefreshExpiresAt, refreshClaims.ExpiresAt.Time)
	}
	if got, want := pair.AccessExpiresAt, now.Add(10*time.Minute); !got.Equal(want) {
		t.Fatalf("access expiry %v, want %v", got, want)
	}
	// Refresh tokens carry no role snapshot.
	if refreshClaims.Role != "" || refreshClaims.WardID != "" {
		t.Fatalf("refresh token leaked access snapshot: %+v", refreshClaims)
	}
}

func TestIssueRejectsUnknownPurpose(t *testing.T) {
	svc, err := NewService(testSecret)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Issue(Purpose("session"), Subject{ID: "user-1"}, time.Minute); !errors.Is(err, ErrInvalidPurpose) {
		t.Fatalf("expected ErrInvalidPurpose, got %v", err)
	}
}
