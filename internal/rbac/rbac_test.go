package rbac

import (
	"errors"
	"testing"
)

func TestIsAllowedTotalOverDeclaredSet(t *testing.T) {
	roles := []Role{RoleReadOnly, RoleStaff, RoleAdmin}
	for _, perm := range Permissions() {
		for _, role := range roles {
			if _, err := IsAllowed(role, perm); err != nil {
				t.Fatalf("IsAllowed(%s, %s): %v", role, perm, err)
			}
		}
	}
}

func TestIsAllowedFailsClosedOnUnknownPermission(t *testing.T) {
	allowed, err := IsAllowed(RoleAdmin, "residents:transmogrify")
	if !errors.Is(err, ErrInvalidPermission) {
		t.Fatalf("expected ErrInvalidPermission, got %v", err)
	}
	if allowed {
		t.Fatal("unknown permission must never allow")
	}
}

func TestIsAllowedGrants(t *testing.T) {
	cases := []struct {
		role Role
		perm string
		want bool
	}{
		{RoleReadOnly, PermResidentRead, true},
		{RoleReadOnly, PermResidentCreate, false},
		{RoleStaff, PermResidentCreate, true},
		{RoleStaff, PermResidentDelete, false},
		{RoleAdmin, PermResidentDelete, true},
		{RoleStaff, PermAuditRead, false},
		{RoleAdmin, PermAuditRead, true},
		{RoleReadOnly, PermUserManage, false},
	}
	for _, tc := range cases {
		got, err := IsAllowed(tc.role, tc.perm)
		if err != nil {
			t.Fatalf("IsAllowed(%s, %s): %v", tc.role, tc.perm, err)
		}
		if got != tc.want {
			t.Fatalf("IsAllowed(%s, %s) = %v, want %v", tc.role, tc.perm, got, tc.want)
		}
	}
}

func TestLevelAtLeast(t *testing.T) {
	if LevelAtLeast(RoleStaff, RoleAdmin) {
		t.Fatal("staff must not reach admin level")
	}
	if !LevelAtLeast(RoleAdmin, RoleStaff) {
		t.Fatal("admin must reach staff level")
	}
	for _, r := range []Role{RoleReadOnly, RoleStaff, RoleAdmin} {
		if !LevelAtLeast(r, r) {
			t.Fatalf("LevelAtLeast(%s, %s) must hold", r, r)
		}
	}
	if LevelAtLeast(Role("owner"), RoleReadOnly) {
		t.Fatal("undeclared role must never pass a level check")
	}
}

func TestRoleIn(t *testing.T) {
	if !RoleIn(RoleStaff, RoleStaff, RoleAdmin) {
		t.Fatal("staff should match explicit set")
	}
	if RoleIn(RoleReadOnly, RoleStaff, RoleAdmin) {
		t.Fatal("read_only should not match")
	}
	if RoleIn(RoleAdmin) {
		t.Fatal("empty set allows nobody")
	}
}

func TestCanAccessWard(t *testing.T) {
	if CanAccessWard(RoleStaff, "W1", "W2") {
		t.Fatal("staff must be confined to own ward")
	}
	if !CanAccessWard(RoleAdmin, "W1", "W2") {
		t.Fatal("admin passes any ward")
	}
	if !CanAccessWard(RoleStaff, "W1", "W1") {
		t.Fatal("staff passes own ward")
	}
	if !CanAccessWard(RoleReadOnly, "W1", "") {
		t.Fatal("ward-agnostic operations pass unconditionally")
	}
}

func TestCanActOn(t *testing.T) {
	if !CanActOn(RoleAdmin, "admin-1", "user-9") {
		t.Fatal("admin acts on anyone")
	}
	if !CanActOn(RoleStaff, "user-9", "user-9") {
		t.Fatal("self access allowed")
	}
	if CanActOn(RoleStaff, "user-9", "user-3") {
		t.Fatal("staff must not act on other users")
	}
	if CanActOn(RoleStaff, "", "") {
		t.Fatal("blank ids never match as self")
	}
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Staff ")
	if err != nil || r != RoleStaff {
		t.Fatalf("ParseRole: %v %v", r, err)
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Fatal("expected error for undeclared role")
	}
}
