package rbac

import (
	"testing"

	"escashop/backend/internal/models"
)

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		role Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{"  ADMIN ", RoleAdmin, true},
		{"super_admin", RoleSuperAdmin, true},
		{"cashier", RoleCashier, true},
		{"sales", RoleSales, true},
		{"manager", "", false},
		{"", "", false},
	}
	for _, tt := range cases {
		role, ok := ParseRole(tt.in)
		if role != tt.role || ok != tt.ok {
			t.Fatalf("ParseRole(%q)=(%q,%v), want (%q,%v)", tt.in, role, ok, tt.role, tt.ok)
		}
	}
}

func TestAllowedAdminsAnything(t *testing.T) {
	statuses := []string{
		models.StatusWaiting,
		models.StatusServing,
		models.StatusProcessing,
		models.StatusCompleted,
		models.StatusCancelled,
	}
	for _, role := range []Role{RoleSuperAdmin, RoleAdmin} {
		for _, from := range statuses {
			for _, to := range statuses {
				if !Allowed(role, from, to) {
					t.Fatalf("Allowed(%s, %s, %s)=false, want true", role, from, to)
				}
			}
		}
	}
}

func TestAllowedSalesNothing(t *testing.T) {
	statuses := []string{
		models.StatusWaiting,
		models.StatusServing,
		models.StatusProcessing,
		models.StatusCompleted,
		models.StatusCancelled,
	}
	for _, from := range statuses {
		for _, to := range statuses {
			if Allowed(RoleSales, from, to) {
				t.Fatalf("Allowed(sales, %s, %s)=true, want false", from, to)
			}
		}
	}
}

func TestAllowedCashier(t *testing.T) {
	cases := []struct {
		from  string
		to    string
		allow bool
	}{
		{models.StatusWaiting, models.StatusServing, true},
		{models.StatusServing, models.StatusProcessing, true},
		{models.StatusServing, models.StatusCompleted, true},
		{models.StatusProcessing, models.StatusCompleted, true},
		{models.StatusWaiting, models.StatusCancelled, true},
		{models.StatusServing, models.StatusCancelled, true},
		{models.StatusProcessing, models.StatusCancelled, true},
		{models.StatusCompleted, models.StatusCancelled, true},
		// forced transitions stay admin-only
		{models.StatusCompleted, models.StatusWaiting, false},
		{models.StatusCancelled, models.StatusWaiting, false},
		{models.StatusWaiting, models.StatusCompleted, false},
		{models.StatusWaiting, models.StatusProcessing, false},
		{models.StatusProcessing, models.StatusServing, false},
		{models.StatusCompleted, models.StatusServing, false},
	}
	for _, tt := range cases {
		if got := Allowed(RoleCashier, tt.from, tt.to); got != tt.allow {
			t.Fatalf("Allowed(cashier, %s, %s)=%v, want %v", tt.from, tt.to, got, tt.allow)
		}
	}
}

func TestAllowedRoles(t *testing.T) {
	roles := AllowedRoles(models.StatusCompleted, models.StatusWaiting)
	if len(roles) != 2 || roles[0] != RoleSuperAdmin || roles[1] != RoleAdmin {
		t.Fatalf("AllowedRoles(completed, waiting)=%v, want [super_admin admin]", roles)
	}
}
