package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionRename, true},
		{RoleAdmin, ActionSettings, true},
		{RoleMember, ActionEdit, true},
		{RoleMember, ActionRename, false},
		{RoleMember, ActionSettings, false},
		{RoleGuest, ActionView, true},
		{RoleGuest, ActionEdit, false},
		{Role("unknown"), ActionView, false},
	}

	for _, tc := range cases {
		if got := Can(tc.role, tc.action); got != tc.want {
			t.Errorf("Can(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	if Normalize("admin") != RoleAdmin {
		t.Error("admin should normalize to RoleAdmin")
	}
	if Normalize("") != RoleMember {
		t.Error("empty role should normalize to RoleMember")
	}
	if Normalize("superuser") != RoleMember {
		t.Error("unknown role should normalize to RoleMember")
	}
}
