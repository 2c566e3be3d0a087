package rbac

import "testing"

func TestEffective(t *testing.T) {
	roles := []Role{RoleViewer, RoleMember, RoleManager, RoleAdmin}

	// effective role is the max of global and membership under
	// viewer < member < manager < admin
	for _, global := range roles {
		for _, membership := range roles {
			want := Max(global, membership)
			if global == RoleAdmin {
				want = RoleAdmin
			}
			if got := Effective(global, membership); got != want {
				t.Errorf("Effective(%q, %q) = %q, want %q", global, membership, got, want)
			}
		}
	}
}

func TestEffectiveAdminOverride(t *testing.T) {
	for _, membership := range []Role{RoleViewer, RoleMember, RoleManager, RoleAdmin} {
		if got := Effective(RoleAdmin, membership); got != RoleAdmin {
			t.Errorf("admin global with %q membership = %q, want admin", membership, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want Role
	}{
		{"admin", RoleAdmin},
		{"manager", RoleManager},
		{"member", RoleMember},
		{"viewer", RoleViewer},
		{"", RoleViewer},
		{"owner", RoleViewer},
		{"Admin", RoleViewer},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolve(t *testing.T) {
	memberships := []Membership{
		{TeamID: "team-a", Role: RoleManager},
		{TeamID: "team-b", Role: RoleViewer},
	}

	cases := []struct {
		name      string
		global    Role
		teamID    string
		wantRole  Role
		wantEdit  bool
		wantAdmin bool
	}{
		{name: "membership upgrades member", global: RoleMember, teamID: "team-a", wantRole: RoleManager, wantEdit: true},
		{name: "membership never downgrades", global: RoleManager, teamID: "team-b", wantRole: RoleManager, wantEdit: true},
		{name: "no membership falls back to global", global: RoleMember, teamID: "team-c", wantRole: RoleMember},
		{name: "no team context uses global", global: RoleViewer, teamID: "", wantRole: RoleViewer},
		{name: "admin is admin everywhere", global: RoleAdmin, teamID: "team-b", wantRole: RoleAdmin, wantEdit: true, wantAdmin: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Resolve(tc.global, tc.teamID, memberships)
			if got.Role != tc.wantRole {
				t.Fatalf("Role = %q, want %q", got.Role, tc.wantRole)
			}
			if got.CanEdit != tc.wantEdit {
				t.Fatalf("CanEdit = %v, want %v", got.CanEdit, tc.wantEdit)
			}
			if got.IsAdmin != tc.wantAdmin {
				t.Fatalf("IsAdmin = %v, want %v", got.IsAdmin, tc.wantAdmin)
			}
		})
	}
}
