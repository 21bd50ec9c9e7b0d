package hr_test

import (
	"context"
	"slices"
	"testing"

	"github.com/MrWong99/synergy/internal/hr"
)

func TestViewsFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role hr.Role
		want []string
	}{
		{hr.RoleAdmin, []string{"Dashboard", "Employees", "Recruitment", "Performance"}},
		{hr.RoleManager, []string{"Dashboard", "My Team", "Performance"}},
		{hr.RoleHR, []string{"Dashboard", "AI Resume Screener", "AI Interviewer", "Employees"}},
		{hr.RoleEmployee, []string{"Dashboard", "My Profile", "Performance"}},
		{hr.Role("Guest"), nil},
	}
	for _, tt := range tests {
		if got := hr.ViewsFor(tt.role); !slices.Equal(got, tt.want) {
			t.Errorf("ViewsFor(%s): got %v, want %v", tt.role, got, tt.want)
		}
	}

	v := hr.ViewsFor(hr.RoleAdmin)
	v[0] = "Hacked"
	if hr.ViewsFor(hr.RoleAdmin)[0] != "Dashboard" {
		t.Error("ViewsFor returned shared backing array")
	}
}

func TestMatchView(t *testing.T) {
	t.Parallel()

	tests := []struct {
		role  hr.Role
		query string
		want  string
		ok    bool
	}{
		{hr.RoleAdmin, "employee", "Employees", true},
		{hr.RoleAdmin, "PERF", "Performance", true},
		{hr.RoleHR, "resume", "AI Resume Screener", true},
		{hr.RoleManager, "team", "My Team", true},
		{hr.RoleEmployee, "recruitment", "", false},
		{hr.RoleAdmin, "  ", "", false},
	}
	for _, tt := range tests {
		got, ok := hr.MatchView(tt.role, tt.query)
		if got != tt.want || ok != tt.ok {
			t.Errorf("MatchView(%s, %q): got (%q, %v), want (%q, %v)", tt.role, tt.query, got, ok, tt.want, tt.ok)
		}
	}
}

func TestDemoUsers(t *testing.T) {
	t.Parallel()

	users, err := hr.DemoUsers(context.Background(), hr.NewSeededStore())
	if err != nil {
		t.Fatalf("DemoUsers: %v", err)
	}
	want := map[hr.Role]string{
		hr.RoleAdmin:    "Jane Smith",
		hr.RoleManager:  "Jane Smith",
		hr.RoleHR:       "Mary Garcia",
		hr.RoleEmployee: "John Doe",
	}
	if len(users) != 4 {
		t.Fatalf("got %d users, want 4", len(users))
	}
	for _, u := range users {
		if u.Name != want[u.Role] {
			t.Errorf("%s: got %q, want %q", u.Role, u.Name, want[u.Role])
		}
		if u.EmployeeID == 0 || u.Email == "" {
			t.Errorf("%s: incomplete user %+v", u.Role, u)
		}
	}
}

func TestDemoUser_UnknownRole(t *testing.T) {
	t.Parallel()

	if _, err := hr.DemoUser(context.Background(), hr.NewSeededStore(), "Guest"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestFirstName(t *testing.T) {
	t.Parallel()

	if got := hr.FirstName("Jane Smith"); got != "Jane" {
		t.Errorf("got %q", got)
	}
	if got := hr.FirstName(""); got != "" {
		t.Errorf("got %q", got)
	}
}
