package hr

import (
	"context"
	"fmt"
	"strings"
)

// Dashboard view names.
const (
	ViewDashboard      = "Dashboard"
	ViewEmployees      = "Employees"
	ViewRecruitment    = "Recruitment"
	ViewPerformance    = "Performance"
	ViewMyTeam         = "My Team"
	ViewResumeScreener = "AI Resume Screener"
	ViewAIInterviewer  = "AI Interviewer"
	ViewMyProfile      = "My Profile"
)

var roleViews = map[Role][]string{
	RoleAdmin:    {ViewDashboard, ViewEmployees, ViewRecruitment, ViewPerformance},
	RoleManager:  {ViewDashboard, ViewMyTeam, ViewPerformance},
	RoleHR:       {ViewDashboard, ViewResumeScreener, ViewAIInterviewer, ViewEmployees},
	RoleEmployee: {ViewDashboard, ViewMyProfile, ViewPerformance},
}

// ViewsFor returns the navigable views of role in sidebar order. Unknown roles
// get nil.
func ViewsFor(role Role) []string {
	v := roleViews[role]
	if v == nil {
		return nil
	}
	out := make([]string, len(v))
	copy(out, v)
	return out
}

// MatchView returns the first view of role whose name contains query,
// ignoring case.
func MatchView(role Role, query string) (string, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", false
	}
	for _, v := range roleViews[role] {
		if strings.Contains(strings.ToLower(v), q) {
			return v, true
		}
	}
	return "", false
}

// DemoUser returns the identity a login as role resolves to: Admin and
// Manager act as the first manager-titled or Product employee, HR as the
// first Human Resources employee and Employee as the first record.
func DemoUser(ctx context.Context, store Store, role Role) (User, error) {
	if !role.IsValid() {
		return User{}, fmt.Errorf("hr: unknown role %q", role)
	}
	emps, err := store.List(ctx)
	if err != nil {
		return User{}, fmt.Errorf("hr: demo user: %w", err)
	}
	if len(emps) == 0 {
		return User{}, fmt.Errorf("hr: demo user for %s: %w", role, ErrNotFound)
	}

	pick := func(match func(Employee) bool, fallback int) Employee {
		for _, e := range emps {
			if match(e) {
				return e
			}
		}
		if fallback < len(emps) {
			return emps[fallback]
		}
		return emps[0]
	}

	var e Employee
	switch role {
	case RoleAdmin:
		e = pick(func(e Employee) bool { return strings.Contains(e.Role, "Manager") }, 1)
	case RoleManager:
		e = pick(func(e Employee) bool { return e.Department == "Product" }, 1)
	case RoleHR:
		e = pick(func(e Employee) bool { return e.Department == "Human Resources" }, 3)
	default:
		e = emps[0]
	}
	return User{
		Email:      e.Email,
		Role:       role,
		Name:       e.Name,
		AvatarURL:  e.AvatarURL,
		EmployeeID: e.ID,
	}, nil
}

// DemoUsers returns one demo identity per role, in login-screen order.
func DemoUsers(ctx context.Context, store Store) ([]User, error) {
	out := make([]User, 0, len(Roles))
	for _, r := range Roles {
		u, err := DemoUser(ctx, store, r)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// FirstName returns the first word of a display name.
func FirstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return name
}
