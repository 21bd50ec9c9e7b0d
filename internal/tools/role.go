package tools

import (
	"fmt"
	"time"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/tools/phonetic"
)

// DefaultPanelCloseDelay is how long a successful navigation waits before the
// assistant panel closes.
const DefaultPanelCloseDelay = 500 * time.Millisecond

// Option configures [ForRole].
type Option func(*env)

// WithMatcher overrides the matcher addTeamMember uses to suggest a known
// name when the spoken one has no exact match.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(e *env) { e.matcher = m }
}

// WithPanelCloseDelay overrides [DefaultPanelCloseDelay].
func WithPanelCloseDelay(d time.Duration) Option {
	return func(e *env) { e.closeDelay = d }
}

// env is what every HR tool handler closes over.
type env struct {
	role       hr.Role
	user       hr.User
	store      hr.Store
	matcher    *phonetic.Matcher
	closeDelay time.Duration
}

// ForRole builds the tool set of role acting as user:
//
//	Admin, HR: navigateTo, getOverallStats, listOpenPositions
//	Manager:   navigateTo, getTeamStats, addTeamMember
//	Employee:  navigateTo, getMyStats
func ForRole(role hr.Role, user hr.User, store hr.Store, opts ...Option) (*Registry, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("tools: unknown role %q", role)
	}
	if store == nil {
		return nil, fmt.Errorf("tools: store must not be nil")
	}
	e := &env{
		role:       role,
		user:       user,
		store:      store,
		closeDelay: DefaultPanelCloseDelay,
	}
	for _, o := range opts {
		o(e)
	}
	if e.matcher == nil {
		e.matcher = phonetic.New()
	}

	set := []Tool{e.navigateTool()}
	switch role {
	case hr.RoleAdmin, hr.RoleHR:
		set = append(set, e.overallStatsTool(), e.openPositionsTool())
	case hr.RoleManager:
		set = append(set, e.teamStatsTool(), e.addTeamMemberTool())
	case hr.RoleEmployee:
		set = append(set, e.myStatsTool())
	}
	return NewRegistry(set...)
}
