package tools

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

type addTeamMemberArgs struct {
	EmployeeName string `json:"employeeName" jsonschema_description:"The full name of the employee to add to the manager's team."`
}

type teamStats struct {
	TeamSize       int           `json:"teamSize"`
	AvgPerformance float64       `json:"avgPerformance"`
	Members        []string      `json:"members"`
	Attendance     hr.Attendance `json:"attendance"`
}

func (e *env) addTeamMemberTool() Tool {
	return Tool{
		Declaration: s2s.ToolDeclaration{
			Name:        "addTeamMember",
			Description: "Adds an existing employee to the manager's team. This is done by changing the employee's department to the manager's current department.",
			Parameters:  mustSchema[addTeamMemberArgs](),
		},
		Handler: e.addTeamMember,
	}
}

func (e *env) teamStatsTool() Tool {
	return Tool{
		Declaration: s2s.ToolDeclaration{
			Name:        "getTeamStats",
			Description: "Gets statistics for the manager's own team, such as team size and average performance.",
			Parameters:  mustSchema[noArgs](),
		},
		Handler: e.teamStats,
	}
}

// errAlreadyInTeam stops a department move that would change nothing.
var errAlreadyInTeam = errors.New("tools: already in department")

func (e *env) addTeamMember(ctx context.Context, args map[string]any) (Result, error) {
	var a addTeamMemberArgs
	if err := decodeArgs(args, &a); err != nil {
		return Result{}, err
	}

	manager, err := e.store.Get(ctx, e.user.EmployeeID)
	if errors.Is(err, hr.ErrNotFound) {
		return outcome(false, "Could not identify the current manager."), nil
	}
	if err != nil {
		return Result{}, err
	}

	// Only an exact name may change the store; a sound-alike is offered back
	// to the model so the user can confirm it.
	target, err := e.store.FindByName(ctx, a.EmployeeName)
	if errors.Is(err, hr.ErrNotFound) {
		return e.notFound(ctx, a.EmployeeName)
	}
	if err != nil {
		return Result{}, err
	}

	moved, err := e.store.Modify(ctx, target.ID, func(emp *hr.Employee) error {
		if emp.Department == manager.Department {
			return errAlreadyInTeam
		}
		emp.Department = manager.Department
		return nil
	})
	switch {
	case errors.Is(err, errAlreadyInTeam):
		return outcome(false, fmt.Sprintf("%s is already in your department.", target.Name)), nil
	case errors.Is(err, hr.ErrNotFound):
		return e.notFound(ctx, a.EmployeeName)
	case err != nil:
		return Result{}, err
	}
	return outcome(true, fmt.Sprintf("Okay, I've moved %s to the %s department, adding them to your team.", moved.Name, manager.Department)), nil
}

// notFound answers a name without an exact match, suggesting the closest
// sounding employee when there is one.
func (e *env) notFound(ctx context.Context, name string) (Result, error) {
	all, err := e.store.List(ctx)
	if err != nil {
		return Result{}, err
	}
	names := make([]string, len(all))
	for i, x := range all {
		names[i] = x.Name
	}
	if best, _, ok := e.matcher.Match(name, names); ok {
		return outcome(false, fmt.Sprintf("Could not find an employee named %q. Did you mean %s?", name, best)), nil
	}
	return outcome(false, fmt.Sprintf("Could not find an employee named %q. Please say the full, correct name.", name)), nil
}

func (e *env) teamStats(ctx context.Context, _ map[string]any) (Result, error) {
	manager, err := e.store.Get(ctx, e.user.EmployeeID)
	if errors.Is(err, hr.ErrNotFound) {
		return Result{Response: map[string]any{"error": "Manager not found."}}, nil
	}
	if err != nil {
		return Result{}, err
	}
	all, err := e.store.List(ctx)
	if err != nil {
		return Result{}, err
	}

	stats := teamStats{Members: []string{}}
	total := 0
	for _, x := range all {
		if x.Department != manager.Department || x.ID == manager.ID {
			continue
		}
		stats.TeamSize++
		stats.Members = append(stats.Members, x.Name)
		total += x.LatestScore()
		stats.Attendance.Present += x.Attendance.Present
		stats.Attendance.Absent += x.Attendance.Absent
		stats.Attendance.Late += x.Attendance.Late
	}
	if stats.TeamSize > 0 {
		stats.AvgPerformance = round1(float64(total) / float64(stats.TeamSize))
	}

	obj, err := objectOf(stats)
	if err != nil {
		return Result{}, err
	}
	return Result{Response: obj}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
