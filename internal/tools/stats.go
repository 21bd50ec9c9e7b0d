package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

type overallStats struct {
	TotalEmployees   int            `json:"totalEmployees"`
	TotalDepartments int            `json:"totalDepartments"`
	OpenPositions    int            `json:"openPositions"`
	Departments      map[string]int `json:"departments"`
}

type myStats struct {
	Name              string        `json:"name"`
	Role              string        `json:"role"`
	Department        string        `json:"department"`
	LatestPerformance string        `json:"latestPerformance"`
	Attendance        hr.Attendance `json:"attendance"`
}

type openPosition struct {
	Title         string `json:"title"`
	Department    string `json:"department"`
	Applications  int    `json:"applications"`
	HiringManager string `json:"hiringManager"`
}

func (e *env) overallStatsTool() Tool {
	return Tool{
		Declaration: s2s.ToolDeclaration{
			Name:        "getOverallStats",
			Description: "Gets overall company statistics like total employees and open job positions.",
			Parameters:  mustSchema[noArgs](),
		},
		Handler: e.overallStats,
	}
}

func (e *env) myStatsTool() Tool {
	return Tool{
		Declaration: s2s.ToolDeclaration{
			Name:        "getMyStats",
			Description: "Gets the personal stats for the current employee, like their role and latest performance score.",
			Parameters:  mustSchema[noArgs](),
		},
		Handler: e.myStats,
	}
}

func (e *env) openPositionsTool() Tool {
	return Tool{
		Declaration: s2s.ToolDeclaration{
			Name:        "listOpenPositions",
			Description: "Lists the job openings that are currently accepting applications.",
			Parameters:  mustSchema[noArgs](),
		},
		Handler: e.openPositions,
	}
}

func (e *env) overallStats(ctx context.Context, _ map[string]any) (Result, error) {
	all, err := e.store.List(ctx)
	if err != nil {
		return Result{}, err
	}
	jobs, err := e.store.Jobs(ctx)
	if err != nil {
		return Result{}, err
	}

	stats := overallStats{
		TotalEmployees: len(all),
		Departments:    make(map[string]int),
	}
	for _, x := range all {
		stats.Departments[x.Department]++
	}
	stats.TotalDepartments = len(stats.Departments)
	for _, j := range jobs {
		if j.Status == hr.JobOpen {
			stats.OpenPositions++
		}
	}

	obj, err := objectOf(stats)
	if err != nil {
		return Result{}, err
	}
	return Result{Response: obj}, nil
}

func (e *env) myStats(ctx context.Context, _ map[string]any) (Result, error) {
	me, err := e.store.Get(ctx, e.user.EmployeeID)
	if errors.Is(err, hr.ErrNotFound) {
		return Result{Response: map[string]any{"error": "Employee not found."}}, nil
	}
	if err != nil {
		return Result{}, err
	}

	obj, err := objectOf(myStats{
		Name:              me.Name,
		Role:              me.Role,
		Department:        me.Department,
		LatestPerformance: fmt.Sprintf("%d%%", me.LatestScore()),
		Attendance:        me.Attendance,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Response: obj}, nil
}

func (e *env) openPositions(ctx context.Context, _ map[string]any) (Result, error) {
	jobs, err := e.store.Jobs(ctx)
	if err != nil {
		return Result{}, err
	}
	positions := []openPosition{}
	for _, j := range jobs {
		if j.Status != hr.JobOpen {
			continue
		}
		positions = append(positions, openPosition{
			Title:         j.Title,
			Department:    j.Department,
			Applications:  j.Applications,
			HiringManager: j.HiringManager,
		})
	}
	obj, err := objectOf(struct {
		Count     int            `json:"count"`
		Positions []openPosition `json:"positions"`
	}{len(positions), positions})
	if err != nil {
		return Result{}, err
	}
	return Result{Response: obj}, nil
}
