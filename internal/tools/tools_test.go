package tools_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/internal/tools"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

// registryFor builds the tool set of role on a fresh seeded store.
func registryFor(t *testing.T, role hr.Role) (*tools.Registry, *hr.MemStore) {
	t.Helper()
	store := hr.NewSeededStore()
	user, err := hr.DemoUser(context.Background(), store, role)
	if err != nil {
		t.Fatalf("DemoUser: %v", err)
	}
	reg, err := tools.ForRole(role, user, store)
	if err != nil {
		t.Fatalf("ForRole: %v", err)
	}
	return reg, store
}

func noop(context.Context, map[string]any) (tools.Result, error) { return tools.Result{}, nil }

func TestNewRegistry_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		tools []tools.Tool
	}{
		{"empty name", []tools.Tool{{Handler: noop}}},
		{"nil handler", []tools.Tool{{Declaration: s2s.ToolDeclaration{Name: "a"}}}},
		{"duplicate", []tools.Tool{
			{Declaration: s2s.ToolDeclaration{Name: "a"}, Handler: noop},
			{Declaration: s2s.ToolDeclaration{Name: "a"}, Handler: noop},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := tools.NewRegistry(tt.tools...); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestNilRegistry(t *testing.T) {
	t.Parallel()

	var r *tools.Registry
	if r.Len() != 0 || r.Declarations() != nil || r.Names() != nil {
		t.Error("nil registry not empty")
	}
	if _, err := r.Execute(context.Background(), "navigateTo", nil); !errors.Is(err, tools.ErrUnknownTool) {
		t.Errorf("got %v, want ErrUnknownTool", err)
	}
}

func TestForRole_DeclarationsMatchHandlers(t *testing.T) {
	t.Parallel()

	want := map[hr.Role][]string{
		hr.RoleAdmin:    {"navigateTo", "getOverallStats", "listOpenPositions"},
		hr.RoleHR:       {"navigateTo", "getOverallStats", "listOpenPositions"},
		hr.RoleManager:  {"navigateTo", "getTeamStats", "addTeamMember"},
		hr.RoleEmployee: {"navigateTo", "getMyStats"},
	}
	for role, names := range want {
		reg, _ := registryFor(t, role)
		if got := reg.Names(); !slices.Equal(got, names) {
			t.Errorf("%s: names %v, want %v", role, got, names)
		}
		decls := reg.Declarations()
		if len(decls) != reg.Len() {
			t.Fatalf("%s: %d declarations for %d tools", role, len(decls), reg.Len())
		}
		for _, d := range decls {
			if _, ok := reg.Lookup(d.Name); !ok {
				t.Errorf("%s: declared %q has no handler", role, d.Name)
			}
			if d.Description == "" {
				t.Errorf("%s: %q has no description", role, d.Name)
			}
			if d.Parameters["type"] != "object" {
				t.Errorf("%s: %q parameters type %v", role, d.Name, d.Parameters["type"])
			}
			if _, ok := d.Parameters["properties"]; !ok {
				t.Errorf("%s: %q parameters lack properties", role, d.Name)
			}
		}
	}
}

func TestForRole_UnknownRole(t *testing.T) {
	t.Parallel()

	if _, err := tools.ForRole("Guest", hr.User{}, hr.NewSeededStore()); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestSchemaFor_RequiredAndDescription(t *testing.T) {
	t.Parallel()

	reg, _ := registryFor(t, hr.RoleManager)
	tool, _ := reg.Lookup("addTeamMember")
	params := tool.Declaration.Parameters

	props, _ := params["properties"].(map[string]any)
	name, _ := props["employeeName"].(map[string]any)
	if name["type"] != "string" {
		t.Errorf("employeeName type: got %v", name["type"])
	}
	if d, _ := name["description"].(string); !strings.Contains(d, "full name") {
		t.Errorf("employeeName description: got %q", d)
	}
	req, _ := params["required"].([]any)
	if len(req) != 1 || req[0] != "employeeName" {
		t.Errorf("required: got %v", params["required"])
	}
	if _, ok := params["$schema"]; ok {
		t.Error("$schema not stripped")
	}
}

func TestExecute_Unknown(t *testing.T) {
	t.Parallel()

	reg, _ := registryFor(t, hr.RoleEmployee)
	_, err := reg.Execute(context.Background(), "addTeamMember", map[string]any{"employeeName": "John Doe"})
	if !errors.Is(err, tools.ErrUnknownTool) {
		t.Errorf("got %v, want ErrUnknownTool", err)
	}
}

// ── navigateTo ────────────────────────────────────────────────────────────────

func TestNavigate_AdminEmployee(t *testing.T) {
	t.Parallel()

	reg, _ := registryFor(t, hr.RoleAdmin)
	res, err := reg.Execute(context.Background(), "navigateTo", map[string]any{"view": "employee"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["success"] != true {
		t.Fatalf("success: got %v", res.Response)
	}
	if res.Response["message"] != "Navigating to Employees." {
		t.Errorf("message: got %q", res.Response["message"])
	}
	if res.Effects.Navigate != "Employees" {
		t.Errorf("navigate effect: got %q", res.Effects.Navigate)
	}
	if res.Effects.ClosePanelAfter != 500*time.Millisecond {
		t.Errorf("close delay: got %v", res.Effects.ClosePanelAfter)
	}
}

func TestNavigate_UnknownView(t *testing.T) {
	t.Parallel()

	reg, _ := registryFor(t, hr.RoleEmployee)
	res, err := reg.Execute(context.Background(), "navigateTo", map[string]any{"view": "Recruitment"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["success"] != false {
		t.Errorf("success: got %v", res.Response["success"])
	}
	if res.Response["message"] != "Sorry, I can't navigate to a page called 'Recruitment'." {
		t.Errorf("message: got %q", res.Response["message"])
	}
	if res.Effects != (tools.Effects{}) {
		t.Errorf("effects on failure: %+v", res.Effects)
	}
}

func TestNavigate_CustomDelay(t *testing.T) {
	t.Parallel()

	store := hr.NewSeededStore()
	user, _ := hr.DemoUser(context.Background(), store, hr.RoleHR)
	reg, err := tools.ForRole(hr.RoleHR, user, store, tools.WithPanelCloseDelay(time.Second))
	if err != nil {
		t.Fatalf("ForRole: %v", err)
	}
	res, _ := reg.Execute(context.Background(), "navigateTo", map[string]any{"view": "interviewer"})
	if res.Effects.Navigate != "AI Interviewer" || res.Effects.ClosePanelAfter != time.Second {
		t.Errorf("effects: %+v", res.Effects)
	}
}

// ── addTeamMember ─────────────────────────────────────────────────────────────

func TestAddTeamMember_Scenario(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, store := registryFor(t, hr.RoleManager)
	args := map[string]any{"employeeName": "Peter Jones"}

	res, err := reg.Execute(ctx, "addTeamMember", args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["success"] != true {
		t.Fatalf("first call: %v", res.Response)
	}
	msg, _ := res.Response["message"].(string)
	if !strings.Contains(msg, "Peter Jones") || !strings.Contains(msg, "Product") {
		t.Errorf("message %q lacks name or department", msg)
	}
	peter, _ := store.Get(ctx, 3)
	if peter.Department != "Product" {
		t.Errorf("department after move: %q", peter.Department)
	}

	res, err = reg.Execute(ctx, "addTeamMember", args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["success"] != false {
		t.Fatalf("second call: %v", res.Response)
	}
	if msg, _ := res.Response["message"].(string); !strings.Contains(msg, "already in your department") {
		t.Errorf("second message: %q", msg)
	}
}

func TestAddTeamMember_NotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, store := registryFor(t, hr.RoleManager)
	before, _ := store.List(ctx)

	res, err := reg.Execute(ctx, "addTeamMember", map[string]any{"employeeName": "Alice Cooper"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["success"] != false {
		t.Fatalf("got %v", res.Response)
	}
	if msg, _ := res.Response["message"].(string); !strings.Contains(msg, "Could not find an employee") {
		t.Errorf("message: %q", msg)
	}
	after, _ := store.List(ctx)
	for i := range before {
		if before[i].Department != after[i].Department {
			t.Errorf("store changed for %s", before[i].Name)
		}
	}
}

func TestAddTeamMember_MisheardNameSuggests(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, store := registryFor(t, hr.RoleManager)

	for _, name := range []string{"mary garsia", "Joan Doe", "Peter Jonas"} {
		res, err := reg.Execute(ctx, "addTeamMember", map[string]any{"employeeName": name})
		if err != nil {
			t.Fatalf("Execute(%q): %v", name, err)
		}
		if res.Response["success"] != false {
			t.Errorf("%q: sound-alike was moved: %v", name, res.Response)
		}
		if msg, _ := res.Response["message"].(string); !strings.Contains(msg, "Did you mean") {
			t.Errorf("%q: message %q offers no suggestion", name, msg)
		}
	}

	for id, dept := range map[int]string{1: "Technology", 3: "Design", 4: "Human Resources"} {
		if emp, _ := store.Get(ctx, id); emp.Department != dept {
			t.Errorf("%s moved to %q", emp.Name, emp.Department)
		}
	}

	res, _ := reg.Execute(ctx, "addTeamMember", map[string]any{"employeeName": "mary garsia"})
	if msg, _ := res.Response["message"].(string); !strings.Contains(msg, "Mary Garcia") {
		t.Errorf("suggestion: %q", msg)
	}
}

func TestAddTeamMember_ManagerMissing(t *testing.T) {
	t.Parallel()

	store := hr.NewSeededStore()
	reg, err := tools.ForRole(hr.RoleManager, hr.User{Role: hr.RoleManager, EmployeeID: 99}, store)
	if err != nil {
		t.Fatalf("ForRole: %v", err)
	}
	res, err := reg.Execute(context.Background(), "addTeamMember", map[string]any{"employeeName": "John Doe"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["success"] != false || res.Response["message"] != "Could not identify the current manager." {
		t.Errorf("got %v", res.Response)
	}
}

// ── stats ─────────────────────────────────────────────────────────────────────

func TestOverallStats(t *testing.T) {
	t.Parallel()

	reg, _ := registryFor(t, hr.RoleAdmin)
	res, err := reg.Execute(context.Background(), "getOverallStats", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["totalEmployees"] != float64(5) {
		t.Errorf("totalEmployees: %v", res.Response["totalEmployees"])
	}
	if res.Response["totalDepartments"] != float64(5) {
		t.Errorf("totalDepartments: %v", res.Response["totalDepartments"])
	}
	if res.Response["openPositions"] != float64(2) {
		t.Errorf("openPositions: %v", res.Response["openPositions"])
	}
}

func TestTeamStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	reg, _ := registryFor(t, hr.RoleManager)

	res, _ := reg.Execute(ctx, "getTeamStats", nil)
	if res.Response["teamSize"] != float64(0) {
		t.Fatalf("initial team: %v", res.Response)
	}

	for _, name := range []string{"Peter Jones", "John Doe"} {
		if _, err := reg.Execute(ctx, "addTeamMember", map[string]any{"employeeName": name}); err != nil {
			t.Fatalf("addTeamMember: %v", err)
		}
	}
	res, err := reg.Execute(ctx, "getTeamStats", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["teamSize"] != float64(2) {
		t.Errorf("teamSize: %v", res.Response["teamSize"])
	}
	// Latest scores 91 and 95.
	if res.Response["avgPerformance"] != float64(93) {
		t.Errorf("avgPerformance: %v", res.Response["avgPerformance"])
	}
}

func TestMyStats(t *testing.T) {
	t.Parallel()

	reg, _ := registryFor(t, hr.RoleEmployee)
	res, err := reg.Execute(context.Background(), "getMyStats", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["name"] != "John Doe" || res.Response["latestPerformance"] != "95%" {
		t.Errorf("got %v", res.Response)
	}
}

func TestListOpenPositions(t *testing.T) {
	t.Parallel()

	reg, _ := registryFor(t, hr.RoleHR)
	res, err := reg.Execute(context.Background(), "listOpenPositions", nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Response["count"] != float64(2) {
		t.Errorf("count: %v", res.Response["count"])
	}
	positions, _ := res.Response["positions"].([]any)
	if len(positions) != 2 {
		t.Fatalf("positions: %v", positions)
	}
	first, _ := positions[0].(map[string]any)
	if first["title"] != "Senior Frontend Engineer" {
		t.Errorf("first position: %v", first)
	}
}
