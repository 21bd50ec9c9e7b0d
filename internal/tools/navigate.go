package tools

import (
	"context"
	"fmt"

	"github.com/MrWong99/synergy/internal/hr"
	"github.com/MrWong99/synergy/pkg/provider/s2s"
)

type navigateArgs struct {
	View string `json:"view" jsonschema_description:"The name of the page to navigate to, e.g. \"Employees\" or \"Dashboard\"."`
}

func (e *env) navigateTool() Tool {
	return Tool{
		Declaration: s2s.ToolDeclaration{
			Name:        "navigateTo",
			Description: "Navigates the user to a specific page or view in the application.",
			Parameters:  mustSchema[navigateArgs](),
		},
		Handler: e.navigate,
	}
}

func (e *env) navigate(_ context.Context, args map[string]any) (Result, error) {
	var a navigateArgs
	if err := decodeArgs(args, &a); err != nil {
		return Result{}, err
	}
	view, ok := hr.MatchView(e.role, a.View)
	if !ok {
		return outcome(false, fmt.Sprintf("Sorry, I can't navigate to a page called '%s'.", a.View)), nil
	}
	res := outcome(true, fmt.Sprintf("Navigating to %s.", view))
	res.Effects = Effects{Navigate: view, ClosePanelAfter: e.closeDelay}
	return res, nil
}
