package commands

import "git.home.luguber.info/inful/bookstage/internal/build"

// AllCmd implements the default command: test, then render.
type AllCmd struct{}

func (a *AllCmd) Run(g *Global, root *CLI) error {
	return runPlan(g, root, build.PlanAll)
}

// RenderCmd implements the 'render' command.
type RenderCmd struct{}

func (r *RenderCmd) Run(g *Global, root *CLI) error {
	return runPlan(g, root, build.PlanRender)
}

// TestCmd implements the 'test' command.
type TestCmd struct{}

func (t *TestCmd) Run(g *Global, root *CLI) error {
	return runPlan(g, root, build.PlanTest)
}
