package editor

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/stockflow-editor/kb"
	"github.com/signalsfoundry/stockflow-editor/model"
)

type recordedAction struct{ action, outcome string }

type fakeRecorder struct{ actions []recordedAction }

func (r *fakeRecorder) RecordAction(action, outcome string) {
	r.actions = append(r.actions, recordedAction{action, outcome})
}

func (r *fakeRecorder) has(action, outcome string) bool {
	for _, a := range r.actions {
		if a.action == action && a.outcome == outcome {
			return true
		}
	}
	return false
}

func mustNode(t *testing.T, g *kb.Graph, view model.ViewID, text string, typ model.NodeType) model.NodeID {
	t.Helper()
	id, err := g.CreateNode(view, text, typ, "")
	if err != nil {
		t.Fatalf("CreateNode(%q): %v", text, err)
	}
	return id
}

func mustLink(t *testing.T, g *kb.Graph, view model.ViewID, text string, src, dst model.NodeID) model.LinkID {
	t.Helper()
	id, err := g.CreateLink(view, text, src, dst, model.LinkSolid)
	if err != nil {
		t.Fatalf("CreateLink(%q): %v", text, err)
	}
	return id
}

func mustValid(t *testing.T, g *kb.Graph) {
	t.Helper()
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

// subsystemGraph builds Births -> Population at the root, with Population
// owning a subsystem that holds Adults.
func subsystemGraph(t *testing.T) (*kb.Graph, model.ViewID) {
	t.Helper()
	g := kb.NewGraph()
	root := g.CreateView("", "")
	births := mustNode(t, g, root, "Births", model.NodeCircle)
	pop := mustNode(t, g, root, "Population", model.NodeSquare)
	mustLink(t, g, root, "inflow", births, pop)
	child := g.CreateView("Population", root)
	if err := g.SetChild(root, pop, child); err != nil {
		t.Fatalf("SetChild: %v", err)
	}
	mustNode(t, g, child, "Adults", model.NodeSquare)
	return g, child
}

func TestEnsureViewOnEmptyGraph(t *testing.T) {
	g := kb.NewGraph()
	c := NewController(g, nil)
	if got := c.CurrentView(); got != "" {
		t.Fatalf("CurrentView = %q, want empty", got)
	}
	if err := c.ClickOutside(); !errors.Is(err, ErrNoView) {
		t.Fatalf("ClickOutside err = %v, want ErrNoView", err)
	}

	view := c.EnsureView()
	v, ok := g.View(view)
	if !ok {
		t.Fatalf("view %q not found", view)
	}
	if v.ID != "v0" || v.Parent != "" || len(v.Nodes) != 0 || len(v.Links) != 0 {
		t.Fatalf("root view = %+v, want empty v0 without parent", v)
	}
}

func TestBirthRatePopulationScenario(t *testing.T) {
	g := kb.NewGraph()
	d := &ScriptedDialogs{Answers: []string{"Birth Rate", "Population", "births"}}
	c := NewController(g, d)
	view := c.EnsureView()

	if err := c.NewCircleNode(); err != nil {
		t.Fatalf("NewCircleNode: %v", err)
	}
	if err := c.NewSquareNode(); err != nil {
		t.Fatalf("NewSquareNode: %v", err)
	}
	if err := c.NewSolidLink(); err != nil {
		t.Fatalf("NewSolidLink: %v", err)
	}
	if c.Status() != "Select source" {
		t.Fatalf("Status = %q, want Select source", c.Status())
	}
	if err := c.ClickNode("b0"); err != nil {
		t.Fatalf("ClickNode source: %v", err)
	}
	if c.Status() != "Select target" {
		t.Fatalf("Status = %q, want Select target", c.Status())
	}
	if err := c.ClickNode("b1"); err != nil {
		t.Fatalf("ClickNode target: %v", err)
	}

	l, ok := g.Link(view, "l0")
	if !ok {
		t.Fatalf("link l0 missing")
	}
	if l.Text != "births" || l.Source != "b0" || l.Target != "b1" || l.Glued {
		t.Fatalf("link = %+v, want births b0->b1 unglued", l)
	}
	for _, id := range []model.NodeID{"b0", "b1"} {
		n, _ := g.Node(view, id)
		if n.GluedLinks != nil {
			t.Fatalf("node %s gluedlinks = %v, want nil", id, n.GluedLinks)
		}
	}
	if got := d.Prompts[2].Title; got != "New Flow" {
		t.Fatalf("third prompt = %q, want New Flow", got)
	}
	if c.Mode() != ModeIdle || c.ActionsDisabled() {
		t.Fatalf("mode = %v disabled = %v after link, want idle and enabled", c.Mode(), c.ActionsDisabled())
	}
	mustValid(t, g)
}

func TestSourceBoundaryAuthoring(t *testing.T) {
	g, child := subsystemGraph(t)
	d := &ScriptedDialogs{Answers: []string{"maturation"}}
	c := NewController(g, d)

	if err := c.DoubleClickNode("b1"); err != nil {
		t.Fatalf("DoubleClickNode: %v", err)
	}
	if c.CurrentView() != child {
		t.Fatalf("CurrentView = %q, want %q", c.CurrentView(), child)
	}
	if err := c.NewSolidLink(); err != nil {
		t.Fatalf("NewSolidLink: %v", err)
	}
	if !c.ShowExternals() || !c.ActionsDisabled() {
		t.Fatalf("externals shown = %v, disabled = %v, want both", c.ShowExternals(), c.ActionsDisabled())
	}
	src, ok := g.Node(child, "b1")
	if !ok || src.Type != model.NodeSource || src.ParentLink != "l0" || src.Text != "inflow" {
		t.Fatalf("materialised node = %+v, want source for l0", src)
	}

	if err := c.ClickNode(src.ID); err != nil {
		t.Fatalf("ClickNode source: %v", err)
	}
	if err := c.ClickNode("b0"); err != nil {
		t.Fatalf("ClickNode target: %v", err)
	}

	v, _ := g.View(child)
	if len(v.Links) != 1 {
		t.Fatalf("links = %d, want 1", len(v.Links))
	}
	l := v.Links[0]
	if !l.Glued || l.Source != src.ID || l.Target != "b0" {
		t.Fatalf("link = %+v, want glued from source", l)
	}
	src, _ = g.Node(child, src.ID)
	if len(src.GluedLinks) != 1 || src.GluedLinks[0] != l.ID {
		t.Fatalf("source gluedlinks = %v, want [%s]", src.GluedLinks, l.ID)
	}
	mustValid(t, g)
}

func TestClickingSinkAsSourceAbortsAndCulls(t *testing.T) {
	g := kb.NewGraph()
	root := g.CreateView("", "")
	pop := mustNode(t, g, root, "Population", model.NodeSquare)
	deaths := mustNode(t, g, root, "Deaths", model.NodeCircle)
	mustLink(t, g, root, "outflow", pop, deaths)
	child := g.CreateView("Population", root)
	if err := g.SetChild(root, pop, child); err != nil {
		t.Fatalf("SetChild: %v", err)
	}

	rec := &fakeRecorder{}
	c := NewController(g, nil, WithActionRecorder(rec))
	if err := c.DoubleClickNode(pop); err != nil {
		t.Fatalf("DoubleClickNode: %v", err)
	}
	if err := c.NewDashedLink(); err != nil {
		t.Fatalf("NewDashedLink: %v", err)
	}
	sink, ok := g.Node(child, "b0")
	if !ok || sink.Type != model.NodeSink {
		t.Fatalf("materialised node = %+v, want sink", sink)
	}
	if err := c.ClickNode(sink.ID); err != nil {
		t.Fatalf("ClickNode sink: %v", err)
	}
	if c.Mode() != ModeIdle || c.ActionsDisabled() || c.ShowExternals() {
		t.Fatalf("state after abort: mode %v disabled %v externals %v", c.Mode(), c.ActionsDisabled(), c.ShowExternals())
	}
	if _, ok := g.Node(child, sink.ID); ok {
		t.Fatalf("unglued sink survived the abort")
	}
	if !rec.has("choose_source", OutcomeAborted) {
		t.Fatalf("recorder = %+v, want choose_source aborted", rec.actions)
	}
}

func TestInvalidTargetAborts(t *testing.T) {
	g := kb.NewGraph()
	root := g.CreateView("", "")
	a := mustNode(t, g, root, "A", model.NodeCircle)
	c := NewController(g, &ScriptedDialogs{Answers: []string{"unused"}})

	if err := c.NewSolidLink(); err != nil {
		t.Fatalf("NewSolidLink: %v", err)
	}
	if err := c.ClickNode(a); err != nil {
		t.Fatalf("ClickNode source: %v", err)
	}
	if err := c.ClickNode(a); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("ClickNode self err = %v, want ErrInvalidTarget", err)
	}
	if c.Mode() != ModeIdle {
		t.Fatalf("Mode = %v, want idle", c.Mode())
	}
	if v, _ := g.View(root); len(v.Links) != 0 {
		t.Fatalf("links = %d, want none", len(v.Links))
	}
}

func TestValidTarget(t *testing.T) {
	node := func(id model.NodeID, typ model.NodeType) model.Node { return model.Node{ID: id, Type: typ} }
	cases := []struct {
		name string
		src  model.Node
		dst  model.Node
		want bool
	}{
		{"proper to proper", node("b0", model.NodeCircle), node("b1", model.NodeSquare), true},
		{"self", node("b0", model.NodeCircle), node("b0", model.NodeCircle), false},
		{"into source", node("b0", model.NodeCircle), node("b1", model.NodeSource), false},
		{"source to sink", node("b0", model.NodeSource), node("b1", model.NodeSink), false},
		{"proper to sink", node("b0", model.NodeSquare), node("b1", model.NodeSink), true},
		{"source to orphan", node("b0", model.NodeSource), node("b1", model.NodeOrphan), true},
	}
	for _, tc := range cases {
		if got := validTarget(tc.src, tc.dst); got != tc.want {
			t.Fatalf("%s: validTarget = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestHoverSetsProspectiveTarget(t *testing.T) {
	g := kb.NewGraph()
	root := g.CreateView("", "")
	a := mustNode(t, g, root, "A", model.NodeCircle)
	b := mustNode(t, g, root, "B", model.NodeSquare)
	c := NewController(g, nil)

	if err := c.NewDashedLink(); err != nil {
		t.Fatalf("NewDashedLink: %v", err)
	}
	if _, ok := c.Prospective(); ok {
		t.Fatalf("Prospective before source chosen")
	}
	if err := c.ClickNode(a); err != nil {
		t.Fatalf("ClickNode: %v", err)
	}
	if err := c.HoverNode(b); err != nil {
		t.Fatalf("HoverNode: %v", err)
	}
	p, ok := c.Prospective()
	if !ok {
		t.Fatalf("Prospective missing after hovering a valid target")
	}
	want := Prospective{Source: a, Target: b, Type: model.LinkDashed}
	if p != want {
		t.Fatalf("Prospective = %+v, want %+v", p, want)
	}
	if h := c.Hovered(); len(h) != 1 || h[0] != model.NodeRef(b) {
		t.Fatalf("Hovered = %v, want [%v]", h, model.NodeRef(b))
	}
	if err := c.UnhoverNode(b); err != nil {
		t.Fatalf("UnhoverNode: %v", err)
	}
	if len(c.Hovered()) != 0 {
		t.Fatalf("Hovered after unhover = %v", c.Hovered())
	}
}

func TestDataActionsDisabledWhileAuthoring(t *testing.T) {
	g := kb.NewGraph()
	g.CreateView("", "")
	c := NewController(g, nil)
	if err := c.NewSolidLink(); err != nil {
		t.Fatalf("NewSolidLink: %v", err)
	}
	for name, fn := range map[string]func() error{
		"Delete":        c.Delete,
		"NewCircleNode": c.NewCircleNode,
		"NewSquareNode": c.NewSquareNode,
		"NewDashedLink": c.NewDashedLink,
	} {
		if err := fn(); !errors.Is(err, ErrActionsDisabled) {
			t.Fatalf("%s err = %v, want ErrActionsDisabled", name, err)
		}
	}
	if err := c.Escape(); err != nil {
		t.Fatalf("Escape: %v", err)
	}
	if c.ActionsDisabled() {
		t.Fatalf("actions still disabled after Escape")
	}
}

func TestModalBlocksGesturesUntilAnswered(t *testing.T) {
	g := kb.NewGraph()
	root := g.CreateView("", "")
	d := &PendingDialogs{}
	c := NewController(g, d)

	if err := c.NewCircleNode(); err != nil {
		t.Fatalf("NewCircleNode: %v", err)
	}
	if !c.Modal() {
		t.Fatalf("Modal = false while prompt pending")
	}
	if err := c.ClickOutside(); !errors.Is(err, ErrModal) {
		t.Fatalf("ClickOutside err = %v, want ErrModal", err)
	}
	cur, ok := d.Current()
	if !ok || cur.Prompt == nil || cur.Prompt.Title != "New Process" {
		t.Fatalf("Current = %+v, want New Process prompt", cur)
	}
	if !d.Resolve("Birth Rate") {
		t.Fatalf("Resolve found no dialog")
	}
	if c.Modal() {
		t.Fatalf("Modal = true after resolve")
	}
	n, ok := g.Node(root, "b0")
	if !ok || n.Text != "Birth Rate" || n.Type != model.NodeCircle {
		t.Fatalf("node = %+v, want Birth Rate circle", n)
	}
}

func TestCancelledPromptCreatesNothing(t *testing.T) {
	g := kb.NewGraph()
	root := g.CreateView("", "")
	rec := &fakeRecorder{}
	c := NewController(g, &ScriptedDialogs{}, WithActionRecorder(rec))
	if err := c.NewSquareNode(); err != nil {
		t.Fatalf("NewSquareNode: %v", err)
	}
	if v, _ := g.View(root); len(v.Nodes) != 0 {
		t.Fatalf("nodes = %d, want 0", len(v.Nodes))
	}
	if !rec.has("create_node", OutcomeCancelled) {
		t.Fatalf("recorder = %+v, want create_node cancelled", rec.actions)
	}
}

func TestOnChangeAndUnsubscribe(t *testing.T) {
	g := kb.NewGraph()
	root := g.CreateView("", "")
	a := mustNode(t, g, root, "A", model.NodeCircle)
	c := NewController(g, nil)

	var got []Change
	unsub := c.OnChange(func(ch Change) { got = append(got, ch) })
	if err := c.DragNode(a, 40, 50); err != nil {
		t.Fatalf("DragNode: %v", err)
	}
	if len(got) != 1 || got[0].Action != "drag" || got[0].Node != a || got[0].View != root {
		t.Fatalf("changes = %+v, want one drag of %s", got, a)
	}
	n, _ := g.Node(root, a)
	if !n.Pinned() || *n.FX != 40 || *n.FY != 50 {
		t.Fatalf("node after drag = %+v, want pinned at (40,50)", n)
	}
	unsub()
	if err := c.ClickNode(a); err != nil {
		t.Fatalf("ClickNode: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("changes after unsubscribe = %d, want 1", len(got))
	}
}
