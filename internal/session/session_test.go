package session

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/signalsfoundry/stockflow-editor/editor"
	"github.com/signalsfoundry/stockflow-editor/internal/docstore"
	"github.com/signalsfoundry/stockflow-editor/model"
	"github.com/signalsfoundry/stockflow-editor/render"
	"github.com/signalsfoundry/stockflow-editor/timectrl"
)

// birthRate starts a session holding a Birth Rate process feeding a
// Population stock through a births flow.
func birthRate(t *testing.T, opts ...Option) *Editor {
	t.Helper()
	d := &editor.ScriptedDialogs{Answers: []string{"Birth Rate", "Population", "births"}}
	e := New(context.Background(), append([]Option{WithDialogs(d)}, opts...)...)
	t.Cleanup(e.Close)

	err := e.Do(func(c *editor.Controller) error {
		if err := c.NewCircleNode(); err != nil {
			return err
		}
		if err := c.NewSquareNode(); err != nil {
			return err
		}
		if err := c.NewSolidLink(); err != nil {
			return err
		}
		if err := c.ClickNode("b0"); err != nil {
			return err
		}
		return c.ClickNode("b1")
	})
	if err != nil {
		t.Fatalf("building diagram: %v", err)
	}
	return e
}

func node(t *testing.T, e *Editor, view model.ViewID, id model.NodeID) model.Node {
	t.Helper()
	for _, v := range e.Graph() {
		if v.ID != view {
			continue
		}
		for _, n := range v.Nodes {
			if n.ID == id {
				return n
			}
		}
	}
	t.Fatalf("node %s/%s not found", view, id)
	return model.Node{}
}

func TestActionsRelayoutTheFrame(t *testing.T) {
	e := birthRate(t)

	f := e.Frame()
	if len(f.Circles) != 1 || f.Circles[0].Text != "Birth Rate" {
		t.Fatalf("circles = %+v, want Birth Rate", f.Circles)
	}
	if len(f.Squares) != 1 || f.Squares[0].Text != "Population" {
		t.Fatalf("squares = %+v, want Population", f.Squares)
	}
	if len(f.Links) != 1 || f.Links[0].Text != "births" || f.Links[0].Prospective() {
		t.Fatalf("links = %+v, want births", f.Links)
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	var buf bytes.Buffer
	if err := e.WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG: %v", err)
	}
	if !strings.Contains(buf.String(), "Birth Rate") {
		t.Fatalf("svg does not mention Birth Rate:\n%s", buf.String())
	}
}

func TestPointerAndKeyRouting(t *testing.T) {
	e := birthRate(t)

	if err := e.Pointer(render.Pointer{Type: "click", Target: "b1"}); err != nil {
		t.Fatalf("click b1: %v", err)
	}
	if f := e.Frame(); !f.Squares[0].Clicked || f.Circles[0].Clicked {
		t.Fatalf("after click: square clicked = %v, circle clicked = %v", f.Squares[0].Clicked, f.Circles[0].Clicked)
	}

	// Keys typed into a text field stay there.
	if err := e.Key(render.Key{Key: "Escape", InTextField: true}); err != nil {
		t.Fatalf("Key in text field: %v", err)
	}
	if !e.Frame().Squares[0].Clicked {
		t.Fatalf("escape in a text field cleared the selection")
	}

	if err := e.Key(render.Key{Key: "Escape"}); err != nil {
		t.Fatalf("Escape: %v", err)
	}
	if e.Frame().Squares[0].Clicked {
		t.Fatalf("escape kept the selection")
	}

	if err := e.Pointer(render.Pointer{Type: "click", Target: "nope"}); !errors.Is(err, render.ErrUnknownShape) {
		t.Fatalf("click on unknown shape err = %v, want ErrUnknownShape", err)
	}
}

func TestTickWritesPositionsBack(t *testing.T) {
	e := birthRate(t)

	if !e.Tick() {
		t.Fatalf("Tick = false on a fresh layout")
	}
	f := e.Frame()
	n := node(t, e, "v0", "b0")
	if n.X != f.Circles[0].X || n.Y != f.Circles[0].Y {
		t.Fatalf("graph position = (%v, %v), frame = (%v, %v)", n.X, n.Y, f.Circles[0].X, f.Circles[0].Y)
	}

	ticks := e.Settle(10000)
	if ticks == 0 {
		t.Fatalf("Settle ran no ticks")
	}
	if e.Tick() {
		t.Fatalf("Tick = true after settling")
	}
}

func TestDragPinsWithoutRestart(t *testing.T) {
	e := birthRate(t)
	e.Settle(5)
	before := e.Frame().Tick

	if err := e.Pointer(render.Pointer{Type: "drag", Target: "b0", X: 120, Y: 80}); err != nil {
		t.Fatalf("drag: %v", err)
	}
	n := node(t, e, "v0", "b0")
	if !n.Pinned() || *n.FX != 120 || *n.FY != 80 {
		t.Fatalf("node after drag = %+v, want pinned at (120, 80)", n)
	}
	f := e.Frame()
	if c := f.Circles[0]; !c.Pinned || c.X != 120 || c.Y != 80 {
		t.Fatalf("circle after drag = %+v, want pinned at (120, 80)", c)
	}
	if f.Tick != before {
		t.Fatalf("frame tick = %d after drag, want %d (no restart)", f.Tick, before)
	}
}

func TestAttachClockTicksEveryFrame(t *testing.T) {
	e := birthRate(t)
	clock := timectrl.NewFrameClock(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 16*time.Millisecond, timectrl.Accelerated)
	e.AttachClock(clock)

	clock.Step()
	clock.Step()
	if got := e.Frame().Tick; got != 2 {
		t.Fatalf("frame tick = %d after two clock frames, want 2", got)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	a := birthRate(t, WithStore(store, "population"))
	a.Settle(20)

	res, err := a.Save(ctx, "")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.N != 1 {
		t.Fatalf("saved %d views, want 1", res.N)
	}

	b := New(ctx, WithStore(store, "population"))
	t.Cleanup(b.Close)
	if err := b.Load(ctx, ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(a.Graph(), b.Graph(), cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("loaded graph mismatch (-saved +loaded):\n%s", diff)
	}
	if f := b.Frame(); len(f.Circles) != 1 || len(f.Squares) != 1 {
		t.Fatalf("loaded frame = %d circles, %d squares, want 1 and 1", len(f.Circles), len(f.Squares))
	}

	names, err := b.Collections(ctx)
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if diff := cmp.Diff([]string{"population"}, names); diff != "" {
		t.Fatalf("collections mismatch (-want +got):\n%s", diff)
	}

	if err := b.DeleteCollection(ctx, "population"); err != nil {
		t.Fatalf("DeleteCollection: %v", err)
	}
	if len(b.Graph()) != 1 {
		t.Fatalf("DeleteCollection touched the working set")
	}
}

func TestFailedLoadClearsWorkingSet(t *testing.T) {
	e := birthRate(t, WithStore(docstore.NewMemoryStore(), "objects"))

	err := e.Load(context.Background(), "missing")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("Load err = %v, want ErrNotFound", err)
	}
	if got := e.Graph(); len(got) != 1 || got[0].Parent != "" || len(got[0].Nodes) != 0 || len(got[0].Links) != 0 {
		t.Fatalf("graph after failed load = %+v, want one empty root view", got)
	}
	if f := e.Frame(); len(f.Circles)+len(f.Squares)+len(f.Links) != 0 {
		t.Fatalf("frame after failed load still draws shapes: %+v", f)
	}
}

func TestEmptyDiagramsHoldARootView(t *testing.T) {
	ctx := context.Background()
	store := docstore.NewMemoryStore()
	if _, err := store.Save(ctx, "blank", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	d := &editor.ScriptedDialogs{Answers: []string{"Population", "Birth Rate"}}
	e := New(ctx, WithDialogs(d), WithStore(store, "blank"))
	t.Cleanup(e.Close)

	if got := e.Graph(); len(got) != 1 || got[0].Parent != "" {
		t.Fatalf("graph after New = %+v, want one root view", got)
	}
	if err := e.Do(func(c *editor.Controller) error { return c.NewSquareNode() }); err != nil {
		t.Fatalf("NewSquareNode on a new session: %v", err)
	}

	if err := e.Load(ctx, ""); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got := e.Graph()
	if len(got) != 1 || got[0].Parent != "" || len(got[0].Nodes) != 0 {
		t.Fatalf("graph after loading an empty collection = %+v, want one empty root view", got)
	}
	if err := e.Do(func(c *editor.Controller) error { return c.NewCircleNode() }); err != nil {
		t.Fatalf("NewCircleNode after loading an empty collection: %v", err)
	}
	if f := e.Frame(); len(f.Circles) != 1 || f.Circles[0].Text != "Birth Rate" {
		t.Fatalf("circles = %+v, want Birth Rate", f.Circles)
	}
}

func TestCloseDetachesClock(t *testing.T) {
	e := birthRate(t)
	clock := timectrl.NewFrameClock(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 16*time.Millisecond, timectrl.Accelerated)
	e.AttachClock(clock)
	clock.Step()
	e.Close()

	before := e.Graph()
	clock.Step()
	clock.Step()
	if diff := cmp.Diff(before, e.Graph()); diff != "" {
		t.Fatalf("clock frames moved nodes after Close (-before +after):\n%s", diff)
	}

	// A clock attached after Close is ignored too.
	late := timectrl.NewFrameClock(time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 16*time.Millisecond, timectrl.Accelerated)
	e.AttachClock(late)
	late.Step()
	if diff := cmp.Diff(before, e.Graph()); diff != "" {
		t.Fatalf("late clock moved nodes after Close (-before +after):\n%s", diff)
	}
}

func TestPersistenceNeedsAStore(t *testing.T) {
	e := New(context.Background())
	t.Cleanup(e.Close)
	ctx := context.Background()

	if _, err := e.Save(ctx, "objects"); !errors.Is(err, ErrNoStore) {
		t.Fatalf("Save err = %v, want ErrNoStore", err)
	}
	if err := e.Load(ctx, "objects"); !errors.Is(err, ErrNoStore) {
		t.Fatalf("Load err = %v, want ErrNoStore", err)
	}
	if _, err := e.Collections(ctx); !errors.Is(err, ErrNoStore) {
		t.Fatalf("Collections err = %v, want ErrNoStore", err)
	}

	s := New(ctx, WithStore(docstore.NewMemoryStore(), ""))
	t.Cleanup(s.Close)
	if _, err := s.Save(ctx, docstore.ReservedCollection); !errors.Is(err, docstore.ErrReserved) {
		t.Fatalf("Save reserved err = %v, want ErrReserved", err)
	}
	if err := s.DeleteCollection(ctx, ""); !errors.Is(err, docstore.ErrInvalidName) {
		t.Fatalf("DeleteCollection empty err = %v, want ErrInvalidName", err)
	}
}

func TestSearchAndReveal(t *testing.T) {
	e := birthRate(t)

	got := e.Search("birth", 0)
	if len(got) != 2 {
		t.Fatalf("Search(birth) = %+v, want Birth Rate and births", got)
	}
	if got[0].Text != "Birth Rate" || got[0].Ref != model.NodeRef("b0") {
		t.Fatalf("first result = %+v, want node b0 Birth Rate", got[0])
	}
	if err := e.Reveal(got[0]); err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !e.Frame().Circles[0].Clicked {
		t.Fatalf("revealed node is not selected")
	}

	// The index follows edits.
	if err := e.Do(func(c *editor.Controller) error { return c.Rename("Fertility") }); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got := e.Search("birth rate", 0); len(got) != 0 {
		t.Fatalf("stale search result after rename: %+v", got)
	}
	if got := e.Search("fertility", 0); len(got) != 1 {
		t.Fatalf("Search(fertility) = %+v, want one hit", got)
	}
}

func TestCloseDetachesInput(t *testing.T) {
	e := New(context.Background())
	if e.ID() == "" {
		t.Fatalf("session id is empty")
	}
	e.Close()
	if err := e.Key(render.Key{Key: "Escape"}); !errors.Is(err, render.ErrClosed) {
		t.Fatalf("Key after Close err = %v, want ErrClosed", err)
	}
}
