package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/signalsfoundry/stockflow-editor/layout"
	"github.com/signalsfoundry/stockflow-editor/model"
)

func testEngine(showExternals bool) *layout.Engine {
	e := layout.NewEngine(layout.DefaultConfig())
	e.Update(layout.Input{
		View: model.View{
			ID:   "v1",
			Text: "Population",
			Nodes: []model.Node{
				{ID: "b0", Text: "Births", Type: model.NodeSource, GluedLinks: []model.LinkID{"l0"}, ParentLink: "l0"},
				{ID: "b1", Text: "Adults", Type: model.NodeSquare, X: 300, Y: 200, R: 15, Wikiref: "b1"},
				{ID: "b2", Text: "Aging", Type: model.NodeCircle, X: 200, Y: 150, R: 15},
			},
			Links: []model.Link{
				{ID: "l0", Text: "inflow", Source: "b0", Target: "b1", Type: model.LinkSolid, Glued: true},
				{ID: "l1", Text: "maturation", Source: "b1", Target: "b2", Type: model.LinkDashed},
			},
		},
		Prospective:   &layout.ProspectiveLink{Source: "b2", Target: "b1", Type: model.LinkSolid},
		ShowExternals: showExternals,
	})
	return e
}

type recorder struct{ events []Event }

func (r *recorder) HandleEvent(ev Event) error {
	r.events = append(r.events, ev)
	return nil
}

func TestRouterResolvesShapes(t *testing.T) {
	s := NewSync(testEngine(true))
	defer s.Close()
	rec := &recorder{}
	r := NewRouter(s, rec)

	inputs := []Pointer{
		{Type: "mouseover", Target: "b1"},
		{Type: "mouseout", Target: "b1"},
		{Type: "click", Target: "b0h"},
		{Type: "dblclick", Target: "b2"},
		{Type: "drag", Target: "b2", X: 10, Y: 20},
		{Type: "mouseover", Target: "l1"},
		{Type: "click", Target: "l0"},
		{Type: "click", Target: layout.ProspectiveLinkID},
		{Type: "click"},
	}
	for _, p := range inputs {
		if err := r.Pointer(p); err != nil {
			t.Fatalf("Pointer(%+v) error: %v", p, err)
		}
	}

	want := []Event{
		{Kind: NodeHover, Node: "b1"},
		{Kind: NodeUnhover, Node: "b1"},
		{Kind: NodeClick, Node: "b0"},
		{Kind: NodeDblClick, Node: "b2"},
		{Kind: NodeDrag, Node: "b2", X: 10, Y: 20},
		{Kind: LinkHover, Link: "l1"},
		{Kind: LinkClick, Link: "l0"},
		{Kind: OutsideClick},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Fatalf("event %d = %v, want %v", i, rec.events[i], want[i])
		}
	}
}

func TestRouterRejectsHiddenMarkers(t *testing.T) {
	s := NewSync(testEngine(false))
	defer s.Close()
	r := NewRouter(s, &recorder{})

	if err := r.Pointer(Pointer{Type: "click", Target: "b0h"}); !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("click on hidden marker: err = %v, want ErrUnknownShape", err)
	}
}

func TestRouterKeyBindings(t *testing.T) {
	rec := &recorder{}
	r := NewRouter(NewSync(testEngine(false)), rec)

	keys := []Key{
		{Key: "Backspace"},
		{Key: "Delete"},
		{Key: "Escape"},
		{Key: "ArrowUp"},
		{Key: "Backspace", InTextField: true},
		{Key: "a"},
	}
	for _, k := range keys {
		if err := r.Key(k); err != nil {
			t.Fatalf("Key(%+v) error: %v", k, err)
		}
	}
	want := []Kind{KeyDelete, KeyDelete, KeyEscape, KeyUp}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want kinds %v", rec.events, want)
	}
	for i, k := range want {
		if rec.events[i].Kind != k {
			t.Fatalf("event %d = %s, want %s", i, rec.events[i].Kind, k)
		}
	}

	r.Close()
	if err := r.Key(Key{Key: "Escape"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Key after Close: err = %v, want ErrClosed", err)
	}
	if err := r.Pointer(Pointer{Type: "click"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Pointer after Close: err = %v, want ErrClosed", err)
	}
	if len(rec.events) != len(want) {
		t.Fatalf("closed router delivered events")
	}
}

func TestSyncFollowsEngine(t *testing.T) {
	e := testEngine(false)
	var hooked int
	s := NewSync(e, WithFrameHook(func(layout.Event) { hooked++ }))

	e.Tick()
	e.Tick()
	if s.Frames() != 2 || hooked != 2 || s.Last() != layout.EventTick {
		t.Fatalf("frames=%d hooked=%d last=%s, want 2 2 tick", s.Frames(), hooked, s.Last())
	}
	if s.Frame().Tick != 2 {
		t.Fatalf("frame tick = %d, want 2", s.Frame().Tick)
	}

	s.Close()
	e.Tick()
	if s.Frames() != 2 {
		t.Fatalf("closed sync received frames: %d", s.Frames())
	}
}

func TestWriteSVG(t *testing.T) {
	s := NewSync(testEngine(true))
	defer s.Close()

	var buf bytes.Buffer
	if err := s.WriteSVG(&buf); err != nil {
		t.Fatalf("WriteSVG error: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`<svg`,
		`id="arrowhead"`,
		`points="0 0, 5 1.75, 0 3.5"`,
		`id="l0"`,
		`id="temp"`,
		`marker-end="url(#arrowhead)"`,
		`stroke-dasharray`,
		`id="b1"`,
		`id="b2"`,
		`id="b0h"`,
		`Population`,
		`maturation`,
		`Births`,
		`</svg>`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("svg missing %q:\n%s", want, out)
		}
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSVGReportsWriteErrors(t *testing.T) {
	if err := WriteSVG(failingWriter{}, layout.Frame{Width: 10, Height: 10}); err == nil {
		t.Fatalf("WriteSVG error = nil, want write failure")
	}
}
