package render

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/signalsfoundry/stockflow-editor/layout"
	"github.com/signalsfoundry/stockflow-editor/model"
)

var (
	// ErrClosed is returned by a Router after Close.
	ErrClosed = errors.New("router closed")
	// ErrUnknownShape is returned when a pointer event names no drawn shape.
	ErrUnknownShape = errors.New("unknown shape")
)

// Kind names a semantic input event.
type Kind string

const (
	NodeHover    Kind = "node:hover"
	NodeUnhover  Kind = "node:unhover"
	NodeClick    Kind = "node:click"
	NodeDblClick Kind = "node:dblclick"
	NodeDrag     Kind = "node:drag"
	LinkHover    Kind = "link:hover"
	LinkUnhover  Kind = "link:unhover"
	LinkClick    Kind = "link:click"
	OutsideClick Kind = "outside:click"
	KeyDelete    Kind = "key:delete"
	KeyEscape    Kind = "key:escape"
	KeyUp        Kind = "key:up"
)

// Event is a semantic input event. Node or Link is set for shape events;
// X and Y for drags.
type Event struct {
	Kind Kind
	Node model.NodeID
	Link model.LinkID
	X, Y float64
}

func (e Event) String() string {
	switch {
	case e.Node != "":
		return fmt.Sprintf("%s %s", e.Kind, e.Node)
	case e.Link != "":
		return fmt.Sprintf("%s %s", e.Kind, e.Link)
	default:
		return string(e.Kind)
	}
}

// Handler consumes semantic events.
type Handler interface {
	HandleEvent(Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event) error

// HandleEvent calls f(ev).
func (f HandlerFunc) HandleEvent(ev Event) error { return f(ev) }

// Pointer is a raw pointer event. Type is one of mouseover, mouseout,
// click, dblclick, dragstart or drag. Target is the id of the shape under
// the pointer, empty for the background.
type Pointer struct {
	Type   string
	Target string
	X, Y   float64
}

// Key is a raw key press. InTextField is set when focus is in an editable
// element; such presses belong to the field and are never routed.
type Key struct {
	Key         string
	InTextField bool
}

// Scene supplies the frame the router resolves shape ids against.
type Scene interface {
	Frame() layout.Frame
}

// Router turns raw input into semantic events for one handler. Its key
// bindings live as long as the router: Close tears them down.
type Router struct {
	mu      sync.Mutex
	scene   Scene
	handler Handler
	closed  bool
}

// NewRouter binds handler to input resolved against scene.
func NewRouter(scene Scene, handler Handler) *Router {
	return &Router{scene: scene, handler: handler}
}

// Close detaches the handler. Later input returns ErrClosed.
func (r *Router) Close() {
	r.mu.Lock()
	r.closed = true
	r.handler = nil
	r.mu.Unlock()
}

// Closed reports whether Close was called.
func (r *Router) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Pointer routes a pointer event. Events on the prospective link and
// unhandled pointer types are dropped without error.
func (r *Router) Pointer(p Pointer) error {
	h, err := r.active()
	if err != nil {
		return err
	}
	if p.Target == "" || p.Target == layout.ProspectiveLinkID {
		if p.Type == "click" && p.Target == "" {
			return h.HandleEvent(Event{Kind: OutsideClick})
		}
		return nil
	}

	node, link, ok := resolve(r.scene.Frame(), p.Target)
	if !ok {
		return fmt.Errorf("%s on %q: %w", p.Type, p.Target, ErrUnknownShape)
	}
	var ev Event
	if node != "" {
		ev.Node = node
		switch p.Type {
		case "mouseover":
			ev.Kind = NodeHover
		case "mouseout":
			ev.Kind = NodeUnhover
		case "click":
			ev.Kind = NodeClick
		case "dblclick":
			ev.Kind = NodeDblClick
		case "dragstart", "drag":
			ev.Kind, ev.X, ev.Y = NodeDrag, p.X, p.Y
		default:
			return nil
		}
	} else {
		ev.Link = link
		switch p.Type {
		case "mouseover":
			ev.Kind = LinkHover
		case "mouseout":
			ev.Kind = LinkUnhover
		case "click":
			ev.Kind = LinkClick
		default:
			return nil
		}
	}
	return h.HandleEvent(ev)
}

// Key routes Delete, Backspace, Escape and ArrowUp. Anything else, and any
// key typed into a text field, is ignored.
func (r *Router) Key(k Key) error {
	h, err := r.active()
	if err != nil {
		return err
	}
	if k.InTextField {
		return nil
	}
	var kind Kind
	switch k.Key {
	case "Delete", "Backspace":
		kind = KeyDelete
	case "Escape":
		kind = KeyEscape
	case "ArrowUp":
		kind = KeyUp
	default:
		return nil
	}
	return h.HandleEvent(Event{Kind: kind})
}

func (r *Router) active() (Handler, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.handler == nil {
		return nil, ErrClosed
	}
	return r.handler, nil
}

// resolve maps a shape id to the node or link it draws. Boundary markers
// carry their node's id with layout.MarkerSuffix appended.
func resolve(f layout.Frame, id string) (model.NodeID, model.LinkID, bool) {
	if _, ok := f.Shape(model.NodeID(id)); ok {
		return model.NodeID(id), "", true
	}
	if _, ok := f.Link(id); ok {
		return "", model.LinkID(id), true
	}
	if base, ok := strings.CutSuffix(id, layout.MarkerSuffix); ok {
		for _, m := range f.Markers {
			if m.ID == id {
				return model.NodeID(base), "", true
			}
		}
	}
	return "", "", false
}
