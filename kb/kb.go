package kb

import (
	"errors"
	"sync"

	"github.com/signalsfoundry/stockflow-editor/model"
)

var (
	// ErrViewNotFound is returned when a view id does not resolve.
	ErrViewNotFound = errors.New("view not found")
	// ErrNodeNotFound is returned when a node id does not resolve in its view.
	ErrNodeNotFound = errors.New("node not found")
	// ErrLinkNotFound is returned when a link id does not resolve in its view.
	ErrLinkNotFound = errors.New("link not found")
	// ErrNotGlueable is returned when a boundary operation targets a proper node.
	ErrNotGlueable = errors.New("node does not track glued links")
)

// EventType indicates what kind of change happened in the graph.
type EventType int

const (
	EventViewCreated EventType = iota
	EventViewUpdated
	EventViewDeleted
	EventNodeCreated
	EventNodeUpdated
	EventNodeDeleted
	EventLinkCreated
	EventLinkUpdated
	EventLinkDeleted
	EventReplaced
)

func (t EventType) String() string {
	switch t {
	case EventViewCreated:
		return "view_created"
	case EventViewUpdated:
		return "view_updated"
	case EventViewDeleted:
		return "view_deleted"
	case EventNodeCreated:
		return "node_created"
	case EventNodeUpdated:
		return "node_updated"
	case EventNodeDeleted:
		return "node_deleted"
	case EventLinkCreated:
		return "link_created"
	case EventLinkUpdated:
		return "link_updated"
	case EventLinkDeleted:
		return "link_deleted"
	case EventReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers after a mutation has been applied.
type Event struct {
	Type EventType
	View model.ViewID
	Node model.NodeID
	Link model.LinkID
}

// Graph is the arena that owns every view of a document. Views live in a
// slot-ordered slice; nodes and links live in slot-ordered slices of their
// view. Readers get deep copies and mutators take ids, so no reference to
// the stored objects escapes.
type Graph struct {
	mu sync.RWMutex

	views []*model.View

	subs    map[int]func(Event)
	nextSub int
}

// NewGraph constructs an empty graph.
func NewGraph() *Graph {
	return &Graph{subs: make(map[int]func(Event))}
}

// Subscribe registers a callback for graph events. It returns an unsubscribe function.
func (g *Graph) Subscribe(fn func(Event)) (unsubscribe func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.nextSub
	g.nextSub++
	g.subs[id] = fn

	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.subs, id)
	}
}

// mutate runs fn under the write lock and then notifies subscribers of the
// events it produced. Notification happens outside the lock so callbacks
// may read the graph.
func (g *Graph) mutate(fn func() ([]Event, error)) error {
	g.mu.Lock()
	events, err := fn()
	subs := make([]func(Event), 0, len(g.subs))
	for i := 0; i < g.nextSub; i++ {
		if s, ok := g.subs[i]; ok {
			subs = append(subs, s)
		}
	}
	g.mu.Unlock()

	for _, e := range events {
		for _, s := range subs {
			s(e)
		}
	}
	return err
}

// Len returns the number of views.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.views)
}

// Counts returns the number of views, nodes and links across the document.
func (g *Graph) Counts() (views, nodes, links int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, v := range g.views {
		nodes += len(v.Nodes)
		links += len(v.Links)
	}
	return len(g.views), nodes, links
}

// View returns a copy of the view with the given id.
func (g *Graph) View(id model.ViewID) (model.View, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v := g.view(id)
	if v == nil {
		return model.View{}, false
	}
	return v.Clone(), true
}

// Views returns a copy of every view in slot order.
func (g *Graph) Views() []model.View {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]model.View, len(g.views))
	for i, v := range g.views {
		out[i] = v.Clone()
	}
	return out
}

// Node returns a copy of a node.
func (g *Graph) Node(view model.ViewID, id model.NodeID) (model.Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v := g.view(view)
	if v == nil {
		return model.Node{}, false
	}
	i := nodeIndex(v, id)
	if i < 0 {
		return model.Node{}, false
	}
	return v.Nodes[i].Clone(), true
}

// Link returns a copy of a link.
func (g *Graph) Link(view model.ViewID, id model.LinkID) (model.Link, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v := g.view(view)
	if v == nil {
		return model.Link{}, false
	}
	i := linkIndex(v, id)
	if i < 0 {
		return model.Link{}, false
	}
	return v.Links[i], true
}

// RootOf walks parent pointers from id and returns the root of its tree.
// It returns "" if id does not resolve.
func (g *Graph) RootOf(id model.ViewID) model.ViewID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.rootOf(id)
}

// FirstRoot returns the root of the tree holding the first stored view.
func (g *Graph) FirstRoot() model.ViewID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if len(g.views) == 0 {
		return ""
	}
	return g.rootOf(g.views[0].ID)
}

func (g *Graph) rootOf(id model.ViewID) model.ViewID {
	v := g.view(id)
	if v == nil {
		return ""
	}
	seen := map[model.ViewID]bool{}
	for !seen[v.ID] {
		seen[v.ID] = true
		p := g.view(v.Parent)
		if p == nil {
			return v.ID
		}
		v = p
	}
	// parent cycle; report the view we started from
	return id
}

// ConnectingLinks returns the ids of links leaving and entering node.
func (g *Graph) ConnectingLinks(view model.ViewID, node model.NodeID) (outgoing, incoming []model.LinkID) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v := g.view(view)
	if v == nil {
		return nil, nil
	}
	return connecting(v, node)
}

func connecting(v *model.View, node model.NodeID) (outgoing, incoming []model.LinkID) {
	for _, l := range v.Links {
		if l.Source == node {
			outgoing = append(outgoing, l.ID)
		}
		if l.Target == node {
			incoming = append(incoming, l.ID)
		}
	}
	return outgoing, incoming
}

// LinkHasLiveChildren reports whether a child view of either endpoint still
// holds a boundary node whose parentlink is this link.
func (g *Graph) LinkHasLiveChildren(view model.ViewID, link model.LinkID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v := g.view(view)
	if v == nil {
		return false
	}
	i := linkIndex(v, link)
	if i < 0 {
		return false
	}
	l := v.Links[i]
	for _, end := range []model.NodeID{l.Source, l.Target} {
		j := nodeIndex(v, end)
		if j < 0 {
			continue
		}
		child := g.view(v.Nodes[j].Child)
		if child == nil {
			continue
		}
		for _, n := range child.Nodes {
			if n.ParentLink == link {
				return true
			}
		}
	}
	return false
}

// ExternalLinks returns the links of the parent view that cross into view
// through the node owning it. Links leaving the owner become sinks inside
// the view; links entering it become sources.
func (g *Graph) ExternalLinks(view model.ViewID) (leaving, entering []model.Link) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v := g.view(view)
	if v == nil {
		return nil, nil
	}
	parent := g.view(v.Parent)
	if parent == nil {
		return nil, nil
	}
	var owner model.NodeID
	for _, n := range parent.Nodes {
		if n.Child == v.ID {
			owner = n.ID
			break
		}
	}
	if owner == "" {
		return nil, nil
	}
	for _, l := range parent.Links {
		if l.Source == owner {
			leaving = append(leaving, l)
		} else if l.Target == owner {
			entering = append(entering, l)
		}
	}
	return leaving, entering
}

func (g *Graph) view(id model.ViewID) *model.View {
	if id == "" {
		return nil
	}
	for _, v := range g.views {
		if v.ID == id {
			return v
		}
	}
	return nil
}

func (g *Graph) viewIndex(id model.ViewID) int {
	for i, v := range g.views {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func nodeIndex(v *model.View, id model.NodeID) int {
	for i, n := range v.Nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func linkIndex(v *model.View, id model.LinkID) int {
	for i, l := range v.Links {
		if l.ID == id {
			return i
		}
	}
	return -1
}
