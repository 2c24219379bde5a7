package kb

import (
	"fmt"
	"slices"

	"github.com/signalsfoundry/stockflow-editor/model"
)

// Defaults for freshly created proper nodes.
const (
	DefaultNodeX      = 300
	DefaultNodeY      = 200
	DefaultNodeRadius = 15
)

// firstEmptySlot returns the insertion index for a new element: the first
// index whose occupant's numeric suffix exceeds the index, else the length.
// Inserting there keeps every element's suffix >= its index.
func firstEmptySlot[T any](items []T, id func(T) string) int {
	for i, it := range items {
		if n, ok := model.Slot(id(it)); ok && n > i {
			return i
		}
	}
	return len(items)
}

// CreateView inserts a view with no nodes or links and returns its id.
func (g *Graph) CreateView(text string, parent model.ViewID) model.ViewID {
	var id model.ViewID
	_ = g.mutate(func() ([]Event, error) {
		slot := firstEmptySlot(g.views, func(v *model.View) string { return string(v.ID) })
		id = model.NewViewID(slot)
		g.views = slices.Insert(g.views, slot, &model.View{
			ID:     id,
			Text:   model.NullString(text),
			Parent: parent,
			Nodes:  []model.Node{},
			Links:  []model.Link{},
		})
		return []Event{{Type: EventViewCreated, View: id}}, nil
	})
	return id
}

// CreateNode inserts a proper node at the default position and radius.
func (g *Graph) CreateNode(view model.ViewID, text string, typ model.NodeType, child model.ViewID) (model.NodeID, error) {
	return g.insertNode(view, model.Node{
		Text:  model.NullString(text),
		Child: child,
		Type:  typ,
		X:     DefaultNodeX,
		Y:     DefaultNodeY,
		R:     DefaultNodeRadius,
	})
}

// CreateBoundaryNode inserts a source or sink standing in for parentLink of
// the enclosing view. It starts with an empty glued set.
func (g *Graph) CreateBoundaryNode(view model.ViewID, text string, typ model.NodeType, parentLink model.LinkID) (model.NodeID, error) {
	if !typ.Boundary() {
		return "", fmt.Errorf("create boundary node of type %q: %w", typ, ErrNotGlueable)
	}
	return g.insertNode(view, model.Node{
		Text:       model.NullString(text),
		Type:       typ,
		GluedLinks: []model.LinkID{},
		ParentLink: parentLink,
	})
}

func (g *Graph) insertNode(view model.ViewID, n model.Node) (model.NodeID, error) {
	var id model.NodeID
	err := g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("create node in %q: %w", view, ErrViewNotFound)
		}
		slot := firstEmptySlot(v.Nodes, func(n model.Node) string { return string(n.ID) })
		id = model.NewNodeID(slot)
		n.ID = id
		v.Nodes = slices.Insert(v.Nodes, slot, n)
		return []Event{{Type: EventNodeCreated, View: view, Node: id}}, nil
	})
	return id, err
}

// CreateLink inserts a link between two nodes of view. A link touching a
// source or sink is marked glued; its id is recorded on every glueable
// endpoint.
func (g *Graph) CreateLink(view model.ViewID, text string, source, target model.NodeID, typ model.LinkType) (model.LinkID, error) {
	var id model.LinkID
	err := g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("create link in %q: %w", view, ErrViewNotFound)
		}
		si, ti := nodeIndex(v, source), nodeIndex(v, target)
		if si < 0 {
			return nil, fmt.Errorf("create link from %q: %w", source, ErrNodeNotFound)
		}
		if ti < 0 {
			return nil, fmt.Errorf("create link to %q: %w", target, ErrNodeNotFound)
		}
		slot := firstEmptySlot(v.Links, func(l model.Link) string { return string(l.ID) })
		id = model.NewLinkID(slot)
		v.Links = slices.Insert(v.Links, slot, model.Link{
			ID:     id,
			Text:   text,
			Source: source,
			Target: target,
			Type:   typ,
			Glued:  v.Nodes[si].Type.Boundary() || v.Nodes[ti].Type.Boundary(),
		})
		events := []Event{{Type: EventLinkCreated, View: view, Link: id}}
		events = append(events, glue(v, view, id, si)...)
		if ti != si {
			events = append(events, glue(v, view, id, ti)...)
		}
		return events, nil
	})
	return id, err
}

func glue(v *model.View, view model.ViewID, link model.LinkID, i int) []Event {
	n := &v.Nodes[i]
	if !n.Type.Glueable() || n.HasGlued(link) {
		return nil
	}
	n.GluedLinks = append(n.GluedLinks, link)
	return []Event{{Type: EventNodeUpdated, View: view, Node: n.ID}}
}

// DeleteNode removes a node. Links still pointing at it are left alone.
func (g *Graph) DeleteNode(view model.ViewID, id model.NodeID) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("delete node in %q: %w", view, ErrViewNotFound)
		}
		i := nodeIndex(v, id)
		if i < 0 {
			return nil, fmt.Errorf("delete node %q: %w", id, ErrNodeNotFound)
		}
		v.Nodes = slices.Delete(v.Nodes, i, i+1)
		return []Event{{Type: EventNodeDeleted, View: view, Node: id}}, nil
	})
}

// DeleteLink removes a link. Endpoint glued sets are the caller's concern.
func (g *Graph) DeleteLink(view model.ViewID, id model.LinkID) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("delete link in %q: %w", view, ErrViewNotFound)
		}
		i := linkIndex(v, id)
		if i < 0 {
			return nil, fmt.Errorf("delete link %q: %w", id, ErrLinkNotFound)
		}
		v.Links = slices.Delete(v.Links, i, i+1)
		return []Event{{Type: EventLinkDeleted, View: view, Link: id}}, nil
	})
}

// Subtree returns id followed by every view reachable from it through node
// child pointers, in discovery order. It does not mutate anything.
func (g *Graph) Subtree(id model.ViewID) []model.ViewID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.subtree(id)
}

func (g *Graph) subtree(id model.ViewID) []model.ViewID {
	if g.view(id) == nil {
		return nil
	}
	seen := map[model.ViewID]bool{id: true}
	out := []model.ViewID{id}
	for i := 0; i < len(out); i++ {
		for _, n := range g.view(out[i]).Nodes {
			if n.Child == "" || seen[n.Child] || g.view(n.Child) == nil {
				continue
			}
			seen[n.Child] = true
			out = append(out, n.Child)
		}
	}
	return out
}

// DeleteView removes a view and every view below it. The removal set is
// computed first; then the views are dropped and any surviving node whose
// child pointed into the set is cleared. It returns the removed ids.
func (g *Graph) DeleteView(id model.ViewID) ([]model.ViewID, error) {
	var removed []model.ViewID
	err := g.mutate(func() ([]Event, error) {
		removed = g.subtree(id)
		if len(removed) == 0 {
			return nil, fmt.Errorf("delete view %q: %w", id, ErrViewNotFound)
		}
		gone := make(map[model.ViewID]bool, len(removed))
		for _, r := range removed {
			gone[r] = true
		}

		kept := g.views[:0]
		for _, v := range g.views {
			if !gone[v.ID] {
				kept = append(kept, v)
			}
		}
		clear(g.views[len(kept):])
		g.views = kept

		var events []Event
		for _, v := range g.views {
			for i := range v.Nodes {
				if gone[v.Nodes[i].Child] {
					v.Nodes[i].Child = ""
					events = append(events, Event{Type: EventNodeUpdated, View: v.ID, Node: v.Nodes[i].ID})
				}
			}
		}
		for _, r := range removed {
			events = append(events, Event{Type: EventViewDeleted, View: r})
		}
		return events, nil
	})
	return removed, err
}

// ConvertToOrphan strips a node of its identity but keeps it as an
// invisible anchor for the links still attached to it. The node is pinned
// where it stands and its glued set becomes the ids of those links.
func (g *Graph) ConvertToOrphan(view model.ViewID, id model.NodeID) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("orphan node in %q: %w", view, ErrViewNotFound)
		}
		i := nodeIndex(v, id)
		if i < 0 {
			return nil, fmt.Errorf("orphan node %q: %w", id, ErrNodeNotFound)
		}
		n := &v.Nodes[i]
		if n.Type == model.NodeSquare {
			// squares are stored by their top-left corner
			n.X += n.R
			n.Y += n.R
		}
		n.Text = ""
		n.Wikiref = ""
		n.Child = ""
		n.Type = model.NodeOrphan
		n.FX = model.Float(n.X)
		n.FY = model.Float(n.Y)
		n.R = 0
		outgoing, incoming := connecting(v, id)
		glued := make([]model.LinkID, 0, len(outgoing)+len(incoming))
		for _, l := range append(outgoing, incoming...) {
			if !slices.Contains(glued, l) {
				glued = append(glued, l)
			}
		}
		n.GluedLinks = glued

		events := []Event{{Type: EventNodeUpdated, View: view, Node: id}}
		// an orphaned source or sink no longer makes its links glued
		for li := range v.Links {
			l := &v.Links[li]
			if !l.Touches(id) {
				continue
			}
			want := false
			for _, end := range []model.NodeID{l.Source, l.Target} {
				if ei := nodeIndex(v, end); ei >= 0 && v.Nodes[ei].Type.Boundary() {
					want = true
				}
			}
			if l.Glued != want {
				l.Glued = want
				events = append(events, Event{Type: EventLinkUpdated, View: view, Link: l.ID})
			}
		}
		return events, nil
	})
}

// TrimBoundaryRef drops link from a source, sink or orphan node's glued
// set and deletes the node once the set is empty. Proper nodes are left
// untouched. It reports whether the node was deleted.
func (g *Graph) TrimBoundaryRef(view model.ViewID, node model.NodeID, link model.LinkID) (bool, error) {
	var deleted bool
	err := g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("trim in %q: %w", view, ErrViewNotFound)
		}
		i := nodeIndex(v, node)
		if i < 0 {
			return nil, fmt.Errorf("trim node %q: %w", node, ErrNodeNotFound)
		}
		var events []Event
		deleted, events = trim(v, view, i, link)
		return events, nil
	})
	return deleted, err
}

func trim(v *model.View, view model.ViewID, i int, link model.LinkID) (bool, []Event) {
	n := &v.Nodes[i]
	if !n.Type.Glueable() {
		return false, nil
	}
	if j := slices.Index(n.GluedLinks, link); j >= 0 {
		n.GluedLinks = slices.Delete(n.GluedLinks, j, j+1)
	}
	if len(n.GluedLinks) > 0 {
		return false, []Event{{Type: EventNodeUpdated, View: view, Node: n.ID}}
	}
	id := n.ID
	v.Nodes = slices.Delete(v.Nodes, i, i+1)
	return true, []Event{{Type: EventNodeDeleted, View: view, Node: id}}
}

// RepointLink moves a link onto new endpoints. The new endpoints are glued
// first, then the old endpoints that are no longer touched are trimmed, so
// an endpoint kept across the move never loses the link.
func (g *Graph) RepointLink(view model.ViewID, link model.LinkID, source, target model.NodeID) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("relink in %q: %w", view, ErrViewNotFound)
		}
		li := linkIndex(v, link)
		if li < 0 {
			return nil, fmt.Errorf("relink %q: %w", link, ErrLinkNotFound)
		}
		si, ti := nodeIndex(v, source), nodeIndex(v, target)
		if si < 0 {
			return nil, fmt.Errorf("relink from %q: %w", source, ErrNodeNotFound)
		}
		if ti < 0 {
			return nil, fmt.Errorf("relink to %q: %w", target, ErrNodeNotFound)
		}

		oldSource, oldTarget := v.Links[li].Source, v.Links[li].Target
		l := &v.Links[li]
		l.Source = source
		l.Target = target
		l.Glued = v.Nodes[si].Type.Boundary() || v.Nodes[ti].Type.Boundary()

		events := []Event{{Type: EventLinkUpdated, View: view, Link: link}}
		events = append(events, glue(v, view, link, si)...)
		if ti != si {
			events = append(events, glue(v, view, link, ti)...)
		}
		for _, old := range []model.NodeID{oldSource, oldTarget} {
			if old == source || old == target {
				continue
			}
			if i := nodeIndex(v, old); i >= 0 {
				_, ev := trim(v, view, i, link)
				events = append(events, ev...)
			}
		}
		return events, nil
	})
}
