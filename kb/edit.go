package kb

import (
	"fmt"

	"github.com/signalsfoundry/stockflow-editor/model"
)

// SetViewText renames a view.
func (g *Graph) SetViewText(id model.ViewID, text string) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(id)
		if v == nil {
			return nil, fmt.Errorf("rename view %q: %w", id, ErrViewNotFound)
		}
		v.Text = model.NullString(text)
		return []Event{{Type: EventViewUpdated, View: id}}, nil
	})
}

// ReparentView points a view at a new parent.
func (g *Graph) ReparentView(id, parent model.ViewID) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(id)
		if v == nil {
			return nil, fmt.Errorf("reparent view %q: %w", id, ErrViewNotFound)
		}
		if parent != "" && g.view(parent) == nil {
			return nil, fmt.Errorf("reparent under %q: %w", parent, ErrViewNotFound)
		}
		v.Parent = parent
		return []Event{{Type: EventViewUpdated, View: id}}, nil
	})
}

// SetChild records child as the subsystem of a node.
func (g *Graph) SetChild(view model.ViewID, id model.NodeID, child model.ViewID) error {
	return g.updateNode(view, id, func(_ *model.View, n *model.Node) error {
		n.Child = child
		return nil
	})
}

// SetNodeText renames a node. A node owning a subsystem renames the
// subsystem view as well.
func (g *Graph) SetNodeText(view model.ViewID, id model.NodeID, text string) error {
	var child model.ViewID
	err := g.updateNode(view, id, func(_ *model.View, n *model.Node) error {
		n.Text = model.NullString(text)
		child = n.Child
		return nil
	})
	if err != nil || child == "" {
		return err
	}
	if err := g.SetViewText(child, text); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// SetLinkText renames a link together with the boundary nodes standing in
// for it inside its endpoints' subsystems.
func (g *Graph) SetLinkText(view model.ViewID, id model.LinkID, text string) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("rename link in %q: %w", view, ErrViewNotFound)
		}
		li := linkIndex(v, id)
		if li < 0 {
			return nil, fmt.Errorf("rename link %q: %w", id, ErrLinkNotFound)
		}
		v.Links[li].Text = text
		events := []Event{{Type: EventLinkUpdated, View: view, Link: id}}

		for _, end := range []model.NodeID{v.Links[li].Source, v.Links[li].Target} {
			ni := nodeIndex(v, end)
			if ni < 0 {
				continue
			}
			child := g.view(v.Nodes[ni].Child)
			if child == nil {
				continue
			}
			for i := range child.Nodes {
				if child.Nodes[i].ParentLink == id {
					child.Nodes[i].Text = model.NullString(text)
					events = append(events, Event{Type: EventNodeUpdated, View: child.ID, Node: child.Nodes[i].ID})
				}
			}
		}
		return events, nil
	})
}

// SetNodeWikiref sets or clears a node's wiki reference.
func (g *Graph) SetNodeWikiref(view model.ViewID, id model.NodeID, ref string) error {
	return g.updateNode(view, id, func(_ *model.View, n *model.Node) error {
		n.Wikiref = model.NullString(ref)
		return nil
	})
}

// SetLinkWikiref sets or clears a link's wiki reference.
func (g *Graph) SetLinkWikiref(view model.ViewID, id model.LinkID, ref string) error {
	return g.updateLink(view, id, func(l *model.Link) {
		l.Wikiref = model.NullString(ref)
	})
}

// ToggleLinkType flips a link between solid and dashed.
func (g *Graph) ToggleLinkType(view model.ViewID, id model.LinkID) error {
	return g.updateLink(view, id, func(l *model.Link) {
		if l.Type == model.LinkSolid {
			l.Type = model.LinkDashed
		} else {
			l.Type = model.LinkSolid
		}
	})
}

// ToggleNodeType flips a proper node between circle and square. Circles are
// positioned by centre and squares by top-left corner, so the stored point
// shifts by the radius to keep the shape where it was.
func (g *Graph) ToggleNodeType(view model.ViewID, id model.NodeID) error {
	return g.updateNode(view, id, func(_ *model.View, n *model.Node) error {
		switch n.Type {
		case model.NodeCircle:
			n.Type = model.NodeSquare
			n.X -= n.R
			n.Y -= n.R
		case model.NodeSquare:
			n.Type = model.NodeCircle
			n.X += n.R
			n.Y += n.R
		default:
			return fmt.Errorf("toggle node %q of type %q: not a proper node", id, n.Type)
		}
		return nil
	})
}

// PinNode fixes a node at (fx, fy); nil values release the pin.
func (g *Graph) PinNode(view model.ViewID, id model.NodeID, fx, fy *float64) error {
	return g.updateNode(view, id, func(_ *model.View, n *model.Node) error {
		n.FX, n.FY = fx, fy
		if fx != nil {
			n.X = *fx
		}
		if fy != nil {
			n.Y = *fy
		}
		return nil
	})
}

// Position is a simulated node placement written back by the layout.
type Position struct {
	ID   model.NodeID
	X, Y float64
	R    float64
	FX   *float64
	FY   *float64
}

// SetPositions stores simulated positions for the nodes of a view. It emits
// no events: positions change every animation frame and carry no model
// meaning beyond persistence.
func (g *Graph) SetPositions(view model.ViewID, positions []Position) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	v := g.view(view)
	if v == nil {
		return fmt.Errorf("set positions in %q: %w", view, ErrViewNotFound)
	}
	for _, p := range positions {
		i := nodeIndex(v, p.ID)
		if i < 0 {
			continue
		}
		n := &v.Nodes[i]
		n.X, n.Y, n.R = p.X, p.Y, p.R
		n.FX, n.FY = p.FX, p.FY
	}
	return nil
}

func (g *Graph) updateNode(view model.ViewID, id model.NodeID, fn func(*model.View, *model.Node) error) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("update node in %q: %w", view, ErrViewNotFound)
		}
		i := nodeIndex(v, id)
		if i < 0 {
			return nil, fmt.Errorf("update node %q: %w", id, ErrNodeNotFound)
		}
		if err := fn(v, &v.Nodes[i]); err != nil {
			return nil, err
		}
		return []Event{{Type: EventNodeUpdated, View: view, Node: id}}, nil
	})
}

func (g *Graph) updateLink(view model.ViewID, id model.LinkID, fn func(*model.Link)) error {
	return g.mutate(func() ([]Event, error) {
		v := g.view(view)
		if v == nil {
			return nil, fmt.Errorf("update link in %q: %w", view, ErrViewNotFound)
		}
		i := linkIndex(v, id)
		if i < 0 {
			return nil, fmt.Errorf("update link %q: %w", id, ErrLinkNotFound)
		}
		fn(&v.Links[i])
		return []Event{{Type: EventLinkUpdated, View: view, Link: id}}, nil
	})
}
