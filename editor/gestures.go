package editor

import (
	"github.com/signalsfoundry/stockflow-editor/model"
)

// HoverNode marks a node as hovered. While a target is being chosen, a
// valid target becomes the prospective link's end.
func (c *Controller) HoverNode(id model.NodeID) error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	n, err := c.node(view, id)
	if err != nil {
		return err
	}
	c.hovered = []model.ObjectRef{model.NodeRef(id)}
	if c.mode == ModeAwaitingTarget {
		if src, ok := c.graph.Node(view, c.source); ok && validTarget(src, n) {
			c.target = id
		}
	}
	c.changed("hover")
	return nil
}

// UnhoverNode clears the hover set. The prospective target is kept.
func (c *Controller) UnhoverNode(id model.NodeID) error {
	return c.unhover()
}

// HoverLink marks a link as hovered.
func (c *Controller) HoverLink(id model.LinkID) error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	if _, err := c.link(view, id); err != nil {
		return err
	}
	c.hovered = []model.ObjectRef{model.LinkRef(id)}
	c.changed("hover")
	return nil
}

// UnhoverLink clears the hover set.
func (c *Controller) UnhoverLink(id model.LinkID) error {
	return c.unhover()
}

func (c *Controller) unhover() error {
	if _, err := c.gesture(); err != nil {
		return err
	}
	c.hovered = nil
	c.changed("unhover")
	return nil
}

// ClickNode selects a node and, while a link is being authored, uses it as
// the source or the target.
func (c *Controller) ClickNode(id model.NodeID) error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	n, err := c.node(view, id)
	if err != nil {
		return err
	}
	c.clicked = []model.ObjectRef{model.NodeRef(id)}

	switch c.mode {
	case ModeAwaitingSource:
		c.chooseSource(n)
		return nil
	case ModeAwaitingTarget:
		return c.chooseTarget(view, n)
	default:
		c.changed("click")
		return nil
	}
}

// ClickLink selects a link.
func (c *Controller) ClickLink(id model.LinkID) error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	if _, err := c.link(view, id); err != nil {
		return err
	}
	c.clicked = []model.ObjectRef{model.LinkRef(id)}
	c.changed("click")
	return nil
}

// DoubleClickNode enters the node's subsystem when it has one. Either way
// authoring ends and the selection is cleared.
func (c *Controller) DoubleClickNode(id model.NodeID) error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	n, err := c.node(view, id)
	if err != nil {
		return err
	}
	c.cull()
	if n.Child != "" {
		c.current = n.Child
	}
	c.actionsDisabled = false
	c.resetState()
	c.changed("enter_view")
	return nil
}

// ClickOutside clears the selection and abandons any link in progress.
func (c *Controller) ClickOutside() error {
	if _, err := c.gesture(); err != nil {
		return err
	}
	c.finishAuthoring()
	c.changed("clear")
	return nil
}

// Escape behaves like a click outside every shape.
func (c *Controller) Escape() error { return c.ClickOutside() }

// DragNode pins a node where the pointer is.
func (c *Controller) DragNode(id model.NodeID, x, y float64) error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	if err := c.graph.PinNode(view, id, model.Float(x), model.Float(y)); err != nil {
		return err
	}
	c.changedNode("drag", id)
	return nil
}

// GoBack ascends to the parent view; at a root it only clears state.
func (c *Controller) GoBack() error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	c.cull()
	c.actionsDisabled = false
	if v, ok := c.graph.View(view); ok && v.Parent != "" {
		c.current = v.Parent
	}
	c.resetState()
	c.changed("go_back")
	return nil
}
