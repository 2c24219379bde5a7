package editor

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/kb"
	"github.com/signalsfoundry/stockflow-editor/model"
)

// NewCircleNode prompts for a name and adds a process to the current view.
func (c *Controller) NewCircleNode() error {
	return c.newNode(model.NodeCircle, Prompt{Title: "New Process", Placeholder: "Name of the new process"})
}

// NewSquareNode prompts for a name and adds a stock to the current view.
func (c *Controller) NewSquareNode() error {
	return c.newNode(model.NodeSquare, Prompt{Title: "New Stock", Placeholder: "Name of the new stock"})
}

func (c *Controller) newNode(typ model.NodeType, p Prompt) error {
	view, err := c.dataAction()
	if err != nil {
		return err
	}
	c.prompt(p,
		func(name string) {
			if _, err := c.graph.CreateNode(view, name, typ, ""); err != nil {
				c.log.Warn(c.ctx, "create node failed", logging.Err(err))
				c.notify("create_node", OutcomeError)
				return
			}
			c.resetState()
			c.changed("create_node")
		},
		func() { c.notify("create_node", OutcomeCancelled) })
	return nil
}

// Delete removes the selection. Links with live boundary references are
// kept and reported. Nodes owning a subsystem are confirmed one at a time;
// a node that still has links becomes an orphan instead of disappearing.
// The returned error joins one ErrLinkHasChildren per blocked link.
func (c *Controller) Delete() error {
	view, err := c.dataAction()
	if err != nil {
		return err
	}

	var nodes []model.NodeID
	var links []model.LinkID
	for _, r := range c.live(c.clicked) {
		if id, ok := r.Link(); ok {
			links = append(links, id)
		} else if id, ok := r.Node(); ok {
			nodes = append(nodes, id)
		}
	}

	var blocked []error
	for _, id := range links {
		if err := c.deleteLink(view, id); err != nil {
			blocked = append(blocked, err)
		}
	}

	c.deleteNodes(view, nodes, func() {
		c.cull()
		c.resetState()
		c.changed("delete")
	})
	return errors.Join(blocked...)
}

func (c *Controller) deleteLink(view model.ViewID, id model.LinkID) error {
	l, ok := c.graph.Link(view, id)
	if !ok {
		return nil
	}
	if c.graph.LinkHasLiveChildren(view, id) {
		c.dialogs.Notice("Flow has children",
			"The flow "+l.Text+" has child flows in a subsystem and cannot be deleted.")
		c.record("delete_link", OutcomeBlocked)
		return fmt.Errorf("delete %q: %w", id, ErrLinkHasChildren)
	}
	for _, end := range []model.NodeID{l.Source, l.Target} {
		if _, err := c.graph.TrimBoundaryRef(view, end, id); err != nil && !errors.Is(err, kb.ErrNodeNotFound) {
			return err
		}
	}
	return c.graph.DeleteLink(view, id)
}

// deleteNodes walks ids in order, pausing on each subsystem confirmation,
// and calls done once every node has been handled.
func (c *Controller) deleteNodes(view model.ViewID, ids []model.NodeID, done func()) {
	for i, id := range ids {
		n, ok := c.graph.Node(view, id)
		if !ok {
			continue
		}
		if n.Child == "" {
			c.removeNode(view, n)
			continue
		}
		rest := ids[i+1:]
		c.confirm(Confirm{
			Title:        "Delete subsystem?",
			Message:      "The " + kindName(n.Type) + " " + string(n.Text) + " contains a subsystem. Would you like to delete it?",
			ConfirmLabel: "Delete",
		},
			func() {
				c.removeNode(view, n)
				c.deleteNodes(view, rest, done)
			},
			func() {
				c.record("delete_node", OutcomeCancelled)
				c.deleteNodes(view, rest, done)
			})
		return
	}
	done()
}

// removeNode drops the node's subsystem, then orphans the node when links
// still reference it or deletes it otherwise.
func (c *Controller) removeNode(view model.ViewID, n model.Node) {
	if n.Child != "" {
		removed, err := c.graph.DeleteView(n.Child)
		if err != nil && !errors.Is(err, kb.ErrViewNotFound) {
			c.log.Warn(c.ctx, "delete subsystem failed", logging.Err(err))
		} else {
			c.log.Debug(c.ctx, "subsystem deleted",
				logging.String("node", string(n.ID)),
				logging.Int("views", len(removed)),
			)
		}
	}
	outgoing, incoming := c.graph.ConnectingLinks(view, n.ID)
	if len(outgoing)+len(incoming) > 0 {
		err := c.graph.ConvertToOrphan(view, n.ID)
		if err != nil {
			c.log.Warn(c.ctx, "orphan node failed", logging.Err(err))
		}
		return
	}
	if err := c.graph.DeleteNode(view, n.ID); err != nil {
		c.log.Warn(c.ctx, "delete node failed", logging.Err(err))
	}
}

func kindName(t model.NodeType) string {
	switch t {
	case model.NodeSquare:
		return "stock"
	case model.NodeCircle:
		return "process"
	default:
		return string(t)
	}
}

// NewParent wraps a root view in a new root holding a single process whose
// subsystem is the old root. Below the root it ascends like GoBack.
func (c *Controller) NewParent() error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	v, _ := c.graph.View(view)
	c.cull()
	c.actionsDisabled = false
	c.resetState()

	if v.Parent != "" {
		c.current = v.Parent
		c.changed("go_back")
		return nil
	}
	c.prompt(Prompt{Title: "New Process", Placeholder: "Name the current system"},
		func(name string) {
			parent := c.graph.CreateView("", "")
			if _, err := c.graph.CreateNode(parent, name, model.NodeCircle, view); err != nil {
				c.log.Warn(c.ctx, "create parent process failed", logging.Err(err))
				c.notify("new_parent", OutcomeError)
				return
			}
			if err := c.graph.ReparentView(view, parent); err != nil {
				c.log.Warn(c.ctx, "reparent view failed", logging.Err(err))
			}
			if err := c.graph.SetViewText(view, name); err != nil {
				c.log.Warn(c.ctx, "rename view failed", logging.Err(err))
			}
			c.current = parent
			c.changed("new_parent")
		},
		func() { c.notify("new_parent", OutcomeCancelled) })
	return nil
}

// CreateSubsystem enters the clicked node's subsystem, creating it first
// when the node has none.
func (c *Controller) CreateSubsystem() error {
	view, err := c.dataAction()
	if err != nil {
		return err
	}
	n, err := c.clickedNode(view)
	if err != nil {
		return err
	}
	if !n.Type.Proper() {
		return fmt.Errorf("subsystem of %s %q: %w", n.Type, n.ID, ErrNotProper)
	}
	child := n.Child
	if child == "" {
		child = c.graph.CreateView(string(n.Text), view)
		if err := c.graph.SetChild(view, n.ID, child); err != nil {
			return err
		}
	}
	c.cull()
	c.current = child
	c.resetState()
	c.changed("create_subsystem")
	return nil
}

// DeleteSubsystem recursively deletes the clicked node's subsystem.
func (c *Controller) DeleteSubsystem() error {
	view, err := c.dataAction()
	if err != nil {
		return err
	}
	n, err := c.clickedNode(view)
	if err != nil {
		return err
	}
	if n.Child == "" {
		return nil
	}
	if _, err := c.graph.DeleteView(n.Child); err != nil {
		return err
	}
	c.changed("delete_subsystem")
	return nil
}

// Rename sets the text of the clicked object. Renaming a node renames its
// subsystem; renaming a link renames the boundary nodes standing in for it.
func (c *Controller) Rename(text string) error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	r, err := c.clickedRef()
	if err != nil {
		return err
	}
	if id, ok := r.Node(); ok {
		err = c.graph.SetNodeText(view, id, text)
	} else if id, ok := r.Link(); ok {
		err = c.graph.SetLinkText(view, id, text)
	}
	if err != nil {
		return err
	}
	c.changed("rename")
	return nil
}

// AddWikiref points the clicked object's wiki reference at its own id.
func (c *Controller) AddWikiref() error {
	r, err := c.clickedRef()
	if err != nil {
		return err
	}
	return c.SetWikiref(r.ID)
}

// RemoveWikiref clears the clicked object's wiki reference.
func (c *Controller) RemoveWikiref() error { return c.SetWikiref("") }

// SetWikiref sets the clicked object's wiki reference.
func (c *Controller) SetWikiref(ref string) error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	r, err := c.clickedRef()
	if err != nil {
		return err
	}
	if id, ok := r.Node(); ok {
		err = c.graph.SetNodeWikiref(view, id, ref)
	} else if id, ok := r.Link(); ok {
		err = c.graph.SetLinkWikiref(view, id, ref)
	}
	if err != nil {
		return err
	}
	c.changed("set_wikiref")
	return nil
}

// ToggleLinkType switches the clicked link between solid and dashed.
func (c *Controller) ToggleLinkType() error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	id, err := c.clickedLink()
	if err != nil {
		return err
	}
	if err := c.graph.ToggleLinkType(view, id); err != nil {
		return err
	}
	c.changed("toggle_link_type")
	return nil
}

// ToggleNodeType switches the clicked node between stock and process.
func (c *Controller) ToggleNodeType() error {
	view, err := c.gesture()
	if err != nil {
		return err
	}
	n, err := c.clickedNode(view)
	if err != nil {
		return err
	}
	if err := c.graph.ToggleNodeType(view, n.ID); err != nil {
		return err
	}
	c.changed("toggle_node_type")
	return nil
}

// Reveal moves to view and selects ref there; it backs search results.
func (c *Controller) Reveal(view model.ViewID, ref model.ObjectRef) error {
	if _, err := c.gesture(); err != nil {
		return err
	}
	if _, ok := c.graph.View(view); !ok {
		return fmt.Errorf("reveal %q: %w", view, kb.ErrViewNotFound)
	}
	c.cull()
	c.actionsDisabled = false
	c.resetState()
	c.current = view
	if c.resolves(view, ref) {
		c.clicked = []model.ObjectRef{ref}
	}
	c.changed("reveal")
	return nil
}

func (c *Controller) clickedRef() (model.ObjectRef, error) {
	live := c.live(c.clicked)
	if len(live) == 0 {
		return model.ObjectRef{}, ErrNoSelection
	}
	return live[0], nil
}

func (c *Controller) clickedNode(view model.ViewID) (model.Node, error) {
	r, err := c.clickedRef()
	if err != nil {
		return model.Node{}, err
	}
	id, ok := r.Node()
	if !ok {
		return model.Node{}, fmt.Errorf("%s is not a node: %w", r, ErrNoSelection)
	}
	return c.node(view, id)
}

func (c *Controller) clickedLink() (model.LinkID, error) {
	r, err := c.clickedRef()
	if err != nil {
		return "", err
	}
	id, ok := r.Link()
	if !ok {
		return "", fmt.Errorf("%s is not a link: %w", r, ErrNoSelection)
	}
	return id, nil
}
