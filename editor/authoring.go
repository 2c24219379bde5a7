package editor

import (
	"fmt"

	"github.com/signalsfoundry/stockflow-editor/internal/logging"
	"github.com/signalsfoundry/stockflow-editor/model"
)

// NewSolidLink starts authoring a solid flow.
func (c *Controller) NewSolidLink() error { return c.startNewLink(model.LinkSolid) }

// NewDashedLink starts authoring a dashed flow.
func (c *Controller) NewDashedLink() error { return c.startNewLink(model.LinkDashed) }

func (c *Controller) startNewLink(typ model.LinkType) error {
	view, err := c.dataAction()
	if err != nil {
		return err
	}
	if err := c.beginAuthoring(view); err != nil {
		return err
	}
	c.linkType = typ
	c.changed("new_" + string(typ) + "_link")
	return nil
}

// Relink starts moving the clicked link onto new endpoints.
func (c *Controller) Relink() error {
	view, err := c.dataAction()
	if err != nil {
		return err
	}
	id, err := c.clickedLink()
	if err != nil {
		return err
	}
	if err := c.beginAuthoring(view); err != nil {
		return err
	}
	c.relink = id
	c.changed("start_relink")
	return nil
}

func (c *Controller) beginAuthoring(view model.ViewID) error {
	if err := c.materializeExternals(view); err != nil {
		return err
	}
	c.mode = ModeAwaitingSource
	c.source = ""
	c.target = ""
	c.linkType = ""
	c.relink = ""
	c.showExternals = true
	c.actionsDisabled = true
	return nil
}

// materializeExternals creates the source and sink nodes standing in for
// the parent-level links that cross into view, skipping those already
// present.
func (c *Controller) materializeExternals(view model.ViewID) error {
	v, ok := c.graph.View(view)
	if !ok {
		return ErrNoView
	}
	present := make(map[model.LinkID]bool)
	for _, n := range v.Nodes {
		if n.ParentLink != "" {
			present[n.ParentLink] = true
		}
	}
	if c.externalsView != view {
		c.externals = nil
		c.externalsView = view
	}

	leaving, entering := c.graph.ExternalLinks(view)
	add := func(links []model.Link, typ model.NodeType) error {
		for _, l := range links {
			if present[l.ID] {
				continue
			}
			id, err := c.graph.CreateBoundaryNode(view, l.Text, typ, l.ID)
			if err != nil {
				return fmt.Errorf("materialize %s for %q: %w", typ, l.ID, err)
			}
			present[l.ID] = true
			c.externals = append(c.externals, id)
		}
		return nil
	}
	if err := add(leaving, model.NodeSink); err != nil {
		return err
	}
	return add(entering, model.NodeSource)
}

// cull deletes the materialised boundary nodes no link glued to.
func (c *Controller) cull() {
	view := c.externalsView
	for _, id := range c.externals {
		n, ok := c.graph.Node(view, id)
		if !ok || !n.Type.Boundary() || len(n.GluedLinks) > 0 {
			continue
		}
		if err := c.graph.DeleteNode(view, id); err != nil {
			c.log.Warn(c.ctx, "cull boundary node failed",
				logging.String("view", string(view)),
				logging.String("node", string(id)),
				logging.Err(err),
			)
		}
	}
	c.externals = nil
	c.externalsView = ""
}

// finishAuthoring returns to idle, culls and re-enables data actions.
func (c *Controller) finishAuthoring() {
	c.resetState()
	c.cull()
	c.actionsDisabled = false
}

// validTarget applies the adjacency rule for a flow from source to target.
func validTarget(source, target model.Node) bool {
	if source.ID == target.ID || target.Type == model.NodeSource {
		return false
	}
	return !(source.Type == model.NodeSource && target.Type == model.NodeSink)
}

func (c *Controller) chooseSource(n model.Node) {
	if n.Type == model.NodeSink {
		c.finishAuthoring()
		c.notify("choose_source", OutcomeAborted)
		return
	}
	c.source = n.ID
	c.target = ""
	c.mode = ModeAwaitingTarget
	c.changed("choose_source")
}

func (c *Controller) chooseTarget(view model.ViewID, n model.Node) error {
	srcID := c.source
	src, ok := c.graph.Node(view, srcID)
	if !ok || !validTarget(src, n) {
		c.finishAuthoring()
		c.notify("choose_target", OutcomeAborted)
		return fmt.Errorf("flow %q -> %q: %w", srcID, n.ID, ErrInvalidTarget)
	}

	if c.relink != "" {
		return c.completeRelink(view, src.ID, n.ID)
	}

	linkType, source, target := c.linkType, src.ID, n.ID
	c.prompt(Prompt{Title: "New Flow", Placeholder: "Name of the new flow"},
		func(name string) {
			id, err := c.graph.CreateLink(view, name, source, target, linkType)
			c.finishAuthoring()
			if err != nil {
				c.log.Warn(c.ctx, "create link failed", logging.Err(err))
				c.notify("create_link", OutcomeError)
				return
			}
			c.log.Debug(c.ctx, "link created",
				logging.String("view", string(view)),
				logging.String("link", string(id)),
			)
			c.changed("create_link")
		},
		func() {
			c.finishAuthoring()
			c.notify("create_link", OutcomeCancelled)
		})
	return nil
}

func (c *Controller) completeRelink(view model.ViewID, source, target model.NodeID) error {
	link, err := c.link(view, c.relink)
	if err != nil {
		c.finishAuthoring()
		c.notify("relink", OutcomeError)
		return err
	}
	if c.graph.LinkHasLiveChildren(view, link.ID) {
		c.finishAuthoring()
		c.dialogs.Notice("Flow has children",
			"The flow "+link.Text+" has child flows in a subsystem and cannot be relinked.")
		c.notify("relink", OutcomeBlocked)
		return fmt.Errorf("relink %q: %w", link.ID, ErrLinkHasChildren)
	}
	if err := c.graph.RepointLink(view, link.ID, source, target); err != nil {
		c.finishAuthoring()
		c.notify("relink", OutcomeError)
		return err
	}
	c.finishAuthoring()
	c.changed("relink")
	return nil
}
