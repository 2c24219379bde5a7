package kb

import (
	"errors"

	"github.com/signalsfoundry/stockflow-editor/model"
)

// PrepareDocument returns a copy of views ready to be persisted: source and
// sink nodes that no link is glued to are dropped. Links already carry bare
// endpoint ids.
func PrepareDocument(views []model.View) []model.View {
	out := make([]model.View, 0, len(views))
	for _, v := range views {
		c := v.Clone()
		kept := c.Nodes[:0]
		for _, n := range c.Nodes {
			if n.Type.Boundary() && len(n.GluedLinks) == 0 {
				continue
			}
			kept = append(kept, n)
		}
		c.Nodes = kept
		out = append(out, c)
	}
	return out
}

// Export returns the document form of the whole graph.
func (g *Graph) Export() []model.View {
	return PrepareDocument(g.Views())
}

// Replace swaps the whole document for views. Loads are never merged.
func (g *Graph) Replace(views []model.View) {
	_ = g.mutate(func() ([]Event, error) {
		g.views = make([]*model.View, 0, len(views))
		for _, v := range views {
			c := v.Clone()
			if c.Nodes == nil {
				c.Nodes = []model.Node{}
			}
			for i := range c.Nodes {
				if c.Nodes[i].Type.Glueable() && c.Nodes[i].GluedLinks == nil {
					c.Nodes[i].GluedLinks = []model.LinkID{}
				}
			}
			g.views = append(g.views, &c)
		}
		return []Event{{Type: EventReplaced}}, nil
	})
}

// Clear drops every view.
func (g *Graph) Clear() {
	g.Replace(nil)
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrViewNotFound) || errors.Is(err, ErrNodeNotFound) || errors.Is(err, ErrLinkNotFound)
}
