package kb

import (
	"errors"
	"fmt"

	"github.com/signalsfoundry/stockflow-editor/model"
)

// ErrInvariant wraps every problem reported by Validate.
var ErrInvariant = errors.New("graph invariant violated")

// Validate checks the structural invariants of the document: id slots,
// link endpoints, glued-link symmetry and the parent/child pairing. It
// never repairs anything. The result joins one error per violation.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvariant}, args...)...))
	}

	for i, v := range g.views {
		if n, ok := model.Slot(string(v.ID)); !ok || n < i {
			fail("view %q sits at slot %d", v.ID, i)
		}
		for j, n := range v.Nodes {
			if s, ok := model.Slot(string(n.ID)); !ok || s < j {
				fail("node %q of %q sits at slot %d", n.ID, v.ID, j)
			}
		}
		for j, l := range v.Links {
			if s, ok := model.Slot(string(l.ID)); !ok || s < j {
				fail("link %q of %q sits at slot %d", l.ID, v.ID, j)
			}
		}
		validateGlue(v, fail)
		g.validateFamily(v, fail)
	}
	return errors.Join(errs...)
}

func validateGlue(v *model.View, fail func(string, ...any)) {
	for _, l := range v.Links {
		si, ti := nodeIndex(v, l.Source), nodeIndex(v, l.Target)
		if si < 0 || ti < 0 {
			fail("link %q of %q has a dangling endpoint", l.ID, v.ID)
			continue
		}
		src, tgt := v.Nodes[si], v.Nodes[ti]
		if want := src.Type.Boundary() || tgt.Type.Boundary(); l.Glued != want {
			fail("link %q of %q has glued=%v, want %v", l.ID, v.ID, l.Glued, want)
		}
		for _, end := range []model.Node{src, tgt} {
			if end.Type.Glueable() && !end.HasGlued(l.ID) {
				fail("node %q of %q is missing glued link %q", end.ID, v.ID, l.ID)
			}
		}
	}
	for _, n := range v.Nodes {
		for _, id := range n.GluedLinks {
			i := linkIndex(v, id)
			if i < 0 || !v.Links[i].Touches(n.ID) {
				fail("node %q of %q lists glued link %q that does not touch it", n.ID, v.ID, id)
			}
		}
	}
}

func (g *Graph) validateFamily(v *model.View, fail func(string, ...any)) {
	if v.Parent != "" {
		p := g.view(v.Parent)
		if p == nil {
			fail("view %q has missing parent %q", v.ID, v.Parent)
		} else {
			owners := 0
			for _, n := range p.Nodes {
				if n.Child == v.ID {
					owners++
				}
			}
			if owners != 1 {
				fail("view %q is owned by %d nodes of %q, want 1", v.ID, owners, p.ID)
			}
		}
	}
	for _, n := range v.Nodes {
		if n.Child == "" {
			continue
		}
		c := g.view(n.Child)
		if c == nil {
			fail("node %q of %q points at missing child %q", n.ID, v.ID, n.Child)
		} else if c.Parent != v.ID {
			fail("node %q of %q owns %q whose parent is %q", n.ID, v.ID, c.ID, c.Parent)
		}
	}
}
