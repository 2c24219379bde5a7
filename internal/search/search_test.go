package search

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/signalsfoundry/stockflow-editor/model"
)

func sampleViews() []model.View {
	return []model.View{
		{
			ID:   "v0",
			Text: "Population",
			Nodes: []model.Node{
				{ID: "b0", Text: "Population", Type: model.NodeSquare, Child: "v1"},
				{ID: "b1", Text: "Birth Rate", Type: model.NodeCircle},
				{ID: "b2", Type: model.NodeOrphan, GluedLinks: []model.LinkID{}},
			},
			Links: []model.Link{
				{ID: "l0", Text: "births", Source: "b1", Target: "b0", Type: model.LinkSolid},
			},
		},
		{
			ID:     "v1",
			Text:   "Population",
			Parent: "v0",
			Nodes: []model.Node{
				{ID: "b0", Text: "births", Type: model.NodeSource, GluedLinks: []model.LinkID{"l0"}, ParentLink: "l0"},
				{ID: "b1", Text: "Adults", Type: model.NodeSquare},
			},
			Links: []model.Link{
				{ID: "l0", Text: "maturing births", Source: "b0", Target: "b1", Type: model.LinkSolid, Glued: true},
			},
		},
	}
}

func TestSearchMatchesSubstringsAcrossViews(t *testing.T) {
	idx := Build(sampleViews())

	got := idx.Search("BIRTH", 0)
	want := []Result{
		{View: "v0", ViewText: "Population", Ref: model.NodeRef("b1"), Text: "Birth Rate"},
		{View: "v0", ViewText: "Population", Ref: model.LinkRef("l0"), Text: "births"},
		{View: "v1", ViewText: "Population", Ref: model.LinkRef("l0"), Text: "maturing births"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Search mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchSkipsBoundaryAndUnlabelled(t *testing.T) {
	idx := Build(sampleViews())
	if n := idx.Len(); n != 5 {
		t.Fatalf("Len = %d, want 5", n)
	}
	for _, r := range idx.Search("births", 0) {
		if r.View == "v1" && r.Ref.Kind == model.KindNode {
			t.Fatalf("source node indexed: %+v", r)
		}
	}
}

func TestSearchLimitAndEmptyQuery(t *testing.T) {
	idx := Build(sampleViews())
	if got := idx.Search("  ", 0); got != nil {
		t.Fatalf("empty query = %v, want nil", got)
	}
	if got := idx.Search("i", 2); len(got) != 2 {
		t.Fatalf("limited search returned %d results, want 2", len(got))
	}
}

func TestPrefix(t *testing.T) {
	idx := Build(sampleViews())
	got := idx.Prefix("pop", 0)
	if len(got) != 1 || got[0].Ref != model.NodeRef("b0") {
		t.Fatalf("Prefix(pop) = %+v", got)
	}
	if got := idx.Prefix("adults and more", 0); len(got) != 0 {
		t.Fatalf("Prefix past end = %+v", got)
	}
}

func TestRebuildReplacesContent(t *testing.T) {
	idx := Build(sampleViews())
	idx.Rebuild(nil)
	if idx.Len() != 0 || len(idx.Search("birth", 0)) != 0 {
		t.Fatalf("index not cleared by Rebuild(nil)")
	}
}
