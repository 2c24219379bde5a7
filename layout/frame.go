package layout

import "github.com/signalsfoundry/stockflow-editor/model"

// Frame is everything needed to draw the current view at one instant.
// Frames are values: the engine builds a fresh one per pass.
type Frame struct {
	Width, Height float64
	Heading       Label
	Alpha         float64
	Tick          int

	Circles []Shape
	Squares []Shape
	Orphans []Shape
	// Sources and Sinks hold the boundary nodes in ordinal order.
	Sources []Shape
	Sinks   []Shape
	Links   []LinkShape

	NodeLabels []Label
	LinkLabels []Label
	// BoundaryLabels caption sources and sinks; they are drawn whether or
	// not the externals are shown.
	BoundaryLabels []Label
	// Markers are empty unless externals are shown.
	Markers []Marker
}

// Shape is a placed node. For squares (X, Y) is the top-left corner.
type Shape struct {
	ID      model.NodeID
	Type    model.NodeType
	Text    string
	Wikiref bool
	X, Y, R float64
	Pinned  bool
	Hovered bool
	Clicked bool
}

// Center is the visual centre of the shape.
func (s Shape) Center() Point { return Anchor(s.Type, s.X, s.Y, s.R) }

// LinkShape is a placed link. The prospective link uses ProspectiveLinkID.
type LinkShape struct {
	ID      string
	Type    model.LinkType
	Text    string
	Wikiref bool
	Source  model.NodeID
	Target  model.NodeID
	LinkNum float64
	From    Point
	To      Point
	Radius  float64
	Path    string
	Hovered bool
	Clicked bool
}

// Prospective reports whether the link is the authoring preview.
func (l LinkShape) Prospective() bool { return l.ID == ProspectiveLinkID }

// Label is a positioned caption. Ref is empty for the heading.
type Label struct {
	Ref     model.ObjectRef
	Text    string
	At      Point
	Wikiref bool
}

// Marker is the clickable strip standing in for a boundary node. ID is the
// node id with MarkerSuffix appended.
type Marker struct {
	ID            string
	Node          model.NodeID
	Type          model.NodeType
	X, Y          float64
	Width, Height float64
	Hovered       bool
	Clicked       bool
}

// Shape returns the placed node with the given id.
func (f Frame) Shape(id model.NodeID) (Shape, bool) {
	for _, group := range [][]Shape{f.Circles, f.Squares, f.Orphans, f.Sources, f.Sinks} {
		for _, s := range group {
			if s.ID == id {
				return s, true
			}
		}
	}
	return Shape{}, false
}

// Link returns the placed link with the given id.
func (f Frame) Link(id string) (LinkShape, bool) {
	for _, l := range f.Links {
		if l.ID == id {
			return l, true
		}
	}
	return LinkShape{}, false
}

// NodeCount is the number of placed nodes of every type.
func (f Frame) NodeCount() int {
	return len(f.Circles) + len(f.Squares) + len(f.Orphans) + len(f.Sources) + len(f.Sinks)
}
