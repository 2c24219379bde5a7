package model

// NodeType distinguishes the kinds of node a view can hold.
type NodeType string

const (
	NodeCircle NodeType = "circle" // process
	NodeSquare NodeType = "square" // stock
	NodeSource NodeType = "source" // boundary inflow, pinned to the bottom edge
	NodeSink   NodeType = "sink"   // boundary outflow, pinned to the top edge
	NodeOrphan NodeType = "orphan" // placeholder kept alive by attached links
)

// Proper reports whether nodes of this type take part in normal layout.
func (t NodeType) Proper() bool { return t == NodeCircle || t == NodeSquare }

// Boundary reports whether the type is a source or sink.
func (t NodeType) Boundary() bool { return t == NodeSource || t == NodeSink }

// Glueable reports whether nodes of this type track their links in GluedLinks.
func (t NodeType) Glueable() bool { return t.Boundary() || t == NodeOrphan }

// LinkType is the visual style of a flow.
type LinkType string

const (
	LinkSolid  LinkType = "solid"  // physical flow
	LinkDashed LinkType = "dashed" // informational flow
)

// View is one diagram page: a node and link set plus a parent pointer.
type View struct {
	ID     ViewID     `json:"id"`
	Text   NullString `json:"text"`
	Parent ViewID     `json:"parent"`
	Nodes  []Node     `json:"blobs"`
	Links  []Link     `json:"links"`
}

// Node is a stock, process, boundary placeholder or orphan.
type Node struct {
	ID      NodeID     `json:"id"`
	Text    NullString `json:"text"`
	Wikiref NullString `json:"wikiref"`
	Child   ViewID     `json:"child"`
	Type    NodeType   `json:"type"`

	X  float64  `json:"x"`
	Y  float64  `json:"y"`
	FX *float64 `json:"fx,omitempty"`
	FY *float64 `json:"fy,omitempty"`
	R  float64  `json:"r"`

	// GluedLinks is nil for proper nodes.
	GluedLinks []LinkID `json:"gluedlinks"`
	ParentLink LinkID   `json:"parentlink"`
}

// Link is a directed flow between two nodes of the same view.
type Link struct {
	ID      LinkID     `json:"id"`
	Text    string     `json:"text"`
	Wikiref NullString `json:"wikiref"`
	Source  NodeID     `json:"source"`
	Target  NodeID     `json:"target"`
	Type    LinkType   `json:"type"`
	Glued   bool       `json:"glued"`
}

// Pinned reports whether the node has a fixed position.
func (n Node) Pinned() bool { return n.FX != nil && n.FY != nil }

// HasGlued reports whether id is recorded in the node's GluedLinks.
func (n Node) HasGlued(id LinkID) bool {
	for _, l := range n.GluedLinks {
		if l == id {
			return true
		}
	}
	return false
}

// Touches reports whether the link starts or ends at node.
func (l Link) Touches(node NodeID) bool { return l.Source == node || l.Target == node }

// Clone returns a deep copy of the view.
func (v View) Clone() View {
	out := v
	out.Nodes = make([]Node, len(v.Nodes))
	for i, n := range v.Nodes {
		out.Nodes[i] = n.Clone()
	}
	out.Links = append([]Link(nil), v.Links...)
	if out.Links == nil {
		out.Links = []Link{}
	}
	return out
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	if n.FX != nil {
		fx := *n.FX
		out.FX = &fx
	}
	if n.FY != nil {
		fy := *n.FY
		out.FY = &fy
	}
	if n.GluedLinks != nil {
		out.GluedLinks = append(make([]LinkID, 0, len(n.GluedLinks)), n.GluedLinks...)
	}
	return out
}

// Float returns a pointer to v, for populating FX and FY.
func Float(v float64) *float64 { return &v }
