package model

// ObjectKind tags what an ObjectRef points at.
type ObjectKind int

const (
	KindNode ObjectKind = iota
	KindLink
)

func (k ObjectKind) String() string {
	switch k {
	case KindNode:
		return "node"
	case KindLink:
		return "link"
	default:
		return "unknown"
	}
}

// ObjectRef names a node or link of some view. Selection and search results
// hold refs, never the objects themselves.
type ObjectRef struct {
	Kind ObjectKind
	ID   string
}

// NodeRef builds a ref to a node.
func NodeRef(id NodeID) ObjectRef { return ObjectRef{Kind: KindNode, ID: string(id)} }

// LinkRef builds a ref to a link.
func LinkRef(id LinkID) ObjectRef { return ObjectRef{Kind: KindLink, ID: string(id)} }

// Node returns the node id when the ref points at a node.
func (r ObjectRef) Node() (NodeID, bool) {
	if r.Kind != KindNode {
		return "", false
	}
	return NodeID(r.ID), true
}

// Link returns the link id when the ref points at a link.
func (r ObjectRef) Link() (LinkID, bool) {
	if r.Kind != KindLink {
		return "", false
	}
	return LinkID(r.ID), true
}

func (r ObjectRef) String() string { return r.Kind.String() + ":" + r.ID }
