// Package search indexes node and link labels across every view of a
// diagram so a result can be jumped to with editor.Controller.Reveal.
package search

import (
	"strings"
	"sync"

	"github.com/tidwall/btree"

	"github.com/signalsfoundry/stockflow-editor/model"
)

// Result is one labelled object matching a query.
type Result struct {
	View     model.ViewID
	ViewText string
	Ref      model.ObjectRef
	Text     string
}

type entry struct {
	key string // lower-cased label
	Result
}

func entryLess(a, b entry) bool {
	if a.key != b.key {
		return a.key < b.key
	}
	if a.View != b.View {
		return a.View < b.View
	}
	if a.Ref.Kind != b.Ref.Kind {
		return a.Ref.Kind < b.Ref.Kind
	}
	return a.Ref.ID < b.Ref.ID
}

// Index is an ordered label index. It is safe for concurrent use.
type Index struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[entry]
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{tree: btree.NewBTreeG[entry](entryLess)}
}

// Build returns an index over views.
func Build(views []model.View) *Index {
	idx := NewIndex()
	idx.Rebuild(views)
	return idx
}

// Rebuild replaces the indexed content with views. Source and sink nodes
// only mirror labels owned by another view and are left out, as are
// unlabelled objects.
func (i *Index) Rebuild(views []model.View) {
	tree := btree.NewBTreeG[entry](entryLess)
	for _, v := range views {
		for _, n := range v.Nodes {
			if n.Type.Boundary() || n.Text == "" {
				continue
			}
			tree.Set(newEntry(v, model.NodeRef(n.ID), string(n.Text)))
		}
		for _, l := range v.Links {
			if l.Text == "" {
				continue
			}
			tree.Set(newEntry(v, model.LinkRef(l.ID), l.Text))
		}
	}
	i.mu.Lock()
	i.tree = tree
	i.mu.Unlock()
}

func newEntry(v model.View, ref model.ObjectRef, text string) entry {
	return entry{
		key:    strings.ToLower(text),
		Result: Result{View: v.ID, ViewText: string(v.Text), Ref: ref, Text: text},
	}
}

// Len is the number of indexed labels.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.tree.Len()
}

// Search returns every label containing query, case-insensitively, in
// label order. An empty query matches nothing. limit <= 0 means no limit.
func (i *Index) Search(query string, limit int) []Result {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []Result
	i.mu.RLock()
	defer i.mu.RUnlock()
	i.tree.Scan(func(e entry) bool {
		if strings.Contains(e.key, q) {
			out = append(out, e.Result)
		}
		return limit <= 0 || len(out) < limit
	})
	return out
}

// Prefix returns labels starting with prefix, walking only the matching
// range of the tree.
func (i *Index) Prefix(prefix string, limit int) []Result {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		return nil
	}
	var out []Result
	i.mu.RLock()
	defer i.mu.RUnlock()
	i.tree.Ascend(entry{key: p}, func(e entry) bool {
		if !strings.HasPrefix(e.key, p) {
			return false
		}
		out = append(out, e.Result)
		return limit <= 0 || len(out) < limit
	})
	return out
}
