package models

import (
	"sort"

	"github.com/google/uuid"
)

// ItemTree is an arena view over a template's flat item rows. Nodes are
// addressed by index into Nodes; children are ordered index lists. The tree
// is independent of how the rows were persisted, so walks never re-query the
// store.
type ItemTree struct {
	Nodes    []TemplateItem
	children [][]int
	roots    []int
	byID     map[uuid.UUID]int
}

// FlatItem is one prompt-facing schema entry: the stable identifier the model
// must echo back, plus the header text it maps to.
type FlatItem struct {
	ID       uuid.UUID  `json:"id"`
	Header   string     `json:"header"`
	ParentID *uuid.UUID `json:"parent_id,omitempty"`
}

// NewItemTree builds the arena from flat rows. Rows whose parent is unknown
// are treated as roots, which keeps a partially-fetched forest usable.
func NewItemTree(items []TemplateItem) *ItemTree {
	t := &ItemTree{
		Nodes:    items,
		children: make([][]int, len(items)),
		byID:     make(map[uuid.UUID]int, len(items)),
	}

	for i, item := range items {
		t.byID[item.ID] = i
	}

	for i, item := range items {
		if item.ParentID == nil {
			t.roots = append(t.roots, i)
			continue
		}
		parent, ok := t.byID[*item.ParentID]
		if !ok {
			t.roots = append(t.roots, i)
			continue
		}
		t.children[parent] = append(t.children[parent], i)
	}

	bySortOrder := func(idx []int) {
		sort.SliceStable(idx, func(a, b int) bool {
			return t.Nodes[idx[a]].SortOrder < t.Nodes[idx[b]].SortOrder
		})
	}

	bySortOrder(t.roots)
	for i := range t.children {
		bySortOrder(t.children[i])
	}

	return t
}

// Flatten walks the forest depth-first and returns every node in prompt
// order: parents before their children, siblings by sort order.
func (t *ItemTree) Flatten() []FlatItem {
	var out []FlatItem
	var walk func(idx int)
	walk = func(idx int) {
		node := t.Nodes[idx]
		out = append(out, FlatItem{ID: node.ID, Header: node.HeaderName, ParentID: node.ParentID})
		for _, child := range t.children[idx] {
			walk(child)
		}
	}
	for _, root := range t.roots {
		walk(root)
	}
	return out
}

// Leaves returns the identifiers of nodes without children. Only leaves are
// eligible to receive answer values.
func (t *ItemTree) Leaves() map[uuid.UUID]bool {
	leaves := make(map[uuid.UUID]bool)
	for i, node := range t.Nodes {
		if len(t.children[i]) == 0 {
			leaves[node.ID] = true
		}
	}
	return leaves
}

// Find returns the node carrying the given identifier.
func (t *ItemTree) Find(id uuid.UUID) (*TemplateItem, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return &t.Nodes[idx], true
}
