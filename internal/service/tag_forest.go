package service

import (
	"sort"

	"picimpact-go/internal/model"
)

// tagForest 是标签森林的邻接表：id -> 标签，以及 parent id -> 子标签 id 的索引。
type tagForest struct {
	byID     map[string]*model.Tag
	children map[string][]string
}

func newTagForest(tags []model.Tag) *tagForest {
	f := &tagForest{
		byID:     make(map[string]*model.Tag, len(tags)),
		children: make(map[string][]string),
	}
	for i := range tags {
		t := &tags[i]
		f.byID[t.ID] = t
		if !t.IsRoot() {
			f.children[*t.ParentID] = append(f.children[*t.ParentID], t.ID)
		}
	}
	return f
}

func (f *tagForest) get(id string) (*model.Tag, bool) {
	t, ok := f.byID[id]
	return t, ok
}

// hasAncestor 从 startID 沿父链向上走到根，报告途中是否经过 ancestorID（包括 startID 自身）。
// 父链中已存在的环会被 visited 截断，此时 cyclic 为 true。
func (f *tagForest) hasAncestor(startID, ancestorID string) (found bool, cyclic bool) {
	visited := make(map[string]struct{})
	cur, ok := f.byID[startID]
	for ok {
		if cur.ID == ancestorID {
			return true, false
		}
		if _, seen := visited[cur.ID]; seen {
			return false, true
		}
		visited[cur.ID] = struct{}{}
		if cur.IsRoot() {
			return false, false
		}
		cur, ok = f.byID[*cur.ParentID]
	}
	return false, false
}

// tree 构建标签树；父标签不存在的子标签、以及父链回到自身的成环标签都作为根返回。
func (f *tagForest) tree() []*model.TagNode {
	nodes := make(map[string]*model.TagNode, len(f.byID))
	for id, t := range f.byID {
		nodes[id] = &model.TagNode{
			ID:       t.ID,
			Name:     t.Name,
			Category: t.Category,
			ParentID: t.ParentID,
			Detail:   t.Detail,
			Children: []*model.TagNode{},
		}
	}

	tree := make([]*model.TagNode, 0)
	for id, node := range nodes {
		t := f.byID[id]
		if !t.IsRoot() {
			parent, ok := nodes[*t.ParentID]
			if ok {
				if inCycle, _ := f.hasAncestor(*t.ParentID, id); !inCycle {
					parent.Children = append(parent.Children, node)
					continue
				}
			}
		}
		tree = append(tree, node)
	}

	sortNodes(tree)
	return tree
}

func sortNodes(nodes []*model.TagNode) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	for _, n := range nodes {
		sortNodes(n.Children)
	}
}
