package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
	"picimpact-go/pkg/log"
)

// tagReparenter 在调用方事务中改挂一个已有标签，返回因此重新同步过的图片 id。
type tagReparenter func(ctx context.Context, tagID string, parentID *string) ([]string, error)

// moveWithin 把 MoveTagTx 绑定到 tx 上。
func moveWithin(mover TagMoveService, tx *gorm.DB) tagReparenter {
	return func(ctx context.Context, tagID string, parentID *string) ([]string, error) {
		moved, err := mover.MoveTagTx(ctx, tx, tagID, parentID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, 0, len(moved.Results))
		for _, r := range moved.Results {
			ids = append(ids, r.ImageID)
		}
		return ids, nil
	}
}

// normalizeTagNames 去除首尾空白、空名称与重复名称，保留首次出现的顺序。
func normalizeTagNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// parentMapFor 取出 names 在 categoryMap 中的父标签名称，忽略指向自身或在映射内成环的条目。
func parentMapFor(names []string, categoryMap map[string]string) map[string]string {
	parentOf := make(map[string]string)
	for _, name := range names {
		parent := strings.TrimSpace(categoryMap[name])
		if parent == "" || parent == name {
			continue
		}
		parentOf[name] = parent
	}
	for child := range parentOf {
		if mapCycle(categoryMap, child) {
			delete(parentOf, child)
		}
	}
	return parentOf
}

// mapCycle 沿 categoryMap 从 child 向上走，报告是否回到 child。
func mapCycle(categoryMap map[string]string, child string) bool {
	cur := child
	for i := 0; i <= len(categoryMap); i++ {
		next := strings.TrimSpace(categoryMap[cur])
		if next == "" || next == cur {
			return false
		}
		if next == child {
			return true
		}
		cur = next
	}
	return false
}

// upsertTagsByName 按名称查找或创建标签，并按 categoryMap 修正父标签与 category。
// 一次批量查询、一次批量插入；已有标签的父标签变化交给 reparent，
// 它会把受影响图片的父标签关联一并调整。会在已有标签森林中成环的映射被忽略。
// reparent 为 nil 时不改挂已有标签。
// 返回顺序与去重后的输入顺序一致，以及因改挂而重新同步过的图片 id。
func upsertTagsByName(ctx context.Context, tags repository.TagRepository, reparent tagReparenter, names []string, categoryMap map[string]string) ([]model.Tag, []string, error) {
	names = normalizeTagNames(names)
	if len(names) == 0 {
		return []model.Tag{}, nil, nil
	}
	parentOf := parentMapFor(names, categoryMap)

	lookup := append([]string{}, names...)
	parentNames := make([]string, 0, len(parentOf))
	for _, name := range names {
		if p, ok := parentOf[name]; ok {
			parentNames = append(parentNames, p)
		}
	}
	lookup = normalizeTagNames(append(lookup, parentNames...))

	existing, err := tags.FindByNames(ctx, lookup)
	if err != nil {
		return nil, nil, fmt.Errorf("批量查询标签失败: %w", err)
	}
	byName := make(map[string]*model.Tag, len(lookup))
	for i := range existing {
		byName[existing[i].Name] = &existing[i]
	}

	created := make(map[string]struct{})
	toCreate := make([]*model.Tag, 0)
	newTag := func(name string) *model.Tag {
		n := name
		t := &model.Tag{ID: uuid.NewString(), Name: n, Category: &n}
		byName[n] = t
		created[n] = struct{}{}
		toCreate = append(toCreate, t)
		return t
	}

	// 先创建缺失的父标签，id 在本地生成，子标签可以在同一批次中引用它们。
	for _, p := range parentNames {
		if _, ok := byName[p]; !ok {
			newTag(p)
		}
	}
	for _, name := range names {
		if _, ok := byName[name]; !ok {
			newTag(name)
		}
	}
	for _, name := range names {
		p, ok := parentOf[name]
		if !ok {
			continue
		}
		if _, isNew := created[name]; isNew {
			t := byName[name]
			parentName := p
			t.ParentID = &byName[p].ID
			t.Category = &parentName
		}
	}
	if err := tags.CreateBatch(ctx, toCreate); err != nil {
		return nil, nil, fmt.Errorf("批量创建标签失败: %w", err)
	}

	var (
		forest   *tagForest
		affected []string
	)
	for _, name := range names {
		p, ok := parentOf[name]
		if !ok {
			continue
		}
		if _, isNew := created[name]; isNew {
			continue
		}
		t := byName[name]
		parent := byName[p]
		parentID, category := parent.ID, parent.Name

		if sameParent(t.ParentID, &parentID) {
			if t.Category != nil && *t.Category == category {
				continue
			}
			if err := tags.UpdateParent(ctx, t.ID, &parentID, &category); err != nil {
				return nil, nil, fmt.Errorf("更新标签 '%s' 的 category 失败: %w", name, err)
			}
			t.Category = &category
			continue
		}
		if reparent == nil {
			continue
		}

		if forest == nil {
			all, err := tags.FindAll(ctx)
			if err != nil {
				return nil, nil, fmt.Errorf("读取标签失败: %w", err)
			}
			forest = newTagForest(all)
		}
		if err := validateMove(forest, t.ID, &parentID); err != nil {
			var mve *MoveValidationError
			if errors.As(err, &mve) {
				log.Warnw("[Tag] 忽略父标签映射", "tag", name, "parent", p, "reason", mve.Reason)
				continue
			}
			return nil, nil, err
		}
		ids, err := reparent(ctx, t.ID, &parentID)
		if err != nil {
			return nil, nil, fmt.Errorf("改挂标签 '%s' 失败: %w", name, err)
		}
		affected = append(affected, ids...)
		t.ParentID = &parentID
		t.Category = &category
		if ft, ok := forest.get(t.ID); ok {
			ft.ParentID = &parentID
		}
	}

	out := make([]model.Tag, 0, len(names))
	for _, name := range names {
		out = append(out, *byName[name])
	}
	return out, affected, nil
}
