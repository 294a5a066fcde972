package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
	"picimpact-go/pkg/log"
)

// TagSyncer 修复单张图片的标签关联，使其满足一层祖先闭包，并重新生成 labels 缓存。
// SyncImage 在调用方提供的事务中执行，重复执行是幂等的。
type TagSyncer interface {
	SyncImage(ctx context.Context, tx *gorm.DB, imageID string) (*model.SyncResult, error)
}

type tagSyncer struct {
	imageRepo    repository.ImageRepository
	tagRepo      repository.TagRepository
	relationRepo repository.RelationRepository
}

// NewTagSyncer 创建一个新的 TagSyncer 实例。
func NewTagSyncer(imageRepo repository.ImageRepository, tagRepo repository.TagRepository, relationRepo repository.RelationRepository) TagSyncer {
	return &tagSyncer{
		imageRepo:    imageRepo,
		tagRepo:      tagRepo,
		relationRepo: relationRepo,
	}
}

// SyncImage 的步骤：
//  1. 读取图片全部关联及其标签的父标签；
//  2. 标签已删除或父标签已删除的关联标记为移除；
//  3. 父标签存在但未关联的，标记为新增；父标签自身结构无效时子关联一并移除；
//  4. 先新增后移除；
//  5. 从写入后的关联重新生成 labels，只有发生变化时才写回。
func (s *tagSyncer) SyncImage(ctx context.Context, tx *gorm.DB, imageID string) (*model.SyncResult, error) {
	images := s.imageRepo.WithTx(tx)
	tags := s.tagRepo.WithTx(tx)
	relations := s.relationRepo.WithTx(tx)

	image, err := images.FindByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, imageID)
		}
		return nil, err
	}

	rows, err := relations.FindTaggedByImage(ctx, imageID)
	if err != nil {
		return nil, fmt.Errorf("读取图片标签关联失败: %w", err)
	}

	parents, err := s.loadParents(ctx, tags, rows)
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		present[row.TagID] = struct{}{}
	}

	result := &model.SyncResult{Added: []string{}, Removed: []string{}, RemovedIDs: []string{}, Kept: []string{}}
	var toAdd, toRemove []string
	staged := make(map[string]struct{})

	for _, row := range rows {
		if row.TagMissing() {
			toRemove = append(toRemove, row.TagID)
			result.RemovedIDs = append(result.RemovedIDs, row.TagID)
			result.InvalidRelations++
			continue
		}
		name := *row.TagName
		if row.ParentID == nil || *row.ParentID == "" {
			result.Kept = append(result.Kept, name)
			continue
		}
		parent, ok := parents.byID[*row.ParentID]
		if !ok || !parents.valid(parent) {
			// 父标签已不存在（或其自身的父标签已不存在），关联失去结构依据。
			toRemove = append(toRemove, row.TagID)
			result.Removed = append(result.Removed, name)
			result.InvalidRelations++
			continue
		}
		result.Kept = append(result.Kept, name)
		if _, ok := present[parent.ID]; ok {
			continue
		}
		if _, ok := staged[parent.ID]; ok {
			continue
		}
		staged[parent.ID] = struct{}{}
		toAdd = append(toAdd, parent.ID)
		result.Added = append(result.Added, parent.Name)
	}

	if err := relations.AddRelations(ctx, imageID, toAdd); err != nil {
		return nil, fmt.Errorf("补全父标签关联失败: %w", err)
	}
	if err := relations.RemoveRelations(ctx, imageID, toRemove); err != nil {
		return nil, fmt.Errorf("移除无效标签关联失败: %w", err)
	}

	names := result.Kept
	if result.Changed() {
		names, err = relations.FindTagNamesByImage(ctx, imageID)
		if err != nil {
			return nil, fmt.Errorf("重新读取图片标签失败: %w", err)
		}
	}
	labels := orderLabels(image.Labels, names)
	if result.Changed() || !equalStrings(image.Labels, labels) {
		if err := images.UpdateLabels(ctx, imageID, labels); err != nil {
			return nil, fmt.Errorf("写回图片 labels 失败: %w", err)
		}
	}

	if result.Changed() {
		log.Infow("[TagSync] 图片标签关联已修复",
			"imageId", imageID,
			"added", result.Added,
			"removed", result.Removed,
			"removedIds", result.RemovedIDs,
			"invalidRelations", result.InvalidRelations,
		)
	}
	return result, nil
}

// parentSet 是一次同步中用到的父标签，以及父标签自身父标签的存在性。
type parentSet struct {
	byID          map[string]*model.Tag
	grandExisting map[string]struct{}
}

// valid 报告父标签本身在结构上是否有效：是根标签，或其父标签存在。
func (p *parentSet) valid(parent *model.Tag) bool {
	if parent.IsRoot() {
		return true
	}
	_, ok := p.grandExisting[*parent.ParentID]
	return ok
}

// loadParents 用至多两次批量查询取出父标签及祖父标签的存在性。
func (s *tagSyncer) loadParents(ctx context.Context, tags repository.TagRepository, rows []model.TaggedRelation) (*parentSet, error) {
	set := &parentSet{
		byID:          make(map[string]*model.Tag),
		grandExisting: make(map[string]struct{}),
	}

	parentIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, row := range rows {
		if row.TagMissing() || row.ParentID == nil || *row.ParentID == "" {
			continue
		}
		if _, ok := seen[*row.ParentID]; ok {
			continue
		}
		seen[*row.ParentID] = struct{}{}
		parentIDs = append(parentIDs, *row.ParentID)
	}
	if len(parentIDs) == 0 {
		return set, nil
	}

	parents, err := tags.FindBatchByIDs(ctx, parentIDs)
	if err != nil {
		return nil, fmt.Errorf("批量查询父标签失败: %w", err)
	}
	grandIDs := make([]string, 0)
	for i := range parents {
		p := &parents[i]
		set.byID[p.ID] = p
		if !p.IsRoot() {
			grandIDs = append(grandIDs, *p.ParentID)
		}
	}
	if len(grandIDs) == 0 {
		return set, nil
	}

	grands, err := tags.FindBatchByIDs(ctx, normalizeTagNames(grandIDs))
	if err != nil {
		return nil, fmt.Errorf("批量查询祖父标签失败: %w", err)
	}
	for _, g := range grands {
		set.grandExisting[g.ID] = struct{}{}
	}
	return set, nil
}

// orderLabels 以 previous 中的顺序排列仍然存在的名称，新名称按 names 的顺序追加在后。
func orderLabels(previous, names []string) []string {
	current := make(map[string]struct{}, len(names))
	for _, n := range names {
		current[n] = struct{}{}
	}
	out := make([]string, 0, len(names))
	placed := make(map[string]struct{}, len(names))
	for _, n := range previous {
		if _, ok := current[n]; !ok {
			continue
		}
		if _, ok := placed[n]; ok {
			continue
		}
		placed[n] = struct{}{}
		out = append(out, n)
	}
	for _, n := range names {
		if _, ok := placed[n]; ok {
			continue
		}
		placed[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
