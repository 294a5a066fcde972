package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"picimpact-go/internal/config"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
	"picimpact-go/pkg/log"
)

// MoveValidation 是标签移动的预检结果。
type MoveValidation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// ImageMoveResult 是标签移动时单张图片的同步结果。
type ImageMoveResult struct {
	ImageID string            `json:"imageId"`
	Sync    *model.SyncResult `json:"sync"`
}

// MoveResult 汇总一次标签移动。
type MoveResult struct {
	Success        bool               `json:"success"`
	Tag            *model.Tag         `json:"tag,omitempty"`
	Error          string             `json:"error,omitempty"`
	AffectedImages int                `json:"affectedImages"`
	Results        []ImageMoveResult  `json:"results"`
	Errors         []model.ImageError `json:"errors"`
}

// TagMoveService 校验并执行标签的改挂/提升为根，随后同步所有受影响图片的关联。
type TagMoveService interface {
	ValidateMove(ctx context.Context, tagID string, newParentID *string) (*MoveValidation, error)
	MoveTag(ctx context.Context, tagID string, newParentID *string) (*MoveResult, error)
	// MoveTagTx 在调用方的事务中执行移动，不投递索引任务。
	MoveTagTx(ctx context.Context, tx *gorm.DB, tagID string, newParentID *string) (*MoveResult, error)
}

type tagMoveService struct {
	db           *gorm.DB
	cfg          config.TxConfig
	tagRepo      repository.TagRepository
	relationRepo repository.RelationRepository
	syncer       TagSyncer
	publisher    TaskPublisher
}

// NewTagMoveService 创建一个新的 TagMoveService 实例。
func NewTagMoveService(db *gorm.DB, cfg config.TxConfig, tagRepo repository.TagRepository, relationRepo repository.RelationRepository, syncer TagSyncer, publisher TaskPublisher) TagMoveService {
	return &tagMoveService{
		db:           db,
		cfg:          cfg,
		tagRepo:      tagRepo,
		relationRepo: relationRepo,
		syncer:       syncer,
		publisher:    publisher,
	}
}

func (s *tagMoveService) ValidateMove(ctx context.Context, tagID string, newParentID *string) (*MoveValidation, error) {
	all, err := s.tagRepo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取标签失败: %w", err)
	}
	err = validateMove(newTagForest(all), tagID, newParentID)
	var mve *MoveValidationError
	switch {
	case err == nil:
		return &MoveValidation{Valid: true}, nil
	case errors.As(err, &mve):
		return &MoveValidation{Valid: false, Error: mve.Reason}, nil
	default:
		return nil, err
	}
}

func (s *tagMoveService) MoveTag(ctx context.Context, tagID string, newParentID *string) (*MoveResult, error) {
	var result *MoveResult
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		result, err = s.MoveTagTx(ctx, tx, tagID, newParentID)
		return err
	})
	if err != nil {
		var mve *MoveValidationError
		if errors.As(err, &mve) {
			return &MoveResult{Success: false, Error: mve.Reason, Results: []ImageMoveResult{}, Errors: []model.ImageError{}}, err
		}
		return nil, err
	}

	ids := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		ids = append(ids, r.ImageID)
	}
	publishIndex(ctx, s.publisher, ids)
	return result, nil
}

// MoveTagTx 的步骤：
//  1. 在事务内重新读取标签森林并校验；
//  2. 更新 parent_id 与 category；
//  3. 对每张关联图片按结构变化调整旧/新父标签的关联，再执行 SyncImage。
//
// 每张图片在独立的保存点中处理，失败只回滚该图片并记入 Errors。
func (s *tagMoveService) MoveTagTx(ctx context.Context, tx *gorm.DB, tagID string, newParentID *string) (*MoveResult, error) {
	tags := s.tagRepo.WithTx(tx)
	relations := s.relationRepo.WithTx(tx)

	all, err := tags.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取标签失败: %w", err)
	}
	forest := newTagForest(all)
	if err := validateMove(forest, tagID, newParentID); err != nil {
		return nil, err
	}

	tag, _ := forest.get(tagID)
	oldParentID := ""
	if !tag.IsRoot() {
		oldParentID = *tag.ParentID
	}
	newParent := ""
	category := tag.Name
	if newParentID != nil && *newParentID != "" {
		p, _ := forest.get(*newParentID)
		newParent = p.ID
		category = p.Name
	}

	var parentRef *string
	if newParent != "" {
		parentRef = &newParent
	}
	if err := tags.UpdateParent(ctx, tag.ID, parentRef, &category); err != nil {
		return nil, fmt.Errorf("更新标签父级失败: %w", err)
	}
	tag.ParentID = parentRef
	tag.Category = &category

	result := &MoveResult{Success: true, Tag: tag, Results: []ImageMoveResult{}, Errors: []model.ImageError{}}
	if oldParentID == newParent {
		return result, nil
	}

	imageIDs, err := relations.FindImageIDsByTag(ctx, tag.ID)
	if err != nil {
		return nil, fmt.Errorf("查询标签关联图片失败: %w", err)
	}
	result.AffectedImages = len(imageIDs)

	for i, imageID := range imageIDs {
		savepoint := fmt.Sprintf("tag_move_%d", i)
		if err := tx.SavePoint(savepoint).Error; err != nil {
			return nil, fmt.Errorf("创建保存点失败: %w", err)
		}
		sync, err := s.moveImage(ctx, tx, imageID, oldParentID, newParent)
		if err != nil {
			if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
				return nil, fmt.Errorf("回滚保存点失败: %w", rbErr)
			}
			log.Warnw("[TagMove] 图片关联调整失败", "tagId", tag.ID, "imageId", imageID, "error", err)
			result.Errors = append(result.Errors, model.ImageError{ImageID: imageID, Error: err.Error()})
			continue
		}
		result.Results = append(result.Results, ImageMoveResult{ImageID: imageID, Sync: sync})
	}

	log.Infow("[TagMove] 标签移动完成",
		"tagId", tag.ID,
		"from", oldParentID,
		"to", newParent,
		"affectedImages", result.AffectedImages,
		"errors", len(result.Errors),
	)
	return result, nil
}

// moveImage 移除不再隐含的旧父标签关联、补上新父标签关联，最后同步整张图片。
func (s *tagMoveService) moveImage(ctx context.Context, tx *gorm.DB, imageID, oldParentID, newParentID string) (*model.SyncResult, error) {
	relations := s.relationRepo.WithTx(tx)
	if oldParentID != "" {
		if err := relations.RemoveRelations(ctx, imageID, []string{oldParentID}); err != nil {
			return nil, err
		}
	}
	if newParentID != "" {
		if err := relations.AddRelations(ctx, imageID, []string{newParentID}); err != nil {
			return nil, err
		}
	}
	return s.syncer.SyncImage(ctx, tx, imageID)
}

// validateMove 拒绝：标签不存在、以自身为父、父标签不存在、移动到自己的后代之下。
func validateMove(forest *tagForest, tagID string, newParentID *string) error {
	if _, ok := forest.get(tagID); !ok {
		return fmt.Errorf("%w: %s", ErrTagNotFound, tagID)
	}
	if newParentID == nil || *newParentID == "" {
		return nil
	}
	if *newParentID == tagID {
		return &MoveValidationError{Reason: "标签不能以自身为父标签"}
	}
	if _, ok := forest.get(*newParentID); !ok {
		return &MoveValidationError{Reason: "目标父标签不存在"}
	}
	found, cyclic := forest.hasAncestor(*newParentID, tagID)
	if found {
		return &MoveValidationError{Reason: "不能将标签移动到其子孙标签之下"}
	}
	if cyclic {
		log.Warnw("[TagMove] 目标父标签的祖先链中存在环", "tagId", tagID, "newParentId", *newParentID)
	}
	return nil
}
