package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"picimpact-go/internal/model"
)

// RelationRepository 定义了 image_tag_relations 关联表的数据操作。
type RelationRepository interface {
	WithTx(tx *gorm.DB) RelationRepository

	// FindTaggedByImage 返回图片的全部关联，并带出标签名称与父标签；标签已删除的关联同样返回。
	FindTaggedByImage(ctx context.Context, imageID string) ([]model.TaggedRelation, error)
	// FindTagNamesByImage 返回图片当前关联且仍存在的标签名称。
	FindTagNamesByImage(ctx context.Context, imageID string) ([]string, error)
	AddRelations(ctx context.Context, imageID string, tagIDs []string) error
	RemoveRelations(ctx context.Context, imageID string, tagIDs []string) error
	DeleteByImage(ctx context.Context, imageID string) error
	FindImageIDsByTag(ctx context.Context, tagID string) ([]string, error)
	// ListTaggedImageIDs 以 image_id 做键集分页，返回 afterID 之后至多 limit 个有关联的图片。
	ListTaggedImageIDs(ctx context.Context, afterID string, limit int) ([]string, error)
	CountTaggedImages(ctx context.Context) (int64, error)
}

type relationRepository struct {
	db *gorm.DB
}

// NewRelationRepository 创建一个新的 RelationRepository 实例。
func NewRelationRepository(db *gorm.DB) RelationRepository {
	return &relationRepository{db: db}
}

func (r *relationRepository) WithTx(tx *gorm.DB) RelationRepository {
	return &relationRepository{db: tx}
}

func (r *relationRepository) FindTaggedByImage(ctx context.Context, imageID string) ([]model.TaggedRelation, error) {
	var rows []model.TaggedRelation
	err := r.db.WithContext(ctx).
		Table("image_tag_relations AS r").
		Select("r.tag_id AS tag_id, t.name AS tag_name, t.parent_id AS parent_id").
		Joins("LEFT JOIN tags t ON t.id = r.tag_id").
		Where("r.image_id = ?", imageID).
		Order("r.created_at asc, r.tag_id asc").
		Scan(&rows).Error
	return rows, err
}

func (r *relationRepository) FindTagNamesByImage(ctx context.Context, imageID string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Table("image_tag_relations AS r").
		Joins("JOIN tags t ON t.id = r.tag_id").
		Where("r.image_id = ?", imageID).
		Order("r.created_at asc, t.name asc").
		Pluck("t.name", &names).Error
	return names, err
}

// AddRelations 批量插入关联，已存在的 (image_id, tag_id) 被忽略。
func (r *relationRepository) AddRelations(ctx context.Context, imageID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]model.ImageTagRelation, 0, len(tagIDs))
	for _, id := range tagIDs {
		rows = append(rows, model.ImageTagRelation{ImageID: imageID, TagID: id})
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (r *relationRepository) RemoveRelations(ctx context.Context, imageID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("image_id = ? AND tag_id IN ?", imageID, tagIDs).
		Delete(&model.ImageTagRelation{}).Error
}

func (r *relationRepository) DeleteByImage(ctx context.Context, imageID string) error {
	return r.db.WithContext(ctx).Where("image_id = ?", imageID).Delete(&model.ImageTagRelation{}).Error
}

func (r *relationRepository) FindImageIDsByTag(ctx context.Context, tagID string) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.ImageTagRelation{}).
		Where("tag_id = ?", tagID).
		Order("image_id asc").
		Pluck("image_id", &ids).Error
	return ids, err
}

func (r *relationRepository) ListTaggedImageIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.ImageTagRelation{}).
		Distinct("image_id").
		Where("image_id > ?", afterID).
		Order("image_id asc").
		Limit(limit).
		Pluck("image_id", &ids).Error
	return ids, err
}

func (r *relationRepository) CountTaggedImages(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.ImageTagRelation{}).
		Distinct("image_id").
		Count(&total).Error
	return total, err
}
