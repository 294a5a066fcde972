// Package repository 包含了所有与数据库交互的逻辑。
package repository

import (
	"context"

	"gorm.io/gorm"
	"picimpact-go/internal/model"
)

// TagRepository 接口定义了标签的数据操作方法。
type TagRepository interface {
	// WithTx 返回绑定到给定事务的仓库副本。
	WithTx(tx *gorm.DB) TagRepository

	Create(ctx context.Context, tag *model.Tag) error
	CreateBatch(ctx context.Context, tags []*model.Tag) error
	FindByID(ctx context.Context, id string) (*model.Tag, error)
	FindByName(ctx context.Context, name string) (*model.Tag, error)
	FindByNames(ctx context.Context, names []string) ([]model.Tag, error)
	FindBatchByIDs(ctx context.Context, ids []string) ([]model.Tag, error)
	FindAll(ctx context.Context) ([]model.Tag, error)
	FindChildren(ctx context.Context, parentID string) ([]model.Tag, error)
	Update(ctx context.Context, tag *model.Tag) error
	UpdateParent(ctx context.Context, id string, parentID, category *string) error
	UpdateChildrenCategory(ctx context.Context, parentID, category string) error
	Delete(ctx context.Context, id string) error
	DeleteChildren(ctx context.Context, parentID string) (int64, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository 创建一个新的 TagRepository 实例。
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func (r *tagRepository) WithTx(tx *gorm.DB) TagRepository {
	return &tagRepository{db: tx}
}

// Create 在数据库中插入一个新的标签记录。
func (r *tagRepository) Create(ctx context.Context, tag *model.Tag) error {
	return r.db.WithContext(ctx).Create(tag).Error
}

// CreateBatch 用一条 INSERT 写入多个标签。
func (r *tagRepository) CreateBatch(ctx context.Context, tags []*model.Tag) error {
	if len(tags) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&tags).Error
}

// FindByID 根据 id 查找标签，不存在时返回 gorm.ErrRecordNotFound。
func (r *tagRepository) FindByID(ctx context.Context, id string) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindByName 根据名称查找标签。
func (r *tagRepository) FindByName(ctx context.Context, name string) (*model.Tag, error) {
	var tag model.Tag
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&tag).Error
	if err != nil {
		return nil, err
	}
	return &tag, nil
}

// FindByNames finds tags by a slice of names in one query.
func (r *tagRepository) FindByNames(ctx context.Context, names []string) ([]model.Tag, error) {
	var tags []model.Tag
	if len(names) == 0 {
		return tags, nil
	}
	err := r.db.WithContext(ctx).Where("name IN ?", names).Find(&tags).Error
	return tags, err
}

// FindBatchByIDs finds tags by a slice of IDs.
func (r *tagRepository) FindBatchByIDs(ctx context.Context, ids []string) ([]model.Tag, error) {
	var tags []model.Tag
	if len(ids) == 0 {
		return tags, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tags).Error
	return tags, err
}

// FindAll 检索所有标签，按名称排序。
func (r *tagRepository) FindAll(ctx context.Context) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).Order("name asc").Find(&tags).Error
	return tags, err
}

// FindChildren 返回直接子标签。
func (r *tagRepository) FindChildren(ctx context.Context, parentID string) ([]model.Tag, error) {
	var tags []model.Tag
	err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("name asc").Find(&tags).Error
	return tags, err
}

// Update 更新一个已存在的标签记录。
func (r *tagRepository) Update(ctx context.Context, tag *model.Tag) error {
	return r.db.WithContext(ctx).Save(tag).Error
}

// UpdateParent 同时写入 parent_id 与 category。
func (r *tagRepository) UpdateParent(ctx context.Context, id string, parentID, category *string) error {
	return r.db.WithContext(ctx).Model(&model.Tag{}).Where("id = ?", id).
		Updates(map[string]interface{}{"parent_id": parentID, "category": category}).Error
}

// UpdateChildrenCategory 在父标签改名后同步子标签的 category。
func (r *tagRepository) UpdateChildrenCategory(ctx context.Context, parentID, category string) error {
	return r.db.WithContext(ctx).Model(&model.Tag{}).Where("parent_id = ?", parentID).
		Update("category", category).Error
}

// Delete 删除单个标签，子标签的 parent_id 保持不变。
func (r *tagRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Tag{}, "id = ?", id).Error
}

// DeleteChildren 删除 parent_id 等于给定 id 的全部标签。
func (r *tagRepository) DeleteChildren(ctx context.Context, parentID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Delete(&model.Tag{})
	return res.RowsAffected, res.Error
}
