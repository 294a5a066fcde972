package repository

import (
	"context"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"picimpact-go/internal/model"
)

// ImageRepository 接口定义了图片记录的持久化操作。
type ImageRepository interface {
	WithTx(tx *gorm.DB) ImageRepository

	Create(ctx context.Context, image *model.Image) error
	// Overwrite 以传入记录覆盖全部字段（含零值），用于软删除记录的复活。
	Overwrite(ctx context.Context, image *model.Image) error
	FindByID(ctx context.Context, id string) (*model.Image, error)
	FindByBlurHash(ctx context.Context, blurHash string) (*model.Image, error)
	FindByURL(ctx context.Context, url string) (*model.Image, error)
	UpdateLabels(ctx context.Context, id string, labels []string) error
	SoftDelete(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository 创建一个新的 ImageRepository 实例。
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) WithTx(tx *gorm.DB) ImageRepository {
	return &imageRepository{db: tx}
}

func (r *imageRepository) Create(ctx context.Context, image *model.Image) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *imageRepository) Overwrite(ctx context.Context, image *model.Image) error {
	return r.db.WithContext(ctx).Save(image).Error
}

func (r *imageRepository) FindByID(ctx context.Context, id string) (*model.Image, error) {
	var image model.Image
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// FindByBlurHash 根据内容指纹查找图片，包括已软删除的记录。
func (r *imageRepository) FindByBlurHash(ctx context.Context, blurHash string) (*model.Image, error) {
	var image model.Image
	err := r.db.WithContext(ctx).Where("blurhash = ?", blurHash).First(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// FindByURL 根据原图地址查找图片，包括已软删除的记录。
func (r *imageRepository) FindByURL(ctx context.Context, url string) (*model.Image, error) {
	var image model.Image
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&image).Error
	if err != nil {
		return nil, err
	}
	return &image, nil
}

// UpdateLabels 重写图片的标签缓存。
func (r *imageRepository) UpdateLabels(ctx context.Context, id string, labels []string) error {
	if labels == nil {
		labels = []string{}
	}
	return r.db.WithContext(ctx).Model(&model.Image{}).Where("id = ?", id).
		Update("labels", datatypes.JSONSlice[string](labels)).Error
}

func (r *imageRepository) SoftDelete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&model.Image{}).Where("id = ?", id).Update("del", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Delete 物理删除图片记录。
func (r *imageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&model.Image{}, "id = ?", id).Error
}
