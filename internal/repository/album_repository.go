package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"picimpact-go/internal/model"
)

// AlbumRepository 定义了相册及图片-相册关联的数据操作。
type AlbumRepository interface {
	WithTx(tx *gorm.DB) AlbumRepository

	Create(ctx context.Context, album *model.Album) error
	FindByValue(ctx context.Context, value string) (*model.Album, error)
	FindAll(ctx context.Context) ([]model.Album, error)
	// SetCoverIfEmpty 仅在相册尚无封面时写入封面，返回是否写入。
	SetCoverIfEmpty(ctx context.Context, value, cover string) (bool, error)
	AddImage(ctx context.Context, imageID, albumValue string) error
	RemoveImage(ctx context.Context, imageID string) error
	FindAlbumValuesByImage(ctx context.Context, imageID string) ([]string, error)
}

type albumRepository struct {
	db *gorm.DB
}

// NewAlbumRepository 创建一个新的 AlbumRepository 实例。
func NewAlbumRepository(db *gorm.DB) AlbumRepository {
	return &albumRepository{db: db}
}

func (r *albumRepository) WithTx(tx *gorm.DB) AlbumRepository {
	return &albumRepository{db: tx}
}

func (r *albumRepository) Create(ctx context.Context, album *model.Album) error {
	return r.db.WithContext(ctx).Create(album).Error
}

func (r *albumRepository) FindByValue(ctx context.Context, value string) (*model.Album, error) {
	var album model.Album
	err := r.db.WithContext(ctx).Where("value = ? AND del = ?", value, false).First(&album).Error
	if err != nil {
		return nil, err
	}
	return &album, nil
}

func (r *albumRepository) FindAll(ctx context.Context) ([]model.Album, error) {
	var albums []model.Album
	err := r.db.WithContext(ctx).Where("del = ?", false).Order("sort desc, created_at asc").Find(&albums).Error
	return albums, err
}

// SetCoverIfEmpty 用条件更新保证封面最多被自动设置一次。
func (r *albumRepository) SetCoverIfEmpty(ctx context.Context, value, cover string) (bool, error) {
	if cover == "" {
		return false, nil
	}
	res := r.db.WithContext(ctx).Model(&model.Album{}).
		Where("value = ? AND (cover IS NULL OR cover = '')", value).
		Update("cover", cover)
	return res.RowsAffected > 0, res.Error
}

func (r *albumRepository) AddImage(ctx context.Context, imageID, albumValue string) error {
	rel := model.ImageAlbumRelation{ImageID: imageID, AlbumValue: albumValue}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rel).Error
}

func (r *albumRepository) RemoveImage(ctx context.Context, imageID string) error {
	return r.db.WithContext(ctx).Where("image_id = ?", imageID).Delete(&model.ImageAlbumRelation{}).Error
}

func (r *albumRepository) FindAlbumValuesByImage(ctx context.Context, imageID string) ([]string, error) {
	var values []string
	err := r.db.WithContext(ctx).Model(&model.ImageAlbumRelation{}).
		Where("image_id = ?", imageID).
		Order("album_value asc").
		Pluck("album_value", &values).Error
	return values, err
}
