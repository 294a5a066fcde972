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

// ObjectRemover 按存储 key 删除对象。
type ObjectRemover interface {
	RemoveObjects(ctx context.Context, keys []string) error
}

// ImageService 接口定义了图片的查询、删除与标签维护操作。
type ImageService interface {
	GetImage(ctx context.Context, id string) (*model.Image, error)
	// SoftDeleteImage 只设置 del 标记，关联保持不变，以便同一内容再次导入时复活。
	SoftDeleteImage(ctx context.Context, id string) error
	// PurgeImage 物理删除图片及其相册关系与标签关联，提交后删除存储对象。
	PurgeImage(ctx context.Context, id string) error
	// UpdateImageTags 全量替换图片的标签关联后执行同步。
	UpdateImageTags(ctx context.Context, id string, labels []string, categoryMap map[string]string) (*model.Image, error)
	SyncImageTags(ctx context.Context, id string) (*model.SyncResult, error)
}

type imageService struct {
	db           *gorm.DB
	cfg          config.TxConfig
	imageRepo    repository.ImageRepository
	albumRepo    repository.AlbumRepository
	tagRepo      repository.TagRepository
	relationRepo repository.RelationRepository
	syncer       TagSyncer
	mover        TagMoveService
	remover      ObjectRemover
	publisher    TaskPublisher
}

// NewImageService 创建一个新的 ImageService 实例。remover 为 nil 时跳过对象删除。
func NewImageService(
	db *gorm.DB,
	cfg config.TxConfig,
	imageRepo repository.ImageRepository,
	albumRepo repository.AlbumRepository,
	tagRepo repository.TagRepository,
	relationRepo repository.RelationRepository,
	syncer TagSyncer,
	mover TagMoveService,
	remover ObjectRemover,
	publisher TaskPublisher,
) ImageService {
	return &imageService{
		db:           db,
		cfg:          cfg,
		imageRepo:    imageRepo,
		albumRepo:    albumRepo,
		tagRepo:      tagRepo,
		relationRepo: relationRepo,
		syncer:       syncer,
		mover:        mover,
		remover:      remover,
		publisher:    publisher,
	}
}

func (s *imageService) GetImage(ctx context.Context, id string) (*model.Image, error) {
	image, err := s.imageRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, id)
		}
		return nil, err
	}
	return image, nil
}

func (s *imageService) SoftDeleteImage(ctx context.Context, id string) error {
	if err := s.imageRepo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrImageNotFound, id)
		}
		return err
	}
	log.Infow("图片已软删除", "imageId", id)
	publishIndex(ctx, s.publisher, []string{id})
	return nil
}

func (s *imageService) PurgeImage(ctx context.Context, id string) error {
	var image *model.Image
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		image, err = s.imageRepo.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrImageNotFound, id)
			}
			return err
		}
		if err := s.relationRepo.WithTx(tx).DeleteByImage(ctx, id); err != nil {
			return err
		}
		if err := s.albumRepo.WithTx(tx).RemoveImage(ctx, id); err != nil {
			return err
		}
		return s.imageRepo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	if s.remover != nil {
		keys := make([]string, 0, 3)
		for _, k := range []*string{image.ImageKey, image.PreviewKey, image.VideoKey} {
			if k != nil && *k != "" {
				keys = append(keys, *k)
			}
		}
		if len(keys) > 0 {
			// 数据库记录已删除，对象删除失败只记录日志。
			if err := s.remover.RemoveObjects(ctx, keys); err != nil {
				log.Error("删除图片存储对象失败", err)
			}
		}
	}
	log.Infow("图片已物理删除", "imageId", id)
	publishIndex(ctx, s.publisher, []string{id})
	return nil
}

func (s *imageService) UpdateImageTags(ctx context.Context, id string, labels []string, categoryMap map[string]string) (*model.Image, error) {
	var (
		image   *model.Image
		reindex []string
	)
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		images := s.imageRepo.WithTx(tx)
		relations := s.relationRepo.WithTx(tx)
		if _, err := images.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrImageNotFound, id)
			}
			return err
		}

		tags, moved, err := upsertTagsByName(ctx, s.tagRepo.WithTx(tx), moveWithin(s.mover, tx), labels, categoryMap)
		if err != nil {
			return err
		}
		reindex = append(reindex, moved...)
		ids := make([]string, 0, len(tags))
		for _, t := range tags {
			ids = append(ids, t.ID)
		}
		if err := relations.DeleteByImage(ctx, id); err != nil {
			return fmt.Errorf("清理标签关联失败: %w", err)
		}
		if err := relations.AddRelations(ctx, id, ids); err != nil {
			return fmt.Errorf("写入标签关联失败: %w", err)
		}
		if _, err := s.syncer.SyncImage(ctx, tx, id); err != nil {
			return err
		}
		image, err = images.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	publishIndex(ctx, s.publisher, appendUnique([]string{id}, reindex...))
	return image, nil
}

func (s *imageService) SyncImageTags(ctx context.Context, id string) (*model.SyncResult, error) {
	var result *model.SyncResult
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		result, err = s.syncer.SyncImage(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if result.Changed() {
		publishIndex(ctx, s.publisher, []string{id})
	}
	return result, nil
}
