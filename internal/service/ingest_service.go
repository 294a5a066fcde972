package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"picimpact-go/internal/config"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
	"picimpact-go/pkg/log"
)

// 导入结果。
const (
	IngestCreated  = "created"
	IngestRevived  = "revived"
	IngestExisting = "existing"
)

// IngestInput 是一张图片的导入参数。
type IngestInput struct {
	ID         *string `json:"id"`
	URL        *string `json:"url"`
	PreviewURL *string `json:"previewUrl"`
	VideoURL   *string `json:"videoUrl"`
	ImageKey   *string `json:"imageKey"`
	PreviewKey *string `json:"previewKey"`
	VideoKey   *string `json:"videoKey"`
	BlurHash   *string `json:"blurhash"`

	Title  string `json:"title"`
	Detail string `json:"detail"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Type   int8   `json:"type"`

	Labels []string `json:"labels"`
	// TagCategoryMap 子标签名称 -> 父标签名称。
	TagCategoryMap map[string]string `json:"tagCategoryMap"`
	Album          string            `json:"album"`
	Sort           *int              `json:"sort"`
	Exif           datatypes.JSON    `json:"exif"`
	Lat            *string           `json:"lat"`
	Lon            *string           `json:"lon"`
}

// IngestResult 是导入后的图片及其结果类型。
type IngestResult struct {
	Image   *model.Image `json:"image"`
	Outcome string       `json:"outcome"`
}

// IngestService 接口定义了图片导入操作。
type IngestService interface {
	// Ingest 幂等地导入一张图片：未删除的重复内容原样返回，已软删除的重复内容被复活。
	Ingest(ctx context.Context, in IngestInput) (*IngestResult, error)
}

type ingestService struct {
	db           *gorm.DB
	cfg          config.TxConfig
	imageRepo    repository.ImageRepository
	albumRepo    repository.AlbumRepository
	tagRepo      repository.TagRepository
	relationRepo repository.RelationRepository
	locker       repository.IngestLocker
	syncer       TagSyncer
	mover        TagMoveService
	publisher    TaskPublisher
}

// NewIngestService 创建一个新的 IngestService 实例。
func NewIngestService(
	db *gorm.DB,
	cfg config.TxConfig,
	imageRepo repository.ImageRepository,
	albumRepo repository.AlbumRepository,
	tagRepo repository.TagRepository,
	relationRepo repository.RelationRepository,
	locker repository.IngestLocker,
	syncer TagSyncer,
	mover TagMoveService,
	publisher TaskPublisher,
) IngestService {
	return &ingestService{
		db:           db,
		cfg:          cfg,
		imageRepo:    imageRepo,
		albumRepo:    albumRepo,
		tagRepo:      tagRepo,
		relationRepo: relationRepo,
		locker:       locker,
		syncer:       syncer,
		mover:        mover,
		publisher:    publisher,
	}
}

// 一次唯一键冲突后按查找重试一次。
const ingestAttempts = 2

func (s *ingestService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	if err := normalizeIngestInput(&in); err != nil {
		return nil, err
	}

	if key := contentKey(in); key != "" {
		release, err := s.locker.Acquire(ctx, key, s.cfg.Timeout(), s.cfg.LockWait())
		if err != nil {
			return nil, fmt.Errorf("获取导入锁失败: %w", err)
		}
		defer release()
	}

	var (
		result  *IngestResult
		reindex []string
		err     error
	)
	for attempt := 1; attempt <= ingestAttempts; attempt++ {
		result, reindex, err = s.ingestOnce(ctx, in)
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		log.Warnw("[Ingest] 唯一键冲突，按已存在记录重试", "attempt", attempt, "key", contentKey(in), "error", err)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %v", ErrImageConflict, err)
		}
		return nil, err
	}

	log.Infow("[Ingest] 图片导入完成", "imageId", result.Image.ID, "outcome", result.Outcome, "album", in.Album)
	if result.Outcome != IngestExisting {
		reindex = appendUnique([]string{result.Image.ID}, reindex...)
	}
	publishIndex(ctx, s.publisher, reindex)
	return result, nil
}

// ingestOnce 在一个事务内完成查重、写入/复活、相册关系、封面与标签关联。
// 第二个返回值是因标签改挂而重新同步过的其他图片。
func (s *ingestService) ingestOnce(ctx context.Context, in IngestInput) (*IngestResult, []string, error) {
	var (
		result *IngestResult
		moved  []string
	)
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		images := s.imageRepo.WithTx(tx)
		albums := s.albumRepo.WithTx(tx)
		relations := s.relationRepo.WithTx(tx)

		album, err := albums.FindByValue(ctx, in.Album)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrAlbumNotFound, in.Album)
			}
			return err
		}

		existing, err := findExistingImage(ctx, images, in)
		if err != nil {
			return err
		}
		if existing != nil && !existing.Del {
			result = &IngestResult{Image: existing, Outcome: IngestExisting}
			return nil
		}

		image := in.toImage()
		outcome := IngestCreated
		if existing != nil {
			// 复活：沿用原 id，覆盖内容字段并恢复可见。
			image.ID = existing.ID
			image.CreatedAt = existing.CreatedAt
			image.Show = true
			image.ShowOnMainPage = true
			if err := images.Overwrite(ctx, image); err != nil {
				return fmt.Errorf("复活图片失败: %w", err)
			}
			if err := albums.RemoveImage(ctx, image.ID); err != nil {
				return fmt.Errorf("清理相册关系失败: %w", err)
			}
			if err := relations.DeleteByImage(ctx, image.ID); err != nil {
				return fmt.Errorf("清理标签关联失败: %w", err)
			}
			outcome = IngestRevived
		} else {
			if in.ID != nil && *in.ID != "" {
				image.ID = *in.ID
			} else {
				image.ID = uuid.NewString()
			}
			if err := images.Create(ctx, image); err != nil {
				return fmt.Errorf("创建图片失败: %w", err)
			}
		}

		if err := albums.AddImage(ctx, image.ID, album.Value); err != nil {
			return fmt.Errorf("写入相册关系失败: %w", err)
		}
		if outcome == IngestCreated {
			if set, err := albums.SetCoverIfEmpty(ctx, album.Value, image.CoverURL()); err != nil {
				return fmt.Errorf("设置相册封面失败: %w", err)
			} else if set {
				log.Infow("[Ingest] 相册封面已设置", "album", album.Value, "imageId", image.ID)
			}
		}

		moved, err = s.attachTags(ctx, tx, image.ID, in.Labels, in.TagCategoryMap)
		if err != nil {
			return err
		}

		saved, err := images.FindByID(ctx, image.ID)
		if err != nil {
			return err
		}
		result = &IngestResult{Image: saved, Outcome: outcome}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, moved, nil
}

// attachTags 按名称 upsert 标签、写入关联，再由 SyncImage 补全父标签并生成 labels。
// 返回因已有标签改挂而重新同步过的图片 id。
func (s *ingestService) attachTags(ctx context.Context, tx *gorm.DB, imageID string, labels []string, categoryMap map[string]string) ([]string, error) {
	tags, moved, err := upsertTagsByName(ctx, s.tagRepo.WithTx(tx), moveWithin(s.mover, tx), labels, categoryMap)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tags))
	for _, t := range tags {
		ids = append(ids, t.ID)
	}
	if err := s.relationRepo.WithTx(tx).AddRelations(ctx, imageID, ids); err != nil {
		return nil, fmt.Errorf("写入标签关联失败: %w", err)
	}
	if _, err := s.syncer.SyncImage(ctx, tx, imageID); err != nil {
		return nil, err
	}
	return moved, nil
}

// findExistingImage 先按内容指纹、再按原图地址查找，包括已软删除的记录。
// 两者都未提供时返回 nil，总是新建。
func findExistingImage(ctx context.Context, images repository.ImageRepository, in IngestInput) (*model.Image, error) {
	if in.BlurHash != nil {
		image, err := images.FindByBlurHash(ctx, *in.BlurHash)
		if err == nil {
			return image, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	if in.URL != nil {
		image, err := images.FindByURL(ctx, *in.URL)
		if err == nil {
			return image, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// contentKey 是用于串行化并发导入的自然键。
func contentKey(in IngestInput) string {
	if in.BlurHash != nil {
		return "blurhash:" + *in.BlurHash
	}
	if in.URL != nil {
		return "url:" + *in.URL
	}
	return ""
}

func normalizeIngestInput(in *IngestInput) error {
	in.Album = strings.TrimSpace(in.Album)
	if in.Album == "" {
		return fmt.Errorf("%w: 相册不能为空", ErrInvalidImage)
	}
	if in.Width < 0 || in.Height < 0 {
		return fmt.Errorf("%w: 宽高不能为负数", ErrInvalidImage)
	}
	if in.Type == 0 {
		in.Type = 1
	}
	if in.Type != 1 && in.Type != 2 {
		return fmt.Errorf("%w: 未知的图片类型 %d", ErrInvalidImage, in.Type)
	}
	if in.Sort == nil || *in.Sort < 0 {
		zero := 0
		in.Sort = &zero
	}
	in.BlurHash = blankToNil(in.BlurHash)
	in.URL = blankToNil(in.URL)
	in.PreviewURL = blankToNil(in.PreviewURL)
	in.VideoURL = blankToNil(in.VideoURL)
	in.Labels = normalizeTagNames(in.Labels)
	return nil
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// toImage 构造新记录：隐藏状态，labels 为空，等待标签同步写入。
func (in IngestInput) toImage() *model.Image {
	return &model.Image{
		URL:            in.URL,
		PreviewURL:     in.PreviewURL,
		VideoURL:       in.VideoURL,
		ImageKey:       in.ImageKey,
		PreviewKey:     in.PreviewKey,
		VideoKey:       in.VideoKey,
		BlurHash:       in.BlurHash,
		Title:          in.Title,
		Detail:         in.Detail,
		Width:          in.Width,
		Height:         in.Height,
		Type:           in.Type,
		Labels:         datatypes.JSONSlice[string]{},
		Exif:           in.Exif,
		Lat:            in.Lat,
		Lon:            in.Lon,
		Sort:           *in.Sort,
		Del:            false,
		Show:           false,
		ShowOnMainPage: false,
	}
}
