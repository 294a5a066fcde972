package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"picimpact-go/internal/config"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
	"picimpact-go/pkg/log"
)

// CreateTagInput 是创建标签的参数。ParentID 优先于 ParentName；
// 二者都为空时，与名称不同的 Category 视为父标签名称。
type CreateTagInput struct {
	Name       string  `json:"name"`
	Category   *string `json:"category"`
	ParentName *string `json:"parentName"`
	ParentID   *string `json:"parentId"`
	Detail     string  `json:"detail"`
}

// UpdateTagInput 是更新标签的参数，nil 字段保持不变。
// 父标签的优先级为 ParentID > ParentName > Category，空字符串表示提升为根标签。
type UpdateTagInput struct {
	Name       *string `json:"name"`
	Category   *string `json:"category"`
	ParentID   *string `json:"parentId"`
	ParentName *string `json:"parentName"`
	Detail     *string `json:"detail"`
}

// TagService 接口定义了标签库的业务操作。
type TagService interface {
	CreateTag(ctx context.Context, in CreateTagInput) (*model.Tag, error)
	UpdateTag(ctx context.Context, id string, in UpdateTagInput) (*model.Tag, error)
	// DeleteTag 只删除标签本身，子标签与图片关联保持悬空，由修复任务清理。
	DeleteTag(ctx context.Context, id string) error
	// DeleteTagWithChildren 在一个事务中删除标签及其直接子标签，返回删除的标签数。
	DeleteTagWithChildren(ctx context.Context, id string) (int64, error)
	UpsertByName(ctx context.Context, names []string, categoryMap map[string]string) ([]model.Tag, error)
	GetTag(ctx context.Context, id string) (*model.Tag, error)
	ListTags(ctx context.Context) ([]model.Tag, error)
	GetTagTree(ctx context.Context) ([]*model.TagNode, error)
}

type tagService struct {
	db           *gorm.DB
	cfg          config.TxConfig
	tagRepo      repository.TagRepository
	relationRepo repository.RelationRepository
	syncer       TagSyncer
	mover        TagMoveService
	publisher    TaskPublisher
}

// NewTagService 创建一个新的 TagService 实例。
func NewTagService(db *gorm.DB, cfg config.TxConfig, tagRepo repository.TagRepository, relationRepo repository.RelationRepository, syncer TagSyncer, mover TagMoveService, publisher TaskPublisher) TagService {
	return &tagService{
		db:           db,
		cfg:          cfg,
		tagRepo:      tagRepo,
		relationRepo: relationRepo,
		syncer:       syncer,
		mover:        mover,
		publisher:    publisher,
	}
}

func (s *tagService) CreateTag(ctx context.Context, in CreateTagInput) (*model.Tag, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: 标签名称不能为空", ErrInvalidTag)
	}

	var created *model.Tag
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		tags := s.tagRepo.WithTx(tx)
		if _, err := tags.FindByName(ctx, name); err == nil {
			return fmt.Errorf("%w: %s", ErrTagExists, name)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		parent, err := s.resolveParent(ctx, tags, name, in.ParentID, in.ParentName, in.Category)
		if err != nil {
			return err
		}

		tag := &model.Tag{ID: uuid.NewString(), Name: name, Detail: in.Detail}
		category := name
		if parent != nil {
			tag.ParentID = &parent.ID
			category = parent.Name
		}
		tag.Category = &category
		if err := tags.Create(ctx, tag); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrTagExists, name)
			}
			return fmt.Errorf("创建标签失败: %w", err)
		}
		created = tag
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// resolveParent 解析父标签：按 id 时必须存在，按名称时不存在则创建为根标签。
// 返回 nil 表示根标签。
func (s *tagService) resolveParent(ctx context.Context, tags repository.TagRepository, selfName string, parentID, parentName, category *string) (*model.Tag, error) {
	if parentID != nil {
		if *parentID == "" {
			return nil, nil
		}
		parent, err := tags.FindByID(ctx, *parentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: 父标签 %s", ErrTagNotFound, *parentID)
			}
			return nil, err
		}
		return parent, nil
	}

	name := ""
	switch {
	case parentName != nil:
		name = strings.TrimSpace(*parentName)
	case category != nil:
		name = strings.TrimSpace(*category)
	}
	if name == "" || name == selfName {
		return nil, nil
	}
	parents, _, err := upsertTagsByName(ctx, tags, nil, []string{name}, nil)
	if err != nil {
		return nil, err
	}
	return &parents[0], nil
}

// UpdateTag 的改名会同步子标签的 category 并重写相关图片的 labels；
// 父标签变化交给 TagMoveService 在同一事务中完成。
func (s *tagService) UpdateTag(ctx context.Context, id string, in UpdateTagInput) (*model.Tag, error) {
	var (
		updated  *model.Tag
		affected []string
	)
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		tags := s.tagRepo.WithTx(tx)
		relations := s.relationRepo.WithTx(tx)

		tag, err := tags.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrTagNotFound, id)
			}
			return err
		}

		renamed := false
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: 标签名称不能为空", ErrInvalidTag)
			}
			if name != tag.Name {
				if _, err := tags.FindByName(ctx, name); err == nil {
					return fmt.Errorf("%w: %s", ErrTagExists, name)
				} else if !errors.Is(err, gorm.ErrRecordNotFound) {
					return err
				}
				tag.Name = name
				renamed = true
			}
		}
		if in.Detail != nil {
			tag.Detail = *in.Detail
		}
		if renamed && tag.IsRoot() {
			tag.Category = &tag.Name
		}
		if err := tags.Update(ctx, tag); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %s", ErrTagExists, tag.Name)
			}
			return fmt.Errorf("更新标签失败: %w", err)
		}

		synced := make(map[string]struct{})
		if in.ParentID != nil || in.ParentName != nil || in.Category != nil {
			parent, err := s.resolveParent(ctx, tags, tag.Name, in.ParentID, in.ParentName, in.Category)
			if err != nil {
				return err
			}
			var target *string
			if parent != nil {
				target = &parent.ID
			}
			if !sameParent(tag.ParentID, target) {
				moved, err := s.mover.MoveTagTx(ctx, tx, tag.ID, target)
				if err != nil {
					return err
				}
				for _, r := range moved.Results {
					synced[r.ImageID] = struct{}{}
					affected = append(affected, r.ImageID)
				}
			}
		}

		if renamed {
			if err := tags.UpdateChildrenCategory(ctx, tag.ID, tag.Name); err != nil {
				return fmt.Errorf("更新子标签 category 失败: %w", err)
			}
			imageIDs, err := relations.FindImageIDsByTag(ctx, tag.ID)
			if err != nil {
				return fmt.Errorf("查询标签关联图片失败: %w", err)
			}
			for _, imageID := range imageIDs {
				if _, ok := synced[imageID]; ok {
					continue
				}
				if _, err := s.syncer.SyncImage(ctx, tx, imageID); err != nil {
					return err
				}
				affected = append(affected, imageID)
			}
		}

		updated, err = tags.FindByID(ctx, tag.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	publishIndex(ctx, s.publisher, affected)
	return updated, nil
}

func sameParent(a, b *string) bool {
	av, bv := "", ""
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func (s *tagService) DeleteTag(ctx context.Context, id string) error {
	if _, err := s.GetTag(ctx, id); err != nil {
		return err
	}
	if err := s.tagRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("删除标签失败: %w", err)
	}
	log.Infow("标签已删除", "tagId", id)
	return nil
}

func (s *tagService) DeleteTagWithChildren(ctx context.Context, id string) (int64, error) {
	var deleted int64
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		tags := s.tagRepo.WithTx(tx)
		if _, err := tags.FindByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %s", ErrTagNotFound, id)
			}
			return err
		}
		n, err := tags.DeleteChildren(ctx, id)
		if err != nil {
			return fmt.Errorf("删除子标签失败: %w", err)
		}
		if err := tags.Delete(ctx, id); err != nil {
			return fmt.Errorf("删除标签失败: %w", err)
		}
		deleted = n + 1
		return nil
	})
	if err != nil {
		return 0, err
	}
	log.Infow("标签及子标签已删除", "tagId", id, "deleted", deleted)
	return deleted, nil
}

func (s *tagService) UpsertByName(ctx context.Context, names []string, categoryMap map[string]string) ([]model.Tag, error) {
	var (
		out      []model.Tag
		affected []string
	)
	err := runInTx(ctx, s.db, s.cfg, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		out, affected, err = upsertTagsByName(ctx, s.tagRepo.WithTx(tx), moveWithin(s.mover, tx), names, categoryMap)
		return err
	})
	if err != nil {
		return nil, err
	}
	publishIndex(ctx, s.publisher, appendUnique(nil, affected...))
	return out, nil
}

func (s *tagService) GetTag(ctx context.Context, id string) (*model.Tag, error) {
	tag, err := s.tagRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTagNotFound, id)
		}
		return nil, err
	}
	return tag, nil
}

func (s *tagService) ListTags(ctx context.Context) ([]model.Tag, error) {
	return s.tagRepo.FindAll(ctx)
}

// GetTagTree 构建标签树，父标签已不存在的标签作为根返回。
func (s *tagService) GetTagTree(ctx context.Context) ([]*model.TagNode, error) {
	all, err := s.tagRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return newTagForest(all).tree(), nil
}
