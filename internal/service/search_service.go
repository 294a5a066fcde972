package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
	"picimpact-go/pkg/log"
)

// ImageIndex 是图片搜索索引的读写接口。
type ImageIndex interface {
	IndexImage(ctx context.Context, doc model.ImageDocument) error
	DeleteImage(ctx context.Context, imageID string) error
	SearchImages(ctx context.Context, query string, size int) ([]model.SearchHit, error)
}

// SearchService 接口定义了搜索操作。
type SearchService interface {
	SearchImages(ctx context.Context, query string, size int) ([]model.SearchHit, error)
	// IndexImages 按数据库当前状态重建图片文档：已删除或不存在的图片从索引中移除。
	IndexImages(ctx context.Context, imageIDs []string) error
}

type searchService struct {
	index     ImageIndex
	imageRepo repository.ImageRepository
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(index ImageIndex, imageRepo repository.ImageRepository) SearchService {
	return &searchService{index: index, imageRepo: imageRepo}
}

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
)

func (s *searchService) SearchImages(ctx context.Context, query string, size int) ([]model.SearchHit, error) {
	normalized := normalizeQuery(query)
	if normalized == "" {
		return []model.SearchHit{}, nil
	}
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}
	if normalized != query {
		log.Infof("[SearchService] 规范化查询: '%s' -> '%s'", query, normalized)
	}
	return s.index.SearchImages(ctx, normalized, size)
}

func (s *searchService) IndexImages(ctx context.Context, imageIDs []string) error {
	var errs []error
	for _, id := range imageIDs {
		image, err := s.imageRepo.FindByID(ctx, id)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			errs = append(errs, fmt.Errorf("读取图片 %s 失败: %w", id, err))
			continue
		}
		if image == nil || image.Del {
			if err := s.index.DeleteImage(ctx, id); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := s.index.IndexImage(ctx, toImageDocument(image)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func toImageDocument(image *model.Image) model.ImageDocument {
	doc := model.ImageDocument{
		ImageID: image.ID,
		Title:   image.Title,
		Detail:  image.Detail,
		Labels:  append([]string{}, image.Labels...),
		Show:    image.Show,
		Del:     image.Del,
	}
	if image.URL != nil {
		doc.URL = *image.URL
	}
	doc.PreviewURL = image.CoverURL()
	return doc
}

var (
	reKeep  = regexp.MustCompile(`[^\p{Han}\p{L}\p{N}\s]+`)
	reSpace = regexp.MustCompile(`\s+`)
)

// normalizeQuery 去除标点并归一空白，只保留文字、数字与空白。
func normalizeQuery(q string) string {
	kept := reKeep.ReplaceAllString(strings.ToLower(q), " ")
	return strings.TrimSpace(reSpace.ReplaceAllString(kept, " "))
}
