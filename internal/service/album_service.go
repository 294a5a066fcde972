package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
)

// CreateAlbumInput 是创建相册的参数。
type CreateAlbumInput struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Detail string `json:"detail"`
	Sort   int    `json:"sort"`
	Show   bool   `json:"show"`
}

// AlbumService 接口定义了相册操作。
type AlbumService interface {
	CreateAlbum(ctx context.Context, in CreateAlbumInput) (*model.Album, error)
	GetAlbum(ctx context.Context, value string) (*model.Album, error)
	ListAlbums(ctx context.Context) ([]model.Album, error)
}

type albumService struct {
	albumRepo repository.AlbumRepository
}

// NewAlbumService 创建一个新的 AlbumService 实例。
func NewAlbumService(albumRepo repository.AlbumRepository) AlbumService {
	return &albumService{albumRepo: albumRepo}
}

func (s *albumService) CreateAlbum(ctx context.Context, in CreateAlbumInput) (*model.Album, error) {
	name := strings.TrimSpace(in.Name)
	value := strings.TrimSpace(in.Value)
	if name == "" || value == "" {
		return nil, fmt.Errorf("%w: 相册名称和路由值不能为空", ErrInvalidAlbum)
	}
	album := &model.Album{
		ID:     uuid.NewString(),
		Name:   name,
		Value:  value,
		Detail: in.Detail,
		Sort:   in.Sort,
		Show:   in.Show,
	}
	if err := s.albumRepo.Create(ctx, album); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("%w: %s", ErrAlbumExists, value)
		}
		return nil, err
	}
	return album, nil
}

func (s *albumService) GetAlbum(ctx context.Context, value string) (*model.Album, error) {
	album, err := s.albumRepo.FindByValue(ctx, value)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAlbumNotFound, value)
		}
		return nil, err
	}
	return album, nil
}

func (s *albumService) ListAlbums(ctx context.Context) ([]model.Album, error) {
	return s.albumRepo.FindAll(ctx)
}
