// Package model 定义了与数据库表对应的 Go 结构体。
package model

import (
	"time"

	"gorm.io/datatypes"
)

// Image 对应数据库中的 'images' 表。
// Labels 是标签名称的冗余缓存，唯一数据来源是 image_tag_relations，
// 只允许由标签同步逻辑重写。
type Image struct {
	ID         string  `gorm:"type:varchar(64);primaryKey" json:"id"`
	URL        *string `gorm:"type:varchar(512);uniqueIndex" json:"url"`
	PreviewURL *string `gorm:"type:varchar(512);column:preview_url" json:"previewUrl"`
	VideoURL   *string `gorm:"type:varchar(512);column:video_url" json:"videoUrl"`
	// 存储提供方的对象 key，用于物理删除时清理对象。
	ImageKey   *string `gorm:"type:varchar(512)" json:"imageKey"`
	PreviewKey *string `gorm:"type:varchar(512)" json:"previewKey"`
	VideoKey   *string `gorm:"type:varchar(512)" json:"videoKey"`
	// BlurHash 是内容指纹，用于去重。
	BlurHash *string `gorm:"type:varchar(191);uniqueIndex;column:blurhash" json:"blurhash"`

	Title  string `gorm:"type:varchar(255)" json:"title"`
	Detail string `gorm:"type:text" json:"detail"`
	Width  int    `gorm:"not null;default:0" json:"width"`
	Height int    `gorm:"not null;default:0" json:"height"`
	// Type 1: 普通图片, 2: 实况照片
	Type   int8                        `gorm:"type:tinyint;not null;default:1" json:"type"`
	Labels datatypes.JSONSlice[string] `json:"labels"`
	Exif   datatypes.JSON              `json:"exif"`
	Lat    *string                     `gorm:"type:varchar(32)" json:"lat"`
	Lon    *string                     `gorm:"type:varchar(32)" json:"lon"`

	Sort           int  `gorm:"not null;default:0" json:"sort"`
	Del            bool `gorm:"not null;default:false" json:"del"`
	Show           bool `gorm:"not null;default:false" json:"show"`
	ShowOnMainPage bool `gorm:"not null;default:false;column:show_on_mainpage" json:"showOnMainPage"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Image) TableName() string {
	return "images"
}

// CoverURL 返回用作相册封面的地址：优先预览图，其次原图。
func (i *Image) CoverURL() string {
	if i.PreviewURL != nil && *i.PreviewURL != "" {
		return *i.PreviewURL
	}
	if i.URL != nil {
		return *i.URL
	}
	return ""
}

// ImageAlbumRelation 对应 'images_albums_relation' 表，记录图片所属相册。
type ImageAlbumRelation struct {
	ImageID    string `gorm:"type:varchar(64);primaryKey" json:"imageId"`
	AlbumValue string `gorm:"type:varchar(191);primaryKey" json:"albumValue"`
}

func (ImageAlbumRelation) TableName() string {
	return "images_albums_relation"
}
