package model

import "time"

// Album 对应 'albums' 表。Value 是相册的路由值，全局唯一。
type Album struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(191);not null" json:"name"`
	Value     string    `gorm:"type:varchar(191);not null;uniqueIndex" json:"value"`
	Detail    string    `gorm:"type:text" json:"detail"`
	Cover     *string   `gorm:"type:varchar(512)" json:"cover"`
	Sort      int       `gorm:"not null;default:0" json:"sort"`
	Show      bool      `gorm:"not null;default:false" json:"show"`
	Del       bool      `gorm:"not null;default:false" json:"del"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (Album) TableName() string {
	return "albums"
}
