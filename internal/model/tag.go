package model

import "time"

// Tag 对应于数据库中的 'tags' 表。
// 标签通过 ParentID 组成森林；Category 约定为父标签名称（根标签为自身名称），
// 只随 ParentID 一起维护。
type Tag struct {
	ID       string  `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name     string  `gorm:"type:varchar(191);not null;uniqueIndex" json:"name"`
	Category *string `gorm:"type:varchar(191)" json:"category"`
	// ParentID 使用指针以接受 NULL 值，表示根标签。数据库不校验其引用是否存在。
	ParentID  *string   `gorm:"type:varchar(64);index" json:"parentId"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Tag) TableName() string {
	return "tags"
}

// IsRoot 报告标签是否没有父标签。
func (t *Tag) IsRoot() bool {
	return t.ParentID == nil || *t.ParentID == ""
}

// TagNode represents a node in the tag tree.
type TagNode struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Category *string    `json:"category"`
	ParentID *string    `json:"parentId"`
	Detail   string     `json:"detail"`
	Children []*TagNode `json:"children"`
}

// ImageTagRelation 是图片与标签的多对多关联表，以 (image_id, tag_id) 为主键。
type ImageTagRelation struct {
	ImageID   string    `gorm:"type:varchar(64);primaryKey" json:"imageId"`
	TagID     string    `gorm:"type:varchar(64);primaryKey;index" json:"tagId"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ImageTagRelation) TableName() string {
	return "image_tag_relations"
}

// TaggedRelation 是关联行与其标签的联表投影；标签已被删除时 TagName 为 nil。
type TaggedRelation struct {
	TagID    string  `gorm:"column:tag_id"`
	TagName  *string `gorm:"column:tag_name"`
	ParentID *string `gorm:"column:parent_id"`
}

// TagMissing 报告关联指向的标签是否已不存在。
func (r TaggedRelation) TagMissing() bool {
	return r.TagName == nil
}
