package model

// 单张图片的修复状态。
const (
	RepairStatusAdded    = "added"
	RepairStatusNoChange = "no_change"
)

// SyncResult 描述一次图片标签同步的结果，值为标签名称。
type SyncResult struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	// RemovedIDs 是标签记录已不存在、无法给出名称的被移除关联的标签 id。
	RemovedIDs []string `json:"removedIds"`
	Kept       []string `json:"kept"`
	// InvalidRelations 是因标签或其父标签已不存在而被移除的关联数。
	InvalidRelations int `json:"invalidRelations"`
}

// Changed 报告本次同步是否写入了关联。
func (r *SyncResult) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.RemovedIDs) > 0
}

// ImageError 记录批处理中单张图片的失败。
type ImageError struct {
	ImageID string `json:"imageId"`
	Error   string `json:"error"`
}

// ImageRepairDetail 是修复任务中单张图片的明细。
type ImageRepairDetail struct {
	ImageID     string   `json:"imageId"`
	Status      string   `json:"status"`
	AddedTags     []string `json:"addedTags"`
	RemovedTags   []string `json:"removedTags"`
	RemovedTagIDs []string `json:"removedTagIds"`
}

// RepairReport 是标签完整性修复任务的汇总报告。
type RepairReport struct {
	TotalImages      int                 `json:"totalImages"`
	FixedImages      int                 `json:"fixedImages"`
	InvalidRelations int                 `json:"invalidRelations"`
	Details          []ImageRepairDetail `json:"details"`
	Errors           []ImageError        `json:"errors"`
	StartedAt        LocalTime           `json:"startedAt"`
	FinishedAt       LocalTime           `json:"finishedAt"`
}
