package service

import (
	"context"

	"github.com/google/uuid"
	"picimpact-go/pkg/log"
	"picimpact-go/pkg/tasks"
)

// TaskPublisher 将后台任务投递到任务总线。
type TaskPublisher interface {
	Publish(ctx context.Context, task tasks.Task) error
}

// publishIndex 在事务提交后请求重建图片的搜索索引。投递失败只记录日志，不影响已提交的写入。
func publishIndex(ctx context.Context, publisher TaskPublisher, imageIDs []string) {
	if publisher == nil || len(imageIDs) == 0 {
		return
	}
	task := tasks.Task{ID: uuid.NewString(), Type: tasks.TypeIndex, ImageIDs: imageIDs}
	if err := publisher.Publish(ctx, task); err != nil {
		log.Warnw("投递索引任务失败", "images", len(imageIDs), "error", err)
	}
}

// appendUnique 追加 ids 中尚未出现的 id，保持首次出现的顺序。
func appendUnique(dst []string, ids ...string) []string {
	seen := make(map[string]struct{}, len(dst)+len(ids))
	for _, id := range dst {
		seen[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		dst = append(dst, id)
	}
	return dst
}
