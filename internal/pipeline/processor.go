// Package pipeline 定义了后台任务的处理流程。
package pipeline

import (
	"context"
	"fmt"

	"picimpact-go/internal/service"
	"picimpact-go/pkg/log"
	"picimpact-go/pkg/tasks"
)

// Processor 封装了后台任务的所有依赖和逻辑。
type Processor struct {
	repairService service.RepairService
	searchService service.SearchService
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(repairService service.RepairService, searchService service.SearchService) *Processor {
	return &Processor{
		repairService: repairService,
		searchService: searchService,
	}
}

// Process 按任务类型分发。未知类型返回错误，由消费者按失败计数处理。
func (p *Processor) Process(ctx context.Context, task tasks.Task) error {
	switch task.Type {
	case tasks.TypeRepair:
		log.Infof("[Processor] 开始执行修复任务, id: %s, batchSize: %d", task.ID, task.BatchSize)
		report, err := p.repairService.RepairCompleteness(ctx, task.BatchSize)
		if err != nil {
			return fmt.Errorf("修复任务失败: %w", err)
		}
		log.Infof("[Processor] 修复任务完成, id: %s, total: %d, fixed: %d, errors: %d",
			task.ID, report.TotalImages, report.FixedImages, len(report.Errors))
		return nil
	case tasks.TypeIndex:
		if len(task.ImageIDs) == 0 {
			return nil
		}
		if err := p.searchService.IndexImages(ctx, task.ImageIDs); err != nil {
			return fmt.Errorf("索引任务失败: %w", err)
		}
		log.Infof("[Processor] 已索引 %d 张图片", len(task.ImageIDs))
		return nil
	default:
		return fmt.Errorf("未知的任务类型: %q", task.Type)
	}
}
