package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"picimpact-go/internal/config"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
	"picimpact-go/pkg/log"
	"picimpact-go/pkg/tasks"
)

const defaultRepairBatchSize = 20

// RepairService 遍历所有带标签关联的图片，逐张在独立的短事务中执行标签同步。
type RepairService interface {
	// RepairCompleteness 同步执行修复并保存报告。单张图片失败只记录，不中断任务。
	RepairCompleteness(ctx context.Context, batchSize int) (*model.RepairReport, error)
	// RequestRepair 投递一个异步修复任务，返回任务 id。
	RequestRepair(ctx context.Context, batchSize int) (string, error)
	LatestReport(ctx context.Context) (*model.RepairReport, error)
}

type repairService struct {
	db           *gorm.DB
	cfg          config.RepairConfig
	txCfg        config.TxConfig
	relationRepo repository.RelationRepository
	reportRepo   repository.RepairReportRepository
	syncer       TagSyncer
	publisher    TaskPublisher
}

// NewRepairService 创建一个新的 RepairService 实例。
func NewRepairService(
	db *gorm.DB,
	cfg config.RepairConfig,
	relationRepo repository.RelationRepository,
	reportRepo repository.RepairReportRepository,
	syncer TagSyncer,
	publisher TaskPublisher,
) RepairService {
	return &repairService{
		db:           db,
		cfg:          cfg,
		txCfg:        config.TxConfig{TimeoutSeconds: cfg.ImageTimeoutSeconds},
		relationRepo: relationRepo,
		reportRepo:   reportRepo,
		syncer:       syncer,
		publisher:    publisher,
	}
}

func (s *repairService) RepairCompleteness(ctx context.Context, batchSize int) (*model.RepairReport, error) {
	if batchSize <= 0 {
		batchSize = s.cfg.BatchSize
	}
	if batchSize <= 0 {
		batchSize = defaultRepairBatchSize
	}
	// 任务总是跑完，调用方断开不会中止修复。
	ctx = context.WithoutCancel(ctx)

	report := &model.RepairReport{
		Details:   []model.ImageRepairDetail{},
		Errors:    []model.ImageError{},
		StartedAt: model.LocalTime(time.Now()),
	}
	tagged, err := s.relationRepo.CountTaggedImages(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计带标签图片失败: %w", err)
	}
	log.Infow("[Repair] 开始标签完整性修复", "taggedImages", tagged, "batchSize", batchSize)

	after := ""
	batches := 0
	for {
		ids, err := s.relationRepo.ListTaggedImageIDs(ctx, after, batchSize)
		if err != nil {
			return nil, fmt.Errorf("分页读取图片失败: %w", err)
		}
		if len(ids) == 0 {
			break
		}
		batches++
		for _, id := range ids {
			s.repairImage(ctx, id, report)
		}
		after = ids[len(ids)-1]
		if len(ids) < batchSize {
			break
		}
		if pause := time.Duration(s.cfg.PauseMillis) * time.Millisecond; pause > 0 {
			time.Sleep(pause)
		}
	}

	report.FinishedAt = model.LocalTime(time.Now())
	log.Infow("[Repair] 标签完整性修复完成",
		"batches", batches,
		"totalImages", report.TotalImages,
		"fixedImages", report.FixedImages,
		"invalidRelations", report.InvalidRelations,
		"errors", len(report.Errors),
	)
	if err := s.reportRepo.Save(ctx, report); err != nil {
		log.Error("[Repair] 保存修复报告失败", err)
	}

	fixed := make([]string, 0, report.FixedImages)
	for _, d := range report.Details {
		if d.Status == model.RepairStatusAdded {
			fixed = append(fixed, d.ImageID)
		}
	}
	publishIndex(ctx, s.publisher, fixed)
	return report, nil
}

// repairImage 在独立事务中同步一张图片，并把结果累加到 report。
func (s *repairService) repairImage(ctx context.Context, imageID string, report *model.RepairReport) {
	report.TotalImages++

	var res *model.SyncResult
	err := runInTx(ctx, s.db, s.txCfg, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		res, err = s.syncer.SyncImage(ctx, tx, imageID)
		return err
	})
	if err != nil {
		log.Warnw("[Repair] 图片修复失败", "imageId", imageID, "error", err)
		report.Errors = append(report.Errors, model.ImageError{ImageID: imageID, Error: err.Error()})
		return
	}

	detail := model.ImageRepairDetail{
		ImageID:     imageID,
		Status:      model.RepairStatusNoChange,
		AddedTags:     res.Added,
		RemovedTags:   res.Removed,
		RemovedTagIDs: res.RemovedIDs,
	}
	if res.Changed() {
		detail.Status = model.RepairStatusAdded
		report.FixedImages++
	}
	report.InvalidRelations += res.InvalidRelations
	report.Details = append(report.Details, detail)
}

func (s *repairService) RequestRepair(ctx context.Context, batchSize int) (string, error) {
	if s.publisher == nil {
		return "", errors.New("任务队列未配置")
	}
	task := tasks.Task{ID: uuid.NewString(), Type: tasks.TypeRepair, BatchSize: batchSize}
	if err := s.publisher.Publish(ctx, task); err != nil {
		return "", fmt.Errorf("投递修复任务失败: %w", err)
	}
	log.Infow("[Repair] 修复任务已投递", "taskId", task.ID, "batchSize", batchSize)
	return task.ID, nil
}

func (s *repairService) LatestReport(ctx context.Context) (*model.RepairReport, error) {
	return s.reportRepo.Latest(ctx)
}
