package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"picimpact-go/internal/model"
)

const (
	repairReportKey = "repair:report:latest"
	repairReportTTL = 7 * 24 * time.Hour
)

// RepairReportRepository 在 Redis 中保存最近一次修复任务的报告。
type RepairReportRepository interface {
	Save(ctx context.Context, report *model.RepairReport) error
	// Latest 返回最近一次报告，尚无报告时返回 (nil, nil)。
	Latest(ctx context.Context) (*model.RepairReport, error)
}

type repairReportRepository struct {
	redisClient *redis.Client
}

// NewRepairReportRepository 创建一个新的 RepairReportRepository 实例。
func NewRepairReportRepository(redisClient *redis.Client) RepairReportRepository {
	return &repairReportRepository{redisClient: redisClient}
}

func (r *repairReportRepository) Save(ctx context.Context, report *model.RepairReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return r.redisClient.Set(ctx, repairReportKey, data, repairReportTTL).Err()
}

func (r *repairReportRepository) Latest(ctx context.Context) (*model.RepairReport, error) {
	data, err := r.redisClient.Get(ctx, repairReportKey).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var report model.RepairReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
