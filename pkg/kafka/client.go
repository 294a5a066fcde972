// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"picimpact-go/internal/config"
	"picimpact-go/pkg/log"
	"picimpact-go/pkg/tasks"
)

// TaskProcessor defines the interface for any service that can process a task.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.Task) error
}

// Producer 将任务写入 Kafka。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers(cfg)...),
			Topic:    cfg.Topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// Publish 发送一个任务到 Kafka，以任务类型作为消息 key。
func (p *Producer) Publish(ctx context.Context, task tasks.Task) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.Type),
		Value: taskBytes,
	})
}

// Close 刷新并关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

func brokers(cfg config.KafkaConfig) []string {
	var out []string
	for _, b := range strings.Split(cfg.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// 达到该失败次数后提交 offset，放弃重试。
const maxAttempts = 3

// RetryTracker 使用 Redis 计数任务的失败次数。
type RetryTracker struct {
	rdb *redis.Client
}

// NewRetryTracker 创建一个新的 RetryTracker。
func NewRetryTracker(rdb *redis.Client) *RetryTracker {
	return &RetryTracker{rdb: rdb}
}

// Fail 记录一次失败，返回是否应当提交 offset 终止重试。
// Redis 异常时保守处理：不提交 offset，让 Kafka 重试。
func (t *RetryTracker) Fail(ctx context.Context, task tasks.Task) bool {
	key := task.RetryKey()
	attempts, err := t.rdb.Incr(ctx, key).Result()
	if err != nil {
		log.Errorf("记录任务失败次数出错: %v", err)
		return false
	}
	_ = t.rdb.Expire(ctx, key, 24*time.Hour).Err()
	return attempts >= maxAttempts
}

// Succeed 清理失败计数。
func (t *RetryTracker) Succeed(ctx context.Context, task tasks.Task) {
	_ = t.rdb.Del(ctx, task.RetryKey()).Err()
}

// StartConsumer 启动一个 Kafka 消费者来处理后台任务，ctx 取消后退出。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor, tracker *RetryTracker) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers(cfg),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				log.Error("从 Kafka 读取消息失败", err)
			}
			break
		}

		var task tasks.Task
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(ctx, m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理任务: id=%s, type=%s, offset=%d", task.ID, task.Type, m.Offset)
		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("处理任务失败: id=%s, type=%s, error: %v", task.ID, task.Type, err)
			if !tracker.Fail(ctx, task) {
				// 不提交 offset，让 Kafka 重试
				continue
			}
			log.Errorf("任务多次失败(>=%d)，提交 offset 终止重试: id=%s", maxAttempts, task.ID)
		} else {
			tracker.Succeed(ctx, task)
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}
