// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import (
	"fmt"
	"strings"
)

// 任务类型。
const (
	// TypeRepair 触发一次标签完整性修复。
	TypeRepair = "repair"
	// TypeIndex 将图片重新写入搜索索引。
	TypeIndex = "index"
)

// Task 是投递到 Kafka 的后台任务。
type Task struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	ImageIDs  []string `json:"image_ids,omitempty"`
	BatchSize int      `json:"batch_size,omitempty"`
}

// RetryKey 返回用于失败计数的键。
func (t Task) RetryKey() string {
	if t.ID != "" {
		return fmt.Sprintf("kafka:attempts:%s", t.ID)
	}
	return fmt.Sprintf("kafka:attempts:%s:%s", t.Type, strings.Join(t.ImageIDs, ","))
}
