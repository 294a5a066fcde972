package service

import (
	"context"
	"time"

	"gorm.io/gorm"
	"picimpact-go/internal/config"
	"picimpact-go/pkg/log"
)

// runInTx 在带锁等待上限和整体超时的事务中执行 fn，任一超限都会回滚整个事务。
// fn 收到的 ctx 带有事务超时，仓库调用必须使用它。
func runInTx(ctx context.Context, db *gorm.DB, cfg config.TxConfig, fn func(ctx context.Context, tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout())
	defer cancel()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		restore, err := setLockWait(tx, cfg.LockWait())
		if err != nil {
			return err
		}
		defer restore()
		return fn(ctx, tx)
	})
}

// setLockWait 为当前连接设置 InnoDB 行锁等待上限，返回的 restore 在事务结束前恢复原值，
// 连接归还连接池后不带着这个设置。其他方言不需要。
func setLockWait(tx *gorm.DB, wait time.Duration) (restore func(), err error) {
	if tx.Dialector.Name() != "mysql" {
		return func() {}, nil
	}
	var previous int64
	if err := tx.Raw("SELECT @@SESSION.innodb_lock_wait_timeout").Scan(&previous).Error; err != nil {
		return nil, err
	}
	seconds := int64(wait / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	if err := tx.Exec("SET SESSION innodb_lock_wait_timeout = ?", seconds).Error; err != nil {
		return nil, err
	}
	return func() {
		// 超时后连接会被驱动丢弃，恢复失败只记录日志。
		if err := tx.Exec("SET SESSION innodb_lock_wait_timeout = ?", previous).Error; err != nil {
			log.Warnw("恢复 innodb_lock_wait_timeout 失败", "previous", previous, "error", err)
		}
	}, nil
}
