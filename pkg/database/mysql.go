package database

import (
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"picimpact-go/internal/model"
	"picimpact-go/pkg/log"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接
func InitMySQL(dsn string, autoMigrate bool) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
		// 将唯一键冲突等驱动错误翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
	})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if autoMigrate {
		if err := Migrate(DB); err != nil {
			log.Fatal("failed to migrate database", err)
		}
	}

	log.Info("MySQL database connected successfully")
}

// Migrate 创建或更新所有业务表。
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Album{},
		&model.Image{},
		&model.ImageAlbumRelation{},
		&model.Tag{},
		&model.ImageTagRelation{},
	)
}
