// Package main 是应用程序的入口点。
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"picimpact-go/internal/config"
	"picimpact-go/internal/handler"
	"picimpact-go/internal/middleware"
	"picimpact-go/internal/pipeline"
	"picimpact-go/internal/repository"
	"picimpact-go/internal/service"
	"picimpact-go/pkg/database"
	"picimpact-go/pkg/es"
	"picimpact-go/pkg/kafka"
	"picimpact-go/pkg/log"
	"picimpact-go/pkg/storage"
	"picimpact-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	configPath := "./configs/config.yaml"
	if p := os.Getenv("PICIMPACT_CONFIG"); p != "" {
		configPath = p
	}
	config.Init(configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储、搜索与消息队列
	database.InitMySQL(cfg.Database.MySQL.DSN, cfg.Database.MySQL.AutoMigrate)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 4. 初始化 Repository
	tagRepo := repository.NewTagRepository(database.DB)
	imageRepo := repository.NewImageRepository(database.DB)
	albumRepo := repository.NewAlbumRepository(database.DB)
	relationRepo := repository.NewRelationRepository(database.DB)
	ingestLocker := repository.NewIngestLocker(database.RDB)
	reportRepo := repository.NewRepairReportRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	objectStore := storage.NewObjectStore(storage.MinioClient, cfg.MinIO.BucketName)
	imageIndex := es.NewImageIndex(es.ESClient, cfg.Elasticsearch.IndexName)

	syncer := service.NewTagSyncer(imageRepo, tagRepo, relationRepo)
	moveService := service.NewTagMoveService(database.DB, cfg.TagMove, tagRepo, relationRepo, syncer, producer)
	tagService := service.NewTagService(database.DB, cfg.TagMove, tagRepo, relationRepo, syncer, moveService, producer)
	ingestService := service.NewIngestService(database.DB, cfg.Ingest, imageRepo, albumRepo, tagRepo, relationRepo, ingestLocker, syncer, moveService, producer)
	imageService := service.NewImageService(database.DB, cfg.Ingest, imageRepo, albumRepo, tagRepo, relationRepo, syncer, moveService, objectStore, producer)
	repairService := service.NewRepairService(database.DB, cfg.Repair, relationRepo, reportRepo, syncer, producer)
	searchService := service.NewSearchService(imageIndex, imageRepo)
	albumService := service.NewAlbumService(albumRepo)
	authService := service.NewAuthService(cfg.Admin, jwtManager)

	// 6. 初始化后台任务处理管道并启动 Kafka 消费者
	processor := pipeline.NewProcessor(repairService, searchService)
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	go kafka.StartConsumer(bgCtx, cfg.Kafka, processor, kafka.NewRetryTracker(database.RDB))

	// 6.1 导入种子数据（幂等），文件不存在则跳过
	go initSeedData(bgCtx, "configs/seed.json", albumService, ingestService)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	handler.RegisterRoutes(r, handler.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		Image: handler.NewImageHandler(ingestService, imageService, searchService),
		Album: handler.NewAlbumHandler(albumService),
		Tag:   handler.NewTagHandler(tagService, moveService, repairService),
	}, jwtManager)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	cancelBg()
	log.Info("服务已优雅关闭")
}

// seedFile 是种子数据文件的结构。
type seedFile struct {
	Albums []service.CreateAlbumInput `json:"albums"`
	Images []service.IngestInput      `json:"images"`
}

// initSeedData 通过标准导入流程写入种子相册与图片，已存在的记录被跳过。
func initSeedData(ctx context.Context, path string, albumSvc service.AlbumService, ingestSvc service.IngestService) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Infof("initSeedData: 文件 '%s' 不存在或不可读，跳过初始化导入", path)
		return
	}
	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		log.Warnf("initSeedData: 解析种子文件失败: %v", err)
		return
	}

	for _, a := range seed.Albums {
		if _, err := albumSvc.CreateAlbum(ctx, a); err != nil && !errors.Is(err, service.ErrAlbumExists) {
			log.Warnf("initSeedData: 创建相册 '%s' 失败: %v", a.Value, err)
		}
	}
	for i, img := range seed.Images {
		result, err := ingestSvc.Ingest(ctx, img)
		if err != nil {
			log.Warnf("initSeedData: 导入第 %d 张图片失败: %v", i, err)
			continue
		}
		log.Infof("initSeedData: 图片 %s 导入结果 %s", result.Image.ID, result.Outcome)
	}
}
