package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"picimpact-go/internal/config"
	"picimpact-go/internal/model"
	"picimpact-go/internal/repository"
	"picimpact-go/pkg/database"
	"picimpact-go/pkg/tasks"
)

type recordingPublisher struct {
	mu    sync.Mutex
	tasks []tasks.Task
}

func (p *recordingPublisher) Publish(_ context.Context, task tasks.Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, task)
	return nil
}

func (p *recordingPublisher) byType(typ string) []tasks.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []tasks.Task
	for _, t := range p.tasks {
		if t.Type == typ {
			out = append(out, t)
		}
	}
	return out
}

// failingSyncer 对指定图片返回错误，其余委托给真实实现。
type failingSyncer struct {
	inner  TagSyncer
	failOn map[string]bool
}

func (s *failingSyncer) SyncImage(ctx context.Context, tx *gorm.DB, imageID string) (*model.SyncResult, error) {
	if s.failOn[imageID] {
		return nil, errors.New("boom")
	}
	return s.inner.SyncImage(ctx, tx, imageID)
}

type fixture struct {
	db        *gorm.DB
	rdb       *redis.Client
	tags      repository.TagRepository
	images    repository.ImageRepository
	albums    repository.AlbumRepository
	relations repository.RelationRepository
	reports   repository.RepairReportRepository
	syncer    TagSyncer
	publisher *recordingPublisher

	mover  TagMoveService
	tagSvc TagService
	ingest IngestService
	imgSvc ImageService
	repair RepairService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存库只存在于单个连接中
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		db:        db,
		rdb:       rdb,
		tags:      repository.NewTagRepository(db),
		images:    repository.NewImageRepository(db),
		albums:    repository.NewAlbumRepository(db),
		relations: repository.NewRelationRepository(db),
		reports:   repository.NewRepairReportRepository(rdb),
		publisher: &recordingPublisher{},
	}
	f.syncer = NewTagSyncer(f.images, f.tags, f.relations)
	f.wire(f.syncer)
	return f
}

// wire 用给定的 syncer 重建所有服务。
func (f *fixture) wire(syncer TagSyncer) {
	txCfg := config.TxConfig{LockWaitSeconds: 10, TimeoutSeconds: 30}
	f.mover = NewTagMoveService(f.db, txCfg, f.tags, f.relations, syncer, f.publisher)
	f.tagSvc = NewTagService(f.db, txCfg, f.tags, f.relations, syncer, f.mover, f.publisher)
	f.ingest = NewIngestService(f.db, txCfg, f.images, f.albums, f.tags, f.relations, repository.NewIngestLocker(f.rdb), syncer, f.mover, f.publisher)
	f.imgSvc = NewImageService(f.db, txCfg, f.images, f.albums, f.tags, f.relations, syncer, f.mover, nil, f.publisher)
	f.repair = NewRepairService(f.db, config.RepairConfig{BatchSize: 2, ImageTimeoutSeconds: 5}, f.relations, f.reports, syncer, f.publisher)
}

func (f *fixture) tag(t *testing.T, name string, parent *model.Tag) *model.Tag {
	t.Helper()
	tag := &model.Tag{ID: uuid.NewString(), Name: name}
	category := name
	if parent != nil {
		tag.ParentID = &parent.ID
		category = parent.Name
	}
	tag.Category = &category
	require.NoError(t, f.tags.Create(context.Background(), tag))
	return tag
}

func (f *fixture) album(t *testing.T, value string) *model.Album {
	t.Helper()
	album := &model.Album{ID: uuid.NewString(), Name: value, Value: value}
	require.NoError(t, f.albums.Create(context.Background(), album))
	return album
}

// image 直接写入一张图片及其关联，不经过同步。
func (f *fixture) image(t *testing.T, id string, labels []string, tags ...*model.Tag) *model.Image {
	t.Helper()
	ctx := context.Background()
	image := &model.Image{ID: id, Labels: datatypes.JSONSlice[string](labels), Type: 1}
	if image.Labels == nil {
		image.Labels = datatypes.JSONSlice[string]{}
	}
	require.NoError(t, f.images.Create(ctx, image))
	ids := make([]string, 0, len(tags))
	for _, tg := range tags {
		ids = append(ids, tg.ID)
	}
	require.NoError(t, f.relations.AddRelations(ctx, id, ids))
	return image
}

func (f *fixture) relate(t *testing.T, imageID string, tagIDs ...string) {
	t.Helper()
	require.NoError(t, f.relations.AddRelations(context.Background(), imageID, tagIDs))
}

// relatedNames 返回图片当前关联的标签名称（已排序）。
func (f *fixture) relatedNames(t *testing.T, imageID string) []string {
	t.Helper()
	names, err := f.relations.FindTagNamesByImage(context.Background(), imageID)
	require.NoError(t, err)
	sort.Strings(names)
	return names
}

func (f *fixture) relatedIDs(t *testing.T, imageID string) []string {
	t.Helper()
	rows, err := f.relations.FindTaggedByImage(context.Background(), imageID)
	require.NoError(t, err)
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.TagID)
	}
	sort.Strings(ids)
	return ids
}

func (f *fixture) labels(t *testing.T, imageID string) []string {
	t.Helper()
	image, err := f.images.FindByID(context.Background(), imageID)
	require.NoError(t, err)
	out := append([]string{}, image.Labels...)
	sort.Strings(out)
	return out
}

// syncInTx 在独立事务中执行一次 SyncImage。
func (f *fixture) syncInTx(t *testing.T, imageID string) *model.SyncResult {
	t.Helper()
	var res *model.SyncResult
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = f.syncer.SyncImage(context.Background(), tx, imageID)
		return err
	})
	require.NoError(t, err)
	return res
}

func sorted(in ...string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func strPtr(s string) *string { return &s }
