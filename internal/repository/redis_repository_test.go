package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"picimpact-go/internal/model"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIngestLocker_AcquireAndRelease(t *testing.T) {
	mr, rdb := newRedis(t)
	locker := NewIngestLocker(rdb)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "blurhash:abc", time.Minute, 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, mr.Exists("ingest:lock:blurhash:abc"))

	_, err = locker.Acquire(ctx, "blurhash:abc", time.Minute, 100*time.Millisecond)
	assert.ErrorIs(t, err, ErrLockTimeout)

	release()
	assert.False(t, mr.Exists("ingest:lock:blurhash:abc"))

	release2, err := locker.Acquire(ctx, "blurhash:abc", time.Minute, 100*time.Millisecond)
	require.NoError(t, err)
	release2()
}

func TestIngestLocker_ReleaseKeepsForeignLock(t *testing.T) {
	mr, rdb := newRedis(t)
	locker := NewIngestLocker(rdb)

	release, err := locker.Acquire(context.Background(), "url:x", time.Minute, 0)
	require.NoError(t, err)

	// 锁过期后被其他请求持有，旧的释放函数不能删除它
	require.NoError(t, mr.Set("ingest:lock:url:x", "someone-else"))
	release()

	got, err := mr.Get("ingest:lock:url:x")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestIngestLocker_ContextCancelled(t *testing.T) {
	_, rdb := newRedis(t)
	locker := NewIngestLocker(rdb)
	_, err := locker.Acquire(context.Background(), "k", time.Minute, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = locker.Acquire(ctx, "k", time.Minute, time.Second)
	assert.Error(t, err)
}

func TestIngestLocker_NilClientIsNoop(t *testing.T) {
	locker := NewIngestLocker(nil)
	release, err := locker.Acquire(context.Background(), "k", time.Minute, 0)
	require.NoError(t, err)
	release()
}

func TestRepairReportRepository(t *testing.T) {
	mr, rdb := newRedis(t)
	repo := NewRepairReportRepository(rdb)
	ctx := context.Background()

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	report := &model.RepairReport{
		TotalImages:      3,
		FixedImages:      1,
		InvalidRelations: 2,
		Details: []model.ImageRepairDetail{
			{ImageID: "img-1", Status: model.RepairStatusAdded, AddedTags: []string{"拍摄时刻"}, RemovedTags: []string{}},
		},
		Errors:     []model.ImageError{{ImageID: "img-2", Error: "boom"}},
		StartedAt:  model.LocalTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.Local)),
		FinishedAt: model.LocalTime(time.Date(2024, 5, 1, 10, 0, 5, 0, time.Local)),
	}
	require.NoError(t, repo.Save(ctx, report))
	assert.True(t, mr.TTL(repairReportKey) > 0)

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 3, latest.TotalImages)
	assert.Equal(t, report.Details, latest.Details)
	assert.Equal(t, report.Errors, latest.Errors)
	assert.Equal(t, "2024-05-01 10:00:05", time.Time(latest.FinishedAt).Format("2006-01-02 15:04:05"))
}
