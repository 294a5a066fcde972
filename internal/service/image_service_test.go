package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"picimpact-go/internal/config"
	"picimpact-go/pkg/tasks"
)

type recordingRemover struct {
	keys []string
	err  error
}

func (r *recordingRemover) RemoveObjects(_ context.Context, keys []string) error {
	r.keys = append(r.keys, keys...)
	return r.err
}

func TestGetImage_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.imgSvc.GetImage(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestSoftDeleteImage_KeepsRelations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tag := f.tag(t, "山", nil)
	f.image(t, "img-1", []string{"山"}, tag)

	require.NoError(t, f.imgSvc.SoftDeleteImage(ctx, "img-1"))

	image, err := f.imgSvc.GetImage(ctx, "img-1")
	require.NoError(t, err)
	assert.True(t, image.Del)
	assert.Equal(t, []string{"山"}, f.relatedNames(t, "img-1"))
	assert.Len(t, f.publisher.byType(tasks.TypeIndex), 1)

	assert.ErrorIs(t, f.imgSvc.SoftDeleteImage(ctx, "missing"), ErrImageNotFound)
}

func TestPurgeImage_RemovesRowsAndObjects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.album(t, "travel")
	in := ingestInput("travel", "hash-1", "https://cdn/a.jpg", "山")
	in.ImageKey = strPtr("images/a.jpg")
	in.PreviewKey = strPtr("previews/a.jpg")
	created, err := f.ingest.Ingest(ctx, in)
	require.NoError(t, err)
	id := created.Image.ID

	remover := &recordingRemover{err: errors.New("s3 down")}
	svc := NewImageService(f.db, config.TxConfig{}, f.images, f.albums, f.tags, f.relations, f.syncer, f.mover, remover, f.publisher)

	// 对象删除失败不影响结果
	require.NoError(t, svc.PurgeImage(ctx, id))
	assert.Equal(t, []string{"images/a.jpg", "previews/a.jpg"}, remover.keys)

	_, err = svc.GetImage(ctx, id)
	assert.ErrorIs(t, err, ErrImageNotFound)
	assert.Empty(t, f.relatedNames(t, id))
	values, err := f.albums.FindAlbumValuesByImage(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, values)

	// 标签本身保留
	_, err = f.tags.FindByName(ctx, "山")
	assert.NoError(t, err)

	assert.ErrorIs(t, svc.PurgeImage(ctx, id), ErrImageNotFound)
}

func TestUpdateImageTags_ReplacesRelations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.tag(t, "山", nil)
	f.image(t, "img-1", []string{"山"}, old)

	image, err := f.imgSvc.UpdateImageTags(ctx, "img-1", []string{"日落"}, map[string]string{"日落": "拍摄时刻"})
	require.NoError(t, err)

	assert.Equal(t, sorted("日落", "拍摄时刻"), f.relatedNames(t, "img-1"))
	assert.ElementsMatch(t, []string{"日落", "拍摄时刻"}, []string(image.Labels))

	_, err = f.imgSvc.UpdateImageTags(ctx, "missing", []string{"山"}, nil)
	assert.ErrorIs(t, err, ErrImageNotFound)
}

func TestSyncImageTags_PublishesOnlyOnChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parent := f.tag(t, "拍摄时刻", nil)
	child := f.tag(t, "日落", parent)
	f.image(t, "img-1", []string{"日落"}, child)

	res, err := f.imgSvc.SyncImageTags(ctx, "img-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"拍摄时刻"}, res.Added)

	res, err = f.imgSvc.SyncImageTags(ctx, "img-1")
	require.NoError(t, err)
	assert.False(t, res.Changed())

	assert.Len(t, f.publisher.byType(tasks.TypeIndex), 1)

	_, err = f.imgSvc.SyncImageTags(ctx, "missing")
	assert.ErrorIs(t, err, ErrImageNotFound)
}
