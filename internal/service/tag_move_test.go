package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"picimpact-go/pkg/tasks"
)

func TestValidateMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.tag(t, "A", nil)
	b := f.tag(t, "B", a)
	c := f.tag(t, "C", b)
	d := f.tag(t, "D", nil)

	cases := []struct {
		name      string
		tagID     string
		newParent *string
		valid     bool
		reason    string
	}{
		{name: "move under unrelated root", tagID: c.ID, newParent: &d.ID, valid: true},
		{name: "promote to root", tagID: c.ID, newParent: nil, valid: true},
		{name: "empty parent means root", tagID: b.ID, newParent: strPtr(""), valid: true},
		{name: "self as parent", tagID: a.ID, newParent: &a.ID, reason: "标签不能以自身为父标签"},
		{name: "missing parent", tagID: a.ID, newParent: strPtr("missing"), reason: "目标父标签不存在"},
		{name: "under own grandchild", tagID: a.ID, newParent: &c.ID, reason: "不能将标签移动到其子孙标签之下"},
		{name: "under own child", tagID: b.ID, newParent: &c.ID, reason: "不能将标签移动到其子孙标签之下"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := f.mover.ValidateMove(ctx, tc.tagID, tc.newParent)
			require.NoError(t, err)
			assert.Equal(t, tc.valid, res.Valid)
			assert.Equal(t, tc.reason, res.Error)
		})
	}

	_, err := f.mover.ValidateMove(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrTagNotFound)
}

func TestMoveTag_ReparentsAndSyncsImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	moment := f.tag(t, "拍摄时刻", nil)
	scenery := f.tag(t, "风景", nil)
	sunset := f.tag(t, "日落", moment)
	f.image(t, "img-1", []string{"日落", "拍摄时刻"}, sunset, moment)
	f.image(t, "img-2", []string{"日落", "拍摄时刻"}, sunset, moment)

	res, err := f.mover.MoveTag(ctx, sunset.ID, &scenery.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.AffectedImages)
	assert.Len(t, res.Results, 2)
	assert.Empty(t, res.Errors)
	assert.Equal(t, scenery.ID, *res.Tag.ParentID)
	assert.Equal(t, "风景", *res.Tag.Category)

	for _, id := range []string{"img-1", "img-2"} {
		assert.Equal(t, sorted("日落", "风景"), f.relatedNames(t, id))
		assert.Equal(t, sorted("日落", "风景"), f.labels(t, id))
	}

	indexed := f.publisher.byType(tasks.TypeIndex)
	require.Len(t, indexed, 1)
	assert.ElementsMatch(t, []string{"img-1", "img-2"}, indexed[0].ImageIDs)
}

func TestMoveTag_KeepsOldParentWhenStillImplied(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	moment := f.tag(t, "拍摄时刻", nil)
	sunset := f.tag(t, "日落", moment)
	sunrise := f.tag(t, "日出", moment)
	f.image(t, "img-1", []string{"日落", "日出", "拍摄时刻"}, sunset, sunrise, moment)

	_, err := f.mover.MoveTag(ctx, sunset.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, sorted("日落", "日出", "拍摄时刻"), f.relatedNames(t, "img-1"))
}

func TestMoveTag_ChildToRoot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	moment := f.tag(t, "拍摄时刻", nil)
	sunset := f.tag(t, "日落", moment)
	f.image(t, "img-1", []string{"日落", "拍摄时刻"}, sunset, moment)

	res, err := f.mover.MoveTag(ctx, sunset.ID, nil)
	require.NoError(t, err)
	assert.True(t, res.Tag.IsRoot())
	assert.Equal(t, "日落", *res.Tag.Category)

	assert.Equal(t, []string{"日落"}, f.relatedNames(t, "img-1"))
	assert.Equal(t, []string{"日落"}, f.labels(t, "img-1"))
}

func TestMoveTag_RootToChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scenery := f.tag(t, "风景", nil)
	mountain := f.tag(t, "山", nil)
	f.image(t, "img-1", []string{"山"}, mountain)

	_, err := f.mover.MoveTag(ctx, mountain.ID, &scenery.ID)
	require.NoError(t, err)

	assert.Equal(t, sorted("山", "风景"), f.relatedNames(t, "img-1"))
	assert.Equal(t, []string{"山", "风景"}, f.labels(t, "img-1"))
}

func TestMoveTag_SameParentSkipsFanOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scenery := f.tag(t, "风景", nil)
	mountain := f.tag(t, "山", scenery)
	f.image(t, "img-1", []string{"山", "风景"}, mountain, scenery)

	res, err := f.mover.MoveTag(ctx, mountain.ID, &scenery.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Zero(t, res.AffectedImages)
	assert.Empty(t, f.publisher.byType(tasks.TypeIndex))
}

func TestMoveTag_InvalidMoveLeavesStoreUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.tag(t, "A", nil)
	b := f.tag(t, "B", a)
	f.image(t, "img-1", []string{"A", "B"}, a, b)

	res, err := f.mover.MoveTag(ctx, a.ID, &b.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMove)
	var mve *MoveValidationError
	require.True(t, errors.As(err, &mve))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, mve.Reason, res.Error)

	reloaded, err := f.tags.FindByID(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsRoot())
	assert.Equal(t, sorted("A", "B"), f.relatedNames(t, "img-1"))
}

func TestMoveTag_UnknownTag(t *testing.T) {
	f := newFixture(t)
	res, err := f.mover.MoveTag(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrTagNotFound)
	assert.Nil(t, res)
}

func TestMoveTag_FailedImageIsRolledBackAndReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	moment := f.tag(t, "拍摄时刻", nil)
	scenery := f.tag(t, "风景", nil)
	sunset := f.tag(t, "日落", moment)
	f.image(t, "img-1", []string{"日落", "拍摄时刻"}, sunset, moment)
	f.image(t, "img-2", []string{"日落", "拍摄时刻"}, sunset, moment)

	f.wire(&failingSyncer{inner: f.syncer, failOn: map[string]bool{"img-1": true}})

	res, err := f.mover.MoveTag(ctx, sunset.ID, &scenery.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.AffectedImages)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "img-1", res.Errors[0].ImageID)
	require.Len(t, res.Results, 1)
	assert.Equal(t, "img-2", res.Results[0].ImageID)

	// img-1 的写入随保存点回滚，img-2 与标签本身已提交
	assert.Equal(t, sorted("日落", "拍摄时刻"), f.relatedNames(t, "img-1"))
	assert.Equal(t, sorted("日落", "风景"), f.relatedNames(t, "img-2"))

	reloaded, err := f.tags.FindByID(ctx, sunset.ID)
	require.NoError(t, err)
	assert.Equal(t, scenery.ID, *reloaded.ParentID)

	// 再次同步即可把 img-1 收敛到新结构
	res2 := f.syncInTx(t, "img-1")
	assert.Equal(t, []string{"风景"}, res2.Added)
}
