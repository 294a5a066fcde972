package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlbumService(t *testing.T) {
	f := newFixture(t)
	svc := NewAlbumService(f.albums)
	ctx := context.Background()

	_, err := svc.CreateAlbum(ctx, CreateAlbumInput{Name: "旅行", Value: " "})
	assert.ErrorIs(t, err, ErrInvalidAlbum)

	album, err := svc.CreateAlbum(ctx, CreateAlbumInput{Name: " 旅行 ", Value: "travel", Show: true})
	require.NoError(t, err)
	assert.Equal(t, "旅行", album.Name)
	assert.NotEmpty(t, album.ID)

	got, err := svc.GetAlbum(ctx, "travel")
	require.NoError(t, err)
	assert.Equal(t, album.ID, got.ID)
	assert.True(t, got.Show)

	_, err = svc.GetAlbum(ctx, "missing")
	assert.ErrorIs(t, err, ErrAlbumNotFound)

	all, err := svc.ListAlbums(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
