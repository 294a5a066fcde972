package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"picimpact-go/internal/model"
	"picimpact-go/pkg/tasks"
)

type fakeRepair struct {
	batchSize int
	err       error
}

func (f *fakeRepair) RepairCompleteness(_ context.Context, batchSize int) (*model.RepairReport, error) {
	f.batchSize = batchSize
	if f.err != nil {
		return nil, f.err
	}
	return &model.RepairReport{TotalImages: 1}, nil
}

func (f *fakeRepair) RequestRepair(context.Context, int) (string, error) { return "", nil }

func (f *fakeRepair) LatestReport(context.Context) (*model.RepairReport, error) { return nil, nil }

type fakeSearch struct {
	indexed []string
	err     error
}

func (f *fakeSearch) SearchImages(context.Context, string, int) ([]model.SearchHit, error) {
	return nil, nil
}

func (f *fakeSearch) IndexImages(_ context.Context, ids []string) error {
	f.indexed = append(f.indexed, ids...)
	return f.err
}

func TestProcessor_Dispatch(t *testing.T) {
	repair := &fakeRepair{}
	search := &fakeSearch{}
	p := NewProcessor(repair, search)
	ctx := context.Background()

	require.NoError(t, p.Process(ctx, tasks.Task{Type: tasks.TypeRepair, BatchSize: 30}))
	assert.Equal(t, 30, repair.batchSize)

	require.NoError(t, p.Process(ctx, tasks.Task{Type: tasks.TypeIndex, ImageIDs: []string{"a", "b"}}))
	assert.Equal(t, []string{"a", "b"}, search.indexed)

	require.NoError(t, p.Process(ctx, tasks.Task{Type: tasks.TypeIndex}))
	assert.Len(t, search.indexed, 2)

	assert.Error(t, p.Process(ctx, tasks.Task{Type: "thumbnail"}))
}

func TestProcessor_PropagatesErrors(t *testing.T) {
	p := NewProcessor(&fakeRepair{err: errors.New("db down")}, &fakeSearch{err: errors.New("es down")})
	ctx := context.Background()

	assert.Error(t, p.Process(ctx, tasks.Task{Type: tasks.TypeRepair}))
	assert.Error(t, p.Process(ctx, tasks.Task{Type: tasks.TypeIndex, ImageIDs: []string{"a"}}))
}
