package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyUpsert_CreateThenSkipLeavesNoExtraEvent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "item-1", Name: "a.txt", Kind: KindFile,
		Path: "/a.txt", CreatedAt: 1, ModifiedAt: 1,
	}, &ChangeEvent{Kind: EventCreate, Timestamp: 1})
	require.NoError(t, err)

	// Re-observe with no event (the SKIP branch): item row refreshed, no
	// audit row appended.
	_, err = st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "item-1", Name: "a.txt", Kind: KindFile,
		Path: "/a.txt", CreatedAt: 1, ModifiedAt: 1,
	}, nil)
	require.NoError(t, err)

	history, err := st.HistoryOf(ctx, id)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestApplyUpsert_ReusesInternalIDOnConflict(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, err := st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "item-1", Name: "a.txt", Kind: KindFile, Path: "/a.txt",
	}, &ChangeEvent{Kind: EventCreate, Timestamp: 1})
	require.NoError(t, err)

	newName := "b.txt"
	id2, err := st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "item-1", Name: newName, Kind: KindFile, Path: "/b.txt",
	}, &ChangeEvent{Kind: EventRename, NewName: &newName, Timestamp: 2})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)

	item, err := st.LookupByInternalID(ctx, id1)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "b.txt", item.Name)
}

func TestApplyDelete_MarksTombstoneAndAppendsEvent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "item-1", Name: "a.txt", Kind: KindFile, Path: "/a.txt",
	}, &ChangeEvent{Kind: EventCreate, Timestamp: 1})
	require.NoError(t, err)

	oldName := "a.txt"
	require.NoError(t, st.ApplyDelete(ctx, id, &ChangeEvent{Kind: EventDelete, OldName: &oldName, Timestamp: 2}))

	item, err := st.LookupByInternalID(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.True(t, item.IsDeleted)

	history, err := st.HistoryOf(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, EventDelete, history[0].Kind)
}

func TestBulkUpsert_CommitsWholeBatchAtOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ids, err := st.BulkUpsert(ctx, []*Item{
		{DriveID: "d1", ExternalID: "a", Name: "a.txt", Kind: KindFile, Path: "/a.txt"},
		{DriveID: "d1", ExternalID: "b", Name: "b.txt", Kind: KindFile, Path: "/b.txt"},
	})
	require.NoError(t, err)
	require.Len(t, ids, 2)

	a, err := st.LookupByExternalID(ctx, "d1", "a")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, ids[0], a.InternalID)

	b, err := st.LookupByExternalID(ctx, "d1", "b")
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, ids[1], b.InternalID)
}

func TestBulkUpsert_EmptyBatchIsNoop(t *testing.T) {
	st := newTestStore(t)

	ids, err := st.BulkUpsert(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, ids)
}

func TestAppendMany_CommitsWholeBatchAtOnce(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "item-1", Name: "a.txt", Kind: KindFile, Path: "/a.txt",
	}, nil)
	require.NoError(t, err)

	err = st.AppendMany(ctx, []*ChangeEvent{
		{ItemInternalID: id, Kind: EventCreate, Timestamp: 1},
		{ItemInternalID: id, Kind: EventUpdate, Timestamp: 2},
	})
	require.NoError(t, err)

	history, err := st.HistoryOf(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
}

func TestAppendMany_EmptyBatchIsNoop(t *testing.T) {
	st := newTestStore(t)

	err := st.AppendMany(context.Background(), nil)
	require.NoError(t, err)
}
