package store

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	st, err := Open(context.Background(), ":memory:", testLogger())
	require.NoError(t, err)

	t.Cleanup(func() { require.NoError(t, st.Close()) })

	return st
}

func TestOpen_MigratesSchema(t *testing.T) {
	st := newTestStore(t)

	var count int
	err := st.db.QueryRowContext(context.Background(),
		"SELECT count(*) FROM sqlite_master WHERE type='table' AND name IN ('items','change_events','drive_cursors','subscriptions')").
		Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestLookupByExternalID_UnknownReturnsNil(t *testing.T) {
	st := newTestStore(t)

	item, err := st.LookupByExternalID(context.Background(), "drive-1", "missing")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestCursor_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	cursor, err := st.GetCursor(ctx, "drive-1")
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, st.SetCursor(ctx, "drive-1", "cursor-abc"))

	cursor, err = st.GetCursor(ctx, "drive-1")
	require.NoError(t, err)
	assert.Equal(t, "cursor-abc", cursor)

	require.NoError(t, st.ClearCursor(ctx, "drive-1"))

	cursor, err = st.GetCursor(ctx, "drive-1")
	require.NoError(t, err)
	assert.Empty(t, cursor)
}

func TestChildrenOf_ExcludesDeleted(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	parentID, err := st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "parent", Name: "Docs", Kind: KindFolder, Path: "/Docs",
	}, &ChangeEvent{Kind: EventCreate, Timestamp: 1})
	require.NoError(t, err)

	childID, err := st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "child", Name: "a.txt", Kind: KindFile,
		ParentInternalID: &parentID, Path: "/Docs/a.txt",
	}, &ChangeEvent{Kind: EventCreate, Timestamp: 2})
	require.NoError(t, err)

	children, err := st.ChildrenOf(ctx, parentID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, childID, children[0].InternalID)

	require.NoError(t, st.ApplyDelete(ctx, childID, &ChangeEvent{Kind: EventDelete, Timestamp: 3}))

	children, err = st.ChildrenOf(ctx, parentID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestHistoryOf_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, err := st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "item-1", Name: "a.txt", Kind: KindFile, Path: "/a.txt",
	}, &ChangeEvent{Kind: EventCreate, Timestamp: 1})
	require.NoError(t, err)

	newName := "b.txt"
	_, err = st.ApplyUpsert(ctx, &Item{
		DriveID: "d1", ExternalID: "item-1", Name: newName, Kind: KindFile, Path: "/b.txt",
	}, &ChangeEvent{Kind: EventRename, NewName: &newName, Timestamp: 2})
	require.NoError(t, err)

	history, err := st.HistoryOf(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, EventRename, history[0].Kind)
	assert.Equal(t, EventCreate, history[1].Kind)
}
