package transfer

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() SessionKey {
	return SessionKey{DriveID: "d1", ParentFileID: "root", Name: "report.pdf", LocalPath: "/home/u/report.pdf"}
}

func TestSessionStore_SaveLoadDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := testKey()

	rec, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, rec)

	mtime := time.Date(2024, 5, 6, 7, 8, 9, 123456789, time.UTC)
	require.NoError(t, store.Save(ctx, &SessionRecord{
		SessionKey: key,
		FileSize:   2048,
		LocalMtime: mtime,
		FileID:     "file-1",
		UploadID:   "upload-1",
		PartSize:   1024,
	}))

	rec, err = store.Load(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, rec)

	assert.Equal(t, key, rec.SessionKey)
	assert.Equal(t, "file-1", rec.FileID)
	assert.Equal(t, "upload-1", rec.UploadID)
	assert.Equal(t, int64(1024), rec.PartSize)
	assert.Equal(t, 1, rec.NextPart, "next part defaults to the first")
	assert.True(t, rec.Matches(2048, mtime))
	assert.False(t, rec.Matches(2048, mtime.Add(time.Second)))
	assert.False(t, rec.Matches(2049, mtime))

	require.NoError(t, store.Delete(ctx, key))

	rec, err = store.Load(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, rec)

	require.NoError(t, store.Delete(ctx, key), "deleting a missing session is not an error")
}

func TestSessionStore_Advance(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, store.Save(ctx, &SessionRecord{SessionKey: key, FileID: "f", UploadID: "u", PartSize: 1}))
	require.NoError(t, store.Advance(ctx, key, 4))

	rec, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.NextPart)
}

func TestSessionStore_SaveReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	key := testKey()

	require.NoError(t, store.Save(ctx, &SessionRecord{SessionKey: key, FileID: "old", UploadID: "u1", NextPart: 3}))
	require.NoError(t, store.Save(ctx, &SessionRecord{SessionKey: key, FileID: "new", UploadID: "u2"}))

	rec, err := store.Load(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "new", rec.FileID)
	assert.Equal(t, 1, rec.NextPart)
}

func TestSessionStore_KeysAreIndependent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	a := testKey()
	b := a
	b.Name = "other.pdf"

	require.NoError(t, store.Save(ctx, &SessionRecord{SessionKey: a, FileID: "a"}))

	rec, err := store.Load(ctx, b)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestSessionStore_CleanStale(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now()
	store.nowFunc = func() time.Time { return now.Add(-48 * time.Hour) }

	old := testKey()
	require.NoError(t, store.Save(ctx, &SessionRecord{SessionKey: old, FileID: "old"}))

	store.nowFunc = func() time.Time { return now }

	fresh := old
	fresh.Name = "fresh.pdf"
	require.NoError(t, store.Save(ctx, &SessionRecord{SessionKey: fresh, FileID: "fresh"}))

	n, err := store.CleanStale(ctx, StaleSessionAge)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := store.Load(ctx, old)
	require.NoError(t, err)
	assert.Nil(t, rec)

	rec, err = store.Load(ctx, fresh)
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestOpenSessionStore_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "transfers.db")

	store, err := OpenSessionStore(ctx, path, testLogger())
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, &SessionRecord{SessionKey: testKey(), FileID: "f"}))
	require.NoError(t, store.Close())

	store, err = OpenSessionStore(ctx, path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rec, err := store.Load(ctx, testKey())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "f", rec.FileID)
}
