package infrastructure

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/twitch-vod-go/internal/domain"
)

func setupTestStore(t *testing.T, quota int64) *SQLiteSegmentStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	store, err := NewSQLiteSegmentStore(dbPath, quota)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestPutGet_RoundTrip(t *testing.T) {
	store := setupTestStore(t, 1<<20)

	require.NoError(t, store.Put("dl1", 0, []byte("segment zero")))
	require.NoError(t, store.Put("dl1", 1, []byte("segment one")))

	data, err := store.Get("dl1", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("segment zero"), data)
}

func TestGet_AbsentReturnsNilNil(t *testing.T) {
	store := setupTestStore(t, 1<<20)

	data, err := store.Get("dl1", 5)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestPut_RetryOverwritesOwnSlot(t *testing.T) {
	store := setupTestStore(t, 1<<20)

	require.NoError(t, store.Put("dl1", 3, []byte("first attempt")))
	require.NoError(t, store.Put("dl1", 3, []byte("retry")))

	data, err := store.Get("dl1", 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("retry"), data)
}

func TestPut_ConcurrentDownloadsDoNotCollide(t *testing.T) {
	store := setupTestStore(t, 1<<20)

	require.NoError(t, store.Put("dl1", 0, []byte("from dl1")))
	require.NoError(t, store.Put("dl2", 0, []byte("from dl2")))

	a, err := store.Get("dl1", 0)
	require.NoError(t, err)
	b, err := store.Get("dl2", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("from dl1"), a)
	assert.Equal(t, []byte("from dl2"), b)
}

func TestDeleteDownload(t *testing.T) {
	store := setupTestStore(t, 1<<20)

	require.NoError(t, store.Put("dl1", 0, []byte("a")))
	require.NoError(t, store.Put("dl1", 1, []byte("b")))
	require.NoError(t, store.Put("dl2", 0, []byte("c")))

	require.NoError(t, store.DeleteDownload("dl1"))

	data, err := store.Get("dl1", 0)
	require.NoError(t, err)
	assert.Nil(t, data)

	// Other downloads are untouched
	data, err = store.Get("dl2", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), data)
}

func TestQuota(t *testing.T) {
	store := setupTestStore(t, 100)

	require.NoError(t, store.Put("dl1", 0, make([]byte, 30)))
	require.NoError(t, store.Put("dl1", 1, make([]byte, 20)))

	info, err := store.Quota()
	require.NoError(t, err)
	assert.Equal(t, int64(50), info.Usage)
	assert.Equal(t, int64(100), info.Quota)
	assert.Equal(t, int64(50), info.Available)
}

func TestQuota_NeverNegativeAvailable(t *testing.T) {
	store := setupTestStore(t, 10)

	require.NoError(t, store.Put("dl1", 0, make([]byte, 30)))

	info, err := store.Quota()
	require.NoError(t, err)
	assert.Zero(t, info.Available)
}

func TestHistory_AddListPrune(t *testing.T) {
	store := setupTestStore(t, 1<<20)

	for i := 0; i < 5; i++ {
		job := domain.NewDownloadJob("100", "chunked", domain.FormatTS, 5)
		job.MarkCompleted()
		rec := domain.NewDownloadRecord(job.Snapshot(), nil, "/tmp/out.ts")
		rec.DownloadedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Add(rec))
	}

	records, err := store.List(3)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first
	assert.True(t, records[0].DownloadedAt.After(records[1].DownloadedAt))

	require.NoError(t, store.Prune(2))
	records, err = store.List(0)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
