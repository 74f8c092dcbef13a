package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
	"github.com/stretchr/testify/require"
)

func newEntry(name, folderID string, chunk *int) *models.CatalogEntry {
	return &models.CatalogEntry{
		Name:       name,
		MessageID:  uuid.NewString(),
		ChunkIndex: chunk,
		ChannelID:  "chan",
		FolderID:   folderID,
	}
}

// exerciseStore runs the behaviour every catalog backend must share.
func exerciseStore(t *testing.T, store Store) {
	req := require.New(t)
	ctx := context.Background()

	// --- Scenario 1: root file and a chunked file inserted out of order ---
	whole := newEntry("a.txt", "", nil)
	req.NoError(store.Insert(ctx, whole))
	req.NotZero(whole.ID)
	req.False(whole.CreatedAt.IsZero())

	c2 := newEntry("big.iso", "", models.ChunkIndexPtr(2))
	c0 := newEntry("big.iso", "", models.ChunkIndexPtr(0))
	c1 := newEntry("big.iso", "", models.ChunkIndexPtr(1))
	for _, e := range []*models.CatalogEntry{c2, c0, c1} {
		req.NoError(store.Insert(ctx, e))
	}

	chunks, err := store.FindByName(ctx, "", "big.iso")
	req.NoError(err)
	req.Len(chunks, 3)
	for i, c := range chunks {
		req.Equal(i, c.Index(), "FindByName must order by chunk index")
	}

	root, err := store.ListScope(ctx, "")
	req.NoError(err)
	req.Len(root, 4)
	req.Equal(whole.MessageID, root[0].MessageID, "ListScope keeps insertion order")
	req.Equal(c2.MessageID, root[1].MessageID)

	// --- Scenario 2: point lookup ---
	got, err := store.GetByMessageID(ctx, c1.MessageID)
	req.NoError(err)
	req.Equal("big.iso", got.Name)
	req.Equal(1, got.Index())

	_, err = store.GetByMessageID(ctx, "missing")
	req.ErrorIs(err, apperr.ErrNotFound)

	// --- Scenario 3: duplicate message id is rejected ---
	dup := newEntry("other.txt", "", nil)
	dup.MessageID = whole.MessageID
	req.ErrorIs(store.Insert(ctx, dup), ErrDuplicateMessage)

	// --- Scenario 4: folder children are scoped ---
	folder := newEntry("docs", "", nil)
	folder.IsFolder = true
	req.NoError(store.Insert(ctx, folder))

	child := newEntry("a.txt", folder.MessageID, nil)
	req.NoError(store.Insert(ctx, child))

	n, err := store.CountChildren(ctx, folder.MessageID)
	req.NoError(err)
	req.Equal(1, n)

	rootA, err := store.FindByName(ctx, "", "a.txt")
	req.NoError(err)
	req.Len(rootA, 1, "same name in another scope must not collide")

	// --- Scenario 5: delete ---
	req.NoError(store.Delete(ctx, child.MessageID))
	req.ErrorIs(store.Delete(ctx, child.MessageID), apperr.ErrNotFound)

	n, err = store.CountChildren(ctx, folder.MessageID)
	req.NoError(err)
	req.Zero(n)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	e := newEntry("a.bin", "", models.ChunkIndexPtr(0))
	require.NoError(t, store.Insert(ctx, e))

	got, err := store.GetByMessageID(ctx, e.MessageID)
	require.NoError(t, err)
	*got.ChunkIndex = 9

	again, err := store.GetByMessageID(ctx, e.MessageID)
	require.NoError(t, err)
	require.Equal(t, 0, again.Index())
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
}

func TestRedisStoreEmbedsChildrenInFolderHash(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	child := newEntry("x.txt", "folder-msg", nil)
	require.NoError(t, store.Insert(ctx, child))

	require.True(t, mr.Exists("discloud:scope:folder-msg"))
	require.Equal(t, "folder-msg", mr.HGet("discloud:index", child.MessageID))
}

func TestRedisStoreConcurrentDuplicateInsert(t *testing.T) {
	mr := miniredis.RunT(t)
	store, err := NewRedisClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	messageID := uuid.NewString()
	const writers = 8

	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := newEntry("same.txt", "", nil)
			e.MessageID = messageID
			errs[i] = store.Insert(ctx, e)
		}(i)
	}
	wg.Wait()

	var inserted int
	for _, err := range errs {
		if err == nil {
			inserted++
			continue
		}
		require.True(t, errors.Is(err, ErrDuplicateMessage), err)
	}
	require.Equal(t, 1, inserted)

	entries, err := store.ListScope(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	seq, err := mr.Get("discloud:seq")
	require.NoError(t, err)
	require.Equal(t, "1", seq, "losers allocate no id")
}

// TestTiDBStore runs against a real MySQL/TiDB when DISCLOUD_TEST_DSN is set.
func TestTiDBStore(t *testing.T) {
	dsn := os.Getenv("DISCLOUD_TEST_DSN")
	if dsn == "" {
		t.Skip("DISCLOUD_TEST_DSN not set")
	}

	store, err := NewTiDBClient(dsn)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.db.Exec(`DELETE FROM files`)
	require.NoError(t, err)

	exerciseStore(t, store)
}
