package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/catalog"
	"github.com/maneesh/discloud/internal/chunker"
	"github.com/maneesh/discloud/internal/models"
	"github.com/maneesh/discloud/internal/naming"
	"github.com/maneesh/discloud/internal/storage"
	"github.com/maneesh/discloud/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChannel = "files"

type env struct {
	store      *storage.MemoryStore
	memory     *transport.MemoryTransport
	reconciler *catalog.Reconciler
	folders    *Folders
	uploader   *Uploader
	downloader *Downloader
	deleter    *Deleter
}

// newEnv wires the orchestrators over in-memory backends. wrap, if set,
// decorates the transport the orchestrators see.
func newEnv(t *testing.T, chunkSize int64, wrap func(*transport.MemoryTransport) transport.Transport) *env {
	t.Helper()
	e := &env{
		store:  storage.NewMemoryStore(),
		memory: transport.NewMemoryTransport(),
	}
	var tr transport.Transport = e.memory
	if wrap != nil {
		tr = wrap(e.memory)
	}
	e.reconciler = catalog.NewReconciler(e.store, tr, catalog.NewIndex(), nil)
	deps := Deps{
		Store:      e.store,
		Transport:  tr,
		Fetcher:    e.memory,
		Reconciler: e.reconciler,
		ChannelID:  testChannel,
	}
	e.folders = NewFolders(deps)
	e.uploader = NewUploader(deps, e.folders, chunker.NewChunker(chunkSize))
	e.downloader = NewDownloader(deps)
	e.deleter = NewDeleter(deps)
	return e
}

func (e *env) upload(t *testing.T, name string, data []byte, path naming.Path) *UploadResult {
	t.Helper()
	res, err := e.uploader.Upload(context.Background(), UploadRequest{
		Name:        name,
		ContentType: "text/plain",
		Data:        data,
		Path:        path,
	}, nil)
	require.NoError(t, err)
	return res
}

// flakyTransport fails the nth Send and Deletes of chosen messages.
type flakyTransport struct {
	*transport.MemoryTransport
	failSendAt int
	sends      int
	failDelete map[string]bool
}

func (f *flakyTransport) Send(ctx context.Context, channelID string, upload transport.Upload) (string, error) {
	f.sends++
	if f.sends == f.failSendAt {
		return "", fmt.Errorf("rate limited: %w", apperr.ErrTransportUnavailable)
	}
	return f.MemoryTransport.Send(ctx, channelID, upload)
}

func (f *flakyTransport) Delete(ctx context.Context, channelID, messageID string) error {
	if f.failDelete[messageID] {
		return fmt.Errorf("gateway timeout: %w", apperr.ErrTransportUnavailable)
	}
	return f.MemoryTransport.Delete(ctx, channelID, messageID)
}

func TestUploadSplitsAndRoundTrips(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()
	data := bytes.Repeat([]byte("0123456789"), 6)

	var progress []string
	res, err := e.uploader.Upload(ctx, UploadRequest{
		Name:        "video.mp4",
		ContentType: "video/mp4",
		Data:        data,
	}, func(p float64) {
		progress = append(progress, fmt.Sprintf("%.2f", p))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"33.33", "66.67", "100.00"}, progress)
	assert.Equal(t, 3, res.ChunkCount)
	assert.Equal(t, int64(60), res.Size)
	assert.Equal(t, "video.mp4", res.Name)

	entries, err := e.store.FindByName(ctx, "", "video.mp4")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, i, entry.Index())
		upload, ok := e.memory.Message(entry.MessageID)
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("video.mp4_part%d.mp4", i), upload.Name)
	}
	assert.Equal(t, entries[0].MessageID, res.MessageID)

	// any chunk id reaches the whole file
	payload, err := e.downloader.Download(ctx, entries[1].MessageID, naming.Path{})
	require.NoError(t, err)
	assert.Equal(t, data, payload.Data)
	assert.Equal(t, "video.mp4", payload.Name)
	assert.Equal(t, "video/mp4", payload.ContentType)
	assert.Equal(t, chunker.ComputeHash(data), payload.SHA256)

	merged, err := e.downloader.DownloadMerged(ctx, res.MessageID, naming.Path{})
	require.NoError(t, err)
	assert.Equal(t, data, merged.Data)

	require.True(t, e.reconciler.Index().Stale(), "uploads invalidate the root view")
	items, err := e.reconciler.Current(ctx, time.Hour)
	require.NoError(t, err)
	require.Len(t, items, 1)
	file, ok := items[0].(models.File)
	require.True(t, ok)
	assert.Equal(t, int64(60), file.Size())
}

func TestUploadChunkThreshold(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()

	whole := e.upload(t, "exact.txt", bytes.Repeat([]byte("a"), 25), naming.Path{})
	assert.Equal(t, 1, whole.ChunkCount)
	entry, err := e.store.GetByMessageID(ctx, whole.MessageID)
	require.NoError(t, err)
	assert.False(t, entry.IsChunk())

	_, err = e.downloader.DownloadMerged(ctx, whole.MessageID, naming.Path{})
	require.ErrorIs(t, err, apperr.ErrNotSplit)

	split := e.upload(t, "over.txt", bytes.Repeat([]byte("b"), 26), naming.Path{})
	assert.Equal(t, 2, split.ChunkCount)
}

func TestUploadEmptyFile(t *testing.T) {
	e := newEnv(t, 25, nil)
	res := e.upload(t, "empty.txt", nil, naming.Path{})
	assert.Equal(t, 1, res.ChunkCount)

	payload, err := e.downloader.Download(context.Background(), res.MessageID, naming.Path{})
	require.NoError(t, err)
	assert.Empty(t, payload.Data)
}

func TestUploadDisambiguatesNames(t *testing.T) {
	e := newEnv(t, 25, nil)

	first := e.upload(t, "a.txt", []byte("one"), naming.Path{})
	second := e.upload(t, "a.txt", []byte("two"), naming.Path{})
	third := e.upload(t, "a.txt", []byte("three"), naming.Path{})
	assert.Equal(t, "a.txt", first.Name)
	assert.Equal(t, "a (1).txt", second.Name)
	assert.Equal(t, "a (2).txt", third.Name)

	// the same name in another scope is untouched
	nested := e.upload(t, "a.txt", []byte("four"), naming.NewPath("docs", ""))
	assert.Equal(t, "a.txt", nested.Name)
}

func TestUploadCreatesFoldersOnFirstUse(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()
	path := naming.NewPath("2024", "docs")

	first := e.upload(t, "report.txt", []byte("q1"), path)
	e.upload(t, "summary.txt", []byte("q2"), path)

	root, err := e.store.ListScope(ctx, "")
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.True(t, root[0].IsFolder)
	assert.Equal(t, "docs", root[0].Name)

	inner, err := e.store.ListScope(ctx, root[0].MessageID)
	require.NoError(t, err)
	require.Len(t, inner, 1, "existing folders are reused")
	assert.Equal(t, "2024", inner[0].Name)
	assert.Equal(t, inner[0].MessageID, first.Scope)

	payload, err := e.downloader.Download(ctx, first.MessageID, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("q1"), payload.Data)

	_, err = e.downloader.Download(ctx, first.MessageID, naming.Path{})
	require.ErrorIs(t, err, apperr.ErrNotFound, "entries are only found in their own scope")
	_, err = e.downloader.Download(ctx, first.MessageID, naming.NewPath("2025", "docs"))
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUploadRejectsFolderPathHeldByFile(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()

	file := e.upload(t, "docs", []byte("plain file"), naming.Path{})
	_, err := e.uploader.Upload(ctx, UploadRequest{
		Name:        "inner.txt",
		ContentType: "text/plain",
		Data:        []byte("x"),
		Path:        naming.NewPath("docs", ""),
	}, nil)
	require.ErrorIs(t, err, apperr.ErrNameTaken)
	assert.Equal(t, 1, e.memory.Len(), "nothing is sent")

	root, err := e.store.FindByName(ctx, "", "docs")
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.False(t, root[0].IsFolder)

	res, err := e.deleter.Delete(ctx, DeleteRequest{Name: "docs"})
	require.NoError(t, err)
	assert.Equal(t, &DeleteResult{Removed: 1}, res)
	_, err = e.store.GetByMessageID(ctx, file.MessageID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUploadSniffsContentType(t *testing.T) {
	e := newEnv(t, 1024, nil)
	res, err := e.uploader.Upload(context.Background(), UploadRequest{
		Name: "doc",
		Data: []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n"),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", res.ContentType)
}

func TestUploadRejectsInvalidName(t *testing.T) {
	e := newEnv(t, 25, nil)
	_, err := e.uploader.Upload(context.Background(), UploadRequest{Name: "../x", Data: []byte("x")}, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidName)
	assert.Zero(t, e.memory.Len())
}

func TestUploadPartialFailure(t *testing.T) {
	e := newEnv(t, 25, func(m *transport.MemoryTransport) transport.Transport {
		return &flakyTransport{MemoryTransport: m, failSendAt: 2}
	})
	ctx := context.Background()

	var progress []float64
	_, err := e.uploader.Upload(ctx, UploadRequest{
		Name:        "big.bin",
		ContentType: "application/zip",
		Data:        make([]byte, 60),
	}, func(p float64) { progress = append(progress, p) })
	require.ErrorIs(t, err, apperr.ErrPartialFailure)
	require.ErrorIs(t, err, apperr.ErrTransportUnavailable)
	assert.Len(t, progress, 1)

	// the committed chunk is left in place
	assert.Equal(t, 1, e.store.Len())
	assert.Equal(t, 1, e.memory.Len())
}

func TestUploadFirstSendFailure(t *testing.T) {
	e := newEnv(t, 25, func(m *transport.MemoryTransport) transport.Transport {
		return &flakyTransport{MemoryTransport: m, failSendAt: 1}
	})
	_, err := e.uploader.Upload(context.Background(), UploadRequest{Name: "a.txt", Data: make([]byte, 60)}, nil)
	require.ErrorIs(t, err, apperr.ErrTransportUnavailable)
	assert.NotErrorIs(t, err, apperr.ErrPartialFailure)
	assert.Zero(t, e.store.Len())
}

func TestDownloadErrors(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()

	folder, err := e.folders.Create(ctx, "docs", naming.Path{})
	require.NoError(t, err)
	_, err = e.downloader.Download(ctx, folder.MessageID, naming.Path{})
	require.ErrorIs(t, err, apperr.ErrNotDownloadable)

	_, err = e.downloader.Download(ctx, "missing", naming.Path{})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// chunks 0 and 2 without 1
	for _, i := range []int{0, 2} {
		id, err := e.memory.Send(ctx, testChannel, transport.Upload{Name: "gap.bin", Data: []byte("x")})
		require.NoError(t, err)
		require.NoError(t, e.store.Insert(ctx, &models.CatalogEntry{
			Name: "gap.bin", MessageID: id, ChunkIndex: models.ChunkIndexPtr(i), ChannelID: testChannel,
		}))
	}
	gap, err := e.store.FindByName(ctx, "", "gap.bin")
	require.NoError(t, err)
	_, err = e.downloader.Download(ctx, gap[0].MessageID, naming.Path{})
	require.ErrorIs(t, err, apperr.ErrCorrupt)
	assert.Equal(t, 500, apperr.HTTPStatus(err))

	// a message deleted behind the catalog's back
	res := e.upload(t, "gone.txt", []byte("bye"), naming.Path{})
	require.NoError(t, e.memory.Delete(ctx, testChannel, res.MessageID))
	_, err = e.downloader.Download(ctx, res.MessageID, naming.Path{})
	require.ErrorIs(t, err, transport.ErrMessageNotFound)
}

func TestDeleteSplitFile(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()
	e.upload(t, "big.bin", make([]byte, 60), naming.Path{})
	e.upload(t, "keep.txt", []byte("k"), naming.Path{})

	res, err := e.deleter.Delete(ctx, DeleteRequest{Name: "big.bin"})
	require.NoError(t, err)
	assert.Equal(t, &DeleteResult{Removed: 3}, res)
	assert.Equal(t, 1, e.store.Len())
	assert.Equal(t, 1, e.memory.Len())
	require.True(t, e.reconciler.Index().Stale())
	items, err := e.reconciler.Current(ctx, time.Hour)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = e.deleter.Delete(ctx, DeleteRequest{Name: "big.bin"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteToleratesMissingMessages(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()
	res := e.upload(t, "a.txt", []byte("a"), naming.Path{})
	require.NoError(t, e.memory.Delete(ctx, testChannel, res.MessageID))

	out, err := e.deleter.Delete(ctx, DeleteRequest{Name: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Removed)
	assert.Zero(t, e.store.Len())
}

func TestDeleteFolderRecursively(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()
	e.upload(t, "a.txt", []byte("a"), naming.NewPath("docs", ""))
	e.upload(t, "b.bin", make([]byte, 30), naming.NewPath("2024", "docs"))
	e.upload(t, "keep.txt", []byte("k"), naming.Path{})

	res, err := e.deleter.Delete(ctx, DeleteRequest{Name: "docs"})
	require.NoError(t, err)
	// a.txt, two chunks of b.bin, the 2024 folder and docs itself
	assert.Equal(t, 5, res.Removed)
	assert.Equal(t, 1, e.store.Len())
	assert.Equal(t, 1, e.memory.Len())
}

func TestDeleteRemovesEmptiedFolderOneLevel(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()
	path := naming.NewPath("2024", "docs")
	e.upload(t, "report.txt", []byte("r"), path)

	res, err := e.deleter.Delete(ctx, DeleteRequest{Name: "report.txt", Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Removed)

	_, err = e.folders.List(ctx, path)
	require.ErrorIs(t, err, apperr.ErrNotFound, "the emptied folder is gone")

	items, err := e.folders.List(ctx, naming.NewPath("docs", ""))
	require.NoError(t, err)
	assert.Empty(t, items, "its parent stays even though it is now empty")
}

func TestDeleteKeepsNonEmptyFolder(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()
	path := naming.NewPath("docs", "")
	e.upload(t, "a.txt", []byte("a"), path)
	e.upload(t, "b.txt", []byte("b"), path)

	res, err := e.deleter.Delete(ctx, DeleteRequest{Name: "a.txt", Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Removed)

	items, err := e.folders.List(ctx, path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "b.txt", items[0].ItemName())
}

func TestDeletePartialFailure(t *testing.T) {
	flaky := &flakyTransport{failDelete: map[string]bool{}}
	e := newEnv(t, 25, func(m *transport.MemoryTransport) transport.Transport {
		flaky.MemoryTransport = m
		return flaky
	})
	ctx := context.Background()
	e.upload(t, "big.bin", make([]byte, 60), naming.Path{})

	entries, err := e.store.FindByName(ctx, "", "big.bin")
	require.NoError(t, err)
	flaky.failDelete[entries[1].MessageID] = true

	res, err := e.deleter.Delete(ctx, DeleteRequest{Name: "big.bin"})
	require.ErrorIs(t, err, apperr.ErrPartialFailure)
	require.ErrorIs(t, err, apperr.ErrTransportUnavailable)
	assert.Equal(t, &DeleteResult{Removed: 2, Failed: 1}, res)
	assert.Equal(t, 500, apperr.HTTPStatus(err))

	remaining, err := e.store.FindByName(ctx, "", "big.bin")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, entries[1].MessageID, remaining[0].MessageID)
}

func TestDeleteUnknownPath(t *testing.T) {
	e := newEnv(t, 25, nil)
	_, err := e.deleter.Delete(context.Background(), DeleteRequest{Name: "a.txt", Path: naming.NewPath("nowhere", "")})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFoldersCreate(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()

	docs, err := e.folders.Create(ctx, "docs", naming.Path{})
	require.NoError(t, err)
	assert.True(t, docs.IsFolder)
	marker, ok := e.memory.Message(docs.MessageID)
	require.True(t, ok)
	assert.Equal(t, "docs.folder", marker.Name)

	again, err := e.folders.Create(ctx, "docs", naming.Path{})
	require.NoError(t, err)
	assert.Equal(t, "docs (1)", again.Name)

	sub, err := e.folders.Create(ctx, "2024", naming.NewPath("docs", ""))
	require.NoError(t, err)
	assert.Equal(t, docs.MessageID, sub.FolderID)

	_, err = e.folders.Create(ctx, "q1", naming.NewPath("2024", "docs"))
	require.ErrorIs(t, err, apperr.ErrTooDeep)

	_, err = e.folders.Create(ctx, "x", naming.NewPath("missing", ""))
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = e.folders.Create(ctx, "a/b", naming.Path{})
	require.ErrorIs(t, err, apperr.ErrInvalidName)

	items, err := e.reconciler.Current(ctx, time.Hour)
	require.NoError(t, err)
	require.Len(t, items, 2)
	_, isFolder := items[0].(models.Folder)
	assert.True(t, isFolder)
}

func TestFoldersList(t *testing.T) {
	e := newEnv(t, 25, nil)
	ctx := context.Background()
	e.upload(t, "a.txt", []byte("a"), naming.NewPath("docs", ""))
	e.upload(t, "big.bin", make([]byte, 30), naming.NewPath("docs", ""))

	items, err := e.folders.List(ctx, naming.NewPath("docs", ""))
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "a.txt", items[0].ItemName())
	assert.Equal(t, "big.bin", items[1].ItemName())
	assert.True(t, items[1].(models.File).Split())
}
