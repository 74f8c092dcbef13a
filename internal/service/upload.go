package service

import (
	"context"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/chunker"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/models"
	"github.com/maneesh/discloud/internal/naming"
	"github.com/maneesh/discloud/internal/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProgressFunc receives the share of chunks committed so far, 0 to 100.
type ProgressFunc func(percent float64)

// UploadRequest is one file to store under Path.
type UploadRequest struct {
	Name        string
	ContentType string
	Data        []byte
	Path        naming.Path
}

// UploadResult describes the stored file.
type UploadResult struct {
	Name        string `json:"name"`
	MessageID   string `json:"messageId"`
	ChunkCount  int    `json:"chunkCount"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Scope       string `json:"folderId,omitempty"`
}

// Uploader stores files as one attachment, or as ordered chunk attachments
// when they exceed the chunk size.
type Uploader struct {
	deps     Deps
	resolver *naming.Resolver
	folders  *Folders
	chunker  *chunker.Chunker
}

func NewUploader(deps Deps, folders *Folders, c *chunker.Chunker) *Uploader {
	return &Uploader{
		deps:     deps,
		resolver: deps.resolver(),
		folders:  folders,
		chunker:  c,
	}
}

// Upload stores req. Folders on req.Path are created on first use and the
// name is made unique within its scope. Chunks are sent one at a time and
// each is cataloged before the next is sent; progress is reported after
// every catalog write. If a later chunk fails, the chunks already committed
// stay in place and the error wraps apperr.ErrPartialFailure.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest, progress ProgressFunc) (result *UploadResult, err error) {
	ctx, span := tracer.Start(ctx, "upload_file",
		trace.WithAttributes(
			attribute.String("file_name", req.Name),
			attribute.Int("file_size", len(req.Data)),
			attribute.String("path", req.Path.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		u.deps.Metrics.Upload(err)
		span.End()
	}()

	if progress == nil {
		progress = func(float64) {}
	}
	if !naming.ValidName(req.Name) {
		return nil, fmt.Errorf("file name %q: %w", req.Name, apperr.ErrInvalidName)
	}

	scope, err := u.resolver.Ensure(ctx, req.Path, u.folders.create)
	if err != nil {
		return nil, err
	}
	name, err := u.resolver.UniqueName(ctx, scope, req.Name)
	if err != nil {
		return nil, err
	}
	contentType := detectContentType(req.ContentType, req.Data)

	result = &UploadResult{
		Name:        name,
		Size:        int64(len(req.Data)),
		ContentType: contentType,
		Scope:       scope,
	}
	span.SetAttributes(attribute.String("stored_name", name))

	if !u.chunker.IsSplit(result.Size) {
		upload := transport.Upload{Name: name, ContentType: contentType, Data: req.Data}
		id, err := u.commit(ctx, upload, "", name, scope, nil)
		if err != nil {
			return nil, err
		}
		result.MessageID = id
		result.ChunkCount = 1
		progress(100)
		u.deps.invalidate()
		return result, nil
	}

	chunks, err := u.chunker.Chunks(req.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to chunk file: %w", err)
	}
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	logging.Infow("Uploading split file", "name", name, "size", result.Size, "chunks", len(chunks))

	for i, c := range chunks {
		id, err := u.commit(ctx, transport.Upload{
			Name:        chunker.PartName(name, contentType, c.OrderIndex),
			ContentType: contentType,
			Data:        c.Data,
		}, c.Hash, name, scope, models.ChunkIndexPtr(c.OrderIndex))
		if err != nil {
			if i == 0 {
				return nil, err
			}
			logging.Error("Upload stopped with chunks orphaned", err, "name", name, "committed", i, "chunks", len(chunks))
			u.deps.invalidate()
			return nil, fmt.Errorf("%w: %d of %d chunks of %q committed: %w", apperr.ErrPartialFailure, i, len(chunks), name, err)
		}
		if i == 0 {
			result.MessageID = id
		}
		result.ChunkCount++
		progress(float64(i+1) / float64(len(chunks)) * 100)
	}

	u.deps.invalidate()
	return result, nil
}

// commit sends one attachment and catalogs it. hash is the chunk's SHA-256
// as computed while splitting, or empty for a whole file. A send that
// succeeds before a failed insert leaves an orphaned message, which is
// logged.
func (u *Uploader) commit(ctx context.Context, upload transport.Upload, hash, name, scope string, index *int) (string, error) {
	ctx, span := tracer.Start(ctx, "commit_chunk",
		trace.WithAttributes(
			attribute.String("attachment_name", upload.Name),
			attribute.Int("chunk_size", len(upload.Data)),
		),
	)
	defer span.End()
	if hash != "" {
		span.SetAttributes(attribute.String("chunk_hash", hash))
	}

	id, err := u.deps.Transport.Send(ctx, u.deps.ChannelID, upload)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to send %q: %w", upload.Name, err)
	}
	u.deps.Metrics.ChunkSent()

	entry := &models.CatalogEntry{
		Name:       name,
		MessageID:  id,
		ChunkIndex: index,
		ChannelID:  u.deps.ChannelID,
		FolderID:   scope,
	}
	if err := u.deps.Store.Insert(ctx, entry); err != nil {
		span.RecordError(err)
		logging.Warnw("Sent attachment is not cataloged", "message_id", id, "name", upload.Name)
		return "", fmt.Errorf("failed to catalog %q: %w", upload.Name, err)
	}
	span.SetAttributes(attribute.String("message_id", id))
	return id, nil
}

// detectContentType keeps a declared type unless it is missing or generic,
// in which case the payload is sniffed.
func detectContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return mimetype.Detect(data).String()
}
