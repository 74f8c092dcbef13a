package service

import (
	"context"
	"fmt"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/catalog"
	"github.com/maneesh/discloud/internal/chunker"
	"github.com/maneesh/discloud/internal/models"
	"github.com/maneesh/discloud/internal/naming"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultContentType = "application/octet-stream"

// Payload is a reconstructed file ready to be written to a client.
type Payload struct {
	Name        string
	ContentType string
	Data        []byte
	// SHA256 is the hex digest of Data.
	SHA256 string
}

// Downloader rebuilds files from their attachments.
type Downloader struct {
	deps     Deps
	resolver *naming.Resolver
}

func NewDownloader(deps Deps) *Downloader {
	return &Downloader{
		deps:     deps,
		resolver: deps.resolver(),
	}
}

// Download returns the file owning messageID inside path. For a split file
// any of its chunk ids may be given; all chunks are fetched and joined.
func (d *Downloader) Download(ctx context.Context, messageID string, path naming.Path) (*Payload, error) {
	return d.download(ctx, messageID, path, false)
}

// DownloadMerged is Download restricted to split files.
func (d *Downloader) DownloadMerged(ctx context.Context, messageID string, path naming.Path) (*Payload, error) {
	return d.download(ctx, messageID, path, true)
}

func (d *Downloader) download(ctx context.Context, messageID string, path naming.Path, merged bool) (payload *Payload, err error) {
	ctx, span := tracer.Start(ctx, "download_file",
		trace.WithAttributes(
			attribute.String("message_id", messageID),
			attribute.String("path", path.String()),
			attribute.Bool("merged", merged),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		d.deps.Metrics.Download(err)
		span.End()
	}()

	scope, err := d.resolver.Walk(ctx, path)
	if err != nil {
		return nil, err
	}
	entry, err := d.deps.Store.GetByMessageID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if entry.FolderID != scope {
		return nil, fmt.Errorf("message %s in %s: %w", messageID, path, apperr.ErrNotFound)
	}
	if entry.IsFolder {
		return nil, fmt.Errorf("%q: %w", entry.Name, apperr.ErrNotDownloadable)
	}
	if merged && !entry.IsChunk() {
		return nil, fmt.Errorf("%q: %w", entry.Name, apperr.ErrNotSplit)
	}

	chunks := []models.CatalogEntry{*entry}
	if entry.IsChunk() {
		named, err := d.deps.Store.FindByName(ctx, scope, entry.Name)
		if err != nil {
			return nil, fmt.Errorf("failed to look up chunks: %w", err)
		}
		chunks = lo.Filter(named, func(e models.CatalogEntry, _ int) bool {
			return e.IsChunk()
		})
		catalog.SortChunks(chunks)
		if err := catalog.Contiguous(chunks); err != nil {
			return nil, err
		}
	}
	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))

	segments := make([][]byte, 0, len(chunks))
	contentType := ""
	for i, c := range chunks {
		data, attachment, err := d.fetchChunk(ctx, c, i)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			contentType = attachment.ContentType
		}
		segments = append(segments, data)
	}
	if contentType == "" {
		contentType = defaultContentType
	}

	data := chunker.Join(segments)
	return &Payload{
		Name:        entry.Name,
		ContentType: contentType,
		Data:        data,
		SHA256:      chunker.ComputeHash(data),
	}, nil
}

func (d *Downloader) fetchChunk(ctx context.Context, c models.CatalogEntry, i int) ([]byte, *models.Attachment, error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("download_chunk_%d", i),
		trace.WithAttributes(
			attribute.Int("chunk_index", i),
			attribute.String("message_id", c.MessageID),
		),
	)
	defer span.End()

	attachment, err := d.deps.Transport.Attachment(ctx, c.ChannelID, c.MessageID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("failed to resolve chunk %d: %w", i, err)
	}
	data, err := d.deps.Fetcher.Fetch(ctx, *attachment)
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("failed to fetch chunk %d: %w", i, err)
	}
	span.SetAttributes(attribute.Int64("chunk_size", int64(len(data))))
	return data, attachment, nil
}
