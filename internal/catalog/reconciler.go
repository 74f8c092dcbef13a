// Package catalog rebuilds the browsable view of the catalog by replaying
// its records against the transport.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/metrics"
	"github.com/maneesh/discloud/internal/models"
	"github.com/maneesh/discloud/internal/transport"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("discloud-catalog")

// Lister reads one scope of the catalog.
type Lister interface {
	ListScope(ctx context.Context, folderID string) ([]models.CatalogEntry, error)
}

// AttachmentSource resolves a message to its attachment.
type AttachmentSource interface {
	Attachment(ctx context.Context, channelID, messageID string) (*models.Attachment, error)
}

// Reconciler resolves catalog scopes into items with fresh attachment
// metadata. Nothing it resolves is cached beyond the Index.
type Reconciler struct {
	store   Lister
	source  AttachmentSource
	index   *Index
	metrics *metrics.Metrics
}

func NewReconciler(store Lister, source AttachmentSource, index *Index, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		store:   store,
		source:  source,
		index:   index,
		metrics: m,
	}
}

// Index is the view Rebuild maintains.
func (r *Reconciler) Index() *Index {
	return r.index
}

// Rebuild resolves the root scope and replaces the Index with the result.
func (r *Reconciler) Rebuild(ctx context.Context) ([]models.Item, error) {
	gen := r.index.Generation()
	items, err := r.Scope(ctx, "")
	if err != nil {
		return nil, err
	}
	r.index.Replace(items, gen)
	return items, nil
}

// Current serves the Index when it is not stale and younger than maxAge,
// and rebuilds it otherwise. A non-positive maxAge always rebuilds.
func (r *Reconciler) Current(ctx context.Context, maxAge time.Duration) ([]models.Item, error) {
	if maxAge > 0 && !r.index.Stale() && time.Since(r.index.BuiltAt()) < maxAge {
		return r.index.Items(), nil
	}
	return r.Rebuild(ctx)
}

// Scope resolves every item directly inside folderID. Folders come back
// without attachments. An item whose chunks are not contiguous, or whose
// messages cannot be fetched, is logged and left out; only a failure to list
// the scope itself is returned.
func (r *Reconciler) Scope(ctx context.Context, folderID string) ([]models.Item, error) {
	ctx, span := tracer.Start(ctx, "reconcile_scope",
		trace.WithAttributes(
			attribute.String("folder_id", folderID),
		),
	)
	defer span.End()
	start := time.Now()

	entries, err := r.store.ListScope(ctx, folderID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list catalog scope: %w", err)
	}

	grouped, rejected := Group(entries)
	for _, rej := range rejected {
		logging.Warnw("Dropping corrupt file from view", "name", rej.Name, "error", rej.Err)
		r.metrics.Dropped("corrupt")
	}

	items := make([]models.Item, 0, len(grouped))
	for _, item := range grouped {
		switch it := item.(type) {
		case models.Folder:
			items = append(items, it)
		case models.File:
			resolved, err := r.resolve(ctx, it)
			if err != nil {
				logging.Warnw("Dropping unavailable file from view", "name", it.ItemName(), "error", err)
				r.metrics.Dropped(dropReason(err))
				continue
			}
			items = append(items, resolved)
		}
	}

	r.metrics.ReconcileDone(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("entry_count", len(entries)),
		attribute.Int("item_count", len(items)),
	)
	return items, nil
}

// resolve fetches each chunk's attachment in chunk order.
func (r *Reconciler) resolve(ctx context.Context, file models.File) (models.File, error) {
	attachments := make([]models.Attachment, 0, len(file.Chunks))
	for _, c := range file.Chunks {
		a, err := r.source.Attachment(ctx, c.ChannelID, c.MessageID)
		if err != nil {
			return models.File{}, err
		}
		attachments = append(attachments, *a)
	}
	file.Attachments = attachments
	return file, nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, transport.ErrMessageNotFound), errors.Is(err, transport.ErrNoAttachment):
		return "missing"
	case errors.Is(err, apperr.ErrTransportUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}
