package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/logging"
	"github.com/maneesh/discloud/internal/models"
	"github.com/maneesh/discloud/internal/naming"
	"github.com/maneesh/discloud/internal/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DeleteRequest names the item to remove and the scope holding it.
type DeleteRequest struct {
	Name string
	Path naming.Path
}

// DeleteResult counts the records removed and the ones that failed.
type DeleteResult struct {
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Deleter removes every record of an item, best effort.
type Deleter struct {
	deps     Deps
	resolver *naming.Resolver
}

func NewDeleter(deps Deps) *Deleter {
	return &Deleter{
		deps:     deps,
		resolver: deps.resolver(),
	}
}

// Delete removes every entry named req.Name in req.Path: all chunks of a
// split file, or a folder with everything inside it. One failing record does
// not stop the rest; the failures are joined under apperr.ErrPartialFailure.
// When the scope is a folder left empty, the folder itself is removed too.
func (d *Deleter) Delete(ctx context.Context, req DeleteRequest) (result *DeleteResult, err error) {
	ctx, span := tracer.Start(ctx, "delete_item",
		trace.WithAttributes(
			attribute.String("name", req.Name),
			attribute.String("path", req.Path.String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
		}
		d.deps.Metrics.Delete(err)
		span.End()
	}()

	scope, err := d.resolver.Walk(ctx, req.Path)
	if err != nil {
		return nil, err
	}
	entries, err := d.deps.Store.FindByName(ctx, scope, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %q: %w", req.Name, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%q in %s: %w", req.Name, req.Path, apperr.ErrNotFound)
	}

	run := &deletion{deps: d.deps, result: &DeleteResult{}}
	for _, e := range entries {
		run.remove(ctx, e)
	}
	if scope != "" {
		run.removeIfEmpty(ctx, scope)
	}
	d.deps.invalidate()

	span.SetAttributes(
		attribute.Int("removed", run.result.Removed),
		attribute.Int("failed", run.result.Failed),
	)
	if run.result.Failed > 0 {
		return run.result, fmt.Errorf("%w: %w", apperr.ErrPartialFailure, errors.Join(run.errs...))
	}
	return run.result, nil
}

// deletion accumulates the outcome of one Delete call.
type deletion struct {
	deps   Deps
	result *DeleteResult
	errs   []error
}

// remove deletes e, first emptying it if it is a folder. A folder whose
// children could not all be removed is kept.
func (r *deletion) remove(ctx context.Context, e models.CatalogEntry) {
	if e.IsFolder {
		children, err := r.deps.Store.ListScope(ctx, e.MessageID)
		if err != nil {
			r.fail(e, fmt.Errorf("failed to list folder: %w", err))
			return
		}
		failed := r.result.Failed
		for _, c := range children {
			r.remove(ctx, c)
		}
		if r.result.Failed > failed {
			r.fail(e, errors.New("folder not empty"))
			return
		}
	}
	r.removeOne(ctx, e)
}

// removeOne deletes the message then the row. A message that is already
// gone counts as deleted.
func (r *deletion) removeOne(ctx context.Context, e models.CatalogEntry) {
	err := r.deps.Transport.Delete(ctx, e.ChannelID, e.MessageID)
	if err != nil && !errors.Is(err, transport.ErrMessageNotFound) {
		r.fail(e, fmt.Errorf("failed to delete message: %w", err))
		return
	}
	if err := r.deps.Store.Delete(ctx, e.MessageID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		r.fail(e, fmt.Errorf("failed to delete catalog entry: %w", err))
		return
	}
	r.result.Removed++
}

// removeIfEmpty drops the folder folderID from its parent once it has no
// children left. Only this one level is collapsed.
func (r *deletion) removeIfEmpty(ctx context.Context, folderID string) {
	n, err := r.deps.Store.CountChildren(ctx, folderID)
	if err != nil {
		logging.Warnw("Failed to count folder children", "folder_id", folderID, "error", err)
		return
	}
	if n > 0 {
		return
	}
	folder, err := r.deps.Store.GetByMessageID(ctx, folderID)
	if err != nil {
		logging.Warnw("Empty folder has no entry", "folder_id", folderID, "error", err)
		return
	}
	logging.Infow("Removing empty folder", "name", folder.Name, "folder_id", folderID)
	r.removeOne(ctx, *folder)
}

func (r *deletion) fail(e models.CatalogEntry, err error) {
	logging.Error("Failed to delete record", err, "name", e.Name, "message_id", e.MessageID)
	r.result.Failed++
	r.errs = append(r.errs, fmt.Errorf("%s: %w", e.MessageID, err))
}
