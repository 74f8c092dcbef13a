package service

import (
	"context"
	"fmt"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
	"github.com/maneesh/discloud/internal/naming"
	"github.com/maneesh/discloud/internal/transport"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// folderMarkerType is the content type of the message backing a folder.
const folderMarkerType = "text/plain; charset=utf-8"

// Folders creates and lists virtual folders.
type Folders struct {
	deps     Deps
	resolver *naming.Resolver
}

func NewFolders(deps Deps) *Folders {
	return &Folders{
		deps:     deps,
		resolver: deps.resolver(),
	}
}

// Create adds a folder named name inside parent and returns its entry. The
// name is disambiguated against its new siblings.
func (f *Folders) Create(ctx context.Context, name string, parent naming.Path) (*models.CatalogEntry, error) {
	ctx, span := tracer.Start(ctx, "create_folder",
		trace.WithAttributes(
			attribute.String("folder_name", name),
			attribute.String("parent", parent.String()),
		),
	)
	defer span.End()

	if !naming.ValidName(name) {
		return nil, fmt.Errorf("folder name %q: %w", name, apperr.ErrInvalidName)
	}
	if len(parent.Segments()) >= naming.MaxDepth {
		return nil, fmt.Errorf("cannot create %q in %s: %w", name, parent, apperr.ErrTooDeep)
	}

	parentID, err := f.resolver.Walk(ctx, parent)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	unique, err := f.resolver.UniqueName(ctx, parentID, name)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	entry, err := f.create(ctx, unique, parentID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	f.deps.invalidate()
	return entry, nil
}

// List resolves the items directly inside path.
func (f *Folders) List(ctx context.Context, path naming.Path) ([]models.Item, error) {
	ctx, span := tracer.Start(ctx, "list_folder",
		trace.WithAttributes(attribute.String("path", path.String())),
	)
	defer span.End()

	scope, err := f.resolver.Walk(ctx, path)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return f.deps.Reconciler.Scope(ctx, scope)
}

// create posts the marker message and catalogs the folder under exactly
// name. It is also the resolver's creator for upload paths.
func (f *Folders) create(ctx context.Context, name, parentID string) (*models.CatalogEntry, error) {
	messageID, err := f.deps.Transport.Send(ctx, f.deps.ChannelID, transport.Upload{
		Name:        name + ".folder",
		ContentType: folderMarkerType,
		Data:        []byte("folder: " + name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send folder marker: %w", err)
	}

	entry := &models.CatalogEntry{
		Name:      name,
		MessageID: messageID,
		ChannelID: f.deps.ChannelID,
		IsFolder:  true,
		FolderID:  parentID,
	}
	if err := f.deps.Store.Insert(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to catalog folder %q: %w", name, err)
	}
	return entry, nil
}
