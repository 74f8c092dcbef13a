package naming

import (
	"context"
	"fmt"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
	"github.com/samber/lo"
)

// Lookup is the part of the catalog store the resolver reads.
type Lookup interface {
	ListScope(ctx context.Context, folderID string) ([]models.CatalogEntry, error)
	FindByName(ctx context.Context, folderID, name string) ([]models.CatalogEntry, error)
}

// CreateFolderFunc persists a new folder entry named name inside parentID.
type CreateFolderFunc func(ctx context.Context, name, parentID string) (*models.CatalogEntry, error)

// Resolver maps folder paths to scope ids and proposes unique names.
type Resolver struct {
	store Lookup
}

func NewResolver(store Lookup) *Resolver {
	return &Resolver{store: store}
}

// Walk follows p from root by repeated child lookup and returns the folder
// id of the final segment ("" for root).
func (r *Resolver) Walk(ctx context.Context, p Path) (string, error) {
	scope := ""
	for _, segment := range p.Segments() {
		folder, _, err := r.childFolder(ctx, scope, segment)
		if err != nil {
			return "", err
		}
		if folder == nil {
			return "", fmt.Errorf("folder %q in %s: %w", segment, p, apperr.ErrNotFound)
		}
		scope = folder.MessageID
	}
	return scope, nil
}

// Ensure is Walk, except missing segments are created with create. A segment
// whose name is already held by a file is rejected with apperr.ErrNameTaken,
// since Walk would never resolve a renamed folder under that path.
func (r *Resolver) Ensure(ctx context.Context, p Path, create CreateFolderFunc) (string, error) {
	scope := ""
	for _, segment := range p.Segments() {
		folder, taken, err := r.childFolder(ctx, scope, segment)
		if err != nil {
			return "", err
		}
		if folder == nil && taken {
			return "", fmt.Errorf("folder %q in %s: %w", segment, p, apperr.ErrNameTaken)
		}
		if folder == nil {
			folder, err = create(ctx, segment, scope)
			if err != nil {
				return "", fmt.Errorf("failed to create folder %q: %w", segment, err)
			}
		}
		scope = folder.MessageID
	}
	return scope, nil
}

// UniqueName disambiguates proposed against the names already in scope.
func (r *Resolver) UniqueName(ctx context.Context, folderID, proposed string) (string, error) {
	entries, err := r.store.ListScope(ctx, folderID)
	if err != nil {
		return "", fmt.Errorf("failed to list scope: %w", err)
	}
	names := lo.Uniq(lo.Map(entries, func(e models.CatalogEntry, _ int) string {
		return e.Name
	}))
	return Disambiguate(proposed, names), nil
}

// childFolder returns the folder named name in scope, if any. taken reports
// whether any entry, folder or not, holds the name.
func (r *Resolver) childFolder(ctx context.Context, scope, name string) (*models.CatalogEntry, bool, error) {
	entries, err := r.store.FindByName(ctx, scope, name)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up folder %q: %w", name, err)
	}
	folder, ok := lo.Find(entries, func(e models.CatalogEntry) bool {
		return e.IsFolder
	})
	if !ok {
		return nil, len(entries) > 0, nil
	}
	return &folder, true, nil
}
