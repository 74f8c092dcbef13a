package storage

import (
	"context"
	"errors"
	"sort"

	"github.com/maneesh/discloud/internal/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("discloud-storage")

// ErrDuplicateMessage is returned when an entry's message id is already
// cataloged.
var ErrDuplicateMessage = errors.New("message id already cataloged")

// Store is the catalog: one record per file, chunk or folder. A folderID of
// "" addresses the root scope; otherwise it is the message id of the folder
// entry whose children are being addressed.
type Store interface {
	// Insert persists entry and fills in ID and CreatedAt.
	Insert(ctx context.Context, entry *models.CatalogEntry) error
	// GetByMessageID returns apperr.ErrNotFound when nothing matches.
	GetByMessageID(ctx context.Context, messageID string) (*models.CatalogEntry, error)
	// ListScope returns the direct children of folderID in insertion order.
	ListScope(ctx context.Context, folderID string) ([]models.CatalogEntry, error)
	// FindByName returns entries named name in folderID, ordered by chunk
	// index (unsplit first) then insertion order.
	FindByName(ctx context.Context, folderID, name string) ([]models.CatalogEntry, error)
	// Delete removes the entry for messageID, or returns apperr.ErrNotFound.
	Delete(ctx context.Context, messageID string) error
	// CountChildren is the number of entries directly inside folderID.
	CountChildren(ctx context.Context, folderID string) (int, error)
	Close() error
}

func sortByInsertion(entries []models.CatalogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].ID < entries[j].ID
	})
}

func sortByChunk(entries []models.CatalogEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Index() != entries[j].Index() {
			return entries[i].Index() < entries[j].Index()
		}
		return entries[i].ID < entries[j].ID
	})
}
