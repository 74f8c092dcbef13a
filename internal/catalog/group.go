package catalog

import (
	"fmt"
	"sort"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
	"github.com/samber/lo"
)

// Rejected is a group of entries that cannot form a downloadable item.
type Rejected struct {
	Name string
	Err  error
}

// SortChunks orders chunk entries by ascending chunk index.
func SortChunks(chunks []models.CatalogEntry) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Index() < chunks[j].Index()
	})
}

// Contiguous checks that sorted chunk entries carry exactly the indexes 0..k.
func Contiguous(chunks []models.CatalogEntry) error {
	for i, c := range chunks {
		if c.Index() != i {
			return fmt.Errorf("%q expected chunk %d, found %d: %w", c.Name, i, c.Index(), apperr.ErrCorrupt)
		}
	}
	return nil
}

// Group turns one scope's entries into items, keeping the order in which
// names first appear. Chunk entries sharing a name form one File; whole
// entries are Files of their own; folders are Folders. Chunk groups with
// gaps or duplicate indexes are rejected.
func Group(entries []models.CatalogEntry) ([]models.Item, []Rejected) {
	var items []models.Item
	var rejected []Rejected

	folders, files := lo.FilterReject(entries, func(e models.CatalogEntry, _ int) bool {
		return e.IsFolder
	})
	folderByName := lo.GroupBy(folders, func(e models.CatalogEntry) string { return e.Name })
	fileByName := lo.GroupBy(files, func(e models.CatalogEntry) string { return e.Name })

	seen := make(map[string]bool)
	for _, e := range entries {
		key := fmt.Sprintf("%t/%s", e.IsFolder, e.Name)
		if seen[key] {
			continue
		}
		seen[key] = true

		if e.IsFolder {
			for _, f := range folderByName[e.Name] {
				items = append(items, models.Folder{Entry: f})
			}
			continue
		}

		chunks, wholes := lo.FilterReject(fileByName[e.Name], func(c models.CatalogEntry, _ int) bool {
			return c.IsChunk()
		})
		for _, w := range wholes {
			items = append(items, models.File{Chunks: []models.CatalogEntry{w}})
		}
		if len(chunks) == 0 {
			continue
		}
		SortChunks(chunks)
		if err := Contiguous(chunks); err != nil {
			rejected = append(rejected, Rejected{Name: e.Name, Err: err})
			continue
		}
		items = append(items, models.File{Chunks: chunks})
	}
	return items, rejected
}
