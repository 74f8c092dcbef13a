package catalog

import (
	"sync"
	"time"

	"github.com/maneesh/discloud/internal/models"
)

// Index is the browsable root view served by GET /. Mutations mark it stale
// with Invalidate; the next read rebuilds it. A rebuild that started before
// an invalidation does not clear the stale mark.
type Index struct {
	mu       sync.RWMutex
	items    []models.Item
	builtAt  time.Time
	gen      uint64
	builtGen uint64
	built    bool
}

func NewIndex() *Index {
	return &Index{}
}

// Items returns a copy of the current view.
func (i *Index) Items() []models.Item {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return append([]models.Item(nil), i.items...)
}

// Generation is the invalidation counter a rebuild captures before listing.
func (i *Index) Generation() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.gen
}

// Replace swaps in a view built from the catalog as of generation gen.
func (i *Index) Replace(items []models.Item, gen uint64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items = items
	i.builtAt = time.Now()
	i.builtGen = gen
	i.built = true
}

// Invalidate marks the view stale after a catalog mutation.
func (i *Index) Invalidate() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.gen++
}

// Stale reports whether the view was never built or predates a mutation.
func (i *Index) Stale() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return !i.built || i.builtGen != i.gen
}

// BuiltAt is when the view was last replaced; zero if never built.
func (i *Index) BuiltAt() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.builtAt
}
