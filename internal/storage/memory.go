package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
)

// MemoryStore keeps the catalog in process memory. It backs local
// development and tests; its contents die with the process.
type MemoryStore struct {
	mu      sync.RWMutex
	seq     int64
	entries map[string]models.CatalogEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]models.CatalogEntry)}
}

func (m *MemoryStore) Insert(_ context.Context, entry *models.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[entry.MessageID]; ok {
		return fmt.Errorf("%s: %w", entry.MessageID, ErrDuplicateMessage)
	}
	m.seq++
	entry.ID = m.seq
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m.entries[entry.MessageID] = cloneEntry(*entry)
	return nil
}

func (m *MemoryStore) GetByMessageID(_ context.Context, messageID string) (*models.CatalogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	}
	e = cloneEntry(e)
	return &e, nil
}

func (m *MemoryStore) ListScope(_ context.Context, folderID string) ([]models.CatalogEntry, error) {
	entries := m.filter(func(e models.CatalogEntry) bool {
		return e.FolderID == folderID
	})
	sortByInsertion(entries)
	return entries, nil
}

func (m *MemoryStore) FindByName(_ context.Context, folderID, name string) ([]models.CatalogEntry, error) {
	entries := m.filter(func(e models.CatalogEntry) bool {
		return e.FolderID == folderID && e.Name == name
	})
	sortByChunk(entries)
	return entries, nil
}

func (m *MemoryStore) Delete(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[messageID]; !ok {
		return fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	}
	delete(m.entries, messageID)
	return nil
}

func (m *MemoryStore) CountChildren(_ context.Context, folderID string) (int, error) {
	return len(m.filter(func(e models.CatalogEntry) bool {
		return e.FolderID == folderID
	})), nil
}

// Len is the total number of entries.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) filter(keep func(models.CatalogEntry) bool) []models.CatalogEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.CatalogEntry
	for _, e := range m.entries {
		if keep(e) {
			out = append(out, cloneEntry(e))
		}
	}
	return out
}

func cloneEntry(e models.CatalogEntry) models.CatalogEntry {
	if e.ChunkIndex != nil {
		e.ChunkIndex = models.ChunkIndexPtr(*e.ChunkIndex)
	}
	return e
}
