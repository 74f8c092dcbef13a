package models

import "time"

// CatalogEntry is one stored unit: a whole file, one chunk of a split file,
// or a folder marker. MessageID is the transport message backing it.
type CatalogEntry struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	MessageID  string    `json:"message_id"`
	ChunkIndex *int      `json:"chunk_index,omitempty"`
	ChannelID  string    `json:"channel_id"`
	IsFolder   bool      `json:"is_folder"`
	FolderID   string    `json:"folder_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// IsChunk reports whether the entry is one segment of a split file.
func (e CatalogEntry) IsChunk() bool {
	return e.ChunkIndex != nil
}

// Index returns the chunk index, or -1 for unsplit entries.
func (e CatalogEntry) Index() int {
	if e.ChunkIndex == nil {
		return -1
	}
	return *e.ChunkIndex
}

// ChunkIndexPtr is a helper for building chunk entries.
func ChunkIndexPtr(i int) *int {
	return &i
}

// Attachment describes a transport-hosted blob. URL may expire and is never
// persisted.
type Attachment struct {
	MessageID   string `json:"message_id"`
	ChannelID   string `json:"channel_id"`
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// ChunkData holds chunk information during upload/download
type ChunkData struct {
	Data       []byte
	OrderIndex int
	Hash       string
	Size       int64
}
