package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/maneesh/discloud/internal/models"
)

const memoryScheme = "memory://"

type memoryMessage struct {
	channelID string
	upload    Upload
}

// MemoryTransport keeps messages in process memory and serves them through
// memory:// URLs. It is both a Transport and a Fetcher.
type MemoryTransport struct {
	mu       sync.RWMutex
	messages map[string]memoryMessage
	order    []string
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{messages: make(map[string]memoryMessage)}
}

func (m *MemoryTransport) Send(_ context.Context, channelID string, upload Upload) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	data := make([]byte, len(upload.Data))
	copy(data, upload.Data)
	upload.Data = data

	m.messages[id] = memoryMessage{channelID: channelID, upload: upload}
	m.order = append(m.order, id)
	return id, nil
}

func (m *MemoryTransport) Attachment(_ context.Context, channelID, messageID string) (*models.Attachment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[messageID]
	if !ok || msg.channelID != channelID {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrMessageNotFound)
	}
	return &models.Attachment{
		MessageID:   messageID,
		ChannelID:   channelID,
		URL:         memoryScheme + channelID + "/" + messageID,
		Filename:    msg.upload.Name,
		ContentType: msg.upload.ContentType,
		Size:        int64(len(msg.upload.Data)),
	}, nil
}

func (m *MemoryTransport) Delete(_ context.Context, _ string, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.messages[messageID]; !ok {
		return fmt.Errorf("message %s: %w", messageID, ErrMessageNotFound)
	}
	delete(m.messages, messageID)
	return nil
}

// Fetch resolves a memory:// URL back to the stored bytes.
func (m *MemoryTransport) Fetch(_ context.Context, attachment models.Attachment) ([]byte, error) {
	rest, ok := strings.CutPrefix(attachment.URL, memoryScheme)
	if !ok {
		return nil, fmt.Errorf("unsupported attachment URL %q", attachment.URL)
	}
	_, messageID, _ := strings.Cut(rest, "/")

	m.mu.RLock()
	defer m.mu.RUnlock()

	msg, ok := m.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrMessageNotFound)
	}
	out := make([]byte, len(msg.upload.Data))
	copy(out, msg.upload.Data)
	return out, nil
}

// Len is the number of live messages.
func (m *MemoryTransport) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Sent returns the uploads in send order, including deleted ones.
func (m *MemoryTransport) Sent() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...)
}

// Message returns a live message's upload.
func (m *MemoryTransport) Message(messageID string) (Upload, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[messageID]
	return msg.upload, ok
}
