// Package transport stores blobs as chat-message attachments. A message id is
// the only handle: it is returned by Send and required by every other call.
package transport

import (
	"context"
	"errors"

	"github.com/maneesh/discloud/internal/models"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("discloud-transport")

var (
	// ErrMessageNotFound means the message (or its channel) no longer exists.
	ErrMessageNotFound = errors.New("message not found")
	// ErrNoAttachment means the message exists but carries no attachment.
	ErrNoAttachment = errors.New("message has no attachment")
)

// Upload is one attachment to post.
type Upload struct {
	Name        string
	ContentType string
	Data        []byte
}

// Transport is the chat platform used as append-only blob storage.
type Transport interface {
	// Send posts one attachment message and returns its id once persisted.
	Send(ctx context.Context, channelID string, upload Upload) (string, error)
	// Attachment returns the message's first attachment with a fresh URL.
	Attachment(ctx context.Context, channelID, messageID string) (*models.Attachment, error)
	// Delete removes the message. ErrMessageNotFound if it is already gone.
	Delete(ctx context.Context, channelID, messageID string) error
}

// Fetcher downloads the bytes behind an attachment.
type Fetcher interface {
	Fetch(ctx context.Context, attachment models.Attachment) ([]byte, error)
}
