package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// HTTPFetcher downloads attachment bytes from their URL.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher wraps client (http.DefaultClient when nil) with tracing.
func NewHTTPFetcher(client *http.Client) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	traced := *client
	traced.Transport = otelhttp.NewTransport(base)
	return &HTTPFetcher{client: &traced}
}

// Fetch GETs the attachment URL and returns the whole body.
func (f *HTTPFetcher) Fetch(ctx context.Context, attachment models.Attachment) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "fetch_attachment",
		trace.WithAttributes(
			attribute.String("message_id", attachment.MessageID),
			attribute.Int64("size_bytes", attachment.Size),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, attachment.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch attachment %s: %w: %v", attachment.MessageID, apperr.ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("attachment %s: %w", attachment.MessageID, ErrMessageNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment %s returned %s: %w", attachment.MessageID, resp.Status, apperr.ErrTransportUnavailable)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read attachment %s: %w", attachment.MessageID, err)
	}

	span.SetAttributes(attribute.Bool("download_success", true))
	return data, nil
}
