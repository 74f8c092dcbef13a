package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/maneesh/discloud/internal/apperr"
	"github.com/maneesh/discloud/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// discordRequestTimeout bounds a single REST call; a 25 MiB attachment upload
// must fit inside it.
const discordRequestTimeout = 5 * time.Minute

// DiscordTransport talks to the Discord REST API with a bot token. The
// gateway websocket is never opened.
type DiscordTransport struct {
	session *discordgo.Session
}

// NewDiscordTransport creates a REST-only Discord session.
func NewDiscordTransport(token string) (*DiscordTransport, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Client = &http.Client{
		Timeout:   discordRequestTimeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	return &DiscordTransport{session: session}, nil
}

// Send posts data as a single attachment.
func (d *DiscordTransport) Send(ctx context.Context, channelID string, upload Upload) (string, error) {
	ctx, span := tracer.Start(ctx, "discord.send",
		trace.WithAttributes(
			attribute.String("channel_id", channelID),
			attribute.String("attachment_name", upload.Name),
			attribute.Int("size_bytes", len(upload.Data)),
		),
	)
	defer span.End()

	msg, err := d.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Files: []*discordgo.File{{
			Name:        upload.Name,
			ContentType: upload.ContentType,
			Reader:      bytes.NewReader(upload.Data),
		}},
	}, discordgo.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to send attachment: %w", classifyDiscordError(err))
	}

	span.SetAttributes(attribute.String("message_id", msg.ID))
	return msg.ID, nil
}

// Attachment fetches the message to obtain a fresh, signed CDN URL.
func (d *DiscordTransport) Attachment(ctx context.Context, channelID, messageID string) (*models.Attachment, error) {
	ctx, span := tracer.Start(ctx, "discord.attachment",
		trace.WithAttributes(
			attribute.String("channel_id", channelID),
			attribute.String("message_id", messageID),
		),
	)
	defer span.End()

	msg, err := d.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch message %s: %w", messageID, classifyDiscordError(err))
	}
	if len(msg.Attachments) == 0 {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNoAttachment)
	}

	a := msg.Attachments[0]
	return &models.Attachment{
		MessageID:   messageID,
		ChannelID:   channelID,
		URL:         a.URL,
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Size:        int64(a.Size),
	}, nil
}

// Delete removes the message.
func (d *DiscordTransport) Delete(ctx context.Context, channelID, messageID string) error {
	ctx, span := tracer.Start(ctx, "discord.delete",
		trace.WithAttributes(
			attribute.String("channel_id", channelID),
			attribute.String("message_id", messageID),
		),
	)
	defer span.End()

	if err := d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete message %s: %w", messageID, classifyDiscordError(err))
	}
	return nil
}

// classifyDiscordError maps unknown-message/unknown-channel responses to
// ErrMessageNotFound and everything else to ErrTransportUnavailable.
func classifyDiscordError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownMessage, discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%w: %v", ErrMessageNotFound, err)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %v", ErrMessageNotFound, err)
		}
	}
	return fmt.Errorf("%w: %v", apperr.ErrTransportUnavailable, err)
}
